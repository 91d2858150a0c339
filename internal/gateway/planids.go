package gateway

import (
	"encoding/json"

	"github.com/hiredeck/hiredeck/internal/models"

	"gorm.io/datatypes"
)

// RemotePlanID reads the stored gateway-side plan ID for one gateway.
func RemotePlanID(plan *models.SubscriptionPlan, gatewayName string) string {
	if plan == nil || len(plan.GatewayPlanIDs) == 0 {
		return ""
	}
	var ids map[string]string
	if errUnmarshal := json.Unmarshal(plan.GatewayPlanIDs, &ids); errUnmarshal != nil {
		return ""
	}
	return ids[gatewayName]
}

// SetRemotePlanID records a gateway-side plan ID on the plan in memory.
// Persisting the updated column is the caller's responsibility.
func SetRemotePlanID(plan *models.SubscriptionPlan, gatewayName, remoteID string) error {
	if plan == nil {
		return nil
	}
	ids := map[string]string{}
	if len(plan.GatewayPlanIDs) > 0 {
		if errUnmarshal := json.Unmarshal(plan.GatewayPlanIDs, &ids); errUnmarshal != nil {
			ids = map[string]string{}
		}
	}
	ids[gatewayName] = remoteID
	raw, errMarshal := json.Marshal(ids)
	if errMarshal != nil {
		return errMarshal
	}
	plan.GatewayPlanIDs = datatypes.JSON(raw)
	return nil
}
