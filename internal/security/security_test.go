package security

import (
	"testing"
	"time"
)

func TestHashAndCheckPassword(t *testing.T) {
	hashed, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hashed, "s3cret-pass") {
		t.Fatalf("expected matching password to verify")
	}
	if CheckPassword(hashed, "wrong-pass") {
		t.Fatalf("expected mismatched password to fail")
	}
}

func TestIssueAndParseToken(t *testing.T) {
	token, err := IssueToken("test-secret", 42, ActorEmployer, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, errParse := ParseToken("test-secret", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.AccountID != 42 || claims.Actor != ActorEmployer {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, errWrong := ParseToken("other-secret", token); errWrong == nil {
		t.Fatalf("expected wrong-secret parse to fail")
	}
}

func TestParseToken_Expired(t *testing.T) {
	token, err := IssueToken("test-secret", 7, ActorCandidate, -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, errParse := ParseToken("test-secret", token); errParse == nil {
		t.Fatalf("expected expired token to fail")
	}
}
