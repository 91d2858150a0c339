package db

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the database identified by dsn. Postgres DSNs use the
// pgx-backed driver; `file:` and `.db` DSNs open SQLite.
func Open(dsn string) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("db: empty dsn")
	}

	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}

	if isSQLiteDSN(dsn) {
		conn, err := gorm.Open(sqlite.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("db: open sqlite: %w", err)
		}
		return conn, nil
	}

	conn, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("db: open postgres: %w", err)
	}
	return conn, nil
}

// isSQLiteDSN reports whether the DSN addresses a SQLite database.
func isSQLiteDSN(dsn string) bool {
	if strings.HasPrefix(dsn, "file:") || dsn == ":memory:" {
		return true
	}
	lower := strings.ToLower(dsn)
	return strings.HasSuffix(lower, ".db") || strings.HasSuffix(lower, ".sqlite")
}
