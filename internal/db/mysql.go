package db

import (
	"database/sql"

	"contact-ingestion-db/internal/config"

	"github.com/go-sql-driver/mysql"
)

func NewConnection(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DatabaseDSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.Database.ConnectionLifetime)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

const mysqlErrDuplicateEntry = 1062

// isDuplicateKey reports whether err is a unique-constraint violation.
// The staging table's unique key on (staging_job_id, staging_row_hash)
// is the backstop for the idempotency check.
func isDuplicateKey(err error) bool {
	if mysqlErr, ok := err.(*mysql.MySQLError); ok {
		return mysqlErr.Number == mysqlErrDuplicateEntry
	}
	return false
}
