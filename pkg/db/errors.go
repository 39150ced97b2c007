package db

import "errors"

var (
	ErrFailedToParseDBConfig    = errors.New("db: invalid connection string")
	ErrFailedToOpenDBConnection = errors.New("db: database unreachable")
	ErrHealthcheckFailed        = errors.New("db: healthcheck failed")
	ErrBeginTx                  = errors.New("db: begin transaction")
	ErrApplyMigrations          = errors.New("db: apply migrations")
)
