package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the tables used by the repositories.  Statements are
// idempotent so Migrate can run on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id            CHAR(36)     NOT NULL PRIMARY KEY,
		full_name     VARCHAR(120) NOT NULL DEFAULT '',
		email         VARCHAR(255) NULL UNIQUE,
		phone         VARCHAR(32)  NULL UNIQUE,
		role          VARCHAR(16)  NOT NULL DEFAULT '',
		password_hash VARCHAR(255) NOT NULL DEFAULT '',
		created_at    DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS rooms (
		id                         CHAR(36)      NOT NULL PRIMARY KEY,
		name                       VARCHAR(120)  NOT NULL,
		location                   VARCHAR(255)  NOT NULL DEFAULT '',
		description                TEXT          NULL,
		owner_id                   CHAR(36)      NOT NULL,
		assigned_monthly_tenant_id CHAR(36)      NULL,
		created_at                 DATETIME      NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_rooms_owner (owner_id),
		CONSTRAINT fk_rooms_tenant FOREIGN KEY (assigned_monthly_tenant_id) REFERENCES profiles(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id             CHAR(36)    NOT NULL PRIMARY KEY,
		room_id        CHAR(36)    NOT NULL,
		user_id        CHAR(36)    NOT NULL,
		start_date     DATE        NOT NULL,
		end_date       DATE        NOT NULL,
		type           VARCHAR(48) NOT NULL,
		status         VARCHAR(24) NOT NULL,
		credits_earned INT         NOT NULL DEFAULT 0,
		credits_used   INT         NOT NULL DEFAULT 0,
		created_at     DATETIME    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_appointments_room_dates (room_id, start_date, end_date),
		KEY idx_appointments_user (user_id),
		KEY idx_appointments_status_created (status, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id    CHAR(36)        NOT NULL,
		token_hash CHAR(64)        NOT NULL UNIQUE,
		expires_at DATETIME        NOT NULL,
		revoked_at DATETIME        NULL,
		created_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_refresh_user (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
