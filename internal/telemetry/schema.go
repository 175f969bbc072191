package telemetry

import (
	"database/sql"

	"github.com/mcp2everything/PID-agent/internal/errors"
)

// initSchema initializes the database schema for channel history
func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS channel_logs (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            timestamp INTEGER,
            channel_id INTEGER,
            temperature REAL,
            target_temp REAL,
            kp REAL,
            ki REAL,
            kd REAL,
            control_period INTEGER,
            max_duty INTEGER,
            heating INTEGER
        )
    `)
	if err != nil {
		return errors.New().Wrap(ErrStorageInit, err)
	}

	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_channel_logs_channel_ts
        ON channel_logs (channel_id, timestamp)
    `)
	if err != nil {
		return errors.New().Wrap(ErrStorageInit, err)
	}

	return nil
}
