package telemetry

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"github.com/mcp2everything/PID-agent/internal/errors"
	"github.com/mcp2everything/PID-agent/internal/logger"
	"github.com/mcp2everything/PID-agent/internal/protocol"

	_ "github.com/mattn/go-sqlite3"
)

type Repository interface {
	Store(snapshot *protocol.SystemSnapshot) error
	ClearChannel(channelID int) error
	ClearAll() error
	Close() error
}

type sqliteRepository struct {
	db *sql.DB
	mu sync.Mutex
}

func NewRepository(cfg Config) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	logger.Debug().Msgf("Initializing telemetry repository at: %s", cfg.DBPath)

	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	return &sqliteRepository{
		db: db,
	}, nil
}

func (r *sqliteRepository) Store(snapshot *protocol.SystemSnapshot) error {
	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	for _, ch := range snapshot.Channels {
		_, err := tx.Exec(`
            INSERT INTO channel_logs (
                timestamp, channel_id, temperature, target_temp,
                kp, ki, kd, control_period, max_duty, heating
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        `,
			snapshot.Timestamp.Unix(),
			ch.ID,
			ch.Temperature,
			ch.PIDParams.TargetTemp,
			ch.PIDParams.Kp,
			ch.PIDParams.Ki,
			ch.PIDParams.Kd,
			ch.PIDParams.ControlPeriod,
			ch.PIDParams.MaxDuty,
			boolToInt(ch.Heating),
		)
		if err != nil {
			tx.Rollback()
			return errFactory.Wrap(ErrStorageAccess, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (r *sqliteRepository) ClearChannel(channelID int) error {
	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.Exec("DELETE FROM channel_logs WHERE channel_id = ?", channelID); err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (r *sqliteRepository) ClearAll() error {
	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.Exec("DELETE FROM channel_logs"); err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (r *sqliteRepository) Close() error {
	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}
	return nil
}
