package services

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"waitroom/config"
	"waitroom/internal/status"
	"waitroom/models"
)

// ConfigStore reads per-resource queue configurations from the
// queue_configurations collection. Operators manage the records through the
// PocketBase admin UI; changes apply on the next tick, never retroactively.
type ConfigStore struct {
	app      core.App
	defaults *config.Config
}

func NewConfigStore(app core.App, defaults *config.Config) *ConfigStore {
	return &ConfigStore{app: app, defaults: defaults}
}

// Get resolves the configuration for a resource. A missing record yields
// ErrConfigurationMissing and pauses admission for that resource; unset
// optional fields on an existing record fall back to service defaults.
func (c *ConfigStore) Get(resourceID string) (*models.QueueConfiguration, error) {
	record, err := c.app.FindFirstRecordByFilter(
		"queue_configurations",
		"resource_id = {:resource}",
		dbx.Params{"resource": resourceID},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", status.ErrConfigurationMissing, resourceID)
		}
		return nil, err
	}

	cfg := &models.QueueConfiguration{
		ResourceID:        resourceID,
		MaxConcurrent:     record.GetInt("max_concurrent"),
		AvgSessionMinutes: record.GetFloat("avg_session_minutes"),
		SessionTimeout:    time.Duration(record.GetInt("session_timeout_seconds")) * time.Second,
	}

	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = c.defaults.DefaultMaxConcurrent
	}
	if cfg.AvgSessionMinutes <= 0 {
		cfg.AvgSessionMinutes = c.defaults.DefaultAvgSessionMinutes
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = c.defaults.DefaultSessionTimeout
	}

	return cfg, nil
}
