package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// IntegrationConfig is the stored connection info for one external service
// (plex, radarr, sonarr). API keys are encrypted at rest when the store has
// an encryptor.
type IntegrationConfig struct {
	URL     string `json:"url"`
	APIKey  string `json:"api_key"`
	Enabled bool   `json:"enabled"`
}

// Active reports whether the integration is configured and enabled.
func (c IntegrationConfig) Active() bool {
	return c.Enabled && c.URL != "" && c.APIKey != ""
}

func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting setting: %w", err)
	}
	return value, nil
}

const settingUpsert = `INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`

func (s *Store) SetSetting(key, value string) error {
	if _, err := s.db.Exec(settingUpsert, key, value); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

// GetIntegrationConfig loads a service's connection settings, decrypting
// the API key when an encryptor is configured.
func (s *Store) GetIntegrationConfig(service string) (IntegrationConfig, error) {
	var cfg IntegrationConfig
	var err error
	if cfg.URL, err = s.GetSetting(service + ".url"); err != nil {
		return cfg, err
	}
	key, err := s.GetSetting(service + ".api_key")
	if err != nil {
		return cfg, err
	}
	if key != "" && s.encryptor != nil {
		if key, err = s.encryptor.Decrypt(key); err != nil {
			return cfg, fmt.Errorf("decrypting %s api key: %w", service, err)
		}
	}
	cfg.APIKey = key

	enabled, err := s.GetSetting(service + ".enabled")
	if err != nil {
		return cfg, err
	}
	cfg.Enabled = enabled == "true"
	return cfg, nil
}

// SetIntegrationConfig stores a service's connection settings.
func (s *Store) SetIntegrationConfig(service string, cfg IntegrationConfig) error {
	key := cfg.APIKey
	if key != "" && s.encryptor != nil {
		var err error
		if key, err = s.encryptor.Encrypt(key); err != nil {
			return fmt.Errorf("encrypting %s api key: %w", service, err)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	enabled := "false"
	if cfg.Enabled {
		enabled = "true"
	}
	for _, kv := range []struct{ k, v string }{
		{service + ".url", cfg.URL},
		{service + ".api_key", key},
		{service + ".enabled", enabled},
	} {
		if _, err := tx.Exec(settingUpsert, kv.k, kv.v); err != nil {
			return fmt.Errorf("setting %s: %w", kv.k, err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetPlexConfig() (IntegrationConfig, error)   { return s.GetIntegrationConfig("plex") }
func (s *Store) GetRadarrConfig() (IntegrationConfig, error) { return s.GetIntegrationConfig("radarr") }
func (s *Store) GetSonarrConfig() (IntegrationConfig, error) { return s.GetIntegrationConfig("sonarr") }
