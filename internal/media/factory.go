package media

import (
	"context"
	"fmt"

	"plexmaint/internal/models"
	"plexmaint/internal/plex"
	"plexmaint/internal/radarr"
	"plexmaint/internal/sonarr"
	"plexmaint/internal/store"
)

// Factory builds sources from the integration settings in the store.
// Clients are constructed per call so settings changes take effect on the
// next scan without a restart.
type Factory struct {
	store *store.Store
}

func NewFactory(s *store.Store) *Factory {
	return &Factory{store: s}
}

func (f *Factory) Source(ctx context.Context, mt models.MediaType) (Source, error) {
	plexCfg, err := f.store.GetPlexConfig()
	if err != nil {
		return nil, fmt.Errorf("loading Plex config: %w", err)
	}
	if !plexCfg.Active() {
		return nil, fmt.Errorf("no active Plex instance configured")
	}
	plexClient, err := plex.NewClient(plexCfg.URL, plexCfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("creating Plex client: %w", err)
	}

	switch mt {
	case models.MediaTypeMovie:
		cfg, err := f.store.GetRadarrConfig()
		if err != nil {
			return nil, fmt.Errorf("loading Radarr config: %w", err)
		}
		if !cfg.Active() {
			return nil, fmt.Errorf("no active Radarr instance configured")
		}
		client, err := radarr.NewClient(cfg.URL, cfg.APIKey)
		if err != nil {
			return nil, fmt.Errorf("creating Radarr client: %w", err)
		}
		return NewMovieSource(plexClient, client), nil

	case models.MediaTypeTV:
		cfg, err := f.store.GetSonarrConfig()
		if err != nil {
			return nil, fmt.Errorf("loading Sonarr config: %w", err)
		}
		if !cfg.Active() {
			return nil, fmt.Errorf("no active Sonarr instance configured")
		}
		client, err := sonarr.NewClient(cfg.URL, cfg.APIKey)
		if err != nil {
			return nil, fmt.Errorf("creating Sonarr client: %w", err)
		}
		return NewSeriesSource(plexClient, client), nil
	}

	return nil, fmt.Errorf("unsupported media type %q", mt)
}
