package media

import (
	"context"

	"plexmaint/internal/models"
	"plexmaint/internal/plex"
	"plexmaint/internal/radarr"
)

// MovieSource serves MOVIE scans: items come from Plex movie sections,
// enriched with Radarr state by TMDB id; deletions go to Radarr.
type MovieSource struct {
	plex   *plex.Client
	radarr *radarr.Client
}

func NewMovieSource(p *plex.Client, r *radarr.Client) *MovieSource {
	return &MovieSource{plex: p, radarr: r}
}

func (s *MovieSource) Name() string { return "radarr" }

func (s *MovieSource) ListLibraries(ctx context.Context) ([]LibraryRef, error) {
	sections, err := s.plex.Sections(ctx)
	if err != nil {
		return nil, err
	}
	var libs []LibraryRef
	for _, sec := range sections {
		if sec.Type == "movie" {
			libs = append(libs, LibraryRef{ID: sec.Key, Name: sec.Title})
		}
	}
	return libs, nil
}

func (s *MovieSource) FetchItems(ctx context.Context, library LibraryRef) ([]models.MediaItem, error) {
	plexItems, err := s.plex.SectionItems(ctx, library.ID, plex.TypeMovie, PageLimit)
	if err != nil {
		return nil, err
	}

	byTMDB, err := s.radarr.MoviesByTMDB(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]models.MediaItem, 0, len(plexItems))
	for _, it := range plexItems {
		item := baseItem(it, models.MediaTypeMovie, library.ID)
		item.TMDBID = plex.GuidID(it.Guids, "tmdb")

		if m, ok := byTMDB[item.TMDBID]; ok && item.TMDBID != "" {
			item.Radarr = &models.RadarrInfo{
				ID:                  m.ID,
				HasFile:             m.HasFile,
				Monitored:           m.Monitored,
				QualityProfileID:    m.QualityProfileID,
				MinimumAvailability: m.MinimumAvailability,
			}
			if item.FileSize == nil && m.SizeOnDisk > 0 {
				item.FileSize = int64Ptr(m.SizeOnDisk)
			}
			if item.FilePath == "" {
				item.FilePath = m.Path
			}
		}

		items = append(items, item)
	}
	return items, nil
}

func (s *MovieSource) DeleteMedia(ctx context.Context, externalID int64, deleteFiles bool) error {
	return s.radarr.DeleteMovie(ctx, externalID, deleteFiles)
}
