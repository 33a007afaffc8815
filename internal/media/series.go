package media

import (
	"context"

	"plexmaint/internal/models"
	"plexmaint/internal/plex"
	"plexmaint/internal/sonarr"
)

// SeriesSource serves TV_SERIES scans: items come from Plex show sections,
// enriched with Sonarr state by TVDB id; deletions go to Sonarr.
type SeriesSource struct {
	plex   *plex.Client
	sonarr *sonarr.Client
}

func NewSeriesSource(p *plex.Client, c *sonarr.Client) *SeriesSource {
	return &SeriesSource{plex: p, sonarr: c}
}

func (s *SeriesSource) Name() string { return "sonarr" }

func (s *SeriesSource) ListLibraries(ctx context.Context) ([]LibraryRef, error) {
	sections, err := s.plex.Sections(ctx)
	if err != nil {
		return nil, err
	}
	var libs []LibraryRef
	for _, sec := range sections {
		if sec.Type == "show" {
			libs = append(libs, LibraryRef{ID: sec.Key, Name: sec.Title})
		}
	}
	return libs, nil
}

func (s *SeriesSource) FetchItems(ctx context.Context, library LibraryRef) ([]models.MediaItem, error) {
	plexItems, err := s.plex.SectionItems(ctx, library.ID, plex.TypeShow, PageLimit)
	if err != nil {
		return nil, err
	}

	byTVDB, err := s.sonarr.SeriesByTVDB(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]models.MediaItem, 0, len(plexItems))
	for _, it := range plexItems {
		item := baseItem(it, models.MediaTypeTV, library.ID)
		item.TVDBID = plex.GuidID(it.Guids, "tvdb")

		if sr, ok := byTVDB[item.TVDBID]; ok && item.TVDBID != "" {
			item.Sonarr = &models.SonarrInfo{
				ID:                sr.ID,
				Monitored:         sr.Monitored,
				Status:            sr.Status,
				EpisodeFileCount:  sr.Statistics.EpisodeFileCount,
				PercentOfEpisodes: sr.Statistics.PercentOfEpisodes,
			}
			if item.FileSize == nil && sr.Statistics.SizeOnDisk > 0 {
				item.FileSize = int64Ptr(sr.Statistics.SizeOnDisk)
			}
			if item.FilePath == "" {
				item.FilePath = sr.Path
			}
		}

		items = append(items, item)
	}
	return items, nil
}

func (s *SeriesSource) DeleteMedia(ctx context.Context, externalID int64, deleteFiles bool) error {
	return s.sonarr.DeleteSeries(ctx, externalID, deleteFiles)
}
