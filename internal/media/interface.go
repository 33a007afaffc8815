package media

import (
	"context"

	"plexmaint/internal/models"
)

// PageLimit caps a single library fetch. Evaluation is batch per library
// section; items beyond the page are not streamed.
const PageLimit = 10000

// LibraryRef identifies one library section of the media server.
type LibraryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Source abstracts one external catalog back-end. One implementation
// exists per media type; the externalID passed to DeleteMedia is the
// catalog service's own id (Radarr movie id, Sonarr series id).
type Source interface {
	Name() string
	ListLibraries(ctx context.Context) ([]LibraryRef, error)
	FetchItems(ctx context.Context, library LibraryRef) ([]models.MediaItem, error)
	DeleteMedia(ctx context.Context, externalID int64, deleteFiles bool) error
}

// SourceResolver supplies the source for a media type, or an error when
// the backing services are not configured.
type SourceResolver interface {
	Source(ctx context.Context, mt models.MediaType) (Source, error)
}
