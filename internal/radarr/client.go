package radarr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"plexmaint/internal/arrutil"
	"plexmaint/internal/httputil"
)

// ValidateURL checks that the given URL is valid for use as a Radarr endpoint.
var ValidateURL = httputil.ValidateIntegrationURL

type Client struct {
	arrutil.Client
}

func NewClient(baseURL, apiKey string) (*Client, error) {
	arr, err := arrutil.New("Radarr", baseURL, apiKey)
	if err != nil {
		return nil, err
	}
	return &Client{Client: *arr}, nil
}

// Movie is the subset of Radarr's movie resource the maintenance engine
// needs for enrichment and deletion.
type Movie struct {
	ID                  int64  `json:"id"`
	TmdbID              int64  `json:"tmdbId"`
	Title               string `json:"title"`
	Monitored           bool   `json:"monitored"`
	HasFile             bool   `json:"hasFile"`
	QualityProfileID    int64  `json:"qualityProfileId"`
	MinimumAvailability string `json:"minimumAvailability"`
	SizeOnDisk          int64  `json:"sizeOnDisk"`
	Path                string `json:"path"`
}

// ListMovies returns every movie Radarr manages.
func (c *Client) ListMovies(ctx context.Context) ([]Movie, error) {
	raw, err := c.DoGet(ctx, "/movie", nil)
	if err != nil {
		return nil, err
	}

	var movies []Movie
	if err := json.Unmarshal(raw, &movies); err != nil {
		return nil, fmt.Errorf("parsing movie list: %w", err)
	}
	return movies, nil
}

// MoviesByTMDB indexes the Radarr library by TMDB id.
func (c *Client) MoviesByTMDB(ctx context.Context) (map[string]Movie, error) {
	movies, err := c.ListMovies(ctx)
	if err != nil {
		return nil, err
	}
	idx := make(map[string]Movie, len(movies))
	for _, m := range movies {
		if m.TmdbID != 0 {
			idx[strconv.FormatInt(m.TmdbID, 10)] = m
		}
	}
	return idx, nil
}

// DeleteMovie removes a movie from Radarr, optionally deleting files.
func (c *Client) DeleteMovie(ctx context.Context, movieID int64, deleteFiles bool) error {
	q := url.Values{}
	if deleteFiles {
		q.Set("deleteFiles", "true")
	}
	return c.DoDelete(ctx, fmt.Sprintf("/movie/%d", movieID), q)
}
