package sonarr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"plexmaint/internal/arrutil"
	"plexmaint/internal/httputil"
)

// ValidateURL checks that the given URL is valid for use as a Sonarr endpoint.
var ValidateURL = httputil.ValidateIntegrationURL

type Client struct {
	arrutil.Client
}

func NewClient(baseURL, apiKey string) (*Client, error) {
	arr, err := arrutil.New("Sonarr", baseURL, apiKey)
	if err != nil {
		return nil, err
	}
	return &Client{Client: *arr}, nil
}

// Series is the subset of Sonarr's series resource the maintenance engine
// needs for enrichment and deletion.
type Series struct {
	ID         int64            `json:"id"`
	TvdbID     int64            `json:"tvdbId"`
	Title      string           `json:"title"`
	Monitored  bool             `json:"monitored"`
	Status     string           `json:"status"`
	Path       string           `json:"path"`
	Statistics SeriesStatistics `json:"statistics"`
}

type SeriesStatistics struct {
	EpisodeFileCount  int     `json:"episodeFileCount"`
	EpisodeCount      int     `json:"episodeCount"`
	PercentOfEpisodes float64 `json:"percentOfEpisodes"`
	SizeOnDisk        int64   `json:"sizeOnDisk"`
}

// ListSeries returns every series Sonarr manages.
func (c *Client) ListSeries(ctx context.Context) ([]Series, error) {
	raw, err := c.DoGet(ctx, "/series", nil)
	if err != nil {
		return nil, err
	}

	var series []Series
	if err := json.Unmarshal(raw, &series); err != nil {
		return nil, fmt.Errorf("parsing series list: %w", err)
	}
	return series, nil
}

// SeriesByTVDB indexes the Sonarr library by TVDB id.
func (c *Client) SeriesByTVDB(ctx context.Context) (map[string]Series, error) {
	series, err := c.ListSeries(ctx)
	if err != nil {
		return nil, err
	}
	idx := make(map[string]Series, len(series))
	for _, s := range series {
		if s.TvdbID != 0 {
			idx[strconv.FormatInt(s.TvdbID, 10)] = s
		}
	}
	return idx, nil
}

// DeleteSeries removes a series from Sonarr, optionally deleting files.
func (c *Client) DeleteSeries(ctx context.Context, seriesID int64, deleteFiles bool) error {
	q := url.Values{}
	if deleteFiles {
		q.Set("deleteFiles", "true")
	}
	return c.DoDelete(ctx, fmt.Sprintf("/series/%d", seriesID), q)
}
