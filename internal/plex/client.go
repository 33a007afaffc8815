package plex

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"plexmaint/internal/httputil"
)

const maxResponseBody = 50 << 20 // 50 MB

// Client talks to a Plex Media Server over its XML API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if err := httputil.ValidateIntegrationURL(baseURL); err != nil {
		return nil, err
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    httputil.NewClientWithTimeout(httputil.IntegrationTimeout),
	}, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("Accept", "application/xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer httputil.DrainBody(resp)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Plex returned status %d: %s", resp.StatusCode, httputil.Truncate(body, 200))
	}

	if err := xml.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// Section is one Plex library section.
type Section struct {
	Key   string `xml:"key,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"` // "movie" or "show"
}

type sectionsContainer struct {
	XMLName     xml.Name  `xml:"MediaContainer"`
	Directories []Section `xml:"Directory"`
}

// Sections lists the server's library sections.
func (c *Client) Sections(ctx context.Context) ([]Section, error) {
	var container sectionsContainer
	if err := c.get(ctx, "/library/sections", nil, &container); err != nil {
		return nil, err
	}
	return container.Directories, nil
}

// Plex numeric type filters.
const (
	TypeMovie = "1"
	TypeShow  = "2"
)

// Item is one library entry with the metadata the evaluator consumes.
type Item struct {
	RatingKey      string     `xml:"ratingKey,attr"`
	Title          string     `xml:"title,attr"`
	Year           string     `xml:"year,attr"`
	AddedAt        string     `xml:"addedAt,attr"`
	LastViewedAt   string     `xml:"lastViewedAt,attr"`
	ViewCount      string     `xml:"viewCount,attr"`
	Thumb          string     `xml:"thumb,attr"`
	Rating         string     `xml:"rating,attr"`
	AudienceRating string     `xml:"audienceRating,attr"`
	ContentRating  string     `xml:"contentRating,attr"`
	Guids          []Guid     `xml:"Guid"`
	Genres         []TagAttr  `xml:"Genre"`
	Labels         []TagAttr  `xml:"Label"`
	Media          []Media    `xml:"Media"`
}

type Guid struct {
	ID string `xml:"id,attr"`
}

type TagAttr struct {
	Tag string `xml:"tag,attr"`
}

type Media struct {
	Duration        string `xml:"duration,attr"` // milliseconds
	Bitrate         string `xml:"bitrate,attr"`  // kbps
	VideoResolution string `xml:"videoResolution,attr"`
	VideoCodec      string `xml:"videoCodec,attr"`
	AudioCodec      string `xml:"audioCodec,attr"`
	Container       string `xml:"container,attr"`
	Parts           []Part `xml:"Part"`
}

type Part struct {
	File string `xml:"file,attr"`
	Size string `xml:"size,attr"` // bytes
}

type itemsContainer struct {
	XMLName     xml.Name `xml:"MediaContainer"`
	TotalSize   int      `xml:"totalSize,attr"`
	Videos      []Item   `xml:"Video"`
	Directories []Item   `xml:"Directory"`
}

// SectionItems fetches one page of up to limit items from a library
// section. Movies come back as Video elements, shows as Directory.
func (c *Client) SectionItems(ctx context.Context, sectionKey, typeFilter string, limit int) ([]Item, error) {
	q := url.Values{}
	q.Set("type", typeFilter)
	q.Set("includeGuids", "1")
	q.Set("X-Plex-Container-Start", "0")
	q.Set("X-Plex-Container-Size", strconv.Itoa(limit))

	var container itemsContainer
	path := fmt.Sprintf("/library/sections/%s/all", url.PathEscape(sectionKey))
	if err := c.get(ctx, path, q, &container); err != nil {
		return nil, err
	}

	if typeFilter == TypeShow {
		return container.Directories, nil
	}
	return container.Videos, nil
}

// GuidID extracts the id of a guid scheme, e.g. GuidID(guids, "tmdb")
// returns "603" for "tmdb://603".
func GuidID(guids []Guid, scheme string) string {
	prefix := scheme + "://"
	for _, g := range guids {
		if strings.HasPrefix(g.ID, prefix) {
			return strings.TrimPrefix(g.ID, prefix)
		}
	}
	return ""
}

func (c *Client) TestConnection(ctx context.Context) error {
	var container sectionsContainer
	return c.get(ctx, "/library/sections", nil, &container)
}
