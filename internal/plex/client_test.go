package plex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const sectionsXML = `<?xml version="1.0" encoding="UTF-8"?>
<MediaContainer size="3">
	<Directory key="1" title="Movies" type="movie"/>
	<Directory key="2" title="TV Shows" type="show"/>
	<Directory key="3" title="Music" type="artist"/>
</MediaContainer>`

const moviesXML = `<?xml version="1.0" encoding="UTF-8"?>
<MediaContainer totalSize="2">
	<Video ratingKey="101" title="Fight Club" year="1999" addedAt="1700000000" lastViewedAt="1710000000" viewCount="2" thumb="/library/thumb/101" rating="7.9" contentRating="R">
		<Guid id="tmdb://550"/>
		<Guid id="imdb://tt0137523"/>
		<Genre tag="Drama"/>
		<Label tag="keep"/>
		<Media duration="8340000" bitrate="8000" videoResolution="1080" videoCodec="h264" audioCodec="aac" container="mkv">
			<Part file="/movies/Fight Club (1999).mkv" size="8589934592"/>
		</Media>
	</Video>
	<Video ratingKey="102" title="Sparse"/>
</MediaContainer>`

const showsXML = `<?xml version="1.0" encoding="UTF-8"?>
<MediaContainer totalSize="1">
	<Directory ratingKey="201" title="Breaking Bad" year="2008">
		<Guid id="tvdb://81189"/>
	</Directory>
</MediaContainer>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, "test-token")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestSections(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/library/sections" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Plex-Token"); got != "test-token" {
			t.Errorf("token header = %q", got)
		}
		w.Write([]byte(sectionsXML))
	})

	sections, err := c.Sections(context.Background())
	if err != nil {
		t.Fatalf("Sections: %v", err)
	}
	if len(sections) != 3 {
		t.Fatalf("sections = %d, want 3", len(sections))
	}
	if sections[0].Key != "1" || sections[0].Type != "movie" || sections[0].Title != "Movies" {
		t.Errorf("section = %+v", sections[0])
	}
}

func TestSectionItemsMovies(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/library/sections/1/all" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("type") != TypeMovie || q.Get("includeGuids") != "1" {
			t.Errorf("query = %v", q)
		}
		if q.Get("X-Plex-Container-Size") != "500" {
			t.Errorf("page size = %q", q.Get("X-Plex-Container-Size"))
		}
		w.Write([]byte(moviesXML))
	})

	items, err := c.SectionItems(context.Background(), "1", TypeMovie, 500)
	if err != nil {
		t.Fatalf("SectionItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}

	it := items[0]
	if it.RatingKey != "101" || it.Title != "Fight Club" || it.ViewCount != "2" {
		t.Errorf("item = %+v", it)
	}
	if len(it.Guids) != 2 || len(it.Genres) != 1 || len(it.Labels) != 1 {
		t.Errorf("tags not parsed: %+v", it)
	}
	if len(it.Media) != 1 || it.Media[0].VideoResolution != "1080" {
		t.Fatalf("media not parsed: %+v", it.Media)
	}
	if len(it.Media[0].Parts) != 1 || it.Media[0].Parts[0].Size != "8589934592" {
		t.Errorf("part not parsed: %+v", it.Media[0].Parts)
	}

	// Attributes Plex omits stay empty.
	if items[1].Year != "" || items[1].ViewCount != "" || len(items[1].Media) != 0 {
		t.Errorf("sparse item should keep empty fields: %+v", items[1])
	}
}

func TestSectionItemsShows(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("type"); got != TypeShow {
			t.Errorf("type filter = %q", got)
		}
		w.Write([]byte(showsXML))
	})

	items, err := c.SectionItems(context.Background(), "2", TypeShow, 100)
	if err != nil {
		t.Fatalf("SectionItems: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Breaking Bad" {
		t.Errorf("items = %+v", items)
	}
}

func TestErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})

	_, err := c.Sections(context.Background())
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("err = %v, want status 401", err)
	}
}

func TestGuidID(t *testing.T) {
	guids := []Guid{
		{ID: "imdb://tt0137523"},
		{ID: "tmdb://550"},
		{ID: "tvdb://290"},
	}
	if got := GuidID(guids, "tmdb"); got != "550" {
		t.Errorf("GuidID(tmdb) = %q", got)
	}
	if got := GuidID(guids, "imdb"); got != "tt0137523" {
		t.Errorf("GuidID(imdb) = %q", got)
	}
	if got := GuidID(guids, "anidb"); got != "" {
		t.Errorf("GuidID(anidb) = %q, want empty", got)
	}
	if got := GuidID(nil, "tmdb"); got != "" {
		t.Errorf("GuidID(nil) = %q, want empty", got)
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	if _, err := NewClient("not-a-url", "token"); err == nil {
		t.Error("expected error for invalid url")
	}
}

func TestTestConnection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sectionsXML))
	})
	if err := c.TestConnection(context.Background()); err != nil {
		t.Errorf("TestConnection: %v", err)
	}
}
