// Package feed builds podcast feed documents out of catalog pages and renders
// them as RSS.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/jdholdren/spotifeed/internal/showrss"
)

const (
	// PageSize is how many episodes are requested per catalog page.
	PageSize = 50

	DefaultAudioBaseURL = "https://anon-podcast.scdn.co/"

	enclosureType = "audio/mpeg"
)

// Assembler turns a show and its episode pages into a [showrss.Document].
type Assembler struct {
	audioBaseURL string
	pageSize     int
}

// NewAssembler creates an assembler that points enclosures at audioBaseURL.
// An empty base uses [DefaultAudioBaseURL].
func NewAssembler(audioBaseURL string) *Assembler {
	if audioBaseURL == "" {
		audioBaseURL = DefaultAudioBaseURL
	}
	if !strings.HasSuffix(audioBaseURL, "/") {
		audioBaseURL += "/"
	}

	return &Assembler{
		audioBaseURL: audioBaseURL,
		pageSize:     PageSize,
	}
}

// Assemble fetches every episode page for the show and maps them into a feed.
//
// Pages are requested one after another until as many raw items as the show
// advertises have been received. Items keep the catalog's order.
func (a *Assembler) Assemble(ctx context.Context, catalog showrss.Catalog, id showrss.ShowIdentity, show showrss.Show) (showrss.Document, error) {
	episodes, err := a.fetchAll(ctx, catalog, id, show.TotalEpisodes)
	if err != nil {
		return showrss.Document{}, err
	}

	doc := showrss.Document{
		Channel: channel(id, show),
		Items:   make([]showrss.Item, 0, len(episodes)),
	}
	for _, ep := range episodes {
		item, err := a.item(ep)
		if err != nil {
			return showrss.Document{}, fmt.Errorf("mapping episode %s: %w", ep.URI, err)
		}
		if item.Enclosure == nil {
			slog.WarnContext(ctx, "episode has no audio preview", "episode", ep.URI)
		}

		doc.Items = append(doc.Items, item)
	}

	return doc, nil
}

func (a *Assembler) fetchAll(ctx context.Context, catalog showrss.Catalog, id showrss.ShowIdentity, total int) ([]showrss.Episode, error) {
	var (
		received int
		seen     = make(map[string]struct{}, max(total, 0))
		out      = make([]showrss.Episode, 0, max(total, 0))
	)
	for received < total {
		page, err := catalog.EpisodesPage(ctx, id, received, a.pageSize)
		if err != nil {
			return nil, fmt.Errorf("fetching episodes at offset %d: %w", received, err)
		}
		n := len(page.Items) + page.Unavailable
		if n == 0 {
			return nil, fmt.Errorf("%w: got %d of %d episodes", showrss.ErrIncompletePagination, received, total)
		}
		received += n

		// The listing can shift between requests, which repeats an episode
		// across page boundaries.
		for _, ep := range page.Items {
			if _, dup := seen[ep.URI]; dup {
				continue
			}
			seen[ep.URI] = struct{}{}
			out = append(out, ep)
		}
	}

	return out, nil
}

func channel(id showrss.ShowIdentity, show showrss.Show) showrss.Channel {
	c := showrss.Channel{
		ID:          id.ShowURI,
		Title:       show.Name,
		Description: show.Description,
		Author:      show.Publisher,
		Link:        show.ExternalURL,
		Language:    id.Locale,
	}
	if len(show.Images) > 0 {
		c.ImageURL = show.Images[0].URL
	}

	return c
}

func (a *Assembler) item(ep showrss.Episode) (showrss.Item, error) {
	published, err := releaseDate(ep.ReleaseDate, ep.ReleaseDatePrecision)
	if err != nil {
		return showrss.Item{}, err
	}

	item := showrss.Item{
		GUID:        ep.URI,
		Title:       ep.Name,
		Description: ep.Description,
		Link:        ep.ExternalURL,
		Published:   published,
		Duration:    time.Duration(ep.DurationMS/1000) * time.Second,
	}
	if u := a.enclosureURL(ep.AudioPreviewURL); u != "" {
		item.Enclosure = &showrss.Enclosure{URL: u, Type: enclosureType}
	}

	return item, nil
}

// Uses the final path segment of the preview as the key on the audio host.
func (a *Assembler) enclosureURL(preview string) string {
	if preview == "" {
		return ""
	}

	u, err := url.Parse(preview)
	if err != nil {
		return ""
	}
	key := path.Base(u.Path)
	if key == "." || key == "/" {
		return ""
	}

	return a.audioBaseURL + key
}

var precisionLayouts = map[string]string{
	"day":   "2006-01-02",
	"month": "2006-01",
	"year":  "2006",
}

// Parses a catalog release date as midnight UTC.
func releaseDate(s, precision string) (time.Time, error) {
	if layout, ok := precisionLayouts[precision]; ok {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: release date %q: %s", showrss.ErrUpstreamUnavailable, s, err)
		}
		return t, nil
	}

	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: unparseable release date %q", showrss.ErrUpstreamUnavailable, s)
}
