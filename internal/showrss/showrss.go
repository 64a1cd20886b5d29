// Package showrss holds the domain types shared by the cache, the assembler and
// the resolver: show identities, upstream catalog shapes and feed documents.
package showrss

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	ErrInvalidIdentity      = errors.New("invalid show identity")
	ErrNotFound             = errors.New("resource not found")
	ErrConflict             = errors.New("resource already exists")
	ErrUpstreamUnavailable  = errors.New("upstream catalog unavailable")
	ErrIncompletePagination = errors.New("upstream returned fewer episodes than advertised")
)

// DefaultLocale is used when a request does not name a market.
const DefaultLocale = "US"

var (
	showURIPattern = regexp.MustCompile(`^[A-Za-z0-9]{22}$`)
	localePattern  = regexp.MustCompile(`^[A-Za-z]{2}$`)
)

// ShowIdentity is the cache key: one show in one market.
type ShowIdentity struct {
	ShowURI string
	Locale  string
}

// NewIdentity validates the raw request parts and normalizes the locale to
// upper case.
func NewIdentity(showURI, locale string) (ShowIdentity, error) {
	if !showURIPattern.MatchString(showURI) {
		return ShowIdentity{}, fmt.Errorf("%w: show uri %q must be 22 alphanumeric characters", ErrInvalidIdentity, showURI)
	}
	if !localePattern.MatchString(locale) {
		return ShowIdentity{}, fmt.Errorf("%w: locale %q must be a two letter country code", ErrInvalidIdentity, locale)
	}

	return ShowIdentity{ShowURI: showURI, Locale: strings.ToUpper(locale)}, nil
}

func (id ShowIdentity) String() string {
	return id.ShowURI + "/" + id.Locale
}

type (
	// Catalog is the upstream podcast catalog.
	Catalog interface {
		Show(ctx context.Context, id ShowIdentity) (Show, error)
		EpisodesPage(ctx context.Context, id ShowIdentity, offset, limit int) (EpisodePage, error)
	}

	// Show is the show metadata as reported by the catalog.
	Show struct {
		Name          string
		Description   string
		Publisher     string
		ExternalURL   string
		Images        []Image
		TotalEpisodes int
	}

	Image struct {
		URL    string
		Height int
		Width  int
	}

	// Episode is a single raw episode from a catalog page.
	Episode struct {
		URI                  string
		Name                 string
		Description          string
		DurationMS           int64
		ReleaseDate          string
		ReleaseDatePrecision string
		AudioPreviewURL      string
		ExternalURL          string
	}

	EpisodePage struct {
		Items []Episode
		Total int

		// Entries the catalog listed but could not return, such as episodes
		// unavailable in the market. They still occupy an offset.
		Unavailable int
	}
)

type (
	// Document is a fully assembled podcast feed.
	Document struct {
		Channel Channel
		Items   []Item
	}

	Channel struct {
		ID          string
		Title       string
		Description string
		Author      string
		Link        string
		ImageURL    string
		Language    string
	}

	Item struct {
		GUID        string
		Title       string
		Description string
		Link        string
		Published   time.Time
		Duration    time.Duration
		Enclosure   *Enclosure
	}

	Enclosure struct {
		URL    string
		Type   string
		Length int64
	}
)

// Clone returns a copy of the document that shares no memory with d.
func (d Document) Clone() Document {
	c := Document{Channel: d.Channel}
	if d.Items == nil {
		return c
	}

	c.Items = make([]Item, len(d.Items))
	for i, it := range d.Items {
		if it.Enclosure != nil {
			enc := *it.Enclosure
			it.Enclosure = &enc
		}
		c.Items[i] = it
	}

	return c
}

// Clone returns a copy of the show that shares no memory with s.
func (s Show) Clone() Show {
	if s.Images != nil {
		s.Images = append([]Image(nil), s.Images...)
	}
	return s
}

// Entry is a cached show and its feed.
//
// The document always reflects the show as of the last successful refresh.
type Entry struct {
	Identity  ShowIdentity
	Show      Show
	Document  Document
	ExpiresAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	e.Show = e.Show.Clone()
	e.Document = e.Document.Clone()
	return e
}

// Stale reports whether the entry needs to be rechecked at the given time.
func (e Entry) Stale(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
