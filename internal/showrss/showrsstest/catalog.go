// Package showrsstest provides an in-memory catalog for tests.
package showrsstest

import (
	"context"
	"fmt"
	"sync"

	"github.com/jdholdren/spotifeed/internal/showrss"
)

// Catalog serves the same show and episode list for every identity and counts
// how often it is asked.
type Catalog struct {
	mu        sync.Mutex
	show      showrss.Show
	episodes  []showrss.Episode
	showErr   error
	pageErr   error
	showCalls int
	pageCalls int

	// When set, Show blocks until the channel is closed.
	Gate chan struct{}
}

// NewCatalog creates a catalog whose show advertises exactly the given episodes.
func NewCatalog(name string, episodes []showrss.Episode) *Catalog {
	return &Catalog{
		show: showrss.Show{
			Name:          name,
			Description:   "All about " + name,
			Publisher:     name + " Media",
			ExternalURL:   "https://open.spotify.com/show/" + name,
			Images:        []showrss.Image{{URL: "https://i.scdn.co/image/" + name, Height: 640, Width: 640}},
			TotalEpisodes: len(episodes),
		},
		episodes: episodes,
	}
}

// Episodes builds n episodes, newest first.
func Episodes(n int) []showrss.Episode {
	eps := make([]showrss.Episode, n)
	for i := range eps {
		eps[i] = showrss.Episode{
			URI:                  fmt.Sprintf("spotify:episode:ep%04d", i),
			Name:                 fmt.Sprintf("Episode %d", n-i),
			Description:          fmt.Sprintf("Episode number %d", n-i),
			DurationMS:           61500,
			ReleaseDate:          "2024-01-02",
			ReleaseDatePrecision: "day",
			AudioPreviewURL:      fmt.Sprintf("https://p.scdn.co/mp3-preview/key%04d?cid=abc", i),
			ExternalURL:          fmt.Sprintf("https://open.spotify.com/episode/ep%04d", i),
		}
	}
	return eps
}

// SetEpisodes swaps the episode list and the advertised total along with it.
func (c *Catalog) SetEpisodes(eps []showrss.Episode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.episodes = eps
	c.show.TotalEpisodes = len(eps)
}

// SetTotal overrides the advertised total without touching the episodes.
func (c *Catalog) SetTotal(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.show.TotalEpisodes = n
}

func (c *Catalog) SetDescription(d string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.show.Description = d
}

func (c *Catalog) SetShowErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.showErr = err
}

func (c *Catalog) SetPageErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pageErr = err
}

func (c *Catalog) ShowCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.showCalls
}

func (c *Catalog) PageCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.pageCalls
}

func (c *Catalog) Show(ctx context.Context, id showrss.ShowIdentity) (showrss.Show, error) {
	if c.Gate != nil {
		select {
		case <-c.Gate:
		case <-ctx.Done():
			return showrss.Show{}, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.showCalls++
	if c.showErr != nil {
		return showrss.Show{}, c.showErr
	}

	return c.show.Clone(), nil
}

func (c *Catalog) EpisodesPage(ctx context.Context, id showrss.ShowIdentity, offset, limit int) (showrss.EpisodePage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pageCalls++
	if c.pageErr != nil {
		return showrss.EpisodePage{}, c.pageErr
	}

	page := showrss.EpisodePage{Total: len(c.episodes)}
	if offset >= len(c.episodes) {
		return page, nil
	}
	end := min(offset+limit, len(c.episodes))
	page.Items = append([]showrss.Episode(nil), c.episodes[offset:end]...)

	return page, nil
}
