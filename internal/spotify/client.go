// Package spotify is a small client for the parts of the Spotify Web API that
// describe podcast shows and their episodes.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/jdholdren/spotifeed/internal/showrss"
)

const (
	DefaultBaseURL = "https://api.spotify.com"
	TokenURL       = "https://accounts.spotify.com/api/token"
)

// AuthConfig describes the client credentials flow used to authenticate
// against the Web API.
func AuthConfig(clientID, clientSecret string) *clientcredentials.Config {
	return &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     TokenURL,
	}
}

// Client implements [showrss.Catalog].
type Client struct {
	http    *http.Client
	baseURL *url.URL

	retries     uint64
	backoffBase time.Duration
}

type Option func(*Client) error

// WithHTTPClient sets the client used for requests. It is expected to add
// authorization, as the one returned by [clientcredentials.Config.Client] does.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) error {
		c.http = h
		return nil
	}
}

// WithBaseURL points the client at another API host. The URL must be absolute
// http or https.
func WithBaseURL(raw string) Option {
	return func(c *Client) error {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid base url %q: %w", raw, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid base url %q: must be an absolute http(s) url", raw)
		}

		c.baseURL = u
		return nil
	}
}

// WithRetries sets how many times a failed request is retried and the
// starting delay between attempts.
func WithRetries(n uint64, base time.Duration) Option {
	return func(c *Client) error {
		c.retries, c.backoffBase = n, base
		return nil
	}
}

func New(opts ...Option) (*Client, error) {
	u, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		http:        &http.Client{Timeout: 10 * time.Second},
		baseURL:     u,
		retries:     3,
		backoffBase: 500 * time.Millisecond,
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

type (
	showResp struct {
		Name          string       `json:"name"`
		Description   string       `json:"description"`
		Publisher     string       `json:"publisher"`
		ExternalURLs  externalURLs `json:"external_urls"`
		Images        []imageResp  `json:"images"`
		TotalEpisodes int          `json:"total_episodes"`
	}

	externalURLs struct {
		Spotify string `json:"spotify"`
	}

	imageResp struct {
		URL    string `json:"url"`
		Height int    `json:"height"`
		Width  int    `json:"width"`
	}

	episodesResp struct {
		// Entries are null when an episode can't be served in the market.
		Items  []*episodeResp `json:"items"`
		Total  int            `json:"total"`
		Limit  int            `json:"limit"`
		Offset int            `json:"offset"`
	}

	episodeResp struct {
		URI                  string       `json:"uri"`
		Name                 string       `json:"name"`
		Description          string       `json:"description"`
		DurationMS           int64        `json:"duration_ms"`
		ReleaseDate          string       `json:"release_date"`
		ReleaseDatePrecision string       `json:"release_date_precision"`
		AudioPreviewURL      *string      `json:"audio_preview_url"`
		ExternalURLs         externalURLs `json:"external_urls"`
	}
)

// Show fetches the show's metadata in the identity's market.
func (c *Client) Show(ctx context.Context, id showrss.ShowIdentity) (showrss.Show, error) {
	var resp showResp
	if err := c.getJSON(ctx, path.Join("/v1/shows", id.ShowURI), url.Values{"market": {id.Locale}}, &resp); err != nil {
		return showrss.Show{}, fmt.Errorf("fetching show %s: %w", id, err)
	}

	show := showrss.Show{
		Name:          resp.Name,
		Description:   resp.Description,
		Publisher:     resp.Publisher,
		ExternalURL:   resp.ExternalURLs.Spotify,
		TotalEpisodes: resp.TotalEpisodes,
	}
	for _, img := range resp.Images {
		show.Images = append(show.Images, showrss.Image{URL: img.URL, Height: img.Height, Width: img.Width})
	}

	return show, nil
}

// EpisodesPage fetches one page of the show's episodes, newest first.
func (c *Client) EpisodesPage(ctx context.Context, id showrss.ShowIdentity, offset, limit int) (showrss.EpisodePage, error) {
	q := url.Values{
		"market": {id.Locale},
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(limit)},
	}
	var resp episodesResp
	if err := c.getJSON(ctx, path.Join("/v1/shows", id.ShowURI, "episodes"), q, &resp); err != nil {
		return showrss.EpisodePage{}, fmt.Errorf("fetching episodes of %s: %w", id, err)
	}

	page := showrss.EpisodePage{
		Total: resp.Total,
		Items: make([]showrss.Episode, 0, len(resp.Items)),
	}
	for _, ep := range resp.Items {
		if ep == nil {
			page.Unavailable++
			continue
		}

		var preview string
		if ep.AudioPreviewURL != nil {
			preview = *ep.AudioPreviewURL
		}
		page.Items = append(page.Items, showrss.Episode{
			URI:                  ep.URI,
			Name:                 ep.Name,
			Description:          ep.Description,
			DurationMS:           ep.DurationMS,
			ReleaseDate:          ep.ReleaseDate,
			ReleaseDatePrecision: ep.ReleaseDatePrecision,
			AudioPreviewURL:      preview,
			ExternalURL:          ep.ExternalURLs.Spotify,
		})
	}

	return page, nil
}

func (c *Client) getJSON(ctx context.Context, p string, q url.Values, out any) error {
	u := *c.baseURL
	u.Path = path.Join(u.Path, p)
	u.RawQuery = q.Encode()

	b := retry.WithMaxRetries(c.retries, retry.NewExponential(c.backoffBase))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("%w: %s", showrss.ErrUpstreamUnavailable, err))
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("%w: decoding %s: %s", showrss.ErrUpstreamUnavailable, p, err)
			}
			return nil
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("GET %s: %w", p, showrss.ErrNotFound)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return retry.RetryableError(fmt.Errorf("%w: GET %s: %s: %s", showrss.ErrUpstreamUnavailable, p, resp.Status, body))
		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("%w: GET %s: %s: %s", showrss.ErrUpstreamUnavailable, p, resp.Status, body)
		}
	})
	if err != nil && !errors.Is(err, showrss.ErrNotFound) && !errors.Is(err, showrss.ErrUpstreamUnavailable) {
		// Context ended between attempts.
		return fmt.Errorf("%w: %w", showrss.ErrUpstreamUnavailable, err)
	}

	return err
}
