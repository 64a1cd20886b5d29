package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	v1 "github.com/jdholdren/spotifeed/api/shows/v1"
	sferrs "github.com/jdholdren/spotifeed/internal/errors"
	"github.com/jdholdren/spotifeed/internal/feed"
	"github.com/jdholdren/spotifeed/internal/serverutil"
	"github.com/jdholdren/spotifeed/internal/showrss"
)

func (s *Server) getFeed(w http.ResponseWriter, r *http.Request) error {
	var (
		ctx    = r.Context()
		vars   = mux.Vars(r)
		locale = vars["locale"]
	)
	if locale == "" {
		locale = showrss.DefaultLocale
	}

	e, err := s.resolver.Resolve(ctx, vars["show_uri"], locale)
	if err != nil {
		return resolveErr(r, err)
	}

	body, err := s.render(e)
	if err != nil {
		return err
	}

	return serverutil.WriteXML(w, http.StatusOK, body)
}

// Encodes an entry once per write to the cache.
func (s *Server) render(e showrss.Entry) ([]byte, error) {
	key := e.Identity.String() + "@" + strconv.FormatInt(e.UpdatedAt.UnixNano(), 10)
	if body, ok := s.rendered.Get(key); ok {
		return body, nil
	}

	body, err := feed.Render(e.Document)
	if err != nil {
		return nil, err
	}
	s.rendered.Add(key, body)

	return body, nil
}

func resolveErr(r *http.Request, err error) error {
	switch {
	case errors.Is(err, showrss.ErrInvalidIdentity):
		return sferrs.E(err, http.StatusNotFound)
	case errors.Is(err, showrss.ErrNotFound):
		return sferrs.E("show not found", http.StatusNotFound)
	case errors.Is(err, showrss.ErrUpstreamUnavailable), errors.Is(err, showrss.ErrIncompletePagination):
		slog.WarnContext(r.Context(), "upstream failure", "error", err)
		return sferrs.E("the podcast catalog could not be reached, try again shortly", http.StatusBadGateway)
	default:
		return err
	}
}

func (s *Server) getShows(w http.ResponseWriter, r *http.Request) error {
	var (
		entries  = s.shows.List()
		interval = s.resolver.Interval()
		resp     = v1.ListShowsResponse{Shows: make([]v1.Show, 0, len(entries))}
	)
	for _, e := range entries {
		resp.Shows = append(resp.Shows, v1.Show{
			Name:        e.Show.Name,
			ShowURI:     e.Identity.ShowURI,
			Locale:      e.Identity.Locale,
			Episodes:    len(e.Document.Items),
			LastChecked: e.ExpiresAt.Add(-interval),
			ExpiresAt:   e.ExpiresAt,
		})
	}

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}
