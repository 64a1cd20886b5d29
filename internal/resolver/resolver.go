// Package resolver answers feed requests from the cache, refreshing entries
// from the catalog when they are missing or have gone stale.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/fx"
	"golang.org/x/sync/singleflight"

	"github.com/jdholdren/spotifeed/internal/showrss"
	"github.com/jdholdren/spotifeed/logger"
)

const (
	DefaultUpdateInterval = 360 * time.Second

	// Bounds one upstream round, which can outlive the request that started it.
	fetchTimeout = 45 * time.Second
)

var Module = fx.Module("resolver",
	fx.Provide(
		New,
	),
)

type (
	// Store is where resolved entries live between requests.
	Store interface {
		Get(id showrss.ShowIdentity) (showrss.Entry, bool)
		Insert(id showrss.ShowIdentity, show showrss.Show, doc showrss.Document, expiresAt time.Time) (showrss.Entry, error)
		Replace(id showrss.ShowIdentity, show showrss.Show, doc showrss.Document, expiresAt time.Time) (showrss.Entry, error)
	}

	Assembler interface {
		Assemble(ctx context.Context, catalog showrss.Catalog, id showrss.ShowIdentity, show showrss.Show) (showrss.Document, error)
	}

	Config struct {
		// How long an entry is served before the catalog is checked again.
		UpdateInterval time.Duration
	}

	Params struct {
		fx.In

		Config    Config
		Store     Store
		Catalog   showrss.Catalog
		Assembler Assembler
	}

	Resolver struct {
		store     Store
		catalog   showrss.Catalog
		assembler Assembler
		interval  time.Duration
		now       func() time.Time

		// Collapses concurrent fills and refreshes of one identity.
		flights singleflight.Group
	}
)

func New(p Params) *Resolver {
	interval := p.Config.UpdateInterval
	if interval <= 0 {
		interval = DefaultUpdateInterval
	}

	return &Resolver{
		store:     p.Store,
		catalog:   p.Catalog,
		assembler: p.Assembler,
		interval:  interval,
		now:       time.Now,
	}
}

// Interval is how long a freshly written entry stays fresh.
func (r *Resolver) Interval() time.Duration {
	return r.interval
}

// Resolve returns the cached feed for a show, filling or refreshing it first
// when needed.
//
// A failed fetch never changes what is cached.
func (r *Resolver) Resolve(ctx context.Context, showURI, locale string) (showrss.Entry, error) {
	id, err := showrss.NewIdentity(showURI, locale)
	if err != nil {
		return showrss.Entry{}, err
	}
	ctx = logger.Ctx(ctx, slog.String("show", id.String()))

	if e, ok := r.store.Get(id); ok && !e.Stale(r.now()) {
		slog.DebugContext(ctx, "cache hit", "expires_at", e.ExpiresAt)
		return e, nil
	}

	v, err, shared := r.flights.Do(id.String(), func() (any, error) {
		// Joiners share this fetch, so it carries none of the first caller's values.
		fctx := logger.Ctx(context.Background(), slog.String("show", id.String()))
		fctx, cancel := context.WithTimeout(fctx, fetchTimeout)
		defer cancel()

		return r.fill(fctx, id)
	})
	if err != nil {
		return showrss.Entry{}, err
	}
	if shared {
		slog.DebugContext(ctx, "joined in-flight fetch")
	}

	// Every caller of a shared flight gets its own copy.
	return v.(showrss.Entry).Clone(), nil
}

// Runs at most once at a time per identity.
func (r *Resolver) fill(ctx context.Context, id showrss.ShowIdentity) (showrss.Entry, error) {
	e, ok := r.store.Get(id)
	switch {
	case !ok:
		return r.insert(ctx, id)
	case e.Stale(r.now()):
		return r.refresh(ctx, e)
	default:
		// A flight that finished just before this one already did the work.
		return e, nil
	}
}

func (r *Resolver) insert(ctx context.Context, id showrss.ShowIdentity) (showrss.Entry, error) {
	slog.InfoContext(ctx, "cache miss, building feed")

	show, doc, err := r.build(ctx, id, nil)
	if err != nil {
		return showrss.Entry{}, err
	}

	e, err := r.store.Insert(id, show, doc, r.now().Add(r.interval))
	if errors.Is(err, showrss.ErrConflict) {
		// Another writer got there first; theirs is just as fresh.
		if existing, ok := r.store.Get(id); ok {
			return existing, nil
		}
	}
	if err != nil {
		return showrss.Entry{}, fmt.Errorf("caching %s: %w", id, err)
	}

	slog.InfoContext(ctx, "cached feed", "episodes", len(e.Document.Items), "expires_at", e.ExpiresAt)
	return e, nil
}

// Rechecks a stale entry. Only a change in the episode count rebuilds the
// feed; otherwise the entry, and its expiry, are left as they are.
func (r *Resolver) refresh(ctx context.Context, stale showrss.Entry) (showrss.Entry, error) {
	id := stale.Identity

	show, err := r.catalog.Show(ctx, id)
	if err != nil {
		return showrss.Entry{}, fmt.Errorf("checking %s for changes: %w", id, err)
	}
	if show.TotalEpisodes == stale.Show.TotalEpisodes {
		slog.InfoContext(ctx, "feed unchanged", "episodes", show.TotalEpisodes)
		return stale, nil
	}

	slog.InfoContext(ctx, "feed changed, rebuilding", "was", stale.Show.TotalEpisodes, "now", show.TotalEpisodes)
	show, doc, err := r.build(ctx, id, &show)
	if err != nil {
		return showrss.Entry{}, err
	}

	e, err := r.store.Replace(id, show, doc, r.now().Add(r.interval))
	if err != nil {
		return showrss.Entry{}, fmt.Errorf("caching %s: %w", id, err)
	}

	return e, nil
}

// Fetches the show, unless already known, and every one of its episodes.
func (r *Resolver) build(ctx context.Context, id showrss.ShowIdentity, known *showrss.Show) (showrss.Show, showrss.Document, error) {
	var show showrss.Show
	if known != nil {
		show = *known
	} else {
		s, err := r.catalog.Show(ctx, id)
		if err != nil {
			return showrss.Show{}, showrss.Document{}, fmt.Errorf("fetching %s: %w", id, err)
		}
		show = s
	}

	doc, err := r.assembler.Assemble(ctx, r.catalog, id, show)
	if err != nil {
		return showrss.Show{}, showrss.Document{}, fmt.Errorf("assembling %s: %w", id, err)
	}

	return show, doc, nil
}
