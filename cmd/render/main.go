// Render writes the feeds of one or more shows to disk without running the
// server.
//
//	render 4rOoJ6Egrf8K2IrywzwOMk 2mTUnDkuKUkhiueKcVWoP0
//
// Each feed lands in OUTPUT_DIR as <show>-<locale>.xml.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/sethvargo/go-envconfig"
	"golang.org/x/sync/errgroup"

	"github.com/jdholdren/spotifeed/internal/cache"
	"github.com/jdholdren/spotifeed/internal/feed"
	"github.com/jdholdren/spotifeed/internal/resolver"
	"github.com/jdholdren/spotifeed/internal/showrss"
	"github.com/jdholdren/spotifeed/internal/spotify"
	"github.com/jdholdren/spotifeed/logger"
)

type config struct {
	SpotifyClientID     string `env:"SPOTIFY_CLIENT_ID, required"`
	SpotifyClientSecret string `env:"SPOTIFY_CLIENT_SECRET, required"`
	SpotifyAPIURL       string `env:"SPOTIFY_API_URL, default=https://api.spotify.com"`
	AudioBaseURL        string `env:"AUDIO_BASE_URL, default=https://anon-podcast.scdn.co/"`

	OutputDir   string `env:"OUTPUT_DIR, default=."`
	Locale      string `env:"LOCALE, default=US"`
	Concurrency int    `env:"CONCURRENCY, default=4"`

	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`
	LogLevel     string `env:"LOG_LEVEL, default=info"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	flag.Parse()
	if flag.NArg() == 0 {
		log.Fatalln("usage: render <show id>...")
	}

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}
	slog.SetDefault(logger.New(os.Stderr, cfg.LoggerFormat, cfg.LogLevel))

	catalog, err := spotify.New(
		spotify.WithBaseURL(cfg.SpotifyAPIURL),
		spotify.WithHTTPClient(spotify.AuthConfig(cfg.SpotifyClientID, cfg.SpotifyClientSecret).Client(ctx)),
	)
	if err != nil {
		log.Fatalf("error creating spotify client: %s", err)
	}
	r := resolver.New(resolver.Params{
		Store:     cache.NewStore(),
		Catalog:   catalog,
		Assembler: feed.NewAssembler(cfg.AudioBaseURL),
	})

	if err := run(ctx, r, cfg, flag.Args()); err != nil {
		slog.Error("error rendering", "error", err)
		os.Exit(1)
	}
}

type feedResolver interface {
	Resolve(ctx context.Context, showURI, locale string) (showrss.Entry, error)
}

func run(ctx context.Context, r feedResolver, cfg config, shows []string) error {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("error creating output dir: %s", err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Concurrency, 1))
	for _, uri := range shows {
		g.Go(func() error {
			e, err := r.Resolve(gCtx, uri, cfg.Locale)
			if err != nil {
				return fmt.Errorf("error resolving %s: %w", uri, err)
			}

			body, err := feed.Render(e.Document)
			if err != nil {
				return fmt.Errorf("error rendering %s: %w", uri, err)
			}

			name := filepath.Join(cfg.OutputDir, fmt.Sprintf("%s-%s.xml", e.Identity.ShowURI, e.Identity.Locale))
			if err := os.WriteFile(name, body, 0o644); err != nil {
				return fmt.Errorf("error writing %s: %w", name, err)
			}

			slog.Info("wrote feed", "file", name, "episodes", len(e.Document.Items))
			return nil
		})
	}

	return g.Wait()
}
