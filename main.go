// Spotifeed serves Spotify podcasts as RSS feeds.
//
// Feeds are built on first request and kept in memory, being rechecked
// against Spotify once they are older than the update interval.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/sethvargo/go-retry"
	"go.uber.org/fx"
	"golang.org/x/oauth2"

	"github.com/jdholdren/spotifeed/internal/api"
	"github.com/jdholdren/spotifeed/internal/cache"
	"github.com/jdholdren/spotifeed/internal/feed"
	"github.com/jdholdren/spotifeed/internal/resolver"
	"github.com/jdholdren/spotifeed/internal/showrss"
	"github.com/jdholdren/spotifeed/internal/spotify"
	"github.com/jdholdren/spotifeed/logger"
)

type config struct {
	Port           int           `env:"PORT, default=8080"`
	UpdateInterval time.Duration `env:"UPDATE_INTERVAL, default=6m"`

	SpotifyClientID     string `env:"SPOTIFY_CLIENT_ID, required"`
	SpotifyClientSecret string `env:"SPOTIFY_CLIENT_SECRET, required"`
	SpotifyAPIURL       string `env:"SPOTIFY_API_URL, default=https://api.spotify.com"`
	AudioBaseURL        string `env:"AUDIO_BASE_URL, default=https://anon-podcast.scdn.co/"`

	RenderCacheSize int `env:"RENDER_CACHE_SIZE, default=256"`

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`
	LogLevel     string `env:"LOG_LEVEL, default=info"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	slog.SetDefault(logger.New(os.Stderr, cfg.LoggerFormat, cfg.LogLevel))
	slog.Info("starting", "port", cfg.Port, "update_interval", cfg.UpdateInterval)

	// Make sure the credentials work before taking requests.
	auth := spotify.AuthConfig(cfg.SpotifyClientID, cfg.SpotifyClientSecret)
	backoff := retry.WithMaxRetries(5, retry.NewFibonacci(1*time.Second))
	if err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if _, err := auth.Token(ctx); err != nil {
			slog.Warn("could not get spotify token", "error", err)
			return retry.RetryableError(err)
		}

		return nil
	}); err != nil {
		log.Fatalln("unable to authenticate with spotify:", err)
	}

	// Token requests get the same timeout as API calls.
	authCtx := context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: 10 * time.Second})
	httpClient := auth.Client(authCtx)
	httpClient.Timeout = 10 * time.Second

	catalog, err := spotify.New(
		spotify.WithBaseURL(cfg.SpotifyAPIURL),
		spotify.WithHTTPClient(httpClient),
	)
	if err != nil {
		log.Fatalf("error creating spotify client: %s", err)
	}
	store := cache.NewStore()

	// Start the application
	fx.New(
		fx.Supply(
			api.ServerConfig{
				Port:            cfg.Port,
				RenderCacheSize: cfg.RenderCacheSize,
			},
			resolver.Config{
				UpdateInterval: cfg.UpdateInterval,
			},
			fx.Annotate(store, fx.As(new(resolver.Store))),
			fx.Annotate(store, fx.As(new(api.Lister))),
			fx.Annotate(catalog, fx.As(new(showrss.Catalog))),
			fx.Annotate(feed.NewAssembler(cfg.AudioBaseURL), fx.As(new(resolver.Assembler))),
		),
		resolver.Module,
		fx.Provide(func(r *resolver.Resolver) api.Resolver { return r }),
		api.Module,
		fx.Invoke(func(*api.Server) {}), // Start the feed server
	).Run()
}
