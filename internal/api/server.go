package api

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/fx"

	"github.com/jdholdren/spotifeed/internal/serverutil"
	"github.com/jdholdren/spotifeed/internal/showrss"
)

const defaultRenderCacheSize = 256

//go:embed static
var staticFS embed.FS

type (
	// Resolver hands out cached feeds, fetching them when needed.
	Resolver interface {
		Resolve(ctx context.Context, showURI, locale string) (showrss.Entry, error)
		Interval() time.Duration
	}

	// Lister reports every cached show.
	Lister interface {
		List() []showrss.Entry
	}

	// Server serves feeds over HTTP.
	Server struct {
		*http.Server

		resolver Resolver
		shows    Lister

		// Encoded feeds, keyed by identity and the entry's last write.
		rendered *lru.Cache[string, []byte]
	}

	ServerConfig struct {
		Port            int
		RenderCacheSize int
	}

	Params struct {
		fx.In

		Config   ServerConfig
		Resolver Resolver
		Shows    Lister
	}
)

func NewServer(lc fx.Lifecycle, p Params) *Server {
	size := p.Config.RenderCacheSize
	if size <= 0 {
		size = defaultRenderCacheSize
	}

	var (
		r           = serverutil.ErrRouter{Router: mux.NewRouter()}
		rendered, _ = lru.New[string, []byte](size)
		recovery    = handlers.RecoveryHandler(
			handlers.RecoveryLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelError)),
		)
	)

	srvr := &Server{
		resolver: p.Resolver,
		shows:    p.Shows,
		rendered: rendered,
		Server: &http.Server{
			Addr:        fmt.Sprintf(":%d", p.Config.Port),
			ReadTimeout: 5 * time.Second,
			// A cold feed can take many upstream pages to build.
			WriteTimeout: time.Minute,
			Handler:      handlers.CompressHandler(recovery(r)),
		},
	}

	static, _ := fs.Sub(staticFS, "static")

	r.Use(serverutil.AccessLogMiddleware) // Log everything
	r.Handle("/", serveFile(static, "index.html")).Methods(http.MethodGet)
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(static)))).Methods(http.MethodGet)
	r.Handle("/favicon.ico", http.RedirectHandler("/static/favicon.svg", http.StatusMovedPermanently)).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFuncE("/api/shows", srvr.getShows).Methods(http.MethodGet)

	// Feeds are matched last so they don't shadow the routes above.
	r.HandleFuncE("/{show_uri}", srvr.getFeed).Methods(http.MethodGet)
	r.HandleFuncE("/{show_uri}/{locale}", srvr.getFeed).Methods(http.MethodGet)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srvr.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					slog.Error("error listening", "error", err)
				}
			}()

			slog.Info("started feed server", "port", p.Config.Port)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srvr.Shutdown(ctx)
		},
	})

	return srvr
}

func serveFile(fsys fs.FS, name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, fsys, name)
	})
}
