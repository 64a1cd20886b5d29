package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/spotifeed/internal/cache"
	"github.com/jdholdren/spotifeed/internal/feed"
	"github.com/jdholdren/spotifeed/internal/resolver"
	"github.com/jdholdren/spotifeed/internal/showrss"
	"github.com/jdholdren/spotifeed/internal/showrss/showrsstest"
)

func TestRun(t *testing.T) {
	var (
		dir     = t.TempDir()
		catalog = showrsstest.NewCatalog("pods", showrsstest.Episodes(12))
		r       = resolver.New(resolver.Params{
			Store:     cache.NewStore(),
			Catalog:   catalog,
			Assembler: feed.NewAssembler(""),
		})
		cfg   = config{OutputDir: dir, Locale: "se", Concurrency: 2}
		shows = []string{"4rOoJ6Egrf8K2IrywzwOMk", "2mTUnDkuKUkhiueKcVWoP0", "0000000000000000000000"}
	)

	require.NoError(t, run(context.Background(), r, cfg, shows))

	for _, uri := range shows {
		body, err := os.ReadFile(filepath.Join(dir, uri+"-SE.xml"))
		require.NoError(t, err)

		parsed, err := gofeed.NewParser().ParseString(string(body))
		require.NoError(t, err)
		assert.Len(t, parsed.Items, 12)
	}
	assert.Equal(t, len(shows), catalog.ShowCalls())
}

func TestRun_BadShow(t *testing.T) {
	r := resolver.New(resolver.Params{
		Store:     cache.NewStore(),
		Catalog:   showrsstest.NewCatalog("pods", nil),
		Assembler: feed.NewAssembler(""),
	})

	err := run(context.Background(), r, config{OutputDir: t.TempDir(), Locale: "US"}, []string{"nope"})
	require.ErrorIs(t, err, showrss.ErrInvalidIdentity)
}
