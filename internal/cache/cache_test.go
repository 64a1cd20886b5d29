package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/spotifeed/internal/showrss"
)

var (
	testID  = showrss.ShowIdentity{ShowURI: "4rOoJ6Egrf8K2IrywzwOMk", Locale: "US"}
	testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func newTestStore() *Store {
	s := NewStore()
	s.now = func() time.Time { return testNow }
	return s
}

func testDoc(guids ...string) showrss.Document {
	doc := showrss.Document{Channel: showrss.Channel{ID: testID.ShowURI, Title: "A Show"}}
	for _, g := range guids {
		doc.Items = append(doc.Items, showrss.Item{
			GUID:      g,
			Enclosure: &showrss.Enclosure{URL: "https://audio/" + g, Type: "audio/mpeg"},
		})
	}
	return doc
}

func TestInsertAndGet(t *testing.T) {
	s := newTestStore()
	expires := testNow.Add(6 * time.Minute)

	_, ok := s.Get(testID)
	require.False(t, ok)

	inserted, err := s.Insert(testID, showrss.Show{Name: "A Show", TotalEpisodes: 2}, testDoc("a", "b"), expires)
	require.NoError(t, err)
	assert.Equal(t, testNow, inserted.UpdatedAt)

	got, ok := s.Get(testID)
	require.True(t, ok)
	assert.Equal(t, testID, got.Identity)
	assert.Equal(t, expires, got.ExpiresAt)
	assert.Equal(t, 2, got.Show.TotalEpisodes)
	assert.Len(t, got.Document.Items, 2)
	assert.Equal(t, 1, s.Len())
}

func TestInsertDuplicate(t *testing.T) {
	s := newTestStore()

	_, err := s.Insert(testID, showrss.Show{TotalEpisodes: 1}, testDoc("a"), testNow)
	require.NoError(t, err)

	_, err = s.Insert(testID, showrss.Show{TotalEpisodes: 2}, testDoc("a", "b"), testNow)
	require.ErrorIs(t, err, showrss.ErrConflict)

	got, _ := s.Get(testID)
	assert.Equal(t, 1, got.Show.TotalEpisodes)
}

func TestReplace(t *testing.T) {
	s := newTestStore()

	_, err := s.Replace(testID, showrss.Show{}, testDoc(), testNow)
	require.ErrorIs(t, err, showrss.ErrNotFound)
	assert.Equal(t, 0, s.Len())

	_, err = s.Insert(testID, showrss.Show{TotalEpisodes: 1}, testDoc("a"), testNow)
	require.NoError(t, err)

	later := testNow.Add(time.Hour)
	_, err = s.Replace(testID, showrss.Show{TotalEpisodes: 2}, testDoc("b", "a"), later)
	require.NoError(t, err)

	got, _ := s.Get(testID)
	assert.Equal(t, 2, got.Show.TotalEpisodes)
	assert.Equal(t, later, got.ExpiresAt)
	assert.Equal(t, "b", got.Document.Items[0].GUID)
}

func TestSnapshotsAreIsolated(t *testing.T) {
	s := newTestStore()
	doc := testDoc("a")

	_, err := s.Insert(testID, showrss.Show{}, doc, testNow)
	require.NoError(t, err)

	// Mutating the caller's document must not reach the store.
	doc.Items[0].Title = "mutated"

	first, _ := s.Get(testID)
	first.Document.Items[0].Enclosure.URL = "mutated"
	first.Document.Items = append(first.Document.Items, showrss.Item{GUID: "extra"})

	second, _ := s.Get(testID)
	assert.Equal(t, "", second.Document.Items[0].Title)
	assert.Equal(t, "https://audio/a", second.Document.Items[0].Enclosure.URL)
	assert.Len(t, second.Document.Items, 1)
}

func TestList(t *testing.T) {
	s := newTestStore()
	other := showrss.ShowIdentity{ShowURI: testID.ShowURI, Locale: "GB"}

	_, err := s.Insert(testID, showrss.Show{Name: "us"}, testDoc(), testNow)
	require.NoError(t, err)
	_, err = s.Insert(other, showrss.Show{Name: "gb"}, testDoc(), testNow)
	require.NoError(t, err)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "gb", list[0].Show.Name)
	assert.Equal(t, "us", list[1].Show.Name)
}

func TestConcurrentInsertsOneWinner(t *testing.T) {
	s := newTestStore()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Insert(testID, showrss.Show{}, testDoc(), testNow); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, s.Len())
}
