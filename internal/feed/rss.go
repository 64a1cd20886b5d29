package feed

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/eduncan911/podcast"

	"github.com/jdholdren/spotifeed/internal/showrss"
)

const generator = "spotifeed"

// Render writes the document as an RSS 2.0 podcast feed.
func Render(doc showrss.Document) ([]byte, error) {
	var newest *time.Time
	for i := range doc.Items {
		if newest == nil || doc.Items[i].Published.After(*newest) {
			newest = &doc.Items[i].Published
		}
	}

	p := podcast.New(doc.Channel.Title, doc.Channel.Link, doc.Channel.Description, nil, newest)
	p.Generator = generator
	p.Language = doc.Channel.Language
	p.IAuthor = doc.Channel.Author
	if doc.Channel.ImageURL != "" {
		p.AddImage(doc.Channel.ImageURL)
	}

	for _, it := range doc.Items {
		item := podcast.Item{
			GUID:        it.GUID,
			Title:       it.Title,
			Description: it.Description,
			Link:        it.Link,
			IDuration:   strconv.FormatInt(int64(it.Duration/time.Second), 10),
		}
		// The builder refuses items without these.
		if item.Title == "" {
			item.Title = it.GUID
		}
		if item.Description == "" {
			item.Description = item.Title
		}
		if item.Link == "" {
			item.Link = doc.Channel.Link
		}

		published := it.Published.UTC()
		item.AddPubDate(&published)
		if it.Enclosure != nil {
			item.AddEnclosure(it.Enclosure.URL, podcast.MP3, it.Enclosure.Length)
		}

		if _, err := p.AddItem(item); err != nil {
			return nil, fmt.Errorf("error adding episode %s: %w", it.GUID, err)
		}
		// AddItem derives a guid from the links; the episode uri is the identity.
		p.Items[len(p.Items)-1].GUID = it.GUID
	}

	var buf bytes.Buffer
	if err := p.Encode(&buf); err != nil {
		return nil, fmt.Errorf("error encoding feed: %w", err)
	}

	return buf.Bytes(), nil
}
