package feed

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// Source identifies one feed endpoint to poll. Immutable once configured.
// Quotes and images have their own clients and are keyed by symbol and
// URL hash respectively.
type Source struct {
	ID       string
	Category string
	URL      string
}

// NewSource builds a Source with a stable ID derived from the URL.
func NewSource(category, url string) Source {
	return Source{
		ID:       sourceID(url),
		Category: category,
		URL:      url,
	}
}

// StoryEntry is one displayable story from a feed.
type StoryEntry struct {
	Title       string
	Description string
	Link        string
	ImageURL    string
	Published   time.Time
	Category    string
	Source      string
	Sentiment   string
}

func sourceID(url string) string {
	h := sha256.Sum256([]byte(url))
	return fmt.Sprintf("%x", h[:16])
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
