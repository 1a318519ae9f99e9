package inspiration

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Feed picks the mission from a devotional RSS/Atom feed: the item at
// position (day of year mod item count), so the line changes once a day and
// every visitor gets the same one.
type Feed struct {
	url    string
	parser *gofeed.Parser
	now    func() time.Time
}

// NewFeed creates a feed-backed provider.
func NewFeed(url string) *Feed {
	return &Feed{url: url, parser: gofeed.NewParser(), now: time.Now}
}

// Fetch implements Provider.
func (f *Feed) Fetch(ctx context.Context) (string, error) {
	parsed, err := f.parser.ParseURLWithContext(f.url, ctx)
	if err != nil {
		return "", fmt.Errorf("inspiration: parsing feed %s: %w", f.url, err)
	}

	var lines []string
	for _, item := range parsed.Items {
		text := item.Title
		if text == "" {
			text = item.Description
		}
		if text = Clean(stripHTML(text)); text != "" {
			lines = append(lines, text)
		}
	}
	if len(lines) == 0 {
		return "", ErrEmpty
	}
	return lines[f.now().YearDay()%len(lines)], nil
}

func stripHTML(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagPattern.ReplaceAllString(s, "")))
}
