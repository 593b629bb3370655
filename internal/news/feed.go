package news

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/infblueocean/watchcrew/internal/logging"
	"github.com/infblueocean/watchcrew/internal/team"
)

// feedTimeout bounds each individual feed fetch.
const feedTimeout = 30 * time.Second

// maxConcurrentFeeds limits parallel fetches.
const maxConcurrentFeeds = 5

// DefaultHeadlines caps the headlines kept per team.
const DefaultHeadlines = 20

// Feed is one RSS/Atom source for a team. Team may be an ID, a name or an
// alias.
type Feed struct {
	Team string
	URL  string
}

// FeedDigest builds news context from team feeds without the backend:
// the summary for a team is its newest headlines joined with " / ".
type FeedDigest struct {
	client    *http.Client
	feeds     []Feed // IMMUTABLE after construction
	resolver  *team.Resolver
	headlines int
}

// NewFeedDigest creates a digest over feeds. headlines <= 0 uses
// DefaultHeadlines.
func NewFeedDigest(feeds []Feed, headlines int, hc *http.Client) *FeedDigest {
	if hc == nil {
		hc = &http.Client{Timeout: feedTimeout}
	}
	if headlines <= 0 {
		headlines = DefaultHeadlines
	}
	feedsCopy := make([]Feed, len(feeds))
	copy(feedsCopy, feeds)
	return &FeedDigest{
		client:    hc,
		feeds:     feedsCopy,
		resolver:  team.NewResolver(nil),
		headlines: headlines,
	}
}

type headline struct {
	title     string
	published time.Time
}

// Summaries fetches the feeds of the game's two teams in parallel. A feed
// that fails is logged and skipped; the call fails only when every feed
// failed.
func (d *FeedDigest) Summaries(ctx context.Context, game team.Game) (map[string]string, error) {
	var (
		mu      sync.Mutex
		byTeam  = map[string][]headline{}
		lastErr error
		ok      int
		tried   int
	)

	var g errgroup.Group
	g.SetLimit(maxConcurrentFeeds)

	for _, f := range d.feeds {
		id, known := d.resolver.Resolve(f.Team)
		if !known || (id != game.Home && id != game.Away) {
			continue
		}
		tried++
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			items, err := d.fetch(ctx, f)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logging.Warn("news: feed failed", "team", id, "url", f.URL, "error", err)
				lastErr = err
				return nil // never fail the group: errors are per-feed
			}
			ok++
			byTeam[id] = append(byTeam[id], items...)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if tried > 0 && ok == 0 {
		return nil, fmt.Errorf("all %d feeds failed: %w", tried, lastErr)
	}

	out := make(map[string]string, len(byTeam))
	for id, items := range byTeam {
		rec, _ := team.Lookup(id)
		out[rec.DisplayName] = d.digest(items)
	}
	return out, nil
}

func (d *FeedDigest) digest(items []headline) string {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].published.After(items[j].published)
	})
	seen := make(map[string]bool, len(items))
	titles := make([]string, 0, d.headlines)
	for _, it := range items {
		if len(titles) == d.headlines {
			break
		}
		t := strings.TrimSpace(it.title)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		titles = append(titles, t)
	}
	return strings.Join(titles, " / ")
}

// fetch retrieves and parses a single feed.
func (d *FeedDigest) fetch(ctx context.Context, f Feed) ([]headline, error) {
	ctx, cancel := context.WithTimeout(ctx, feedTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "watchcrew/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	now := time.Now()
	out := make([]headline, 0, len(feed.Items))
	for _, it := range feed.Items {
		published := now
		if it.PublishedParsed != nil {
			published = *it.PublishedParsed
		} else if it.UpdatedParsed != nil {
			published = *it.UpdatedParsed
		}
		out = append(out, headline{title: it.Title, published: published})
	}
	return out, nil
}
