// Package news supplies the per-team news context sent with every
// orchestrate request: a map from team display name to a short summary.
package news

import (
	"context"

	"github.com/infblueocean/watchcrew/internal/team"
)

// Provider produces news context for a game.
type Provider interface {
	Summaries(ctx context.Context, game team.Game) (map[string]string, error)
}

// summaryClient is the subset of orchestrate.Client used here.
type summaryClient interface {
	NewsSummary(ctx context.Context, game string) (map[string]string, error)
}

// BackendSummarizer asks the backend to summarize its own news archive.
type BackendSummarizer struct {
	client summaryClient
}

// NewBackendSummarizer wraps an orchestrate client.
func NewBackendSummarizer(c summaryClient) *BackendSummarizer {
	return &BackendSummarizer{client: c}
}

// Summaries implements Provider.
func (b *BackendSummarizer) Summaries(ctx context.Context, game team.Game) (map[string]string, error) {
	return b.client.NewsSummary(ctx, game.ID)
}
