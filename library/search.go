package library

import (
	"context"
	"log/slog"
	"strings"
)

// Searcher narrows a catalog snapshot down to the books matching term.
type Searcher interface {
	Search(ctx context.Context, term string, snapshot []Book) ([]Book, error)
}

// KeywordSearcher is the backend capability used by RemoteSearch.
type KeywordSearcher interface {
	SearchBooks(ctx context.Context, keyword string) ([]Book, error)
}

// RemoteSearch asks the backend; the snapshot is ignored.
type RemoteSearch struct {
	API KeywordSearcher
}

func (r RemoteSearch) Search(ctx context.Context, term string, _ []Book) ([]Book, error) {
	return r.API.SearchBooks(ctx, term)
}

// LocalSearch filters the snapshot in memory.
type LocalSearch struct{}

func (LocalSearch) Search(_ context.Context, term string, snapshot []Book) ([]Book, error) {
	out := make([]Book, 0, len(snapshot))
	for _, b := range snapshot {
		if MatchesTerm(b, term) {
			out = append(out, b)
		}
	}
	return out, nil
}

// MatchesTerm is a case-insensitive substring match on title or author.
func MatchesTerm(b Book, term string) bool {
	t := strings.ToLower(term)
	return strings.Contains(strings.ToLower(b.Title), t) ||
		strings.Contains(strings.ToLower(b.Author), t)
}

// FallbackSearch tries Primary and answers from Fallback when it fails.
// The failure is logged but never surfaced to the caller. A cancelled
// context is returned as-is so superseded searches are not masked.
type FallbackSearch struct {
	Primary  Searcher
	Fallback Searcher
	Log      *slog.Logger
}

// NewFallbackSearch prefers the backend search and falls back to LocalSearch.
func NewFallbackSearch(api KeywordSearcher, log *slog.Logger) *FallbackSearch {
	if log == nil {
		log = slog.Default()
	}
	return &FallbackSearch{Primary: RemoteSearch{API: api}, Fallback: LocalSearch{}, Log: log}
}

func (f *FallbackSearch) Search(ctx context.Context, term string, snapshot []Book) ([]Book, error) {
	books, err := f.Primary.Search(ctx, term, snapshot)
	if err == nil {
		return books, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	f.Log.Warn("remote search failed, filtering locally",
		slog.String("term", term), slog.String("err", err.Error()))
	return f.Fallback.Search(ctx, term, snapshot)
}

// OnlyAvailable keeps the books that are not currently borrowed.
func OnlyAvailable(books []Book) []Book {
	out := make([]Book, 0, len(books))
	for _, b := range books {
		if b.Available {
			out = append(out, b)
		}
	}
	return out
}
