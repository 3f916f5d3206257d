package feeds

import "context"

// Source is a remote feed exposing a list of currently-available native
// ids and a per-id item fetch. Implementations are safe for concurrent
// FetchItem calls; ListIDs is called once per ingestion cycle.
type Source interface {
	// Name identifies the source in logs and config.
	Name() string

	// Prefix is the canonical id namespace for this source.
	Prefix() string

	// ListIDs returns the native ids currently available upstream.
	ListIDs(ctx context.Context) ([]string, error)

	// FetchItem retrieves the full item body for one native id.
	FetchItem(ctx context.Context, nativeID string) (Item, error)
}
