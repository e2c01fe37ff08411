package feed

import "context"

// Client is the remote file transport.
type Client interface {
	Connect(ctx context.Context) error
	// List returns the files under dir whose base name matches pattern,
	// a regular expression. An empty pattern matches every file.
	List(ctx context.Context, dir, pattern string) ([]RemoteFile, error)
	Download(ctx context.Context, path string) ([]byte, error)
	Disconnect() error
}

// LedgerRepository persists ledger entries. Upsert must never move the stored
// remote timestamp backwards.
type LedgerRepository interface {
	Get(ctx context.Context, filename string) (LedgerEntry, bool, error)
	Upsert(ctx context.Context, entry LedgerEntry) error
}
