package legacy

import "context"

type Repo interface {
	Exists(ctx context.Context) (bool, error)
	ListAll(ctx context.Context) ([]Check, error)
	Drop(ctx context.Context) error
	// Reclaim returns freed pages to the OS. Engines refuse to do this
	// inside a transaction, so callers invoke it after commit.
	Reclaim(ctx context.Context) error
}
