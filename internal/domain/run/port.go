package run

import (
	"context"
	"time"
)

type Repo interface {
	// Lock serializes writers for one website until the surrounding
	// transaction ends. Must be called inside Transactor.WithTx.
	Lock(ctx context.Context, website string) error
	Latest(ctx context.Context, website string) (*Run, error)
	Insert(ctx context.Context, r *Run) error
	UpdateEnd(ctx context.Context, id int64, end time.Time) error
	InsertBatch(ctx context.Context, runs []Run) error
	ListAll(ctx context.Context) ([]Run, error)
}

type Transactor interface {
	WithTx(ctx context.Context, function func(ctx context.Context) error) error
}
