package packages

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("package not found")

type Repo interface {
	// InsertMissing adds each package whose name is not stored yet.
	InsertMissing(ctx context.Context, pkgs []Package) (int, error)
	ListActive(ctx context.Context) ([]Package, error)
	GetActive(ctx context.Context, packageID string) (Package, error)
}
