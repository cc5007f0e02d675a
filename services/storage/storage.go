package storagesvc

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/microlms/core"
)

// New returns the file storage selected by conf.Storage.Backend.
func New(ctx context.Context, conf *core.Config) (core.FileStorage, error) {
	switch conf.Storage.Backend {
	case "", "disk":
		return NewDiskStorage(conf), nil
	case "b2":
		return NewB2Storage(ctx, conf)
	default:
		return nil, errors.Errorf("unknown storage backend %q", conf.Storage.Backend)
	}
}
