package storagesvc

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/microlms/core"
)

// refPrefix is the public path prefix of files stored on disk.
const refPrefix = "/uploads/"

var errInvalidRef = errors.New("invalid file reference")

type diskStorage struct {
	root string
}

var _ core.FileStorage = (*diskStorage)(nil)

func NewDiskStorage(conf *core.Config) *diskStorage {
	return &diskStorage{root: conf.Storage.UploadDir}
}

func (s *diskStorage) Store(_ context.Context, scope, filename string, content []byte) (string, error) {
	rel := path.Join(path.Clean("/"+scope), core.CleanFilename(filename))[1:]
	dst := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", errors.Wrap(err, "creating upload dir")
	}
	if err := os.WriteFile(dst, content, 0o644); err != nil {
		return "", errors.Wrap(err, "writing file")
	}
	return refPrefix + rel, nil
}

func (s *diskStorage) Delete(_ context.Context, ref string) error {
	if !strings.HasPrefix(ref, refPrefix) {
		return errInvalidRef
	}
	rel := path.Clean("/" + strings.TrimPrefix(ref, refPrefix))[1:]
	if rel == "" {
		return errInvalidRef
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(rel)))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing file")
	}
	return nil
}
