package storagesvc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/kurin/blazer/b2"
	"github.com/pkg/errors"

	"github.com/trezcool/microlms/core"
)

type b2Storage struct {
	client *b2.Client
	bucket *b2.Bucket
}

var _ core.FileStorage = (*b2Storage)(nil)

// NewB2Storage connects to the Backblaze B2 bucket from the storage config.
func NewB2Storage(ctx context.Context, conf *core.Config) (*b2Storage, error) {
	client, err := b2.NewClient(ctx, conf.Storage.B2AccountID, conf.Storage.B2ApplicationKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating b2 client")
	}
	bucket, err := client.Bucket(ctx, conf.Storage.B2Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "getting b2 bucket")
	}
	return &b2Storage{client: client, bucket: bucket}, nil
}

func (s *b2Storage) urlPrefix() string {
	return fmt.Sprintf("%s/file/%s/", s.bucket.BaseURL(), s.bucket.Name())
}

func (s *b2Storage) Store(ctx context.Context, scope, filename string, content []byte) (string, error) {
	key := path.Join(path.Clean("/"+scope), core.CleanFilename(filename))[1:]
	obj := s.bucket.Object(key)
	w := obj.NewWriter(ctx)
	if _, err := io.Copy(w, bytes.NewReader(content)); err != nil {
		_ = w.Close()
		return "", errors.Wrap(err, "writing object")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "closing object writer")
	}
	return obj.URL(), nil
}

func (s *b2Storage) Delete(ctx context.Context, ref string) error {
	key := strings.TrimPrefix(ref, s.urlPrefix())
	if key == ref || key == "" {
		return errInvalidRef
	}
	if err := s.bucket.Object(key).Delete(ctx); err != nil && !b2.IsNotExist(err) {
		return errors.Wrap(err, "deleting object")
	}
	return nil
}
