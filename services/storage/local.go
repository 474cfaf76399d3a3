// Package storagesvc implements media.ObjectStore on the local disk & on Cloudinary.
package storagesvc

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/media"
)

// LocalStore writes objects under a directory served at baseURL.
type LocalStore struct {
	dir     string
	baseURL string
}

var _ media.ObjectStore = (*LocalStore)(nil)

func NewLocalStore(conf *core.Config) *LocalStore {
	return &LocalStore{dir: conf.Storage.LocalDir, baseURL: conf.Storage.BaseURL}
}

// Dir is the root directory of the stored objects.
func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) Put(ctx context.Context, key, _ string, r io.Reader) (string, error) {
	key = path.Clean("/" + key)[1:]
	if key == "" || strings.HasPrefix(key, "../") {
		return "", errors.Errorf("invalid object key %q", key)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fp := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return "", errors.Wrap(err, "creating object dir")
	}
	f, err := os.Create(fp)
	if err != nil {
		return "", errors.Wrap(err, "creating object file")
	}
	if _, err = io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(fp)
		return "", errors.Wrap(err, "writing object file")
	}
	if err = f.Close(); err != nil {
		return "", errors.Wrap(err, "closing object file")
	}
	return s.baseURL + "/" + key, nil
}
