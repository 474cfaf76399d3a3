// Package media validates user uploads and hands them to an object store.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
)

const sniffLen = 512

var (
	// errors
	ErrNoFile     = core.NewValidationError(errors.New("no file provided"), core.FieldError{Field: "file", Error: "no file provided"})
	ErrNotAnImage = core.NewValidationError(errors.New("only images can be uploaded"), core.FieldError{Field: "file", Error: "only images can be uploaded"})

	imageExts = map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/gif":  ".gif",
		"image/webp": ".webp",
		"image/bmp":  ".bmp",
	}
)

type (
	// ObjectStore stores objects & returns their public URL.
	ObjectStore interface {
		Put(ctx context.Context, key, contentType string, r io.Reader) (string, error)
	}

	Upload struct {
		URL         string `json:"url"`
		Key         string `json:"key"`
		ContentType string `json:"content_type"`
		Size        int64  `json:"size"`
	}

	Service struct {
		store   ObjectStore
		logger  core.Logger
		maxSize int64
	}
)

func NewService(store ObjectStore, logger core.Logger, conf *core.Config) *Service {
	return &Service{store: store, logger: logger, maxSize: conf.Storage.MaxImageSize}
}

// TooLargeError is returned for uploads bigger than the configured limit.
func (svc *Service) TooLargeError() error {
	msg := fmt.Sprintf("file size must be under %dMB", svc.maxSize/(1024*1024))
	return core.NewValidationError(errors.New(msg), core.FieldError{Field: "file", Error: msg})
}

// UploadImage checks that r holds an image of at most the configured size, then stores it.
// size is the declared size, -1 when unknown.
func (svc *Service) UploadImage(ctx context.Context, usr user.User, filename string, size int64, r io.Reader) (Upload, error) {
	if r == nil || size == 0 {
		return Upload{}, ErrNoFile
	}
	if size > svc.maxSize {
		return Upload{}, svc.TooLargeError()
	}

	// read one byte more than allowed to detect lying clients
	content, err := io.ReadAll(io.LimitReader(r, svc.maxSize+1))
	if err != nil {
		return Upload{}, errors.Wrap(err, "reading upload")
	}
	if len(content) == 0 {
		return Upload{}, ErrNoFile
	}
	if int64(len(content)) > svc.maxSize {
		return Upload{}, svc.TooLargeError()
	}

	head := content
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	ct := http.DetectContentType(head)
	ext, ok := imageExts[ct]
	if !ok {
		return Upload{}, ErrNotAnImage
	}

	key := path.Join("images", usr.ID, uuid.New().String()+ext)
	url, err := svc.store.Put(ctx, key, ct, bytes.NewReader(content))
	if err != nil {
		svc.logger.Error("uploading image", errors.Wrap(err, "putting object"), usr, map[string]interface{}{
			"filename": strings.TrimSpace(filename),
		})
		return Upload{}, core.NewUnavailableError("upload failed, please try again later", err)
	}
	return Upload{URL: url, Key: key, ContentType: ct, Size: int64(len(content))}, nil
}
