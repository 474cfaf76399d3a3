package storagesvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/media"
)

var cloudinaryBaseURL = "https://api.cloudinary.com/v1_1"

// CloudinaryStore does unsigned uploads with an upload preset.
type CloudinaryStore struct {
	client  *http.Client
	baseURL string
	cloud   string
	preset  string
}

var _ media.ObjectStore = (*CloudinaryStore)(nil)

func NewCloudinaryStore(conf *core.Config) *CloudinaryStore {
	return &CloudinaryStore{
		client:  &http.Client{Timeout: 60 * time.Second},
		baseURL: cloudinaryBaseURL,
		cloud:   conf.Storage.CloudinaryCloudName,
		preset:  conf.Storage.CloudinaryUploadPreset,
	}
}

type cloudinaryResponse struct {
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *CloudinaryStore) Put(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	// the public id is the key without its extension; cloudinary adds the format itself
	dir, name := path.Split(key)
	fields := map[string]string{
		"upload_preset": s.preset,
		"public_id":     strings.TrimSuffix(name, path.Ext(name)),
		"folder":        strings.TrimSuffix(dir, "/"),
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return "", errors.Wrap(err, "writing form field")
		}
	}
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return "", errors.Wrap(err, "creating form file")
	}
	if _, err = io.Copy(part, r); err != nil {
		return "", errors.Wrap(err, "copying file")
	}
	if err = w.Close(); err != nil {
		return "", errors.Wrap(err, "closing form")
	}

	url := fmt.Sprintf("%s/%s/image/upload", s.baseURL, s.cloud)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", errors.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	res, err := s.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "uploading to cloudinary")
	}
	defer func() { _ = res.Body.Close() }()

	var cr cloudinaryResponse
	if err = json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&cr); err != nil {
		return "", errors.Wrapf(err, "decoding cloudinary response (status %d)", res.StatusCode)
	}
	if cr.Error != nil && cr.Error.Message != "" {
		return "", fmt.Errorf("cloudinary: %s", cr.Error.Message)
	}
	if res.StatusCode >= http.StatusBadRequest || cr.SecureURL == "" {
		return "", fmt.Errorf("cloudinary: unexpected response (status %d)", res.StatusCode)
	}
	return cr.SecureURL, nil
}
