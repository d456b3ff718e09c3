package store

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

// FilesRoute is the HTTP prefix under which stored objects are served.
const FilesRoute = "/api/files/"

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectStore writes uploads under images/<userId>/<unixMillis>_<filename>.
type ObjectStore struct {
	backend    Backend
	baseURL    string
	timeout    time.Duration
	retryDelay time.Duration
	now        func() time.Time
}

func NewObjectStore(backend Backend, publicBaseURL string, timeout time.Duration) *ObjectStore {
	return &ObjectStore{
		backend:    backend,
		baseURL:    strings.TrimRight(publicBaseURL, "/"),
		timeout:    timeout,
		retryDelay: writeRetryDelay,
		now:        time.Now,
	}
}

// Upload stores data and returns its durable URL.
func (s *ObjectStore) Upload(ctx context.Context, userID, filename, contentType string, data []byte) (string, error) {
	if userID == "" {
		return "", invalid("userId", "user id is required")
	}
	if len(data) == 0 {
		return "", invalid("file", "file is empty")
	}

	now := s.now()
	obj := Object{
		Path:        fmt.Sprintf("images/%s/%d_%s", userID, now.UnixMilli(), SanitizeFilename(filename)),
		ContentType: contentType,
		Data:        data,
		CreatedAt:   now,
	}
	err := withRetry(ctx, "upload object", s.retryDelay, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.backend.PutObject(ctx, obj)
	})
	if err != nil {
		return "", err
	}
	return s.URL(obj.Path), nil
}

func (s *ObjectStore) Get(ctx context.Context, objectPath string) (*Object, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.backend.GetObject(ctx, objectPath)
}

func (s *ObjectStore) URL(objectPath string) string {
	return s.baseURL + FilesRoute + objectPath
}

// SanitizeFilename keeps the base name and replaces anything outside [A-Za-z0-9._-].
func SanitizeFilename(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	base = unsafeFilenameChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "upload"
	}
	return base
}
