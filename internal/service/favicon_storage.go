package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sandeepkv93/sitedeck/internal/observability"
)

const faviconPathPrefix = "favicons"

var (
	ErrFileTooBig      = errors.New("favicon exceeds the size limit")
	ErrInvalidFileType = errors.New("favicon must be a PNG, JPEG, GIF, WebP or ICO image")
	ErrUploadFailed    = errors.New("failed to store favicon")

	faviconTypes = map[string]string{
		"image/png":                ".png",
		"image/jpeg":               ".jpg",
		"image/gif":                ".gif",
		"image/webp":               ".webp",
		"image/x-icon":             ".ico",
		"image/vnd.microsoft.icon": ".ico",
	}
)

// FaviconStore persists uploaded favicons and returns their public URL.
type FaviconStore interface {
	PutFavicon(ctx context.Context, websiteID uint, file io.Reader, size int64) (string, error)
	DeleteFavicon(ctx context.Context, objectURL string) error
}

type DisabledFaviconStore struct{}

func (DisabledFaviconStore) PutFavicon(context.Context, uint, io.Reader, int64) (string, error) {
	return "", ErrStorageDisabled
}

func (DisabledFaviconStore) DeleteFavicon(context.Context, string) error { return nil }

type MinIOFaviconStore struct {
	client   *minio.Client
	bucket   string
	baseURL  string
	maxBytes int64

	initOnce sync.Once
	initErr  error
}

// NewMinIOFaviconStore does not contact the server; the bucket is created
// and made publicly readable on first upload.
func NewMinIOFaviconStore(endpoint, accessKey, secretKey, bucket string, useSSL bool, publicBaseURL string, maxBytes int64) (*MinIOFaviconStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	if publicBaseURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicBaseURL = scheme + "://" + endpoint + "/" + bucket
	}
	return &MinIOFaviconStore{
		client:   client,
		bucket:   bucket,
		baseURL:  strings.TrimRight(publicBaseURL, "/"),
		maxBytes: maxBytes,
	}, nil
}

// Client exposes the underlying client for readiness probing.
func (s *MinIOFaviconStore) Client() *minio.Client { return s.client }

func (s *MinIOFaviconStore) Bucket() string { return s.bucket }

func (s *MinIOFaviconStore) lazyInit(ctx context.Context) error {
	s.initOnce.Do(func() {
		s.initErr = s.ensureBucket(ctx)
	})
	return s.initErr
}

func (s *MinIOFaviconStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	policy := fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/%s/*"]}]}`, s.bucket, faviconPathPrefix)
	if err := s.client.SetBucketPolicy(ctx, s.bucket, policy); err != nil {
		return fmt.Errorf("set bucket policy: %w", err)
	}
	return nil
}

// PutFavicon sniffs the content type from the bytes rather than trusting
// the client header.
func (s *MinIOFaviconStore) PutFavicon(ctx context.Context, websiteID uint, file io.Reader, size int64) (objectURL string, err error) {
	ctx, span := observability.StartSpan(ctx, "favicon.put",
		attribute.Int64("website.id", int64(websiteID)),
		attribute.Int64("favicon.size", size),
	)
	defer func() { observability.EndSpan(span, err) }()

	if size <= 0 || (s.maxBytes > 0 && size > s.maxBytes) {
		observability.RecordStorageUpload(ctx, "favicon", "too_big")
		return "", ErrFileTooBig
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	head = head[:n]
	contentType := sniffImageType(head)
	ext, ok := faviconTypes[contentType]
	if !ok {
		observability.RecordStorageUpload(ctx, "favicon", "invalid_type")
		return "", ErrInvalidFileType
	}
	if err := s.lazyInit(ctx); err != nil {
		observability.RecordStorageUpload(ctx, "favicon", "error")
		return "", err
	}

	key := fmt.Sprintf("%s/website-%d/%s%s", faviconPathPrefix, websiteID, uuid.NewString(), ext)
	_, err = s.client.PutObject(ctx, s.bucket, key, io.MultiReader(bytes.NewReader(head), file), size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=86400",
		UserMetadata: map[string]string{
			"Website-ID":  fmt.Sprintf("%d", websiteID),
			"Uploaded-At": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		observability.RecordStorageUpload(ctx, "favicon", "error")
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	observability.RecordStorageUpload(ctx, "favicon", "success")
	return s.baseURL + "/" + key, nil
}

// DeleteFavicon removes an object previously returned by PutFavicon. URLs
// that do not point into this store are ignored.
func (s *MinIOFaviconStore) DeleteFavicon(ctx context.Context, objectURL string) error {
	key, ok := strings.CutPrefix(objectURL, s.baseURL+"/")
	if !ok || !strings.HasPrefix(key, faviconPathPrefix+"/") || strings.Contains(key, "..") {
		return nil
	}
	if err := s.lazyInit(ctx); err != nil {
		return err
	}
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

func sniffImageType(head []byte) string {
	return strings.ToLower(strings.TrimSpace(http.DetectContentType(head)))
}
