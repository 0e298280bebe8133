package integration

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sandeepkv93/sitedeck/internal/database"
	"github.com/sandeepkv93/sitedeck/internal/domain"
	"github.com/sandeepkv93/sitedeck/internal/health"
	"github.com/sandeepkv93/sitedeck/internal/repository"
	"github.com/sandeepkv93/sitedeck/internal/service"
)

var pngFixture = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 64)...)

func newSQLiteStore(t *testing.T) repository.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "it.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := database.Seed(db, database.SeedOptions{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store := repository.NewGormStore(db)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestFaviconUploadStoresAndReplacesObjects(t *testing.T) {
	env := newMinIOEnv(t)
	store := newSQLiteStore(t)
	ctx := context.Background()

	favicons, err := service.NewMinIOFaviconStore(env.endpoint, minioUser, minioSecret, env.bucket, false, "", 1<<16)
	if err != nil {
		t.Fatalf("create favicon store: %v", err)
	}
	cache := service.NewListCache(service.NewNoopListCacheStore(), time.Minute, nil)
	settings := service.NewSettingService(store.Settings(), cache, nil)
	websites := service.NewWebsiteService(store.Websites(), store.Categories(), settings, favicons, cache, service.BulkRunner{}, nil)

	admin := &domain.User{Email: "admin@sitedeck.test", Name: "Admin", Role: domain.RoleAdmin, Status: domain.UserStatusActive, PasswordHash: "x"}
	if err := store.Users().Create(ctx, admin); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	cats, err := store.Categories().List(ctx)
	if err != nil || len(cats) == 0 {
		t.Fatalf("expected seeded categories: %v", err)
	}
	site, err := websites.Submit(ctx, admin, service.WebsiteInput{
		Title:       "MinIO",
		URL:         "https://min.io",
		Description: "Object storage",
		CategoryID:  cats[0].ID,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	first, err := websites.UploadFavicon(ctx, admin, site.ID, bytes.NewReader(pngFixture), int64(len(pngFixture)))
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	firstKey := env.objectKey(t, first.FaviconURL)
	info, err := env.client.StatObject(ctx, env.bucket, firstKey, minio.StatObjectOptions{})
	if err != nil {
		t.Fatalf("stat first favicon: %v", err)
	}
	if info.ContentType != "image/png" {
		t.Fatalf("expected image/png, got %q", info.ContentType)
	}

	second, err := websites.UploadFavicon(ctx, admin, site.ID, bytes.NewReader(pngFixture), int64(len(pngFixture)))
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if second.FaviconURL == first.FaviconURL {
		t.Fatal("expected a fresh object for the replacement favicon")
	}
	if env.objectExists(t, firstKey) {
		t.Fatal("expected replaced favicon to be removed")
	}
	if !env.objectExists(t, env.objectKey(t, second.FaviconURL)) {
		t.Fatal("expected replacement favicon to exist")
	}

	text := []byte("definitely not an image")
	_, err = websites.UploadFavicon(ctx, admin, site.ID, bytes.NewReader(text), int64(len(text)))
	var vErr *service.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "file" {
		t.Fatalf("expected file validation error, got %v", err)
	}

	probe := health.NewProbeRunner(5*time.Second, 0, health.NewBucketChecker(favicons.Client(), favicons.Bucket()))
	if ready, results := probe.Ready(ctx); !ready {
		t.Fatalf("expected bucket checker healthy: %+v", results)
	}
}
