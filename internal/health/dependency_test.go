package health

import (
	"context"
	"path/filepath"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sandeepkv93/sitedeck/internal/config"
	"github.com/sandeepkv93/sitedeck/internal/repository"
	"github.com/sandeepkv93/sitedeck/internal/repository/sqlstore"
)

func TestStoreCheckerWithGormAdapter(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "health.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	store := repository.NewGormStore(db)
	checker := NewStoreChecker(store)
	if res := checker.Check(context.Background()); !res.Healthy || res.Name != "db" {
		t.Fatalf("expected healthy db, got %+v", res)
	}

	_ = store.Close()
	if res := checker.Check(context.Background()); res.Healthy || res.Error == "" {
		t.Fatalf("expected closed pool to be unhealthy, got %+v", res)
	}
}

func TestStoreCheckerWithSQLAdapter(t *testing.T) {
	store, err := sqlstore.Open(context.Background(), config.DialectSQLite, filepath.Join(t.TempDir(), "health-sqlx.db"), sqlstore.PoolOptions{})
	if err != nil {
		t.Fatalf("open sqlstore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if res := NewStoreChecker(store).Check(context.Background()); !res.Healthy {
		t.Fatalf("expected healthy db check, got %+v", res)
	}
}

func TestRedisChecker(t *testing.T) {
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	checker := NewRedisChecker(client)
	if res := checker.Check(context.Background()); !res.Healthy {
		t.Fatalf("expected healthy redis, got %+v", res)
	}
	m.Close()
	if res := checker.Check(context.Background()); res.Healthy {
		t.Fatal("expected unhealthy redis after shutdown")
	}
}
