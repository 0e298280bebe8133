package integration

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	defaultMinIOTestImage    = "docker.io/minio/minio:RELEASE.2025-09-07T16-13-09Z"
	defaultPostgresTestImage = "docker.io/library/postgres:16-alpine"
	minioUser                = "minioadmin"
	minioSecret              = "minioadmin"
)

func imageFromEnv(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

func startContainer(t *testing.T, req testcontainers.ContainerRequest) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s container: %v", req.Image, err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("resolve container host: %v", err)
	}
	port, err := container.MappedPort(ctx, nat.Port(req.ExposedPorts[0]))
	if err != nil {
		t.Fatalf("resolve container port: %v", err)
	}
	return net.JoinHostPort(host, port.Port())
}

type minioEnv struct {
	endpoint string
	bucket   string
	client   *minio.Client
}

func newMinIOEnv(t *testing.T) *minioEnv {
	t.Helper()
	endpoint := startContainer(t, testcontainers.ContainerRequest{
		Image: imageFromEnv("MINIO_TEST_IMAGE", defaultMinIOTestImage),
		Env: map[string]string{
			"MINIO_ROOT_USER":     minioUser,
			"MINIO_ROOT_PASSWORD": minioSecret,
		},
		ExposedPorts: []string{"9000/tcp"},
		Cmd:          []string{"server", "/data", "--address", ":9000"},
		WaitingFor:   wait.ForListeningPort("9000/tcp").WithStartupTimeout(45 * time.Second),
	})
	client, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4(minioUser, minioSecret, ""),
	})
	if err != nil {
		t.Fatalf("create minio client: %v", err)
	}
	waitForMinIO(t, client)
	return &minioEnv{
		endpoint: endpoint,
		bucket:   fmt.Sprintf("favicons-it-%d", time.Now().UnixNano()),
		client:   client,
	}
}

func waitForMinIO(t *testing.T, client *minio.Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		_, err := client.ListBuckets(ctx)
		if err == nil {
			return
		}
		select {
		case <-ctx.Done():
			t.Fatalf("minio readiness check timed out: %v", err)
		case <-ticker.C:
		}
	}
}

func (e *minioEnv) objectKey(t *testing.T, objectURL string) string {
	t.Helper()
	prefix := "http://" + e.endpoint + "/" + e.bucket + "/"
	key, ok := strings.CutPrefix(objectURL, prefix)
	if !ok {
		t.Fatalf("object url %q does not start with %q", objectURL, prefix)
	}
	return key
}

func (e *minioEnv) objectExists(t *testing.T, key string) bool {
	t.Helper()
	_, err := e.client.StatObject(context.Background(), e.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false
	}
	t.Fatalf("stat %q: %v", key, err)
	return false
}

func newPostgresDSN(t *testing.T) string {
	t.Helper()
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image: imageFromEnv("POSTGRES_TEST_IMAGE", defaultPostgresTestImage),
		Env: map[string]string{
			"POSTGRES_USER":     "sitedeck",
			"POSTGRES_PASSWORD": "sitedeck",
			"POSTGRES_DB":       "sitedeck",
		},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	})
	return fmt.Sprintf("postgres://sitedeck:sitedeck@%s/sitedeck?sslmode=disable", addr)
}
