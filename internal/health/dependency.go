package health

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
)

// Pinger is satisfied by both repository.Store adapters.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker checks the database behind the configured store adapter.
type StoreChecker struct {
	store Pinger
}

func NewStoreChecker(store Pinger) Checker {
	if store == nil {
		return nil
	}
	return &StoreChecker{store: store}
}

func (c *StoreChecker) Check(ctx context.Context) CheckResult {
	res := CheckResult{Name: "db", Healthy: true}
	if err := c.store.Ping(ctx); err != nil {
		res.Healthy = false
		res.Error = err.Error()
	}
	return res
}

type RedisChecker struct {
	client redis.UniversalClient
}

func NewRedisChecker(client redis.UniversalClient) Checker {
	if client == nil {
		return nil
	}
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	res := CheckResult{Name: "redis", Healthy: true}
	if err := c.client.Ping(ctx).Err(); err != nil {
		res.Healthy = false
		res.Error = err.Error()
	}
	return res
}

// BucketChecker verifies the favicon bucket is reachable.
type BucketChecker struct {
	client *minio.Client
	bucket string
}

func NewBucketChecker(client *minio.Client, bucket string) Checker {
	if client == nil || bucket == "" {
		return nil
	}
	return &BucketChecker{client: client, bucket: bucket}
}

func (c *BucketChecker) Check(ctx context.Context) CheckResult {
	res := CheckResult{Name: "object_storage", Healthy: true}
	ok, err := c.client.BucketExists(ctx, c.bucket)
	switch {
	case err != nil:
		res.Healthy = false
		res.Error = err.Error()
	case !ok:
		res.Healthy = false
		res.Error = fmt.Sprintf("bucket %q does not exist", c.bucket)
	}
	return res
}
