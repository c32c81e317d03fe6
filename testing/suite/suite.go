// Package suite starts a throwaway redis for integration tests of the match store.
package suite

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
)

const (
	expireSeconds   = 120
	maxWaitDuration = 120 * time.Second
)

const (
	redisPort       = "6379/tcp"
	redisImage      = "redis"
	defaultRedisTag = "alpine"
)

// Epoch is where every suite clock starts.
var Epoch = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

type Suite struct {
	*testing.T
	Logger *slog.Logger
	Clock  *clockwork.FakeClock

	Storage *redis.Client
}

// New - a fresh redis container per test. REDIS_TEST_TAG picks the image tag and
// SUITE_VERBOSE=1 sends logs to stdout.
func New(t *testing.T) (context.Context, *Suite) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), maxWaitDuration)
	t.Cleanup(cancel)

	return ctx, &Suite{
		T:       t,
		Logger:  newLogger(),
		Clock:   clockwork.NewFakeClockAt(Epoch),
		Storage: startRedis(ctx, t),
	}
}

// MatchKeys - the redis keys currently held for a match, sorted.
func (that *Suite) MatchKeys(ctx context.Context, gameID string) []string {
	that.Helper()

	keys, err := that.Storage.Keys(ctx, fmt.Sprintf("match:%s:*", gameID)).Result()
	if err != nil {
		that.Fatalf("could not list keys of %s: %v", gameID, err)
	}

	sort.Strings(keys)

	return keys
}

func newLogger() *slog.Logger {
	out := io.Discard
	if os.Getenv("SUITE_VERBOSE") == "1" {
		out = os.Stdout
	}

	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func startRedis(ctx context.Context, t *testing.T) *redis.Client {
	t.Helper()

	tag := os.Getenv("REDIS_TEST_TAG")
	if tag == "" {
		tag = defaultRedisTag
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("could not connect to docker: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: redisImage,
		Tag:        tag,
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("could not start redis: %v", err)
	}

	// hard kill in case cleanup never runs
	_ = resource.Expire(expireSeconds)

	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Errorf("could not purge redis: %v", err)
		}
	})

	pool.MaxWait = maxWaitDuration

	client := redis.NewClient(&redis.Options{Addr: resource.GetHostPort(redisPort)})
	t.Cleanup(func() {
		_ = client.Close()
	})

	// the server inside the container may still be starting
	if err = pool.Retry(func() error {
		return client.Ping(ctx).Err()
	}); err != nil {
		t.Fatalf("could not connect to redis: %v", err)
	}

	return client
}
