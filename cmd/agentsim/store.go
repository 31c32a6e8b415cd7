package main

import (
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/codeready-toolchain/agentsim/pkg/environment"
)

// buildStore picks the env-state backend: Redis if REDIS_URL is set
//, in-memory otherwise.
func buildStore() environment.Store {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		return environment.NewMemoryStore()
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		slog.Warn("main: REDIS_URL set but unparseable, falling back to in-memory store", "error", err)
		return environment.NewMemoryStore()
	}
	client := redis.NewClient(opts)
	return environment.NewRedisStore(client, "agentsim")
}
