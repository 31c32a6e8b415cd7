package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/agentsim/pkg/batch"
	"github.com/codeready-toolchain/agentsim/pkg/simconfig"
	"github.com/codeready-toolchain/agentsim/pkg/sink"
)

// closableSink is satisfied by *sink.PostgresSink; the in-memory and no-op
// sinks need no teardown.
type closableSink interface {
	Close()
}

// buildSink opens the durable decision/event store this node flushes to.
// Every node, including workers, owns its own sink connection — decisions are never proxied through the master for storage.
func buildSink(ctx context.Context, dbCfg simconfig.DatabaseConfig) (batch.Sink, func(), error) {
	if !dbCfg.Enabled {
		slog.Info("main: database disabled, using in-memory sink")
		s := sink.NewMemory()
		return s, func() {}, nil
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		dbCfg.User, dbCfg.Password, dbCfg.Host, dbCfg.Port, dbCfg.DBName)
	s, err := sink.NewPostgres(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("main: connecting to postgres sink: %w", err)
	}
	return s, func() {
		if c, ok := any(s).(closableSink); ok {
			c.Close()
		}
	}, nil
}
