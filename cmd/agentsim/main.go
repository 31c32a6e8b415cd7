// Command agentsim runs the multi-agent simulation runtime as a single,
// master or worker node, mirroring cmd/tarsy/main.go's
// flag/config/wiring shape.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/agentsim/pkg/distnode"
	"github.com/codeready-toolchain/agentsim/pkg/scene"
	"github.com/codeready-toolchain/agentsim/pkg/simconfig"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	sceneDir := flag.String("scene-dir", getEnv("SCENE_DIR", "./deploy/scene"), "Path to scene directory")
	role := flag.String("role", getEnv("NODE_ROLE", ""), "Node role override: single, master or worker (defaults to distribution.mode from config)")
	nodeID := flag.String("node-id", getEnv("NODE_ID", ""), "This node's id (defaults to hostname)")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("main: could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	}

	ctx := context.Background()

	cfg, err := simconfig.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("main: failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	sc, err := scene.Load(*sceneDir)
	if err != nil {
		slog.Error("main: failed to load scene", "error", err)
		os.Exit(1)
	}

	id := *nodeID
	if id == "" {
		id, _ = os.Hostname()
	}
	if id == "" {
		id = "node-1"
	}

	effectiveRole := distnode.Role(*role)
	if effectiveRole == "" {
		if cfg.Distribution.Enabled {
			effectiveRole = distnode.Role(cfg.Distribution.Mode)
		} else {
			effectiveRole = distnode.RoleSingle
		}
	}

	slog.Info("main: starting agentsim", "role", effectiveRole, "node_id", id, "scene", sc.Manifest.SceneName)

	switch effectiveRole {
	case distnode.RoleMaster:
		err = runMaster(ctx, id, cfg, sc)
	case distnode.RoleWorker:
		err = runWorker(ctx, id, cfg, sc)
	default:
		err = runSingle(ctx, id, cfg, sc)
	}
	if err != nil {
		slog.Error("main: run failed", "role", effectiveRole, "error", err)
		os.Exit(1)
	}
}
