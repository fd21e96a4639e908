package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/originate-group/common-mcp-server/internal/config"
	"github.com/originate-group/common-mcp-server/internal/logger"
	"github.com/originate-group/common-mcp-server/internal/telemetry"
	"github.com/originate-group/common-mcp-server/internal/version"
	"github.com/originate-group/common-mcp-server/pkg/auth"
	"github.com/originate-group/common-mcp-server/pkg/patstore"
	"github.com/originate-group/common-mcp-server/pkg/server"
)

const serviceName = "common-mcp-server"

func main() {
	cfg := config.NewConfig()
	cfg.ParseFlags()

	logger.Setup(os.Stderr, cfg.LogFormat, cfg.Verbose)

	if err := cfg.Validate(); err != nil {
		logger.Errorf("invalid configuration: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	versionInfo := version.GetVersionInfo()
	telemetryService := telemetry.NewService(serviceName, versionInfo["version"], cfg.OTLPEndpoint)
	if err := telemetryService.Initialize(ctx); err != nil {
		// Not fatal: the server runs fine without an exporter.
		logger.Warnf("failed to initialize telemetry: %v", err)
	}
	defer func() { _ = telemetryService.Shutdown(context.Background()) }()

	var patConfig *auth.PATConfig
	if cfg.PATStorePath != "" {
		store, err := patstore.Open(cfg.PATStorePath, cfg.PATPrefix)
		if err != nil {
			logger.Errorf("failed to open PAT store: %v", err)
			os.Exit(1)
		}
		defer func() { _ = store.Close() }()

		patConfig = &auth.PATConfig{
			HeaderName: cfg.PATHeader,
			Prefix:     cfg.PATPrefix,
			Verify:     store.Verify,
		}
	}

	var oauthConfig *auth.OAuthConfig
	if cfg.OAuthEnabled {
		oauthConfig = cfg.OAuth
	}

	provider, handler, err := buildTools(cfg)
	if err != nil {
		logger.Errorf("failed to configure tools: %v", err)
		os.Exit(1)
	}

	s, err := server.New(ctx, server.Config{
		Name:           serviceName,
		Version:        versionInfo["version"],
		OAuth:          oauthConfig,
		PAT:            patConfig,
		ToolsProvider:  provider,
		ToolHandler:    handler,
		CallsPerMinute: cfg.CallsPerMinute,
	})
	if err != nil {
		logger.Errorf("failed to create MCP server: %v", err)
		os.Exit(1)
	}

	switch cfg.Transport {
	case "stdio":
		logger.Infof("starting MCP server with stdio transport")
		if err := s.ServeStdio(); err != nil {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	case "streamable-http":
		if err := s.Start(ctx, cfg.Address()); err != nil {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}
}
