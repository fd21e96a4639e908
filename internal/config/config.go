// Package config holds the command-line and environment configuration for
// the server binary.
package config

import (
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/originate-group/common-mcp-server/internal/version"
	"github.com/originate-group/common-mcp-server/pkg/auth"
)

// ConfigData holds the global configuration.
type ConfigData struct {
	// Command-line specific options
	Transport string
	Host      string
	Port      int

	// Upstream REST API the tool handler forwards to. Empty enables the
	// built-in demo tools.
	UpstreamURL string
	// Upstream request timeout in seconds
	UpstreamTimeout int

	// Path to a JSON file describing the advertised tools
	ToolsFile string

	// OAuth bearer authentication
	OAuth *auth.OAuthConfig
	// Whether OAuth auth is enabled
	OAuthEnabled bool

	// PAT authentication
	PATHeader string
	PATPrefix string
	// Path of the sqlite PAT database; empty disables PAT auth
	PATStorePath string

	// Per-caller tool call budget per minute
	CallsPerMinute int

	// Verbose logging
	Verbose bool

	// Log output format (text or json)
	LogFormat string

	// OTLP endpoint for OpenTelemetry traces
	OTLPEndpoint string
}

// NewConfig creates and returns a new configuration instance.
func NewConfig() *ConfigData {
	return &ConfigData{
		Transport:       "stdio",
		Host:            "127.0.0.1",
		Port:            8000,
		UpstreamTimeout: 30,
		OAuth:           auth.NewOAuthConfig(),
		PATHeader:       auth.DefaultPATHeader,
		LogFormat:       "text",
	}
}

// ParseFlags parses command line arguments and updates the configuration.
func (cfg *ConfigData) ParseFlags() {
	// Server configuration
	flag.StringVar(&cfg.Transport, "transport", "stdio", "Transport mechanism to use (stdio or streamable-http)")
	flag.StringVar(&cfg.Host, "host", "127.0.0.1", "Host to listen on (only used with transport streamable-http)")
	flag.IntVar(&cfg.Port, "port", 8000, "Port to listen on (only used with transport streamable-http)")

	// Upstream forwarding
	flag.StringVar(&cfg.UpstreamURL, "upstream-url", "", "Base URL of the internal REST API tool calls are forwarded to (empty enables demo tools)")
	flag.IntVar(&cfg.UpstreamTimeout, "upstream-timeout", 30, "Timeout for forwarded tool calls in seconds")
	flag.StringVar(&cfg.ToolsFile, "tools-file", "", "Path to a JSON file describing the advertised tools")

	// OAuth settings
	flag.BoolVar(&cfg.OAuthEnabled, "oauth-enabled", false, "Enable OAuth bearer authentication")
	flag.StringVar(&cfg.OAuth.ResourceURL, "resource-url", "", "Public base URL of this server (e.g. https://eng.example.com)")
	flag.StringVar(&cfg.OAuth.AuthServerURL, "auth-server-url", "", "OAuth issuer base URL (e.g. https://auth.example.com)")
	flag.StringVar(&cfg.OAuth.Realm, "auth-realm", "", "OAuth issuer realm name")
	flag.StringVar(&cfg.OAuth.ClientID, "auth-client-id", "", "Shared public OAuth client ID")
	flag.StringVar(&cfg.OAuth.Audience, "auth-audience", "", "Expected token audience (empty disables the audience check)")
	flag.IntVar(&cfg.OAuth.JWKSCacheTimeout, "auth-jwks-cache-timeout", 3600, "JWKS cache timeout in seconds")

	// PAT settings
	flag.StringVar(&cfg.PATHeader, "pat-header", auth.DefaultPATHeader, "Request header carrying personal access tokens")
	flag.StringVar(&cfg.PATPrefix, "pat-prefix", "", "Required personal access token prefix (e.g. app_pat_)")
	flag.StringVar(&cfg.PATStorePath, "pat-store", "", "Path of the sqlite PAT database (empty disables PAT authentication)")

	// Rate limiting
	flag.IntVar(&cfg.CallsPerMinute, "calls-per-minute", 0, "Per-caller tool call budget per minute (0 uses the default)")

	// Logging settings
	flag.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose logging")
	flag.StringVar(&cfg.LogFormat, "log-format", "text", "Log output format (text or json)")

	// OTLP settings
	flag.StringVar(&cfg.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint for OpenTelemetry traces (e.g. localhost:4317)")

	// Custom help handling
	var showHelp bool
	flag.BoolVarP(&showHelp, "help", "h", false, "Show help message")

	// Version flag
	showVersion := flag.Bool("version", false, "Show version information and exit")

	// Parse flags and handle errors properly
	err := flag.CommandLine.Parse(os.Args[1:])
	if err != nil {
		fmt.Printf("\nUsage of %s:\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if showHelp {
		fmt.Printf("Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *showVersion {
		cfg.PrintVersion()
		os.Exit(0)
	}

	cfg.loadFromEnv()
}

// loadFromEnv loads configuration from environment variables for values
// not set via flags.
func (cfg *ConfigData) loadFromEnv() {
	if cfg.OAuth.ResourceURL == "" {
		cfg.OAuth.ResourceURL = os.Getenv("MCP_SERVER_RESOURCE_URL")
	}
	if cfg.OAuth.AuthServerURL == "" {
		cfg.OAuth.AuthServerURL = os.Getenv("MCP_SERVER_AUTH_URL")
	}
	if cfg.OAuth.Realm == "" {
		cfg.OAuth.Realm = os.Getenv("MCP_SERVER_AUTH_REALM")
	}
	if cfg.OAuth.ClientID == "" {
		cfg.OAuth.ClientID = os.Getenv("MCP_SERVER_AUTH_CLIENT_ID")
	}
	if !cfg.OAuthEnabled && os.Getenv("MCP_SERVER_OAUTH_ENABLED") == "true" {
		cfg.OAuthEnabled = true
	}
	if cfg.UpstreamURL == "" {
		cfg.UpstreamURL = os.Getenv("MCP_SERVER_UPSTREAM_URL")
	}
	if cfg.PATStorePath == "" {
		cfg.PATStorePath = os.Getenv("MCP_SERVER_PAT_STORE")
	}
	if cfg.PATPrefix == "" {
		cfg.PATPrefix = os.Getenv("MCP_SERVER_PAT_PREFIX")
	}
}

// Validate checks the parsed configuration for consistency.
func (cfg *ConfigData) Validate() error {
	switch cfg.Transport {
	case "stdio", "streamable-http":
	default:
		return fmt.Errorf("invalid transport type: %s (must be 'stdio' or 'streamable-http')", cfg.Transport)
	}

	if cfg.OAuthEnabled {
		if err := cfg.OAuth.Validate(); err != nil {
			return err
		}
	}

	if cfg.PATStorePath != "" && cfg.PATPrefix == "" {
		return fmt.Errorf("pat-prefix is required when pat-store is set")
	}

	if cfg.Transport == "streamable-http" && !cfg.OAuthEnabled && cfg.PATStorePath == "" {
		return fmt.Errorf("streamable-http transport requires oauth or PAT authentication")
	}

	if cfg.UpstreamTimeout <= 0 {
		return fmt.Errorf("upstream-timeout must be positive")
	}

	return nil
}

// UpstreamTimeoutDuration returns the upstream timeout as a duration.
func (cfg *ConfigData) UpstreamTimeoutDuration() time.Duration {
	return time.Duration(cfg.UpstreamTimeout) * time.Second
}

// Address returns the listen address for HTTP transports.
func (cfg *ConfigData) Address() string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// PrintVersion prints version information.
func (cfg *ConfigData) PrintVersion() {
	versionInfo := version.GetVersionInfo()
	fmt.Printf("common-mcp-server version %s\n", versionInfo["version"])
	fmt.Printf("Git commit: %s\n", versionInfo["gitCommit"])
	fmt.Printf("Go version: %s\n", versionInfo["goVersion"])
	fmt.Printf("Platform: %s\n", versionInfo["platform"])
}
