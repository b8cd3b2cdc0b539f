// Package main is the entry point for the landingboard CLI.
//
// Usage:
//
//	landingboard serve                      # Poll the platform and serve the snapshot
//	landingboard serve -c tuning.yaml       # Override ports, intervals and timeouts
//	landingboard validate --env-file .env   # Check configuration without starting
//	landingboard version                    # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "landingboard",
	Short: "Aggregated status backend for the platform landing page",
	Long: `landingboard polls the platform's status, capacities, stats and jobs
endpoints and serves the latest response of each as one JSON document at /.
Liveness is at /healthz and Prometheus metrics at /metrics.

Environment (read once at startup; a --env-file dotenv file fills gaps):
  api_url               platform REST API base URL        (alias API_URL)
  oidc_auth_server_url  OIDC token endpoint               (alias OIDC_AUTH_SERVER_URL)
  oidc_resource         OIDC client id                    (alias OIDC_RESOURCE)
  oidc_secret           OIDC client secret                (alias OIDC_SECRET)
  username, password    service account for the jobs endpoint (lower case only)
  PORT                  overrides the listen port

Tuning file (-c, optional YAML):
  port, request_timeout, token_ttl, max_body_size,
  intervals.{status,capacities,stats,jobs}

Logs are JSON on stderr; --log-level accepts debug, info, warn or error.
Successful polls are logged at debug.

Quick start:
  1. Export the variables above (or put them in a .env file)
  2. Run: landingboard serve --env-file .env --log-level info
  3. Fetch http://localhost:8080/`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this landingboard binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("landingboard %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
