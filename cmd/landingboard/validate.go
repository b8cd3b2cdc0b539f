package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// validateCmd validates the configuration without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the landingboard configuration without starting the server.

This reads the optional tuning file, the environment and the optional
dotenv file, then checks every field. Secrets are never printed.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  landingboard validate --env-file .env
  landingboard validate -c tuning.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to YAML tuning file (optional)")
	validateCmd.Flags().String("env-file", "", "path to a dotenv file (optional)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  API URL:         %s\n", cfg.APIURL)
	fmt.Printf("  Token endpoint:  %s\n", cfg.OIDC.TokenURL)
	fmt.Printf("  Port:            %d\n", cfg.Port)
	fmt.Printf("  Request timeout: %s\n", cfg.RequestTimeout.Duration())
	fmt.Printf("  Max body size:   %s\n", cfg.MaxBodySize)
	fmt.Printf("  Intervals:       status=%s capacities=%s stats=%s jobs=%s\n",
		cfg.Intervals.Status.Duration(),
		cfg.Intervals.Capacities.Duration(),
		cfg.Intervals.Stats.Duration(),
		cfg.Intervals.Jobs.Duration(),
	)

	return nil
}
