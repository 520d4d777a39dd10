// Uplink Switcher - automatic scene switching for IRL broadcasts
//
// This is the main entry point. It polls the configured stream servers for
// every session, classifies the incoming feed and drives OBS to the scene
// matching the feed quality.
//
// Subcommands:
//
//	uplinkswitcher run       start every session and the status API
//	uplinkswitcher validate  load and check the configuration
//	uplinkswitcher version   print build information
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// getConfigPath returns UPLINK_CONFIG or the default path.
func getConfigPath() string {
	if path := os.Getenv("UPLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
