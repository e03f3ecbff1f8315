// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// defaultServerURL is where client subcommands look for a running bridge.
const defaultServerURL = "http://127.0.0.1:8765"

// NewRootCmd creates the root command for the TickBridge CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tickbridge",
		Short: "TickBridge - an HTTP bridge into a tick-driven simulation",
		Long: `TickBridge exposes a single-threaded, tick-driven simulation over HTTP.
Requests are queued and answered on the main loop, events are streamed over
SSE and WebSocket, and Lua extensions add their own namespaced endpoints.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/tickbridge/config.yaml)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newEventsCmd())
	cmd.AddCommand(newRoutesCmd())

	return cmd
}
