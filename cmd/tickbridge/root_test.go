// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestRootCommand_ListsSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	output := buf.String()
	for _, sub := range []string{"serve", "events", "routes", "--config"} {
		if !strings.Contains(output, sub) {
			t.Errorf("Help missing %q", sub)
		}
	}
}

func TestServeCommand_Flags(t *testing.T) {
	cmd := newServeCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	output := buf.String()
	expectedFlags := []string{
		"--host",
		"--port",
		"--max-requests",
		"--heartbeat-interval",
		"--tick-rate",
		"--metrics-addr",
		"--log-format",
		"--log-level",
		"--extensions-dir",
	}
	for _, flag := range expectedFlags {
		if !strings.Contains(output, flag) {
			t.Errorf("Help missing %q flag", flag)
		}
	}
}

func TestServeCommand_DefaultValues(t *testing.T) {
	cmd := newServeCmd()

	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		t.Fatalf("Failed to get port flag: %v", err)
	}
	if port != 8765 {
		t.Errorf("port default = %d, want %d", port, 8765)
	}

	metricsAddr, err := cmd.Flags().GetString("metrics-addr")
	if err != nil {
		t.Fatalf("Failed to get metrics-addr flag: %v", err)
	}
	if metricsAddr != "127.0.0.1:9100" {
		t.Errorf("metrics-addr default = %q, want %q", metricsAddr, "127.0.0.1:9100")
	}
}

func TestClientCommands_DefaultServer(t *testing.T) {
	for name, cmd := range map[string]*cobra.Command{
		"events": newEventsCmd(),
		"routes": newRoutesCmd(),
	} {
		server, err := cmd.Flags().GetString("server")
		if err != nil {
			t.Fatalf("%s: failed to get server flag: %v", name, err)
		}
		if server != defaultServerURL {
			t.Errorf("%s: server default = %q, want %q", name, server, defaultServerURL)
		}
	}
}
