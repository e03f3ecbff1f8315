// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// routesConfig holds configuration for the routes command.
type routesConfig struct {
	server     string
	jsonOutput bool
	timeout    time.Duration
}

func newRoutesCmd() *cobra.Command {
	cfg := &routesConfig{}

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the routes, events and extensions of a running bridge",
		Long:  `Fetch /api/v1/docs from a running bridge and print it as Markdown or JSON.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRoutes(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.server, "server", defaultServerURL, "bridge base URL")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "print the raw JSON document")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 5*time.Second, "request timeout")

	return cmd
}

func runRoutes(ctx context.Context, out io.Writer, cfg *routesConfig) error {
	format := "markdown"
	if cfg.jsonOutput {
		format = "json"
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	target := strings.TrimRight(cfg.server, "/") + "/api/v1/docs?format=" + format
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	_, err = fmt.Fprintln(out, strings.TrimRight(string(body), "\n"))
	return err
}
