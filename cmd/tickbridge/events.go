// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tickbridge/tickbridge/internal/sse"
)

// eventsConfig holds configuration for the events command.
type eventsConfig struct {
	server     string
	filter     string
	limit      int
	jsonOutput bool
}

// eventLine is one event in --json output.
type eventLine struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newEventsCmd() *cobra.Command {
	cfg := &eventsConfig{}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream events from a running bridge",
		Long: `Connect to a running bridge's SSE endpoint and print each event as it
arrives. Use --events to subscribe to a comma-separated list of glob patterns.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEvents(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.server, "server", defaultServerURL, "bridge base URL")
	cmd.Flags().StringVar(&cfg.filter, "events", "", "event filter globs, comma separated (empty = all)")
	cmd.Flags().IntVar(&cfg.limit, "limit", 0, "exit after this many events (0 = no limit)")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "print one JSON object per event")

	return cmd
}

// runEvents prints events until the stream ends, ctx is cancelled, or
// limit events have been printed.
func runEvents(ctx context.Context, out io.Writer, cfg *eventsConfig) error {
	target, err := url.Parse(strings.TrimRight(cfg.server, "/") + "/api/v1/events")
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if cfg.filter != "" {
		target.RawQuery = url.Values{"events": {cfg.filter}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	reader := sse.NewReader(resp.Body)
	printed := 0
	for cfg.limit <= 0 || printed < cfg.limit {
		frame, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("stream failed: %w", err)
		}
		if err := printEvent(out, frame, cfg.jsonOutput); err != nil {
			return err
		}
		printed++
	}
	return nil
}

func printEvent(out io.Writer, frame sse.Frame, asJSON bool) error {
	if !asJSON {
		_, err := fmt.Fprintf(out, "%s\t%s\n", frame.Event, frame.Data)
		return err
	}

	data := json.RawMessage(frame.Data)
	if !json.Valid(data) {
		quoted, err := json.Marshal(string(frame.Data))
		if err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		data = quoted
	}
	line, err := json.Marshal(eventLine{Event: frame.Event, Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	_, err = fmt.Fprintln(out, string(line))
	return err
}
