package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/a-marczewski/petmem/internal/api"
	"github.com/a-marczewski/petmem/internal/config"
	"github.com/a-marczewski/petmem/internal/snapshot"
)

// client talks to a running petmem server
type client struct {
	baseURL string
	http    *http.Client
}

func newClient() (*client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	return &client{
		baseURL: "http://" + cfg.ListenAddr(),
		http:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (c *client) getJSON(path string, out interface{}) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("cannot reach petmem server at %s (is it running?): %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func (c *client) postJSON(path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	resp, err := c.http.Post(c.baseURL+path, "application/json", reader)
	if err != nil {
		return fmt.Errorf("cannot reach petmem server at %s (is it running?): %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func formatFields(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+fields[k])
	}
	return strings.Join(parts, " ")
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		var stats api.StatsResponse
		if err := c.getJSON("/api/stats", &stats); err != nil {
			return err
		}

		fmt.Printf("Recent events:    %d\n", stats.RecentItems)
		fmt.Printf("Important events: %d\n", stats.ImportantItems)
		fmt.Printf("Archive days:     %d\n", stats.ArchiveDays)
		fmt.Printf("Total ingested:   %d\n", stats.TotalEvents)
		fmt.Printf("Memory ratio:     %.2f\n", stats.MemoryRatio)
		fmt.Printf("Context tokens:   %d\n", stats.ContextTokens)
		fmt.Printf("Dropped events:   %d\n", stats.BridgeDropped)
		fmt.Printf("Server uptime:    %s\n", time.Duration(stats.UptimeSeconds)*time.Second)
		return nil
	},
}

var contextMaxLines int

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Print the context block the companion would receive",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		path := "/api/context"
		if contextMaxLines > 0 {
			path += fmt.Sprintf("?max_lines=%d", contextMaxLines)
		}

		var response api.ContextResponse
		if err := c.getJSON(path, &response); err != nil {
			return err
		}

		if response.Summary == "" {
			fmt.Println("(no memories yet)")
			return nil
		}

		fmt.Println(response.Summary)
		fmt.Printf("\n%d lines, ~%d tokens\n", response.Lines, response.Tokens)
		return nil
	},
}

var (
	recentCount  int
	recentKind   string
	recentWindow string
)

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show events from the recent tier",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		params := url.Values{}
		if recentCount > 0 {
			params.Set("count", strconv.Itoa(recentCount))
		}
		if recentKind != "" {
			params.Set("kind", recentKind)
		}
		if recentWindow != "" {
			params.Set("window", recentWindow)
		}

		path := "/api/recent"
		if len(params) > 0 {
			path += "?" + params.Encode()
		}

		var response api.EventsResponse
		if err := c.getJSON(path, &response); err != nil {
			return err
		}

		if len(response.Events) == 0 {
			fmt.Println("No recent events.")
			return nil
		}

		for _, ev := range response.Events {
			fmt.Printf("[%s] %-12s %s\n", ev.Timestamp.Format("15:04:05"), ev.Kind, formatFields(ev.Fields))
		}
		return nil
	},
}

var importantCount int

var importantCmd = &cobra.Command{
	Use:   "important",
	Short: "Show remembered events, highest importance first",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		path := "/api/important"
		if importantCount > 0 {
			path += fmt.Sprintf("?count=%d", importantCount)
		}

		var response api.EventsResponse
		if err := c.getJSON(path, &response); err != nil {
			return err
		}

		if len(response.Events) == 0 {
			fmt.Println("Nothing has been remembered as important yet.")
			return nil
		}

		for _, ev := range response.Events {
			importance := 0.0
			if ev.Importance != nil {
				importance = *ev.Importance
			}
			fmt.Printf("%.2f  %-12s %s\n", importance, ev.Kind, formatFields(ev.Fields))
		}
		return nil
	},
}

var (
	addKind string
	addData []string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Ingest a single event",
	Example: `  petmem add --kind chat --data text="remember my birthday" --data who=user
  petmem add --kind location --data x=12 --data y=3 --data z=0`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fields := make(map[string]string, len(addData))
		for _, pair := range addData {
			key, value, ok := strings.Cut(pair, "=")
			if !ok {
				return fmt.Errorf("invalid --data %q, expected key=value", pair)
			}
			fields[key] = value
		}

		c, err := newClient()
		if err != nil {
			return err
		}

		var response api.EventResponse
		if err := c.postJSON("/api/events", api.EventRequest{Kind: addKind, Fields: fields}, &response); err != nil {
			return err
		}

		if response.Promoted {
			fmt.Printf("✅ Event %s stored and remembered as important\n", response.ID)
		} else {
			fmt.Printf("✅ Event %s stored\n", response.ID)
		}
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Erase all memories",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		var response api.ClearResponse
		if err := c.postJSON("/api/clear", nil, &response); err != nil {
			return err
		}

		fmt.Println("✅ All memories cleared")
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a decay sweep now",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		var stats struct {
			ImportantItems int `json:"important_items"`
			ArchiveDays    int `json:"archive_days"`
		}
		if err := c.postJSON("/api/sweep", nil, &stats); err != nil {
			return err
		}

		fmt.Printf("✅ Sweep complete: %d important events kept, %d archive days\n",
			stats.ImportantItems, stats.ArchiveDays)
		return nil
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage memory snapshots",
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Ask the running server to save a snapshot now",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		var response api.SnapshotResponse
		if err := c.postJSON("/api/snapshot", nil, &response); err != nil {
			return err
		}

		fmt.Printf("✅ Snapshot saved to %s\n", response.Path)
		return nil
	},
}

var snapshotFile string

var snapshotInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Inspect a snapshot file without a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := snapshotFile
		if path == "" {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			path = cfg.SnapshotPath
		}
		if path == "" {
			path = config.DefaultSnapshotFile()
		}

		db, err := snapshot.Open(path, nil)
		if err != nil {
			return err
		}
		defer db.Close()

		snap, err := db.Load()
		if err != nil {
			return err
		}

		fmt.Printf("Snapshot: %s\n", path)
		fmt.Printf("  Recent events:    %d\n", len(snap.Recent))
		fmt.Printf("  Important events: %d\n", len(snap.Important))
		fmt.Printf("  Archive days:     %d\n", len(snap.Archive))
		fmt.Printf("  Event counter:    %d\n", snap.Counter)
		for _, bucket := range snap.Archive {
			fmt.Printf("  [%s] %d events\n", bucket.Date, bucket.EventCount)
		}
		return nil
	},
}

func init() {
	contextCmd.Flags().IntVar(&contextMaxLines, "max-lines", 0, "Cap the context block at this many lines")
	recentCmd.Flags().IntVarP(&recentCount, "count", "n", 0, "Limit the number of events shown")
	recentCmd.Flags().StringVar(&recentKind, "kind", "", "Only show events of this kind")
	recentCmd.Flags().StringVar(&recentWindow, "window", "", "Only show events newer than this, e.g. 30m or 2h")
	importantCmd.Flags().IntVarP(&importantCount, "count", "n", 0, "Limit the number of events shown")
	addCmd.Flags().StringVarP(&addKind, "kind", "k", "chat", "Event kind: chat, vision, app_activity, location, inventory, skill, preference")
	addCmd.Flags().StringArrayVarP(&addData, "data", "d", nil, "Event field as key=value, repeatable")
	snapshotCmd.AddCommand(snapshotSaveCmd)
	snapshotCmd.AddCommand(snapshotInfoCmd)
}
