package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/yourusername/clipq-go/internal/domain"
)

var (
	serverURL    string
	serverConfig string
	noAutoStart  bool
	rootCmd      = &cobra.Command{
		Use:   "clipq",
		Short: "clipq CLI - queue, fetch and trim remote media",
		Long:  `A command-line interface for the clipq download queue server.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8090", "Server URL")
	rootCmd.PersistentFlags().StringVar(&serverConfig, "server-config", "", "Config file for an auto-started server")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(skipCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(logsCmd)
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

// call sends a request and decodes a JSON response into out. Any status
// outside 2xx exits with the server's error message.
func call(method, path string, payload interface{}, out interface{}) {
	var body io.Reader
	if payload != nil {
		data, _ := json.Marshal(payload)
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, serverURL+path, body)
	if err != nil {
		fail(err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fail(err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			fail(fmt.Errorf("%s", apiErr.Error))
		}
		fail(fmt.Errorf("%s", strings.TrimSpace(string(data))))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			fail(fmt.Errorf("unexpected response: %w", err))
		}
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

var addCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Add an entry to the queue",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		req := domain.EntryRequest{URL: args[0]}
		req.Format, _ = cmd.Flags().GetString("format")
		req.DestFolder, _ = cmd.Flags().GetString("dest")
		req.StartTime, _ = cmd.Flags().GetString("start")
		req.EndTime, _ = cmd.Flags().GetString("end")

		var entry domain.Entry
		call(http.MethodPost, "/api/v1/entries", req, &entry)

		fmt.Printf("Entry added successfully!\n")
		fmt.Printf("ID: %s\n", entry.ID)
		fmt.Printf("Status: %s\n", entry.Status)
		if entry.Trim != nil {
			fmt.Printf("Trim: %s - %s\n", entry.Trim.Start, entry.Trim.End)
		}
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all entries",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		status, _ := cmd.Flags().GetString("status")

		path := "/api/v1/entries"
		if status != "" {
			path += "?status=" + url.QueryEscape(status)
		}

		var entries []domain.Entry
		call(http.MethodGet, path, nil, &entries)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPROGRESS\tSIZE\tADDED")
		for _, e := range entries {
			title := e.Title
			if title == "" {
				title = e.URL
			}
			status := string(e.Status)
			if e.Skipped && !e.IsTerminal() {
				status += " (skip)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%s\t%s\n",
				truncate(e.ID, 8),
				truncate(title, 40),
				status,
				e.Progress,
				e.SizeText,
				humanize.Time(e.CreatedAt))
		}
		w.Flush()
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get entry details",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var e domain.Entry
		call(http.MethodGet, "/api/v1/entries/"+args[0], nil, &e)

		fmt.Printf("Entry Details:\n")
		fmt.Printf("  ID:       %s\n", e.ID)
		fmt.Printf("  URL:      %s\n", e.URL)
		fmt.Printf("  Title:    %s\n", e.Title)
		fmt.Printf("  Format:   %s\n", e.FormatTag)
		fmt.Printf("  Status:   %s\n", e.Status)
		fmt.Printf("  Progress: %d%%\n", e.Progress)
		fmt.Printf("  Folder:   %s\n", e.DestFolder)
		fmt.Printf("  Created:  %s\n", humanize.Time(e.CreatedAt))
		if e.SizeText != "" {
			fmt.Printf("  Size:     %s\n", e.SizeText)
		}
		if e.Trim != nil {
			fmt.Printf("  Trim:     %s - %s (applied: %v)\n", e.Trim.Start, e.Trim.End, e.Trimmed)
		}
		if e.Filename != "" {
			fmt.Printf("  File:     %s\n", e.Filename)
		}
		if e.StatusText != "" {
			fmt.Printf("  Message:  %s\n", e.StatusText)
		}
		if e.ErrorMessage != "" {
			fmt.Printf("  Error:    %s (%s)\n", e.ErrorMessage, e.ErrorKind)
		}
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue statistics",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var stats domain.QueueStats
		call(http.MethodGet, "/api/v1/entries/stats", nil, &stats)

		fmt.Println("Queue Statistics:")
		fmt.Printf("  Total:        %d\n", stats.Total)
		fmt.Printf("  Initializing: %d\n", stats.Initializing)
		fmt.Printf("  Queued:       %d\n", stats.Queued)
		fmt.Printf("  Running:      %d\n", stats.Running)
		fmt.Printf("  Completed:    %d\n", stats.Completed)
		fmt.Printf("  Failed:       %d\n", stats.Failed)
		fmt.Printf("  Cancelled:    %d\n", stats.Cancelled)
		fmt.Printf("  Skipped:      %d\n", stats.Skipped)
		fmt.Printf("  Removed:      %d\n", stats.Removed)
		if stats.ActiveID != "" {
			fmt.Printf("  Active:       %s\n", stats.ActiveID)
		}
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start processing the queue",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var result struct {
			ActiveID string `json:"active_id"`
		}
		call(http.MethodPost, "/api/v1/queue/start", nil, &result)
		fmt.Printf("Queue started (active: %s)\n", result.ActiveID)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the running download",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		call(http.MethodPost, "/api/v1/queue/cancel", nil, nil)
		fmt.Println("Cancel requested")
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a pending entry, or cancel it if it is running",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		call(http.MethodDelete, "/api/v1/entries/"+args[0], nil, nil)
		fmt.Println("Entry removed")
	},
}

var skipCmd = &cobra.Command{
	Use:   "skip [id]",
	Short: "Skip a pending entry when the queue reaches it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		call(http.MethodPost, "/api/v1/entries/"+args[0]+"/skip", nil, nil)
		fmt.Println("Entry will be skipped")
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [id]",
	Short: "Stream live queue events",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/api/v1/events"
		if len(args) == 1 {
			wsURL += "?entry=" + url.QueryEscape(args[0])
		}

		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			fail(err)
		}
		defer conn.Close()

		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)
		go func() {
			<-interrupt
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		}()

		for {
			var ev domain.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			if line := formatEvent(ev); line != "" {
				fmt.Println(line)
			}
		}
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs [category]",
	Short: "View server logs (queue, error, download)",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		category := "queue"
		if len(args) == 1 {
			category = args[0]
		}
		limit, _ := cmd.Flags().GetInt("limit")
		query, _ := cmd.Flags().GetString("search")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		params := url.Values{}
		params.Set("limit", fmt.Sprint(limit))
		path := "/api/v1/logs/" + category
		if query != "" {
			path += "/search"
			params.Set("q", query)
		}

		var result struct {
			Entries []struct {
				Timestamp string                 `json:"timestamp"`
				Level     string                 `json:"level"`
				Message   string                 `json:"message"`
				Fields    map[string]interface{} `json:"fields"`
			} `json:"entries"`
		}
		call(http.MethodGet, path+"?"+params.Encode(), nil, &result)

		if jsonOutput {
			pretty, _ := json.MarshalIndent(result.Entries, "", "  ")
			fmt.Println(string(pretty))
			return
		}
		for _, e := range result.Entries {
			if e.Timestamp == "" {
				fmt.Println(e.Message)
				continue
			}
			fmt.Printf("%s %-5s %s\n", e.Timestamp, strings.ToUpper(e.Level), e.Message)
		}
	},
}

func init() {
	addCmd.Flags().StringP("format", "f", "", "Format selector (default from server config)")
	addCmd.Flags().StringP("dest", "d", "", "Destination folder (default from server config)")
	addCmd.Flags().StringP("start", "s", "", "Trim start (SS, MM:SS or HH:MM:SS)")
	addCmd.Flags().StringP("end", "e", "", "Trim end (SS, MM:SS or HH:MM:SS)")
	listCmd.Flags().StringP("status", "s", "", "Filter by status")
	logsCmd.Flags().IntP("limit", "n", 50, "Number of entries")
	logsCmd.Flags().StringP("search", "q", "", "Only entries containing this text")
	logsCmd.Flags().BoolP("json", "j", false, "Output in JSON format")
}

// formatEvent renders one event as a line, or "" for events not worth printing
func formatEvent(ev domain.Event) string {
	id := truncate(ev.EntryID, 8)
	switch ev.Kind {
	case domain.EventProgress:
		return fmt.Sprintf("%s  %3d%%", id, ev.Percent)
	case domain.EventStatus:
		return fmt.Sprintf("%s  %s", id, ev.Text)
	case domain.EventSizeKnown:
		return fmt.Sprintf("%s  size %s", id, ev.Text)
	case domain.EventMetadata:
		if ev.Media != nil && ev.Media.Title != "" {
			return fmt.Sprintf("%s  %s", id, ev.Media.Title)
		}
	case domain.EventPhase:
		return fmt.Sprintf("%s  %s", id, ev.Phase)
	case domain.EventFinished:
		if ev.Result == nil {
			return ""
		}
		line := fmt.Sprintf("%s  finished: %s", id, ev.Result.Outcome)
		if ev.Result.Filename != "" {
			line += " " + ev.Result.Filename
		}
		if ev.Result.Error != "" {
			line += " (" + ev.Result.Error + ")"
		}
		return line
	case domain.EventEntry:
		if ev.Entry != nil {
			return fmt.Sprintf("%s  [%s] %s", id, ev.Entry.Status, displayName(ev.Entry))
		}
	}
	return ""
}

func displayName(e *domain.Entry) string {
	if e.Title != "" {
		return e.Title
	}
	return e.URL
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
