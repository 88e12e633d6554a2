package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage sync schedules",
}

var (
	schedConnection  uint
	schedFrequency   string
	schedTime        string
	schedDayOfWeek   int
	schedDayOfMonth  int
	schedSrcType     string
	schedSrcPath     string
	schedDstType     string
	schedDstPath     string
	schedPatterns    []string
	schedSubfolders  bool
	schedOverwrite   bool
	schedDeleteAfter bool
)

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(daemonURL("/schedules"))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var schedules []struct {
			ConnectionID uint   `json:"connectionId"`
			Name         string `json:"name"`
			Frequency    string `json:"frequency"`
			Status       string `json:"status"`
			NextRun      string `json:"nextRun"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&schedules)

		if len(schedules) == 0 {
			fmt.Println("no schedules configured")
			return nil
		}

		fmt.Printf("%-6s %-24s %-10s %-8s %s\n", "CONN", "NAME", "FREQ", "STATUS", "NEXT RUN")
		for _, s := range schedules {
			fmt.Printf("%-6d %-24s %-10s %-8s %s\n", s.ConnectionID, s.Name, s.Frequency, s.Status, s.NextRun)
		}

		return nil
	},
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{
			"connectionId": schedConnection,
			"name":         args[0],
			"frequency":    schedFrequency,
			"time":         schedTime,
			"dayOfWeek":    schedDayOfWeek,
			"dayOfMonth":   schedDayOfMonth,
			"source":       map[string]string{"type": schedSrcType, "path": schedSrcPath},
			"destination":  map[string]string{"type": schedDstType, "path": schedDstPath},
			"options": map[string]any{
				"filePatterns":      schedPatterns,
				"includeSubfolders": schedSubfolders,
				"overwriteExisting": schedOverwrite,
				"deleteAfterSync":   schedDeleteAfter,
			},
		}
		payload, _ := json.Marshal(body)

		resp, err := http.Post(daemonURL("/schedules"), "application/json", strings.NewReader(string(payload)))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		if resp.StatusCode != http.StatusCreated {
			var result map[string]string
			_ = json.NewDecoder(resp.Body).Decode(&result)
			return fmt.Errorf("failed to add schedule: %s", result["error"])
		}

		fmt.Printf("schedule %s added\n", args[0])
		return nil
	},
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove [connection-id] [name]",
	Short: "Remove a schedule",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := daemonURL(fmt.Sprintf("/connections/%s/schedules/%s", args[0], args[1]))
		req, _ := http.NewRequest(http.MethodDelete, url, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		if resp.StatusCode != http.StatusNoContent {
			var result map[string]string
			_ = json.NewDecoder(resp.Body).Decode(&result)
			return fmt.Errorf("failed to remove schedule: %s", result["error"])
		}

		fmt.Printf("schedule %s removed\n", args[1])
		return nil
	},
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run [connection-id] [name]",
	Short: "Trigger a schedule now",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := daemonURL(fmt.Sprintf("/connections/%s/schedules/%s/run", args[0], args[1]))
		resp, err := http.Post(url, "application/json", nil)
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var result map[string]string
		_ = json.NewDecoder(resp.Body).Decode(&result)

		if resp.StatusCode == http.StatusConflict {
			return fmt.Errorf("schedule %s is already running", args[1])
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("failed to run schedule: %s", result["error"])
		}

		fmt.Printf("schedule %s finished: %s\n", args[1], result["status"])
		return nil
	},
}

func init() {
	scheduleAddCmd.Flags().UintVar(&schedConnection, "connection", 0, "connection id")
	scheduleAddCmd.Flags().StringVar(&schedFrequency, "frequency", "daily", "manual|hourly|daily|weekly|monthly")
	scheduleAddCmd.Flags().StringVar(&schedTime, "time", "00:00", "time of day (HH:MM)")
	scheduleAddCmd.Flags().IntVar(&schedDayOfWeek, "day-of-week", 0, "0-6, weekly only")
	scheduleAddCmd.Flags().IntVar(&schedDayOfMonth, "day-of-month", 1, "1-31, monthly only")
	scheduleAddCmd.Flags().StringVar(&schedSrcType, "src-type", "ftp", "source type (ftp|local)")
	scheduleAddCmd.Flags().StringVar(&schedSrcPath, "src", "", "source path")
	scheduleAddCmd.Flags().StringVar(&schedDstType, "dst-type", "local", "destination type (ftp|local)")
	scheduleAddCmd.Flags().StringVar(&schedDstPath, "dst", "", "destination path")
	scheduleAddCmd.Flags().StringSliceVar(&schedPatterns, "pattern", nil, "file name patterns, e.g. *.csv")
	scheduleAddCmd.Flags().BoolVar(&schedSubfolders, "subfolders", false, "include subfolders")
	scheduleAddCmd.Flags().BoolVar(&schedOverwrite, "overwrite", false, "overwrite existing files")
	scheduleAddCmd.Flags().BoolVar(&schedDeleteAfter, "delete-after", false, "delete source after sync")
	_ = scheduleAddCmd.MarkFlagRequired("connection")
	_ = scheduleAddCmd.MarkFlagRequired("src")
	_ = scheduleAddCmd.MarkFlagRequired("dst")

	scheduleCmd.AddCommand(scheduleListCmd, scheduleAddCmd, scheduleRemoveCmd, scheduleRunCmd)
	rootCmd.AddCommand(scheduleCmd)
}
