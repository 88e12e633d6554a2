package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [connection-id]",
	Short: "Show recent sync runs for a connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := daemonURL(fmt.Sprintf("/connections/%s/history?n=%d", args[0], historyLimit))
		resp, err := http.Get(url)
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var histories []struct {
			ScheduleName     string   `json:"scheduleName"`
			Status           string   `json:"status"`
			FilesTransferred int      `json:"filesTransferred"`
			TotalBytes       int64    `json:"totalBytes"`
			StartTime        string   `json:"startTime"`
			Errors           []string `json:"errors"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&histories)

		if len(histories) == 0 {
			fmt.Println("no sync history")
			return nil
		}

		fmt.Printf("%-24s %-8s %-6s %-12s %-20s %s\n", "SCHEDULE", "STATUS", "FILES", "BYTES", "STARTED", "ERRORS")
		for _, h := range histories {
			fmt.Printf("%-24s %-8s %-6d %-12d %-20s %d\n",
				h.ScheduleName, h.Status, h.FilesTransferred, h.TotalBytes, h.StartTime, len(h.Errors))
		}

		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}
