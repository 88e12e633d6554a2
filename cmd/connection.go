package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

var connectionCmd = &cobra.Command{
	Use:   "connection",
	Short: "Manage FTP/SFTP connections",
}

var (
	connHost     string
	connPort     int
	connUser     string
	connPassword string
	connProtocol string
	connSecure   bool
)

var connectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List connections",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(daemonURL("/connections"))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var conns []struct {
			ID       uint   `json:"ID"`
			Name     string `json:"name"`
			Host     string `json:"host"`
			Port     int    `json:"port"`
			Protocol string `json:"protocol"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&conns)

		if len(conns) == 0 {
			fmt.Println("no connections configured")
			return nil
		}

		fmt.Printf("%-4s %-20s %-30s %-6s %s\n", "ID", "NAME", "HOST", "PORT", "PROTOCOL")
		for _, c := range conns {
			fmt.Printf("%-4d %-20s %-30s %-6d %s\n", c.ID, c.Name, c.Host, c.Port, c.Protocol)
		}

		return nil
	},
}

var connectionAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{
			"name":     args[0],
			"host":     connHost,
			"port":     connPort,
			"username": connUser,
			"password": connPassword,
			"protocol": connProtocol,
			"secure":   connSecure,
		}
		payload, _ := json.Marshal(body)

		resp, err := http.Post(daemonURL("/connections"), "application/json", strings.NewReader(string(payload)))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		if resp.StatusCode != http.StatusCreated {
			var result map[string]string
			_ = json.NewDecoder(resp.Body).Decode(&result)
			return fmt.Errorf("failed to add connection: %s", result["error"])
		}

		fmt.Printf("connection %s added\n", args[0])
		return nil
	},
}

var connectionRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, _ := http.NewRequest(http.MethodDelete, daemonURL("/connections/"+args[0]), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		fmt.Printf("connection %s removed\n", args[0])
		return nil
	},
}

func init() {
	connectionAddCmd.Flags().StringVar(&connHost, "host", "", "remote host")
	connectionAddCmd.Flags().IntVar(&connPort, "port", 0, "remote port (defaults per protocol)")
	connectionAddCmd.Flags().StringVar(&connUser, "user", "", "username")
	connectionAddCmd.Flags().StringVar(&connPassword, "password", "", "password")
	connectionAddCmd.Flags().StringVar(&connProtocol, "protocol", "ftp", "transfer protocol (ftp|sftp)")
	connectionAddCmd.Flags().BoolVar(&connSecure, "secure", false, "use explicit TLS (ftp only)")
	_ = connectionAddCmd.MarkFlagRequired("host")
	_ = connectionAddCmd.MarkFlagRequired("user")
	_ = connectionAddCmd.MarkFlagRequired("password")

	connectionCmd.AddCommand(connectionListCmd, connectionAddCmd, connectionRemoveCmd)
	rootCmd.AddCommand(connectionCmd)
}
