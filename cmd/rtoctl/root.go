package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

const (
	envServer = "RTOVAL_SERVER"
	envToken  = "RTOVAL_TOKEN"
)

var (
	serverURL string
	token     string
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "rtoctl",
	Short:         "Administer an RTO validation server",
	Long:          `Manage prompts, requirements and validation sessions through the server's HTTP API.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr(envServer, "http://localhost:8080/api"), "API base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv(envToken), "Bearer token")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Request timeout")
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func newClient() *client {
	return &client{
		base:  serverURL,
		token: token,
		http:  newHTTPClient(timeout),
	}
}
