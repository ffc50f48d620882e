package main

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinia/indexsync/httpx"
)

func newTriggerCmd() *cobra.Command {
	var (
		server  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Ask a running server to run a migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := httpx.NewClient(server, httpx.WithTimeout(timeout))

			res, err := client.MakeHTTPRequest(cmd.Context(), &httpx.Request{
				Method: http.MethodPost,
				Path:   "/migrations",
			})
			if err != nil {
				return err
			}

			if _, err := cmd.OutOrStdout().Write(res.Body); err != nil {
				return err
			}
			return res.Err()
		},
	}

	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "Base URL of the indexsync admin API")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "How long to wait for the migration")
	return cmd
}
