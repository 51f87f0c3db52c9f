package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/saishdhuri8/NFC4-CodeShot/internal/client"
	"github.com/saishdhuri8/NFC4-CodeShot/internal/config"
	"github.com/saishdhuri8/NFC4-CodeShot/internal/protocol"
	"github.com/saishdhuri8/NFC4-CodeShot/internal/ui"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show signaling server health",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.ClientOptions{})
		if err != nil {
			return err
		}

		status, err := fetchHealth(cmd.Context(), cfg.HealthURL)
		if err != nil {
			return err
		}
		fmt.Println(ui.HealthView(status))
		return nil
	},
}

func fetchHealth(ctx context.Context, url string) (protocol.HealthStatus, error) {
	var status protocol.HealthStatus

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return status, client.NewError("health", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return status, client.NewError("health", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return status, client.WrapError("health", client.ErrRequestFailed, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return status, client.NewError("health", err)
	}
	return status, nil
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
