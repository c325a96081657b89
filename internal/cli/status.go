package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/givepulse/givepulse/internal/app"
)

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().String("addr", "http://127.0.0.1:8090", "Base URL of a running daemon")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show health and donation stats of a running daemon",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	base, _ := cmd.Flags().GetString("addr")
	client := &http.Client{Timeout: 5 * time.Second}

	var health struct {
		Status string `json:"status"`
	}
	if err := getJSON(client, base+"/health", &health); err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w", base, err)
	}

	var stats app.DonationStats
	if err := getJSON(client, base+"/api/stats", &stats); err != nil {
		return fmt.Errorf("fetch stats: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Status:               %s\n", health.Status)
	fmt.Fprintf(os.Stdout, "Total raised:         %d\n", stats.TotalRaised)
	fmt.Fprintf(os.Stdout, "Donations:            %d (%d recurring)\n", stats.DonationCount, stats.RecurringCount)
	fmt.Fprintf(os.Stdout, "Estimated fees:       %s\n", stats.EstimatedFees)
	fmt.Fprintf(os.Stdout, "Milestones triggered: %d\n", stats.MilestonesTriggered)
	return nil
}

// getJSON fetches url and decodes the JSON body into v. Health endpoints
// answer 503 with a valid body, so 5xx is not an error here.
func getJSON(client *http.Client, url string, v any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusServiceUnavailable {
		return fmt.Errorf("%s returned %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
