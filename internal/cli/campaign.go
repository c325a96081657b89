package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/givepulse/givepulse/internal/domain"
)

// ─── Campaign CLI ───────────────────────────────────────────────────────────
// Campaigns are defined in TOML and registered against a running daemon.

func init() {
	rootCmd.AddCommand(campaignCmd)
	campaignCmd.AddCommand(campaignListCmd)
	campaignCmd.AddCommand(campaignImportCmd)

	campaignCmd.PersistentFlags().String("addr", "http://127.0.0.1:8090", "Base URL of a running daemon")
	campaignImportCmd.Flags().StringP("file", "f", "", "Path to campaign TOML definition")
}

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Manage fundraising campaigns",
}

// campaignDef is the TOML shape of a campaign definition file.
type campaignDef struct {
	ID         string         `toml:"id"`
	Name       string         `toml:"name"`
	GoalAmount int64          `toml:"goal_amount"`
	Active     bool           `toml:"active"`
	Milestones []milestoneDef `toml:"milestones"`
}

type milestoneDef struct {
	Percentage int        `toml:"percentage"`
	Amount     int64      `toml:"amount"`
	Actions    actionsDef `toml:"actions"`
}

type actionsDef struct {
	NotifyDonor   bool `toml:"notify_donor"`
	PostSocial    bool `toml:"post_social"`
	NotifyTeam    bool `toml:"notify_team"`
	UpdateCounter bool `toml:"update_counter"`
}

// ─── campaign import ────────────────────────────────────────────────────────

var campaignImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Register a campaign from a TOML definition",
	RunE:  runCampaignImport,
}

func runCampaignImport(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		return fmt.Errorf("campaign TOML file required: givepulse campaign import -f <file>")
	}

	var def campaignDef
	if _, err := toml.DecodeFile(path, &def); err != nil {
		return fmt.Errorf("read campaign file: %w", err)
	}

	c := domain.Campaign{
		ID:         def.ID,
		Name:       def.Name,
		GoalAmount: def.GoalAmount,
		Active:     def.Active,
	}
	for _, m := range def.Milestones {
		c.Milestones = append(c.Milestones, domain.Milestone{
			Percentage: m.Percentage,
			Amount:     m.Amount,
			Actions: domain.MilestoneActions{
				NotifyDonor:   m.Actions.NotifyDonor,
				PostSocial:    m.Actions.PostSocial,
				NotifyTeam:    m.Actions.NotifyTeam,
				UpdateCounter: m.Actions.UpdateCounter,
			},
		})
	}

	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode campaign: %w", err)
	}

	base, _ := cmd.Flags().GetString("addr")
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(base+"/api/campaigns", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w", base, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("daemon refused campaign: %s", resp.Status)
	}

	fmt.Fprintf(os.Stdout, "Campaign %q registered (goal %d, %d milestones)\n",
		c.ID, c.GoalAmount, len(c.Milestones))
	return nil
}

// ─── campaign list ──────────────────────────────────────────────────────────

var campaignListCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns with progress",
	RunE:  runCampaignList,
}

func runCampaignList(cmd *cobra.Command, args []string) error {
	base, _ := cmd.Flags().GetString("addr")
	client := &http.Client{Timeout: 5 * time.Second}

	var out struct {
		Campaigns []domain.Campaign `json:"campaigns"`
	}
	if err := getJSON(client, base+"/api/campaigns", &out); err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w", base, err)
	}

	if len(out.Campaigns) == 0 {
		fmt.Fprintln(os.Stdout, "No campaigns registered.")
		fmt.Fprintln(os.Stdout, "Use 'givepulse campaign import -f <file>' to register one.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "Campaigns (%d):\n", len(out.Campaigns))
	for _, c := range out.Campaigns {
		triggered := 0
		for _, m := range c.Milestones {
			if m.Triggered {
				triggered++
			}
		}
		fmt.Fprintf(os.Stdout, "  %-16s %d/%d (%d%%), %d donors, %d/%d milestones\n",
			c.ID, c.RaisedAmount, c.GoalAmount, c.PercentRaised(), c.DonorCount,
			triggered, len(c.Milestones))
	}
	return nil
}
