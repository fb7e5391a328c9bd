package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/steveyegge/leadsync/internal/tracker"
	"github.com/steveyegge/leadsync/internal/types"
)

var (
	addLeadID     string
	addLeadName   string
	addLeadEmail  string
	addLeadStatus string
	addLeadSource string
)

// addLeadCmd appends a lead row to the sheet.
var addLeadCmd = &cobra.Command{
	Use:   "add-lead",
	Short: "Append a lead to the sheet",
	Long: `Append one lead row to the sheet. The next sync creates its card.

The status is normalized (e.g. "in progress" becomes CONTACTED). When --id
is omitted a random "L-" identifier is generated.`,
	Args: cobra.NoArgs,
	RunE: runAddLead,
}

func init() {
	addLeadCmd.Flags().StringVar(&addLeadID, "id", "", "lead ID (generated if empty)")
	addLeadCmd.Flags().StringVar(&addLeadName, "name", "", "lead name (required)")
	addLeadCmd.Flags().StringVar(&addLeadEmail, "email", "", "contact email")
	addLeadCmd.Flags().StringVar(&addLeadStatus, "status", string(types.StatusNew), "lead status")
	addLeadCmd.Flags().StringVar(&addLeadSource, "source", "", "where the lead came from")
	_ = addLeadCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(addLeadCmd)
}

type addLeadResult struct {
	Row  int           `json:"row"`
	Lead types.NewLead `json:"lead"`
}

func runAddLead(cmd *cobra.Command, _ []string) error {
	lead, err := newLead(addLeadID, addLeadName, addLeadEmail, addLeadStatus, addLeadSource)
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}

	a, err := newApp(envFile, verboseFlag, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close()

	b, err := a.openBackends(cmd.Context(), a.retryPolicy())
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}
	appender, ok := b.records.(tracker.RecordAppender)
	if !ok {
		return &exitError{code: exitFailure, err: fmt.Errorf("record store does not support appending")}
	}
	row, err := appender.AppendRecord(cmd.Context(), lead)
	if err != nil {
		if cerr := cmd.Context().Err(); cerr != nil {
			return cerr
		}
		return &exitError{code: exitFailure, err: fmt.Errorf("appending lead: %w", err)}
	}
	a.logger.Info("appended lead", slog.String("lead_id", lead.ExternalID), slog.Int("row", row))

	if jsonOutput {
		return outputJSON(cmd.OutOrStdout(), addLeadResult{Row: row, Lead: lead})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added lead %s (%s) at row %d\n", lead.ExternalID, lead.DisplayName, row)
	return nil
}

// newLead validates flag input and fills in the generated ID and
// canonical status.
func newLead(id, name, email, status, source string) (types.NewLead, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.NewLead{}, fmt.Errorf("--name is required")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = "L-" + strings.ToUpper(uuid.NewString()[:8])
	}
	return types.NewLead{
		ExternalID:  id,
		DisplayName: name,
		Email:       strings.TrimSpace(email),
		Status:      types.NormalizeStatus(status).Upper(),
		Origin:      strings.TrimSpace(source),
	}, nil
}
