package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	parkrow "github.com/parkrow-labs/parkrow-go/sdk/go"
)

var rootCmd = &cobra.Command{
	Use:   "parkctl",
	Short: "Parkrow operator CLI",
	Long: `parkctl drives the Parkrow back office through the gateway API.

Applications move through the lead pipeline (received -> reviewing ->
documents_pending -> screening -> approved -> lease_created), leases carry an
onboarding checklist that gates activation, and every mutation lands in the
audit log. Bulk actions batch approve/reject/export over applications.

Connection settings come from --server/--token/--site or the matching
PARKCTL_SERVER, PARKCTL_TOKEN, and PARKCTL_SITE environment variables.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PARKCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "gateway base URL")
	rootCmd.PersistentFlags().String("token", "", "bearer token")
	rootCmd.PersistentFlags().String("site", "", "site id")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("site", rootCmd.PersistentFlags().Lookup("site"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(applicationsCmd())
	rootCmd.AddCommand(leasesCmd())
	rootCmd.AddCommand(bulkCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(exportCmd())
}

func applicationsCmd() *cobra.Command {
	apps := &cobra.Command{
		Use:   "applications",
		Short: "Inspect rental applications",
	}
	apps.AddCommand(applicationsListCmd())
	apps.AddCommand(applicationsGetCmd())
	return apps
}

func applicationsListCmd() *cobra.Command {
	var opts parkrow.ApplicationListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *parkrow.Client) error {
				items, err := c.ListApplications(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Applicant", "Email", "Status", "Income", "Screening", "Lease"})
				for _, a := range items {
					screening := ""
					if a.Screening != nil {
						screening = fmt.Sprintf("%s (%.1f)", a.Screening.Label, a.Screening.Score)
					}
					tw.AppendRow(table.Row{a.ID, a.ApplicantName, a.Email, a.Status, a.MonthlyIncome.String(), screening, a.LeaseID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&opts.PropertyID, "property", "", "property id filter")
	cmd.Flags().StringVar(&opts.Query, "q", "", "name/email search")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "max rows")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "rows to skip")
	return cmd
}

func applicationsGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get one application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *parkrow.Client) error {
				a, err := c.GetApplication(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(a)
			})
		},
	}
	return cmd
}

func leasesCmd() *cobra.Command {
	leases := &cobra.Command{
		Use:   "leases",
		Short: "Lease lifecycle and onboarding",
	}
	leases.AddCommand(leasesChecklistCmd())
	leases.AddCommand(leasesTransitionCmd())
	return leases
}

func leasesChecklistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checklist <lease-id>",
		Short: "Show the onboarding checklist for a lease",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *parkrow.Client) error {
				cl, err := c.LeaseChecklist(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cl)
				}
				fmt.Printf("Lease %s: %d/%d steps (%d%%), %d required missing\n",
					cl.LeaseID, cl.CompletedSteps, cl.TotalSteps, cl.Progress, cl.MissingRequired)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Step", "Label", "Required", "Done", "Completed At", "Notes"})
				for _, step := range cl.Steps {
					tw.AppendRow(table.Row{step.ID, step.Label, step.Required, step.Completed, step.CompletedAt, step.Notes})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func leasesTransitionCmd() *cobra.Command {
	var in parkrow.TransitionInput
	cmd := &cobra.Command{
		Use:   "transition <lease-id>",
		Short: "Move a lease to a new status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(in.ToStatus) == "" {
				return fmt.Errorf("--to required")
			}
			return withClient(cmd.Context(), func(ctx context.Context, c *parkrow.Client) error {
				result, err := c.TransitionLease(ctx, args[0], in)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(result)
				}
				fmt.Printf("Lease %s is now %s\n", result.Lease.ID, result.Lease.Status)
				if result.Record != nil && result.Record.Bypassed {
					fmt.Printf("Bypass recorded: %s (%s)\n", result.Record.BypassReason, result.Record.BypassCategory)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.ToStatus, "to", "", "target status")
	cmd.Flags().BoolVar(&in.ConfirmationAcknowledged, "ack", false, "acknowledge the confirmation prompt")
	cmd.Flags().StringVar(&in.BypassReason, "bypass-reason", "", "reason when forcing an illegal transition")
	cmd.Flags().StringVar(&in.BypassCategory, "bypass-category", "", "bypass category (data_correction, retro_fix, admin_override, other)")
	return cmd
}

func bulkCmd() *cobra.Command {
	bulk := &cobra.Command{
		Use:   "bulk",
		Short: "Bulk actions over applications",
	}
	bulk.AddCommand(bulkRunCmd())
	bulk.AddCommand(bulkStatusCmd())
	return bulk
}

func bulkRunCmd() *cobra.Command {
	var action string
	var ids []string
	var toStatus string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a bulk action",
		RunE: func(cmd *cobra.Command, args []string) error {
			if action == "" {
				return fmt.Errorf("--action required")
			}
			in := parkrow.BulkRunInput{Action: action, ApplicationIDs: ids}
			if toStatus != "" {
				in.Params = map[string]any{"to_status": toStatus}
			}
			return withClient(cmd.Context(), func(ctx context.Context, c *parkrow.Client) error {
				result, err := c.RunBulk(ctx, in)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(result)
				}
				fmt.Printf("Bulk %s %s: %d ok, %d failed\n",
					result.Action.Type, result.Action.ID, result.SuccessCount, result.FailureCount)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Application", "Status", "Error"})
				for _, item := range result.Results {
					tw.AppendRow(table.Row{item.ID, item.Status, item.Error})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&action, "action", "", "action (approve, reject, set_status, send_email, generate_documents)")
	cmd.Flags().StringSliceVar(&ids, "ids", []string{}, "application ids (comma separated or repeatable)")
	cmd.Flags().StringVar(&toStatus, "to-status", "", "target status for set_status")
	return cmd
}

func bulkStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <bulk-action-id>",
		Short: "Show a bulk action with its per-item audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *parkrow.Client) error {
				detail, err := c.GetBulkAction(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(detail)
				}
				a := detail.Action
				fmt.Printf("Bulk %s %s by %s: %d requested, %d ok, %d failed\n",
					a.Type, a.ID, a.PerformedBy, a.ApplicationCount, a.SuccessCount, a.FailureCount)
				if a.FinalizedAt != "" {
					fmt.Printf("Finalized at %s\n", a.FinalizedAt)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Entry", "Occurred", "Action", "Entity", "Actor"})
				for _, e := range detail.AuditEntries {
					tw.AppendRow(table.Row{e.EntryID, e.OccurredAt, e.Action, e.EntityID, e.Actor})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func auditCmd() *cobra.Command {
	audit := &cobra.Command{
		Use:   "audit",
		Short: "Audit log",
	}
	audit.AddCommand(auditTailCmd())
	return audit
}

func auditTailCmd() *cobra.Command {
	var opts parkrow.EventOptions
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent audit entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *parkrow.Client) error {
				events, err := c.Events(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Entry", "Occurred", "Actor", "Action", "Entity Type", "Entity"})
				for _, e := range events {
					tw.AppendRow(table.Row{e.EntryID, e.OccurredAt, e.Actor, e.Action, e.EntityType, e.EntityID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "n", 20, "number of entries")
	cmd.Flags().StringVar(&opts.Action, "action", "", "action filter")
	cmd.Flags().StringVar(&opts.EntityType, "entity-type", "", "entity type filter")
	cmd.Flags().StringVar(&opts.EntityID, "entity-id", "", "entity id filter")
	cmd.Flags().StringVar(&opts.BulkActionID, "bulk-action", "", "bulk action id filter")
	cmd.Flags().StringVar(&opts.Since, "since", "", "RFC 3339 lower bound")
	return cmd
}

func exportCmd() *cobra.Command {
	export := &cobra.Command{
		Use:   "export",
		Short: "Export data as CSV",
	}
	export.AddCommand(exportApplicationsCmd())
	return export
}

func exportApplicationsCmd() *cobra.Command {
	var ids []string
	var outPath string
	cmd := &cobra.Command{
		Use:   "applications",
		Short: "Export selected applications as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(ids) == 0 {
				return fmt.Errorf("--ids required")
			}
			return withClient(cmd.Context(), func(ctx context.Context, c *parkrow.Client) error {
				body, err := c.ExportApplications(ctx, ids)
				if err != nil {
					return err
				}
				defer body.Close()
				out := io.Writer(os.Stdout)
				if outPath != "" {
					f, err := os.Create(outPath)
					if err != nil {
						return err
					}
					defer f.Close()
					out = f
				}
				if _, err := io.Copy(out, body); err != nil {
					return err
				}
				if outPath != "" {
					fmt.Printf("Wrote %s\n", outPath)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&ids, "ids", []string{}, "application ids (comma separated or repeatable)")
	cmd.Flags().StringVar(&outPath, "out", "", "write to file instead of stdout")
	return cmd
}

// --- helpers ---

func withClient(ctx context.Context, fn func(context.Context, *parkrow.Client) error) error {
	server := strings.TrimSpace(viper.GetString("server"))
	if server == "" {
		return fmt.Errorf("server not specified; use --server or PARKCTL_SERVER")
	}
	site := strings.TrimSpace(viper.GetString("site"))
	if site == "" {
		return fmt.Errorf("site not specified; use --site or PARKCTL_SITE")
	}
	client := parkrow.New(server, site)
	client.BearerToken = strings.TrimSpace(viper.GetString("token"))
	return fn(ctx, client)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
