package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Ballpark/internal/domain"
	"github.com/shaiso/Ballpark/internal/warehouse"
)

// NewAnomalyCmd создаёт группу команд для просмотра аномалий.
func NewAnomalyCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "anomaly",
		Short: "Inspect data quality anomalies",
	}

	cmd.AddCommand(newAnomalyListCmd(opts))

	return cmd
}

func newAnomalyListCmd(opts *Options) *cobra.Command {
	var severity string
	var entity string
	var unresolved bool
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List detected anomalies",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.Close()
			out := opts.output()

			anomalies, err := deps.Anomalies.List(cmd.Context(), warehouse.AnomalyFilter{
				Severity:   domain.Severity(severity),
				Entity:     domain.EntityType(entity),
				Unresolved: unresolved,
				Limit:      limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"RULE", "SEVERITY", "ENTITY", "KEY", "RESOLVED", "DETECTED", "MESSAGE"}
			rows := make([][]string, len(anomalies))
			for i, a := range anomalies {
				resolved := ""
				if a.Resolved {
					resolved = "yes"
				}
				rows[i] = []string{
					a.RuleID, string(a.Severity), string(a.Entity), a.EntityKey,
					resolved, a.DetectedAt.Format(time.RFC3339), a.Message,
				}
			}

			out.Print(headers, rows, anomalies)
			return nil
		},
	}

	cmd.Flags().StringVar(&severity, "severity", "", "Filter by severity (warning, error, critical)")
	cmd.Flags().StringVar(&entity, "entity", "", "Filter by entity (games, standings, player_stats, ...)")
	cmd.Flags().BoolVar(&unresolved, "unresolved", false, "Only unresolved anomalies")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of results")

	return cmd
}
