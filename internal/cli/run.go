package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Ballpark/internal/domain"
	"github.com/shaiso/Ballpark/internal/warehouse"
)

// NewRunCmd создаёт группу команд для управления runs.
func NewRunCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage pipeline runs",
	}

	cmd.AddCommand(
		newRunListCmd(opts),
		newRunShowCmd(opts),
		newRunTasksCmd(opts),
		newRunBackfillCmd(opts),
	)

	return cmd
}

func newRunListCmd(opts *Options) *cobra.Command {
	var kind string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.Close()
			out := opts.output()

			runs, err := deps.Runs.List(cmd.Context(), warehouse.RunFilter{
				Kind:   domain.PipelineKind(kind),
				Status: domain.RunStatus(status),
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "KIND", "TRIGGER", "STATUS", "DATES", "CREATED"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{
					r.ID.String(), string(r.Kind), string(r.Trigger), string(r.Status),
					fmtRunDates(r.Params), r.CreatedAt.Format(time.RFC3339),
				}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Filter by pipeline kind (daily, live, quality, backfill)")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, DEGRADED, FAILED)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")

	return cmd
}

func newRunShowCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}

			deps, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.Close()
			out := opts.output()

			run, err := deps.Runs.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "KIND", "TRIGGER", "STATUS", "DATES", "DURATION", "ERROR"},
				[][]string{{
					run.ID.String(), string(run.Kind), string(run.Trigger), string(run.Status),
					fmtRunDates(run.Params), run.Duration().String(), run.Error,
				}},
				run,
			)
			return nil
		},
	}
}

func newRunTasksCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks RUN_ID",
		Short: "List tasks in a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}

			deps, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.Close()
			out := opts.output()

			tasks, err := deps.Runs.ListTasks(cmd.Context(), id)
			if err != nil {
				return err
			}

			headers := []string{"NODE", "KIND", "STATUS", "ATTEMPT", "DURATION", "ERROR"}
			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = []string{
					t.NodeID, string(t.Kind), string(t.Status),
					strconv.Itoa(t.Attempt), t.Duration().String(), t.Error,
				}
			}

			out.Print(headers, rows, tasks)
			return nil
		},
	}
}

func newRunBackfillCmd(opts *Options) *cobra.Command {
	var fromStr, toStr string
	var season int
	var entityNames []string

	cmd := &cobra.Command{
		Use:   "backfill --from DATE --to DATE",
		Short: "Start a manual backfill run over a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := time.Parse(domain.DateLayout, fromStr)
			if err != nil {
				return fmt.Errorf("invalid --from date %q: %w", fromStr, err)
			}
			to, err := time.Parse(domain.DateLayout, toStr)
			if err != nil {
				return fmt.Errorf("invalid --to date %q: %w", toStr, err)
			}
			if to.Before(from) {
				return fmt.Errorf("--to %s is before --from %s", toStr, fromStr)
			}
			if season == 0 {
				season = from.Year()
			}

			entities, err := parseBackfillEntities(entityNames)
			if err != nil {
				return err
			}

			deps, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.Close()
			out := opts.output()

			run := domain.NewRun(domain.PipelineBackfill, domain.TriggerManual, domain.RunParams{
				Season:   season,
				FromDate: &from,
				ToDate:   &to,
				Entities: entities,
			})
			if err := deps.Runs.Create(cmd.Context(), run); err != nil {
				return fmt.Errorf("create run: %w", err)
			}

			publisher, closeMQ, err := ConnectPublisher(opts.mqURL(), opts.Logger)
			if err != nil {
				// Run уже создан — orchestrator заберёт его polling'ом.
				out.Error(fmt.Sprintf("mq unavailable, run will be picked up by polling: %v", err))
			} else {
				defer closeMQ()
				if publisher != nil {
					if err := publisher.PublishRunPending(cmd.Context(), run.ID); err != nil {
						out.Error(fmt.Sprintf("publish failed, run will be picked up by polling: %v", err))
					}
				}
			}

			out.Success(fmt.Sprintf("Backfill run created: %s", run.ID))
			out.Print(
				[]string{"ID", "KIND", "STATUS", "DATES"},
				[][]string{{run.ID.String(), string(run.Kind), string(run.Status), fmtRunDates(run.Params)}},
				run,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&fromStr, "from", "", "Range start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&toStr, "to", "", "Range end date (YYYY-MM-DD), inclusive")
	cmd.Flags().IntVar(&season, "season", 0, "Season (defaults to the year of --from)")
	cmd.Flags().StringSliceVar(&entityNames, "entities", []string{"games", "standings"},
		"Entity types to backfill (games, standings)")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")

	return cmd
}

// parseBackfillEntities проверяет имена сущностей из флага --entities.
// Backfill перезагружает только датированные сущности.
func parseBackfillEntities(names []string) ([]domain.EntityType, error) {
	entities := make([]domain.EntityType, 0, len(names))
	for _, name := range names {
		e := domain.EntityType(name)
		if e != domain.EntityGames && e != domain.EntityStandings {
			return nil, fmt.Errorf("unsupported backfill entity %q (supported: games, standings)", name)
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// fmtRunDates форматирует даты run для табличного вывода.
func fmtRunDates(p domain.RunParams) string {
	if p.FromDate != nil && p.ToDate != nil {
		return p.FromDate.Format(domain.DateLayout) + ".." + p.ToDate.Format(domain.DateLayout)
	}
	if p.TargetDate != nil {
		return p.TargetDate.Format(domain.DateLayout)
	}
	return ""
}
