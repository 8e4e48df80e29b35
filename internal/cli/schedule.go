package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Ballpark/internal/domain"
	"github.com/shaiso/Ballpark/internal/scheduler"
)

// NewScheduleCmd создаёт группу команд для управления расписаниями.
func NewScheduleCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage pipeline schedules",
	}

	cmd.AddCommand(
		newScheduleListCmd(opts),
		newScheduleCreateCmd(opts),
		newScheduleSetEnabledCmd(opts, "enable", true),
		newScheduleSetEnabledCmd(opts, "disable", false),
	)

	return cmd
}

func newScheduleListCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.Close()
			out := opts.output()

			schedules, err := deps.Schedules.List(cmd.Context())
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "KIND", "CADENCE", "ENABLED", "NEXT_DUE"}
			rows := make([][]string, len(schedules))
			for i, s := range schedules {
				cadence := s.CronExpr
				if cadence == "" {
					cadence = fmt.Sprintf("every %ds", s.IntervalSec)
				}
				nextDue := ""
				if s.NextDueAt != nil {
					nextDue = s.NextDueAt.Format(time.RFC3339)
				}
				rows[i] = []string{
					s.ID.String(), s.Name, string(s.Kind), cadence,
					strconv.FormatBool(s.Enabled), nextDue,
				}
			}

			out.Print(headers, rows, schedules)
			return nil
		},
	}
}

func newScheduleCreateCmd(opts *Options) *cobra.Command {
	var name, kind, cronExpr, timezone string
	var intervalSec int

	cmd := &cobra.Command{
		Use:   "create --kind KIND (--cron EXPR | --interval SECONDS)",
		Short: "Create a schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipelineKind := domain.PipelineKind(kind)
			switch pipelineKind {
			case domain.PipelineDaily, domain.PipelineLive, domain.PipelineQuality:
			default:
				return fmt.Errorf("unsupported schedule kind %q (backfill runs are started manually)", kind)
			}

			if (cronExpr == "") == (intervalSec == 0) {
				return fmt.Errorf("exactly one of --cron or --interval is required")
			}
			if cronExpr != "" {
				if err := scheduler.ValidateCronExpr(cronExpr); err != nil {
					return err
				}
			}

			now := time.Now()
			sched := &domain.Schedule{
				ID:          uuid.New(),
				Kind:        pipelineKind,
				Name:        name,
				CronExpr:    cronExpr,
				IntervalSec: intervalSec,
				Timezone:    timezone,
				Enabled:     true,
				CreatedAt:   now,
				UpdatedAt:   now,
			}

			nextDue, err := scheduler.CalculateInitialNextDue(sched)
			if err != nil {
				return err
			}
			sched.NextDueAt = &nextDue

			deps, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.Close()
			out := opts.output()

			if err := deps.Schedules.Create(cmd.Context(), sched); err != nil {
				return fmt.Errorf("create schedule: %w", err)
			}

			out.Success(fmt.Sprintf("Schedule created: %s", sched.ID))
			out.Print(
				[]string{"ID", "NAME", "KIND", "NEXT_DUE"},
				[][]string{{sched.ID.String(), sched.Name, string(sched.Kind), nextDue.Format(time.RFC3339)}},
				sched,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Schedule name")
	cmd.Flags().StringVar(&kind, "kind", "", "Pipeline kind (daily, live, quality)")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression, e.g. \"0 6 * * *\"")
	cmd.Flags().IntVar(&intervalSec, "interval", 0, "Interval in seconds")
	cmd.Flags().StringVar(&timezone, "timezone", "UTC", "Timezone for cron evaluation")
	cmd.MarkFlagRequired("kind")

	return cmd
}

func newScheduleSetEnabledCmd(opts *Options, verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " ID",
		Short: capitalizeVerb(verb) + " a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid schedule id %q: %w", args[0], err)
			}

			deps, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.Close()
			out := opts.output()

			sched, err := deps.Schedules.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}

			sched.Enabled = enabled
			sched.UpdatedAt = time.Now()
			if err := deps.Schedules.Update(cmd.Context(), sched); err != nil {
				return fmt.Errorf("update schedule: %w", err)
			}

			out.Success(fmt.Sprintf("Schedule %s %sd", sched.ID, verb))
			return nil
		},
	}
}

func capitalizeVerb(verb string) string {
	if verb == "" {
		return verb
	}
	return string(verb[0]-'a'+'A') + verb[1:]
}
