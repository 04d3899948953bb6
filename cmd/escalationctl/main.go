// Command escalationctl runs escalation operations against the database
// directly, without going through the HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"grievance/config"
	"grievance/notification"
	"grievance/repository"
	"grievance/service"
	"grievance/utils"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "escalationctl",
		Short:        "Operate the grievance escalation engine",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(escalateCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(ladderCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed).Sprint("error: ")+err.Error())
		os.Exit(1)
	}
}

type app struct {
	escalations *service.EscalationService
	close       func()
}

// openApp wires the escalation service the same way the server does.
func openApp(ctx context.Context) (*app, error) {
	cfg := config.LoadConfig()
	logger, err := utils.NewLogger(cfg.Log.Level, cfg.Log.Env)
	if err != nil {
		return nil, err
	}
	dsn, err := cfg.Database.DSN()
	if err != nil {
		return nil, err
	}
	db, err := repository.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}

	store := repository.NewStore(db)
	sender := notification.NewEmailSender(notification.Config{
		APIKey:        cfg.Notification.SendGridAPIKey,
		FromEmail:     cfg.Notification.FromEmail,
		FromName:      cfg.Notification.FromName,
		ShadowAddress: cfg.Notification.ShadowRecipient(),
		Endpoint:      cfg.Notification.SendGridURL,
	}, logger)
	dispatcher := service.NewNotificationDispatcher(sender, store.NotificationLogs, logger, nil)
	svc := service.NewEscalationService(store, dispatcher, logger, service.WithMultiHop(cfg.Escalation.MultiHop))

	return &app{
		escalations: svc,
		close: func() {
			svc.Wait()
			db.Close()
			_ = logger.Sync()
		},
	}, nil
}

func withApp(fn func(ctx context.Context, a *app) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(ctx, a)
	}
}

func parseComplaintID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid complaint id %q", s)
	}
	return id, nil
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one escalation scan pass",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app) error {
			report, err := a.escalations.ProcessEscalations(ctx)
			if err != nil {
				return fmt.Errorf("escalation pass failed: %w", err)
			}

			fmt.Printf("Pass %s: %d due, %s escalated, %d skipped, %s failed (%s)\n",
				report.PassID,
				report.Due,
				color.New(color.FgGreen).Sprint(report.Escalated),
				report.Skipped,
				color.New(color.FgRed).Sprint(report.Failed),
				report.Duration.Round(time.Millisecond))
			if len(report.Results) == 0 {
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "COMPLAINT\tFROM\tTO\tOUTCOME\tDETAIL")
			for _, r := range report.Results {
				outcome, detail := color.New(color.FgYellow).Sprint("skipped"), r.Reason
				switch {
				case r.Error != "":
					outcome, detail = color.New(color.FgRed).Sprint("failed"), r.Error
				case r.Escalated:
					outcome = color.New(color.FgGreen).Sprint("escalated")
				}
				fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\n", r.ComplaintID, r.FromLevel, r.ToLevel, outcome, detail)
			}
			return w.Flush()
		}),
	}
}

func escalateCmd() *cobra.Command {
	var level int
	var reason string
	cmd := &cobra.Command{
		Use:   "escalate [complaint-id]",
		Short: "Manually escalate a complaint to a ladder level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseComplaintID(args[0])
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app) error {
				c, err := a.escalations.ManuallyEscalate(ctx, id, level, reason)
				if err != nil {
					return err
				}
				fmt.Printf("Complaint %d escalated to level %s (assigned to %s)\n",
					c.ComplaintID, color.New(color.FgGreen).Sprint(c.EscalationLevel), c.AssignedTo.String)
				return nil
			})(cmd, args)
		},
	}
	cmd.Flags().IntVar(&level, "level", 0, "target escalation level (required)")
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the escalation history")
	_ = cmd.MarkFlagRequired("level")
	return cmd
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [complaint-id]",
		Short: "Show a complaint's escalation history, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseComplaintID(args[0])
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app) error {
				history, err := a.escalations.GetHistory(ctx, id)
				if err != nil {
					return err
				}
				if len(history) == 0 {
					fmt.Println("No escalations recorded.")
					return nil
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "LEVEL\tFROM\tTO\tAT\tREASON")
				for _, h := range history {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
						h.EscalationLevel, h.EscalatedFrom, h.EscalatedTo,
						h.EscalatedAt.UTC().Format(time.RFC3339), h.Reason)
				}
				return w.Flush()
			})(cmd, args)
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show escalation statistics",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app) error {
			stats, err := a.escalations.GetEscalationStats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Complaints: %d\n", stats.TotalComplaints)
			fmt.Printf("Escalated:  %d (%s)\n", stats.TotalEscalated, color.New(color.FgYellow).Sprint(stats.EscalationRate))
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PRIORITY\tTOTAL\tESCALATED")
			for p, total := range stats.PriorityCounts {
				fmt.Fprintf(w, "%s\t%d\t%d\n", p, total, stats.EscalatedPriorityCounts[p])
			}
			return w.Flush()
		}),
	}
}

func ladderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ladder",
		Short: "Inspect or seed the escalation ladder",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the active ladder rungs",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app) error {
			configs, err := a.escalations.ListConfigs(ctx)
			if err != nil {
				return err
			}
			if len(configs) == 0 {
				fmt.Println("No active escalation levels; complaints will not escalate.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "LEVEL\tROLE\tTIME LIMIT\tRECIPIENTS")
			for _, c := range configs {
				limit := "priority default"
				if c.TimeLimitHours != nil {
					limit = fmt.Sprintf("%dh", *c.TimeLimitHours)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", c.Level, c.AssigneeRole, limit, c.Recipients)
			}
			return w.Flush()
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "seed [file]",
		Short: "Create or replace ladder rungs from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configs, err := config.LoadLadderFile(args[0])
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app) error {
				if err := a.escalations.SeedLadder(ctx, configs); err != nil {
					return err
				}
				fmt.Printf("Seeded %s escalation levels from %s\n",
					color.New(color.FgGreen).Sprint(len(configs)), args[0])
				return nil
			})(cmd, args)
		},
	})
	return cmd
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token [user-id]",
		Short: "Issue a user JWT signed with JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || userID <= 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			secret := config.LoadConfig().Auth.JWTSecret
			if secret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			token, err := utils.GenerateJWT(userID, []byte(secret), ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
