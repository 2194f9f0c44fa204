package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/satyamrathirar/popularity-vision/internal/monitoring"
)

var (
	statusJSON    bool
	statusAlertOn bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report ingestion health and recent run outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		alerter := monitoring.NewAlerter(cfg.Monitoring)
		checker := monitoring.NewChecker(monitoring.NewCollector(st), alerter, cfg.Monitoring)
		snap, alerts, err := checker.Check(ctx)
		if err != nil {
			return eris.Wrap(err, "collect status")
		}
		if len(alerts) > 0 {
			alerter.SendAlerts(ctx, alerts)
		}

		if statusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(map[string]any{
				"snapshot": snap,
				"alerts":   alerts,
			}); err != nil {
				return err
			}
		} else {
			printStatus(snap, alerts)
		}

		// Cron health checks use the exit code.
		if statusAlertOn && len(alerts) > 0 {
			return eris.Errorf("%d alert(s) active", len(alerts))
		}
		return nil
	},
}

func printStatus(snap *monitoring.MetricsSnapshot, alerts []monitoring.Alert) {
	if !snap.StoreReachable {
		fmt.Println("store:       UNREACHABLE")
		return
	}
	fmt.Println("store:       ok")
	if snap.LastRunID == "" {
		fmt.Println("last run:    never")
	} else {
		fmt.Printf("last run:    %s (%s, %.1fh ago, %d upserted)\n",
			snap.LastRunID, snap.LastRunStatus, snap.HoursSinceRun, snap.LastRunUpserted)
	}
	fmt.Printf("runs %dh:    %d total, %d success, %d partial, %d failed (%.0f%% failure)\n",
		snap.LookbackHours, snap.RunsTotal, snap.RunsSuccess, snap.RunsPartial,
		snap.RunsFailed, snap.FailureRate*100)
	fmt.Printf("workflows:   %d total, %d updated in last %dh\n",
		snap.TotalWorkflows, snap.RecentWorkflows, snap.LookbackHours)
	for _, a := range alerts {
		fmt.Printf("ALERT [%s]: %s\n", a.Severity, a.Message)
	}
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "emit machine-readable output")
	statusCmd.Flags().BoolVar(&statusAlertOn, "alert-on-error", false, "exit nonzero when any alert is active")
	rootCmd.AddCommand(statusCmd)
}
