package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ohss-collector/internal/model"
	"github.com/sells-group/ohss-collector/internal/monitoring"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show collection health history",
	Long:  "Displays recent runs from the health log and any alert conditions they trigger.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		records, err := st.ListHealth(ctx, statusLimit)
		if err != nil {
			return eris.Wrap(err, "status")
		}
		if len(records) == 0 {
			zap.L().Info("no runs recorded, run 'collect' to start collecting")
			return nil
		}
		formatHealth(os.Stdout, records)

		snap, err := monitoring.NewCollector(st, cfg.Collector.SourceName, nil).Collect(ctx, cfg.Monitoring.LookbackRuns)
		if err != nil {
			return err
		}
		formatAlerts(os.Stdout, monitoring.NewAlerter(cfg.Monitoring).Evaluate(snap))
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "number of runs to show")
	rootCmd.AddCommand(statusCmd)
}

// formatHealth writes a tabular representation of health records to out.
func formatHealth(out io.Writer, records []model.HealthRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RUN\tSOURCE\tSTATUS\tATTEMPTED\tLAST SUCCESS\tRECORDS\tERROR")
	_, _ = fmt.Fprintln(w, "---\t------\t------\t---------\t------------\t-------\t-----")

	for _, r := range records {
		success := "-"
		if r.LastSuccessfulFetch != nil {
			success = r.LastSuccessfulFetch.Format("2006-01-02 15:04")
		}
		errMsg := ""
		if r.ErrorMessage != nil {
			errMsg = truncate(*r.ErrorMessage, 60)
		}
		runID := r.RunID
		if len(runID) > 8 {
			runID = runID[:8]
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			runID,
			r.SourceName,
			r.Status,
			r.LastAttempt.Format("2006-01-02 15:04"),
			success,
			r.RecordsFetched,
			errMsg,
		)
	}
	_ = w.Flush()
}

func formatAlerts(out io.Writer, alerts []monitoring.Alert) {
	if len(alerts) == 0 {
		_, _ = fmt.Fprintln(out, "\nno alerts")
		return
	}
	_, _ = fmt.Fprintln(out, "\nALERTS")
	for _, a := range alerts {
		_, _ = fmt.Fprintf(out, "  [%s] %s: %s\n", a.Severity, a.Type, a.Message)
	}
}
