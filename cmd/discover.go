package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ohss-collector/internal/model"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List the data files on the OHSS listing page",
	Long:  "Fetches the listing page and prints each data file link with its inferred kind and period. Nothing is downloaded or stored.",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := initCollector(nil, nil)
		if err != nil {
			return err
		}

		refs, err := c.Discover(cmd.Context())
		if err != nil {
			return err
		}
		if len(refs) == 0 {
			zap.L().Info("no data files found", zap.String("listing", c.ListingURL()))
			return nil
		}

		formatReferences(os.Stdout, refs)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}

// formatReferences writes a tabular listing of discovered files to out.
func formatReferences(out io.Writer, refs []model.DataFileReference) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KIND\tPERIOD\tTEXT\tURL")
	_, _ = fmt.Fprintln(w, "----\t------\t----\t---")

	for _, r := range refs {
		period := r.InferredPeriod
		if period == "" {
			period = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Kind, period, truncate(r.DisplayText, 50), r.URL)
	}
	_ = w.Flush()
}
