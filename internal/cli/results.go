package cli

import (
	"fmt"
	"net/url"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/me/ppsched/pkg/model"
	"github.com/spf13/cobra"
)

func newResultsCmd() *cobra.Command {
	var (
		session string
		status  string
		limit   int
		offset  int
	)

	cmd := &cobra.Command{
		Use:   "results",
		Short: "List stored job results of the running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if session != "" {
				q.Set("session", session)
			}
			if status != "" {
				q.Set("status", status)
			}
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))

			resp, err := client.Get("/api/v1/results?" + q.Encode())
			if err != nil {
				return fmt.Errorf("list results: %w", err)
			}
			var results []model.Result
			if err := decodeData(resp, &results); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No results.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "JOB\tSTATUS\tSUB-JOBS\tCOUNTER0 TOTAL\tSESSION\tCOMPLETED")
			for _, r := range results {
				var total uint64
				for _, pc := range r.PerfCounters {
					total += uint64(pc.Counter0)
				}
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n",
					r.JobID, r.Status, len(r.PerfCounters), humanize.Comma(int64(total)),
					r.Session, humanize.Time(r.CompletedAt))
			}
			tw.Flush()

			if pg := resp.Pagination; pg != nil {
				fmt.Fprintf(out, "\nShowing %d of %s result(s)\n", len(results), humanize.Comma(int64(pg.Total)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&session, "session", "", "Only results of this session")
	cmd.Flags().StringVar(&status, "status", "", "Only results with this status (SUCCESS, FAILURE)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum results to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Results to skip")
	return cmd
}
