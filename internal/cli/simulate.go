package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	var (
		timeout time.Duration
		dump    bool
	)

	cmd := &cobra.Command{
		Use:   "simulate <workload.yaml>",
		Short: "Run a workload against simulated hardware in-process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := LoadWorkload(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			sum, err := RunWorkload(ctx, w, logger)
			if err != nil {
				return fmt.Errorf("simulate: %w", err)
			}
			printSummary(cmd.OutOrStdout(), sum)
			if dump {
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprint(cmd.OutOrStdout(), sum.State)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Abort the run if it has not drained in time")
	cmd.Flags().BoolVar(&dump, "dump", false, "Print the final scheduler state")
	return cmd
}

func printSummary(out io.Writer, sum *Summary) {
	fmt.Fprintf(out, "Simulated %d unit(s), hardware version %#x\n\n", sum.Units, sum.HardwareVersion)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STREAM\tSUBMITTED\tSUCCESS\tFAILURE\tDROPPED\tSUB-JOBS\tCOUNTER0 TOTAL")
	totalSubJobs := 0
	for _, s := range sum.Streams {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			s.Name, s.Submitted, s.Succeeded, s.Failed, s.Dropped,
			humanize.Comma(int64(s.SubJobs)), humanize.Comma(int64(s.Counter0)))
		totalSubJobs += s.SubJobs
	}
	tw.Flush()

	rate := 0.0
	if secs := sum.Elapsed.Seconds(); secs > 0 {
		rate = float64(totalSubJobs) / secs
	}
	fmt.Fprintf(out, "\nElapsed %s, %s\n", sum.Elapsed.Round(time.Millisecond), humanize.SIWithDigits(rate, 2, "sub-jobs/s"))
}
