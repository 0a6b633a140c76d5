package cli

import (
	"fmt"

	"github.com/me/ppsched/internal/server"
	"github.com/me/ppsched/pkg/model"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show scheduler stats and slot states",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/status")
			if err != nil {
				return fmt.Errorf("get status: %w", err)
			}
			var st server.StatusResponse
			if err := decodeData(resp, &st); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Hardware: %d slots, version %#x\n", st.Slots, st.HardwareVersion)
			fmt.Fprintf(out, "  Idle:     %d\n", st.Stats.Idle)
			fmt.Fprintf(out, "  Working:  %d\n", st.Stats.Working)
			fmt.Fprintf(out, "  Queued:   %d\n", st.Stats.Queued)
			if st.Stats.PauseCount > 0 {
				fmt.Fprintf(out, "  Suspended (pause count %d)\n", st.Stats.PauseCount)
			}
			fmt.Fprintf(out, "  Last job: %d\n", st.Stats.LastJobID)

			fmt.Fprintln(out, "  Slots:")
			for _, sl := range st.SlotStates {
				if sl.State == model.SlotWorking {
					fmt.Fprintf(out, "    - %d %s: %s job %d sub-job %d\n", sl.Index, sl.Unit, sl.State, sl.JobID, sl.SubJob)
				} else {
					fmt.Fprintf(out, "    - %d %s: %s\n", sl.Index, sl.Unit, sl.State)
				}
			}
			if len(st.QueuedJobs) > 0 {
				fmt.Fprintf(out, "  Queue:    %v\n", st.QueuedJobs)
			}
			return nil
		},
	}
}
