package cli

import (
	"fmt"
	"net/url"
	"time"

	"github.com/me/ppsched/internal/scheduler"
	"github.com/spf13/cobra"
)

func newStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Dump the scheduler queue and slots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := client.GetText("/api/v1/state")
			if err != nil {
				return fmt.Errorf("get state: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newSuspendCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "suspend",
		Short: "Stop dispatch and wait until every slot is idle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/suspend"
			if timeout > 0 {
				path += "?timeout=" + url.QueryEscape(timeout.String())
			}
			resp, err := client.Post(path, nil)
			if err != nil {
				return fmt.Errorf("suspend: %w", err)
			}
			var st scheduler.Stats
			if err := decodeData(resp, &st); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Suspended (pause count %d), %d/%d slots idle, %d job(s) queued\n",
				st.PauseCount, st.Idle, st.Slots, st.Queued)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up if the slots have not drained in time (0 waits forever)")
	return cmd
}

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Undo one suspend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post("/api/v1/resume", nil)
			if err != nil {
				return fmt.Errorf("resume: %w", err)
			}
			var st scheduler.Stats
			if err := decodeData(resp, &st); err != nil {
				return err
			}
			if st.PauseCount > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Still suspended (pause count %d)\n", st.PauseCount)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Resumed")
			}
			return nil
		},
	}
}
