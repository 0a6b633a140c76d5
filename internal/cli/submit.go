package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/me/ppsched/pkg/model"
	"github.com/spf13/cobra"
)

func newSubmitCmd() *cobra.Command {
	var (
		sessionID string
		subJobs   int
		userRef   string
		src0      uint32
		src1      uint32
		wait      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a job",
		Long: "Submit a job with the given number of sub-jobs. Without --session a new " +
			"session is opened; with --wait the command polls for the result and closes " +
			"the session it opened.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			opened := false
			if sessionID == "" {
				resp, err := client.Post("/api/v1/sessions", model.OpenSessionRequest{Label: "cli"})
				if err != nil {
					return fmt.Errorf("open session: %w", err)
				}
				var s struct {
					ID string `json:"id"`
				}
				if err := decodeData(resp, &s); err != nil {
					return err
				}
				sessionID, opened = s.ID, true
				fmt.Fprintf(out, "Session opened: %s\n", sessionID)
			}

			resp, err := client.Post("/api/v1/sessions/"+sessionID+"/jobs", model.SubmitJobRequest{
				SubJobs:         subJobs,
				UserRef:         userRef,
				PerfCounterSrc0: src0,
				PerfCounterSrc1: src1,
			})
			if err != nil {
				return fmt.Errorf("submit job: %w", err)
			}
			var sub model.SubmitJobResponse
			if err := decodeData(resp, &sub); err != nil {
				return err
			}
			fmt.Fprintf(out, "Job submitted: %d\n", sub.JobID)

			if wait <= 0 {
				return nil
			}
			res, err := waitForResult(sessionID, sub.JobID, wait)
			if err != nil {
				return err
			}
			printResult(out, res)

			if opened {
				if _, err := client.Delete("/api/v1/sessions/" + sessionID); err != nil {
					return fmt.Errorf("close session: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Submit into an existing session")
	cmd.Flags().IntVar(&subJobs, "sub-jobs", 1, "Number of sub-jobs (1-8)")
	cmd.Flags().StringVar(&userRef, "user-ref", "", "Opaque reference echoed in the result")
	cmd.Flags().Uint32Var(&src0, "counter-src0", 0, "Performance counter 0 source")
	cmd.Flags().Uint32Var(&src1, "counter-src1", 0, "Performance counter 1 source")
	cmd.Flags().DurationVar(&wait, "wait", 0, "Wait up to this long for the result")
	return cmd
}

// waitForResult polls the session mailbox until the result for jobID shows up.
func waitForResult(sessionID string, jobID model.JobID, timeout time.Duration) (model.Result, error) {
	deadline := time.Now().Add(timeout)
	for {
		resp, err := client.Get("/api/v1/sessions/" + sessionID + "/results")
		if err != nil {
			return model.Result{}, fmt.Errorf("get results: %w", err)
		}
		var results []model.Result
		if err := decodeData(resp, &results); err != nil {
			return model.Result{}, err
		}
		for _, r := range results {
			if r.JobID == jobID {
				return r, nil
			}
			logger.Debug("ignoring result for other job", "job_id", r.JobID)
		}
		if time.Now().After(deadline) {
			return model.Result{}, fmt.Errorf("no result for job %d after %s", jobID, timeout)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func printResult(w io.Writer, r model.Result) {
	fmt.Fprintf(w, "Job %d: %s\n", r.JobID, r.Status)
	if r.UserRef != "" {
		fmt.Fprintf(w, "  Ref:       %s\n", r.UserRef)
	}
	for i, pc := range r.PerfCounters {
		fmt.Fprintf(w, "  Sub-job %d: counter0=%s counter1=%s\n",
			i, humanize.Comma(int64(pc.Counter0)), humanize.Comma(int64(pc.Counter1)))
	}
	if !r.CompletedAt.IsZero() {
		fmt.Fprintf(w, "  Completed: %s (%s)\n", r.CompletedAt.Format(time.RFC3339), humanize.Time(r.CompletedAt))
	}
}
