package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fieldsnap/internal/api"
)

func newProgressCommand(ctx *commandContext) *cobra.Command {
	var (
		showItems bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "progress GROUP",
		Short: "Show upload progress for a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			group := args[0]
			return ctx.withClient(func(client *api.Client) error {
				progress, err := client.Progress(cmd.Context(), group)
				if err != nil {
					return err
				}
				var uploaded api.UploadedResponse
				if showItems {
					uploaded, err = client.Uploaded(cmd.Context(), group)
					if err != nil {
						return err
					}
				}
				if asJSON {
					if showItems {
						return writeJSON(cmd, struct {
							api.ProgressResponse
							Items any `json:"items"`
						}{progress, uploaded.Items})
					}
					return writeJSON(cmd, progress)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, formatProgress(progress))
				if showItems && len(uploaded.Items) > 0 {
					rows := make([][]string, 0, len(uploaded.Items))
					for _, item := range uploaded.Items {
						rows = append(rows, []string{item.ID, item.Category, item.Location, item.URL})
					}
					fmt.Fprint(out, renderTable([]string{"ID", "Category", "Location", "URL"}, rows, nil))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showItems, "items", false, "List uploaded items with their URLs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print progress as JSON")
	return cmd
}

func newWaitCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "wait GROUP",
		Short: "Block until a group has nothing pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			group := args[0]
			if timeout <= 0 {
				return fmt.Errorf("--timeout must be positive")
			}
			return ctx.withClient(func(client *api.Client) error {
				deadline := time.Now().Add(timeout)
				for {
					remaining := time.Until(deadline)
					if remaining > api.MaxWaitTimeout {
						remaining = api.MaxWaitTimeout
					}
					if remaining <= 0 {
						remaining = time.Millisecond
					}
					resp, err := client.Wait(cmd.Context(), group, remaining)
					if err != nil {
						return err
					}
					if resp.Done {
						fmt.Fprintln(cmd.OutOrStdout(), formatProgress(resp.Progress))
						return nil
					}
					if resp.Progress.Pending == 0 {
						return fmt.Errorf("finished with failures: %s", formatProgress(resp.Progress))
					}
					if !time.Now().Before(deadline) {
						return fmt.Errorf("timed out after %s: %s", timeout, formatProgress(resp.Progress))
					}
				}
			})
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", api.DefaultWaitTimeout, "Maximum time to wait")
	return cmd
}

func newDrainCommand(ctx *commandContext) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Ask the daemon to run an upload pass now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Drain(cmd.Context(), wait)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if resp.Result == nil {
					fmt.Fprintln(out, "Drain requested")
					return nil
				}
				result := resp.Result
				if result.Skipped != "" {
					fmt.Fprintf(out, "Drain skipped: %s\n", result.Skipped)
					return nil
				}
				fmt.Fprintf(out, "Drain finished: %d uploaded, %d failed (%d exhausted) in %s\n",
					result.Uploaded, result.Failed, result.Exhausted, result.Duration.Round(time.Millisecond))
				if result.Rescheduled {
					fmt.Fprintln(out, "More work remains; another pass is scheduled")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Run the pass synchronously and print its result")
	return cmd
}

func formatProgress(p api.ProgressResponse) string {
	line := fmt.Sprintf("%s: %d/%d uploaded (%d%%), %d pending, %d failed",
		p.GroupID, p.Uploaded, p.Total, p.Percent, p.Pending, p.Failed)
	if p.AllUploaded {
		line += ", all uploaded"
	}
	return line
}
