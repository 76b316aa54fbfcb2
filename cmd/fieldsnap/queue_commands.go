package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fieldsnap/internal/api"
	"fieldsnap/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the upload queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueEditCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses []string
		group    string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseStatuses(statuses)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				items, err := client.ListItems(cmd.Context(), group, filter...)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Group", "Category", "Status", "Retries", "Created", "Detail"},
					buildQueueListRows(items),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().StringVarP(&group, "group", "g", "", "Filter by group")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print items as JSON")
	return cmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue counts and per-group totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if status.Queue.Total == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable([]string{"Status", "Count"}, buildQueueStatusRows(status.Queue), []columnAlignment{alignLeft, alignRight}))

				groups, err := client.Groups(cmd.Context())
				if err != nil {
					return err
				}
				if len(groups) == 0 {
					return nil
				}
				fmt.Fprintln(out)
				fmt.Fprint(out, renderTable(
					[]string{"Group", "Total", "Pending", "Uploaded", "Failed"},
					buildGroupRows(groups),
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [ID...]",
		Short: "Return failed items to pending (all failed items when no IDs are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				count, err := client.Retry(cmd.Context(), args...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case count == 0 && len(args) == 0:
					fmt.Fprintln(out, "No failed items to retry")
				case count == 0:
					fmt.Fprintln(out, "None of the given items are failed")
				default:
					fmt.Fprintf(out, "Retrying %d item(s)\n", count)
				}
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove ID...",
		Short: "Remove items from the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				out := cmd.OutOrStdout()
				var missing []string
				for _, id := range args {
					if err := client.RemoveItem(cmd.Context(), id); err != nil {
						if api.IsNotFound(err) {
							missing = append(missing, id)
							continue
						}
						return err
					}
					fmt.Fprintf(out, "Removed %s\n", id)
				}
				if len(missing) > 0 {
					return fmt.Errorf("not found: %s", strings.Join(missing, ", "))
				}
				return nil
			})
		},
	}
}

func newQueueEditCommand(ctx *commandContext) *cobra.Command {
	var location, caption string

	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Edit an item's location or caption",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var update queue.MetadataUpdate
			if cmd.Flags().Changed("location") {
				update.Location = &location
			}
			if cmd.Flags().Changed("caption") {
				update.Caption = &caption
			}
			if update.Location == nil && update.Caption == nil {
				return errors.New("nothing to change; pass --location and/or --caption")
			}
			return ctx.withClient(func(client *api.Client) error {
				item, err := client.UpdateMetadata(cmd.Context(), args[0], update)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: location=%q caption=%q\n", item.ID, item.Location, item.Caption)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&location, "location", "", "New location")
	cmd.Flags().StringVar(&caption, "caption", "", "New caption")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var (
		completed bool
		group     string
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove uploaded items or a whole group",
		RunE: func(cmd *cobra.Command, args []string) error {
			group = strings.TrimSpace(group)
			if completed == (group != "") {
				return errors.New("specify exactly one of --completed or --group")
			}
			return ctx.withClient(func(client *api.Client) error {
				out := cmd.OutOrStdout()
				if completed {
					count, err := client.ClearCompleted(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d uploaded item(s)\n", count)
					return nil
				}
				count, err := client.ClearGroup(cmd.Context(), group)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Cleared %d item(s) from group %s\n", count, group)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&completed, "completed", false, "Remove every uploaded item")
	cmd.Flags().StringVarP(&group, "group", "g", "", "Remove every item of this group")
	return cmd
}

func parseStatuses(values []string) ([]queue.Status, error) {
	var statuses []queue.Status
	for _, value := range values {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q (want one of %s)", value, joinStatuses(queue.AllStatuses()))
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func joinStatuses(statuses []queue.Status) string {
	parts := make([]string, len(statuses))
	for i, status := range statuses {
		parts[i] = string(status)
	}
	return strings.Join(parts, ", ")
}

func buildQueueListRows(items []api.Item) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		status := item.Status
		if item.Exhausted {
			status += " (exhausted)"
		}
		detail := item.RemoteURL
		if item.Error != "" {
			detail = item.Error
		}
		rows = append(rows, []string{
			item.ID,
			item.GroupID,
			item.Category,
			status,
			strconv.Itoa(item.RetryCount),
			item.CreatedAt,
			detail,
		})
	}
	return rows
}

func buildQueueStatusRows(counts queue.Counts) [][]string {
	entries := []struct {
		label string
		value int
	}{
		{"Pending", counts.Pending},
		{"Uploading", counts.Uploading},
		{"Uploaded", counts.Uploaded},
		{"Failed", counts.Failed},
		{"Exhausted", counts.Exhausted},
	}
	rows := make([][]string, 0, len(entries)+1)
	for _, entry := range entries {
		if entry.value == 0 {
			continue
		}
		rows = append(rows, []string{entry.label, strconv.Itoa(entry.value)})
	}
	rows = append(rows, []string{"Total", strconv.Itoa(counts.Total)})
	return rows
}

func buildGroupRows(groups []queue.GroupSummary) [][]string {
	rows := make([][]string, 0, len(groups))
	for _, group := range groups {
		c := group.Counts
		rows = append(rows, []string{
			group.GroupID,
			strconv.Itoa(c.Total),
			strconv.Itoa(c.Pending + c.Uploading),
			strconv.Itoa(c.Uploaded),
			strconv.Itoa(c.Failed),
		})
	}
	return rows
}
