package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fieldsnap/internal/api"
	"fieldsnap/internal/config"
	"fieldsnap/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, queue, and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.newClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			status, statusErr := client.Status(cmd.Context())
			if statusErr != nil && !errors.Is(statusErr, api.ErrUnavailable) {
				return statusErr
			}

			var lines []string
			lines = append(lines, renderSectionHeader("Daemon", colorize)...)
			if statusErr != nil {
				lines = append(lines, renderStatusLine("fieldsnapd", statusError, "Not running ("+client.BaseURL()+")", colorize))
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
				lines = append(lines, dependencyLines(cmd, cfg, colorize)...)
			} else {
				lines = append(lines, daemonLines(status, client.BaseURL(), colorize)...)
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Queue", colorize)...)
				lines = append(lines, queueLines(status, colorize)...)
			}
			if ctx.configPath != "" {
				lines = append(lines, "")
				lines = append(lines, renderStatusLine("Config", statusInfo, ctx.configPath, colorize))
			}
			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
}

func daemonLines(status api.StatusResponse, address string, colorize bool) []string {
	lines := []string{
		renderStatusLine("fieldsnapd", statusOK, fmt.Sprintf("Running (pid %d, %s)", status.PID, address), colorize),
	}
	if status.Online {
		lines = append(lines, renderStatusLine("Connectivity", statusOK, "Online", colorize))
	} else {
		lines = append(lines, renderStatusLine("Connectivity", statusWarn, "Offline; uploads wait for the network", colorize))
	}
	lines = append(lines, renderStatusLine("Queue store", statusInfo, status.StoreBackend, colorize))
	lines = append(lines, renderStatusLine("Object store", statusInfo, status.StorageBackend, colorize))

	stats := status.Uploader
	detail := fmt.Sprintf("%d passes, %d uploaded, %d failed", stats.Passes, stats.TotalUploaded, stats.TotalFailed)
	if !stats.LastDrainAt.IsZero() {
		detail += ", last " + stats.LastDrainAt.Local().Format(time.DateTime)
	}
	kind := statusInfo
	if stats.Draining {
		kind = statusOK
		detail = "Draining; " + detail
	}
	lines = append(lines, renderStatusLine("Uploader", kind, detail, colorize))
	return lines
}

func queueLines(status api.StatusResponse, colorize bool) []string {
	counts := status.Queue
	if counts.Total == 0 {
		return []string{renderStatusLine("Items", statusInfo, "Queue is empty", colorize)}
	}
	lines := []string{
		renderStatusLine("Pending", statusInfo, strconv.Itoa(counts.Pending+counts.Uploading), colorize),
		renderStatusLine("Uploaded", statusOK, strconv.Itoa(counts.Uploaded), colorize),
	}
	if counts.Failed > 0 {
		kind := statusWarn
		detail := strconv.Itoa(counts.Failed)
		if counts.Exhausted > 0 {
			kind = statusError
			detail += fmt.Sprintf(" (%d need `fieldsnap queue retry`)", counts.Exhausted)
		}
		lines = append(lines, renderStatusLine("Failed", kind, detail, colorize))
	}
	lines = append(lines, renderStatusLine("Retry limit", statusInfo, strconv.Itoa(status.RetryLimit), colorize))
	return lines
}

func dependencyLines(cmd *cobra.Command, cfg *config.Config, colorize bool) []string {
	results := []preflight.Result{
		preflight.CheckStorageFromConfig(cmd.Context(), cfg),
		preflight.CheckConnectivityFromConfig(cmd.Context(), cfg),
	}
	lines := make([]string, 0, len(results))
	for _, result := range results {
		kind := statusOK
		if !result.Passed {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
	return lines
}
