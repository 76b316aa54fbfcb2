package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"fieldsnap/internal/api"
	"fieldsnap/internal/queue"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var (
		group    string
		category string
		location string
		caption  string
		lat      float64
		lon      float64
		accuracy float64
	)

	cmd := &cobra.Command{
		Use:   "enqueue FILE",
		Short: "Queue a captured file for upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := buildEnqueueSpec(args[0], group, category)
			if err != nil {
				return err
			}
			spec.Metadata = queue.Metadata{Location: location, Caption: caption}

			flags := cmd.Flags()
			latSet, lonSet := flags.Changed("lat"), flags.Changed("lon")
			if latSet != lonSet {
				return errors.New("--lat and --lon must be given together")
			}
			if latSet {
				spec.GPS = &queue.GPS{Latitude: lat, Longitude: lon}
				if flags.Changed("accuracy") {
					spec.GPS.Accuracy = &accuracy
				}
			}

			return ctx.withClient(func(client *api.Client) error {
				id, err := client.Enqueue(cmd.Context(), spec)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s as %s (group %s)\n", filepath.Base(spec.LocalRef), id, spec.GroupID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&group, "group", "g", "", "Group (job) the file belongs to")
	cmd.Flags().StringVar(&category, "category", "", "Category label used in the object path")
	cmd.Flags().StringVar(&location, "location", "", "Free-text location")
	cmd.Flags().StringVar(&caption, "caption", "", "Free-text caption")
	cmd.Flags().Float64Var(&lat, "lat", 0, "GPS latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "GPS longitude")
	cmd.Flags().Float64Var(&accuracy, "accuracy", 0, "GPS accuracy in metres")
	_ = cmd.MarkFlagRequired("group")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

// buildEnqueueSpec resolves path to an absolute local reference and records
// its size and detected media type.
func buildEnqueueSpec(path, group, category string) (queue.EnqueueSpec, error) {
	abs, err := filepath.Abs(strings.TrimSpace(path))
	if err != nil {
		return queue.EnqueueSpec{}, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return queue.EnqueueSpec{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return queue.EnqueueSpec{}, fmt.Errorf("%s is a directory", path)
	}
	mtype, err := mimetype.DetectFile(abs)
	if err != nil {
		return queue.EnqueueSpec{}, fmt.Errorf("detect type of %s: %w", path, err)
	}
	return queue.EnqueueSpec{
		GroupID:  strings.TrimSpace(group),
		LocalRef: abs,
		Category: strings.TrimSpace(category),
		FileSize: info.Size(),
		FileType: mediaType(mtype.String()),
	}, nil
}

func mediaType(value string) string {
	if idx := strings.IndexByte(value, ';'); idx >= 0 {
		value = value[:idx]
	}
	return strings.TrimSpace(value)
}
