package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"echallan-service/internal/domain/anpr"
	"echallan-service/internal/domain/challan"
	"echallan-service/internal/media"
	"echallan-service/internal/service"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".gif": true, ".tif": true, ".tiff": true,
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var (
		dryRun       bool
		officialID   string
		officialName string
	)

	cmd := &cobra.Command{
		Use:   "scan <file>",
		Short: "Scan an image or video file and issue a challan for the primary plate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, log, appOptions{memory: dryRun})
			if err != nil {
				return err
			}
			defer a.Close()

			opts := service.ScanOptions{
				Official: challan.Official{ID: cfg.Scan.OfficialID, Name: cfg.Scan.OfficialName},
				Location: cfg.Scan.Location,
			}
			if officialID != "" {
				opts.Official.ID = officialID
			}
			if officialName != "" {
				opts.Official.Name = officialName
			}

			path := args[0]
			var out *service.ScanOutcome
			if imageExtensions[strings.ToLower(filepath.Ext(path))] {
				img, err := imaging.Open(path, imaging.AutoOrientation(true))
				if err != nil {
					return fmt.Errorf("open image: %w", err)
				}
				out, err = a.scanner.ScanImage(cmd.Context(), img, opts)
				if err != nil {
					return err
				}
			} else {
				src, err := media.OpenFFmpeg(cmd.Context(), path, media.WithBinary(cfg.Scan.FFmpegPath))
				if err != nil {
					return err
				}
				defer src.Close()
				out, err = a.scanner.Scan(cmd.Context(), src, opts)
				if err != nil {
					return err
				}
			}

			printScanOutcome(cmd, out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Keep issued challans in memory instead of the database")
	cmd.Flags().StringVar(&officialID, "official-id", "", "Issuing official ID (defaults to scan.official_id)")
	cmd.Flags().StringVar(&officialName, "official-name", "", "Issuing official name (defaults to scan.official_name)")
	return cmd
}

func printScanOutcome(cmd *cobra.Command, out *service.ScanOutcome) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Frames read: %d\n", out.Frames)
	if len(out.Detections) == 0 {
		fmt.Fprintln(w, "Plate not detected clearly")
		return
	}

	rows := make([][]string, 0, len(out.Detections))
	for _, d := range out.Detections {
		rows = append(rows, []string{
			d.Plate,
			strconv.FormatFloat(anpr.ConfidencePercent(d.Confidence), 'f', 1, 64) + "%",
			string(d.Status),
			d.Reason,
		})
	}
	fmt.Fprintln(w, renderTable([]string{"Plate", "Confidence", "Status", "Reason"}, rows, 2))

	if out.Primary != nil {
		fmt.Fprintf(w, "Primary plate: %s\n", out.Primary.Plate)
	}
	if out.Proof != "" {
		fmt.Fprintf(w, "Proof image: %s\n", out.Proof)
	}
	if out.Challan != nil {
		fmt.Fprintf(w, "Challan %s issued: %s (fine %s)\n", out.Challan.ID, out.Challan.Violation, out.Challan.FineAmount.StringFixed(2))
	}
}
