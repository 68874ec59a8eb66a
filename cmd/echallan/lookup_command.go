package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"echallan-service/internal/compliance"
	"echallan-service/internal/reference"
	"echallan-service/internal/service"
)

func newLookupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <plate>",
		Short: "Show the compliance report for a plate from the reference dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			vehicles, err := reference.Load(cfg.Reference.Path, cfg.Reference.Sheet)
			if err != nil {
				return fmt.Errorf("load reference data: %w", err)
			}
			report, found := service.NewInspector(vehicles, nil).Inspect(args[0])
			w := cmd.OutOrStdout()
			if !found {
				fmt.Fprintf(w, "%s is not in the reference dataset\n", args[0])
				return nil
			}
			fmt.Fprint(w, formatReport(report))
			return nil
		},
	}
}

func formatReport(r compliance.Report) string {
	out := fmt.Sprintf("%s  %s  (%s, %s)\n", r.Plate, r.OwnerName, r.VehicleClass, r.MakeModel)

	statuses := r.Statuses()
	order := []compliance.Attribute{
		compliance.AttrRC,
		compliance.AttrInsurance,
		compliance.AttrPUC,
		compliance.AttrFitness,
		compliance.AttrPermit,
		compliance.AttrTax,
	}
	rows := make([][]string, 0, len(order))
	for _, attr := range order {
		rows = append(rows, []string{string(attr), string(statuses[attr])})
	}
	out += renderTable([]string{"Document", "Status"}, rows) + "\n"

	if !r.HasViolations() {
		return out + "No violations.\n"
	}
	return out + fmt.Sprintf("Violations: %s\nTotal fine: %s\n", r.ViolationLabel(), r.TotalFine.StringFixed(2))
}
