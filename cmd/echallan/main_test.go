package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"echallan-service/internal/compliance"
	"echallan-service/internal/domain/anpr"
	"echallan-service/internal/service"
)

func TestRootCommandListsSubcommands(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--help"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"serve", "scan", "lookup"} {
		if !strings.Contains(out.String(), sub) {
			t.Fatalf("help output missing %q:\n%s", sub, out.String())
		}
	}
}

func TestLookupCommand(t *testing.T) {
	dir := t.TempDir()
	data := "Registration_Number,Owner_Name,Owner_Email,Vehicle_Class,Fitness_Expiry,Insurance_Expiry,PUC_Expiry,Permit_Expiry,Road_Tax_Expiry\n" +
		"KA05EF9012,Asha Rao,asha@example.com,Private Car,2099-01-01,2001-01-01,2099-01-01,2099-01-01,2099-01-01\n"
	dataset := filepath.Join(dir, "vahan.csv")
	if err := os.WriteFile(dataset, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ECHALLAN_REFERENCE_PATH", dataset)

	for _, tt := range []struct {
		plate string
		want  []string
	}{
		{"ka-05-ef-9012", []string{"Asha Rao", "Expired Insurance", "2000.00"}},
		{"XX00ZZ0000", []string{"not in the reference dataset"}},
	} {
		cmd := newRootCommand()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"lookup", tt.plate})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("lookup %s: %v", tt.plate, err)
		}
		for _, want := range tt.want {
			if !strings.Contains(out.String(), want) {
				t.Fatalf("lookup %s output missing %q:\n%s", tt.plate, want, out.String())
			}
		}
	}
}

func TestFormatReportClean(t *testing.T) {
	got := formatReport(compliance.Report{
		Plate:     "MH2CD5678",
		OwnerName: "Vikram Shah",
		RCStatus:  compliance.StatusValid,
		TotalFine: decimal.Zero,
	})
	if !strings.Contains(got, "No violations.") || !strings.Contains(got, "Valid") {
		t.Fatalf("report:\n%s", got)
	}
}

func TestPrintScanOutcome(t *testing.T) {
	cmd := newScanCommand(&commandContext{})
	var out bytes.Buffer
	cmd.SetOut(&out)

	printScanOutcome(cmd, &service.ScanOutcome{Frames: 12})
	if !strings.Contains(out.String(), "Plate not detected clearly") {
		t.Fatalf("empty outcome:\n%s", out.String())
	}

	out.Reset()
	detections := []anpr.PlateResult{
		{Plate: "DL1AB1234", Confidence: 0.8, Status: anpr.ResultIssued, Reason: "Expired Insurance"},
		{Plate: "MH2CD5678", Confidence: 0.6, Status: anpr.ResultClean},
	}
	printScanOutcome(cmd, &service.ScanOutcome{Frames: 20, Detections: detections, Primary: &detections[0]})
	for _, want := range []string{"DL1AB1234", "80.0%", "Challan Issued", "MH2CD5678", "Primary plate: DL1AB1234"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	got := renderTable([]string{"A", "B"}, [][]string{{"only"}})
	if !strings.Contains(got, "only") {
		t.Fatalf("table:\n%s", got)
	}
	if renderTable(nil, nil) != "" {
		t.Fatal("empty headers should render nothing")
	}
}
