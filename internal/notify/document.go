package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"echallan-service/internal/compliance"
	"echallan-service/internal/domain/challan"
	"echallan-service/internal/evidence"
)

// Renderer produces the challan document attached to notifications.
type Renderer interface {
	Render(ctx context.Context, c challan.Challan) ([]byte, error)
}

// PDFRenderer lays out a one-page challan notice with an optional evidence
// image fetched from the evidence store.
type PDFRenderer struct {
	evidence        evidence.Store
	defaultLocation string
}

func NewPDFRenderer(store evidence.Store, defaultLocation string) *PDFRenderer {
	return &PDFRenderer{evidence: store, defaultLocation: defaultLocation}
}

const (
	marginLeft = 18.0
	lineHeight = 5.0
)

func (r *PDFRenderer) Render(ctx context.Context, c challan.Challan) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(marginLeft, 15, marginLeft)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pageW, pageH := pdf.GetPageSize()
	right := pageW - marginLeft
	contentW := right - marginLeft

	// Header
	pdf.SetTextColor(26, 26, 51)
	pdf.SetFont("Helvetica", "B", 24)
	pdf.Text(marginLeft, 24, "ECR")
	pdf.SetFillColor(245, 130, 31)
	pdf.Circle(marginLeft+23, 22, 1.4, "F")
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 6)
	pdf.Text(marginLeft, 28, "ENFORCEMENT NETWORK")

	pdf.SetXY(marginLeft, 17)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 5, "E-CHALLAN NOTICE", "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 4, "MINISTRY OF ROAD TRANSPORT & HIGHWAYS", "", 1, "R", false, 0, "")
	pdf.CellFormat(contentW, 4, "Date: "+c.IssuedAt.Format("02/01/2006 15:04"), "", 1, "R", false, 0, "")

	y := 34.0
	pdf.SetLineWidth(0.2)
	pdf.Line(marginLeft, y, right, y)
	y += 8

	// Vehicle and owner grid
	location := c.Location
	if location == "" {
		location = r.defaultLocation
	}
	owner := c.OwnerName
	if owner == "" {
		owner = "Unknown"
	}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.Text(marginLeft, y, "VEHICLE DETAILS")
	y += 6
	gridRow := func(y float64, l1, v1, l2, v2 string, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", "", 9)
		pdf.Text(marginLeft, y, l1)
		pdf.Text(marginLeft+88, y, l2)
		pdf.SetFont("Helvetica", style, 9)
		pdf.Text(marginLeft+28, y, v1)
		pdf.Text(marginLeft+110, y, v2)
	}
	gridRow(y, "Registration No:", c.Plate, "Challan ID:", c.ID, true)
	y += lineHeight + 1
	gridRow(y, "Owner Name:", owner, "Location:", location, false)
	y += 8
	pdf.Line(marginLeft, y, right, y)
	y += 8

	// Violation breakdown
	pdf.SetFont("Helvetica", "B", 9)
	pdf.Text(marginLeft, y, "VIOLATION BREAKDOWN")
	y += 4
	pdf.SetFillColor(242, 242, 242)
	pdf.Rect(marginLeft, y, contentW, 6, "F")
	pdf.SetFont("Helvetica", "B", 8)
	pdf.Text(marginLeft+3, y+4, "DESCRIPTION")
	pdf.Text(right-30, y+4, "AMOUNT (INR)")
	y += 11

	items := violationItems(c)
	total := decimal.Zero
	pdf.SetFont("Helvetica", "", 9)
	for _, v := range items {
		charge := compliance.PenaltyFor(v)
		total = total.Add(charge)
		pdf.Text(marginLeft+3, y, v)
		pdf.SetXY(right-50, y-3.5)
		pdf.CellFormat(30, 4, charge.StringFixed(2), "", 0, "R", false, 0, "")
		y += lineHeight
	}
	y += 2
	pdf.Line(marginLeft+88, y, right-18, y)
	y += 6

	finalTotal := total
	if c.FineAmount.GreaterThan(decimal.Zero) {
		finalTotal = c.FineAmount
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.Text(marginLeft+88, y, "TOTAL PAYABLE AMOUNT")
	pdf.SetXY(right-60, y-3.5)
	pdf.CellFormat(40, 4, "Rs. "+finalTotal.StringFixed(2), "", 0, "R", false, 0, "")
	y += 14

	// Evidence
	if c.ProofImage != "" && r.evidence != nil {
		if data, err := r.loadEvidence(ctx, evidence.Ref(c.ProofImage)); err == nil {
			pdf.SetFont("Helvetica", "B", 9)
			pdf.Text(marginLeft, y, "EVIDENCE / CAPTURE")
			y += 3
			opts := fpdf.ImageOptions{ImageType: "JPG", ReadDpi: false}
			pdf.RegisterImageOptionsReader("evidence", opts, bytes.NewReader(data))
			if !pdf.Ok() {
				// Unreadable evidence is skipped.
				pdf.ClearError()
			} else {
				const imgW, imgH = 106.0, 63.5
				pdf.ImageOptions("evidence", marginLeft, y, imgW, imgH, false, opts, 0, "")
				pdf.Rect(marginLeft, y, imgW, imgH, "D")
			}
		}
	}

	// Footer
	pdf.SetFont("Helvetica", "", 7)
	pdf.SetTextColor(110, 110, 110)
	pdf.SetXY(marginLeft, pageH-22)
	pdf.CellFormat(contentW, 4, "This is a computer-generated document. No signature is required.", "", 1, "C", false, 0, "")
	pdf.CellFormat(contentW, 4, "PROCESSED BY ECR ENFORCEMENT SYSTEM", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render challan pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) loadEvidence(ctx context.Context, ref evidence.Ref) ([]byte, error) {
	rc, err := r.evidence.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func violationItems(c challan.Challan) []string {
	items := c.Violations
	if len(items) == 0 {
		for _, v := range strings.Split(c.Violation, ",") {
			if v = strings.TrimSpace(v); v != "" {
				items = append(items, v)
			}
		}
	}
	if len(items) == 0 {
		items = []string{"Traffic Violation"}
	}
	return items
}

// DocumentName is the attachment filename used for a challan.
func DocumentName(id string) string {
	return fmt.Sprintf("Challan_%s.pdf", id)
}
