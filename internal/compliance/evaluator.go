package compliance

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"echallan-service/internal/domain/vehicle"
)

// ExpiryLayout is the date format used by the reference dataset.
const ExpiryLayout = "2006-01-02"

type Status string

const (
	StatusValid         Status = "Valid"
	StatusExpired       Status = "Expired"
	StatusUnknown       Status = "Unknown"
	StatusNotApplicable Status = "N/A"
)

type Attribute string

const (
	AttrRC        Attribute = "RC"
	AttrInsurance Attribute = "Insurance"
	AttrPUC       Attribute = "PUC"
	AttrFitness   Attribute = "Fitness"
	AttrPermit    Attribute = "Permit"
	AttrTax       Attribute = "Tax"
)

// Penalties are the fixed fines charged per lapsed attribute.
var Penalties = map[Attribute]decimal.Decimal{
	AttrRC:        decimal.NewFromInt(5000),
	AttrInsurance: decimal.NewFromInt(2000),
	AttrPUC:       decimal.NewFromInt(10000),
	AttrFitness:   decimal.NewFromInt(5000),
	AttrPermit:    decimal.NewFromInt(5000),
	AttrTax:       decimal.NewFromInt(2000),
}

// OtherPenalty is charged on documents for labels that match no known attribute.
var OtherPenalty = decimal.NewFromInt(500)

var commercialKeywords = []string{"commercial", "transport", "goods", "truck", "taxi"}

// Report is the compliance outcome for one vehicle as of one date.
type Report struct {
	Plate           string          `json:"plate_number"`
	OwnerName       string          `json:"owner_name"`
	OwnerEmail      string          `json:"owner_email"`
	VehicleClass    string          `json:"vehicle_type"`
	MakeModel       string          `json:"make_model"`
	FuelType        string          `json:"fuel_type"`
	Commercial      bool            `json:"commercial"`
	RCStatus        Status          `json:"rc_status"`
	InsuranceStatus Status          `json:"insurance_status"`
	PUCStatus       Status          `json:"puc_status"`
	FitnessStatus   Status          `json:"fitness_status"`
	PermitStatus    Status          `json:"permit_status"`
	TaxStatus       Status          `json:"tax_status"`
	Violations      []string        `json:"violations"`
	TotalFine       decimal.Decimal `json:"total_fine"`
	EvaluatedOn     time.Time       `json:"evaluated_on"`
}

// HasViolations reports whether at least one attribute was charged.
func (r Report) HasViolations() bool {
	return len(r.Violations) > 0
}

// ViolationLabel joins the violation list the way it is stored on a challan.
func (r Report) ViolationLabel() string {
	return strings.Join(r.Violations, ", ")
}

// Statuses returns the per-attribute statuses in evaluation order.
func (r Report) Statuses() map[Attribute]Status {
	return map[Attribute]Status{
		AttrRC:        r.RCStatus,
		AttrInsurance: r.InsuranceStatus,
		AttrPUC:       r.PUCStatus,
		AttrFitness:   r.FitnessStatus,
		AttrPermit:    r.PermitStatus,
		AttrTax:       r.TaxStatus,
	}
}

// IsCommercial reports whether a vehicle class needs fitness and permit checks.
func IsCommercial(vehicleClass string) bool {
	class := strings.ToLower(vehicleClass)
	for _, kw := range commercialKeywords {
		if strings.Contains(class, kw) {
			return true
		}
	}
	return false
}

// Evaluate classifies every expiry attribute of rec against the calendar day
// of asOf and accumulates the fine in a single pass.
//
// RC and Fitness both read the fitness expiry column. For commercial vehicles
// a lapsed date is charged under both labels.
func Evaluate(rec vehicle.Record, asOf time.Time) Report {
	today := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	r := Report{
		Plate:        rec.Plate,
		OwnerName:    rec.OwnerName,
		OwnerEmail:   rec.OwnerEmail,
		VehicleClass: rec.VehicleClass,
		MakeModel:    strings.TrimSpace(rec.Make + " " + rec.Model),
		FuelType:     rec.FuelType,
		Commercial:   IsCommercial(rec.VehicleClass),
		Violations:   []string{},
		TotalFine:    decimal.Zero,
		EvaluatedOn:  today,
	}

	check := func(raw string, attr Attribute) Status {
		status, label := classify(raw, attr, today)
		if status == StatusExpired {
			r.Violations = append(r.Violations, label)
			r.TotalFine = r.TotalFine.Add(Penalties[attr])
		}
		return status
	}

	r.RCStatus = check(rec.FitnessExpiry, AttrRC)
	r.InsuranceStatus = check(rec.InsuranceExpiry, AttrInsurance)
	r.PUCStatus = check(rec.PUCExpiry, AttrPUC)
	r.FitnessStatus = StatusNotApplicable
	r.PermitStatus = StatusNotApplicable
	if r.Commercial {
		r.FitnessStatus = check(rec.FitnessExpiry, AttrFitness)
		r.PermitStatus = check(rec.PermitExpiry, AttrPermit)
	}
	r.TaxStatus = check(rec.RoadTaxExpiry, AttrTax)

	return r
}

func classify(raw string, attr Attribute, today time.Time) (Status, string) {
	value := strings.TrimSpace(raw)
	if IsMissing(value) {
		return StatusExpired, "Expired/Missing " + string(attr)
	}
	exp, err := time.Parse(ExpiryLayout, value)
	if err != nil {
		return StatusUnknown, ""
	}
	if exp.Before(today) {
		return StatusExpired, "Expired " + string(attr)
	}
	return StatusValid, ""
}

// IsMissing reports whether a dataset cell carries no value.
func IsMissing(value string) bool {
	v := strings.TrimSpace(value)
	return v == "" || strings.EqualFold(v, "nan")
}

// PenaltyFor maps a free-text violation label back to its fine. Labels that
// mention no known attribute fall back to OtherPenalty.
func PenaltyFor(label string) decimal.Decimal {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "puc"):
		return Penalties[AttrPUC]
	case strings.Contains(l, "rc"), strings.Contains(l, "fitness"), strings.Contains(l, "permit"):
		return Penalties[AttrRC]
	case strings.Contains(l, "insurance"), strings.Contains(l, "tax"):
		return Penalties[AttrInsurance]
	}
	return OtherPenalty
}
