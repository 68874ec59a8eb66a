package challan

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending Status = "Pending"
	StatusPaid    Status = "Paid"
)

// Official identifies who (or which camera) issued a challan.
type Official struct {
	ID   string `json:"official_id" validate:"required"`
	Name string `json:"official_name" validate:"required"`
}

// Challan is the persisted adjudication record.
type Challan struct {
	ID           string          `json:"challan_id"`
	Plate        string          `json:"plate_number"`
	OwnerName    string          `json:"owner_name"`
	IssuedAt     time.Time       `json:"issue_timestamp"`
	Violation    string          `json:"violation_type"`
	Violations   []string        `json:"violations"`
	FineAmount   decimal.Decimal `json:"fine_amount"`
	Status       Status          `json:"status"`
	OfficialID   string          `json:"official_id"`
	OfficialName string          `json:"official_name"`
	ProofImage   string          `json:"proof_image_path,omitempty"`
	Location     string          `json:"location"`
}

// ViolationCounts buckets challans by the label fragments used on the dashboard.
type ViolationCounts map[string]int64

// Stats is the dashboard aggregate over all challans.
type Stats struct {
	Total           int64           `json:"total"`
	Pending         int64           `json:"pending"`
	Paid            int64           `json:"paid"`
	TotalRevenue    decimal.Decimal `json:"totalRevenue"`
	TotalUnpaid     decimal.Decimal `json:"totalUnpaid"`
	ViolationCounts ViolationCounts `json:"violationCounts"`
	RecentChallans  []Challan       `json:"recentChallans"`
}
