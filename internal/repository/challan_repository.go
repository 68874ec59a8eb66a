package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"echallan-service/internal/domain/challan"
)

type ChallanRepository struct {
	db *gorm.DB
}

func NewChallanRepository(db *gorm.DB) *ChallanRepository {
	return &ChallanRepository{db: db}
}

type Challan struct {
	ID           string          `gorm:"primaryKey"`
	Plate        string          `gorm:"not null"`
	OwnerName    string          `gorm:"not null"`
	IssuedAt     time.Time       `gorm:"not null"`
	Violation    string          `gorm:"not null"`
	Violations   datatypes.JSON  `gorm:"type:jsonb"`
	FineAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Status       string          `gorm:"not null"`
	OfficialID   string          `gorm:"not null"`
	OfficialName string          `gorm:"not null"`
	ProofImage   *string
	Location     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func toRow(c *challan.Challan) (Challan, error) {
	violations, err := json.Marshal(c.Violations)
	if err != nil {
		return Challan{}, err
	}
	row := Challan{
		ID:           c.ID,
		Plate:        c.Plate,
		OwnerName:    c.OwnerName,
		IssuedAt:     c.IssuedAt,
		Violation:    c.Violation,
		Violations:   datatypes.JSON(violations),
		FineAmount:   c.FineAmount,
		Status:       string(c.Status),
		OfficialID:   c.OfficialID,
		OfficialName: c.OfficialName,
		Location:     c.Location,
	}
	if c.ProofImage != "" {
		row.ProofImage = &c.ProofImage
	}
	return row, nil
}

func (row Challan) toDomain() challan.Challan {
	c := challan.Challan{
		ID:           row.ID,
		Plate:        row.Plate,
		OwnerName:    row.OwnerName,
		IssuedAt:     row.IssuedAt,
		Violation:    row.Violation,
		FineAmount:   row.FineAmount,
		Status:       challan.Status(row.Status),
		OfficialID:   row.OfficialID,
		OfficialName: row.OfficialName,
		Location:     row.Location,
	}
	if len(row.Violations) > 0 {
		_ = json.Unmarshal(row.Violations, &c.Violations)
	}
	if row.ProofImage != nil {
		c.ProofImage = *row.ProofImage
	}
	return c
}

func toDomainList(rows []Challan) []challan.Challan {
	out := make([]challan.Challan, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out
}

func (r *ChallanRepository) Insert(ctx context.Context, c *challan.Challan) error {
	row, err := toRow(c)
	if err != nil {
		return err
	}
	now := time.Now()
	row.CreatedAt = now
	row.UpdatedAt = now
	return r.db.WithContext(ctx).Create(&row).Error
}

// Find returns nil without error when no challan has the id.
func (r *ChallanRepository) Find(ctx context.Context, id string) (*challan.Challan, error) {
	var row Challan
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c := row.toDomain()
	return &c, nil
}

func (r *ChallanRepository) FindByPlateAndStatus(ctx context.Context, plate string, status challan.Status) ([]challan.Challan, error) {
	var rows []Challan
	err := r.db.WithContext(ctx).
		Where("plate = ? AND status = ?", plate, string(status)).
		Order("issued_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainList(rows), nil
}

// UpdateStatus reports whether a challan with the id exists.
func (r *ChallanRepository) UpdateStatus(ctx context.Context, id string, status challan.Status) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&Challan{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": string(status), "updated_at": time.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ChallanRepository) ListRecent(ctx context.Context, limit int) ([]challan.Challan, error) {
	query := r.db.WithContext(ctx).Order("issued_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []Challan
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainList(rows), nil
}

func (r *ChallanRepository) ListSince(ctx context.Context, since time.Time) ([]challan.Challan, error) {
	var rows []Challan
	err := r.db.WithContext(ctx).
		Where("issued_at >= ?", since).
		Order("issued_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainList(rows), nil
}

func (r *ChallanRepository) SumByStatus(ctx context.Context, status challan.Status) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&Challan{}).
		Select("COALESCE(SUM(fine_amount), 0)").
		Where("status = ?", string(status)).
		Row().
		Scan(&sum)
	return sum, err
}

// CountByStatus counts all challans when status is empty.
func (r *ChallanRepository) CountByStatus(ctx context.Context, status challan.Status) (int64, error) {
	query := r.db.WithContext(ctx).Model(&Challan{})
	if status != "" {
		query = query.Where("status = ?", string(status))
	}
	var n int64
	err := query.Count(&n).Error
	return n, err
}

// CountByViolation counts challans whose violation label contains fragment.
func (r *ChallanRepository) CountByViolation(ctx context.Context, fragment string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&Challan{}).
		Where("strpos(violation, ?) > 0", fragment).
		Count(&n).Error
	return n, err
}
