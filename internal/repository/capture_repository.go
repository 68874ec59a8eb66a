package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"echallan-service/internal/domain/anpr"
)

type CaptureRepository struct {
	db *gorm.DB
}

func NewCaptureRepository(db *gorm.DB) *CaptureRepository {
	return &CaptureRepository{db: db}
}

type Capture struct {
	ID         string    `gorm:"primaryKey"`
	Plate      string    `gorm:"not null"`
	Confidence float64   `gorm:"not null"`
	ImageRef   string    `gorm:"not null"`
	CameraID   *string
	CapturedAt time.Time `gorm:"not null"`
	CreatedAt  time.Time
}

func (r *CaptureRepository) Insert(ctx context.Context, c *anpr.Capture) error {
	row := Capture{
		ID:         c.ID,
		Plate:      c.Plate,
		Confidence: c.Confidence,
		ImageRef:   c.ImageRef,
		CapturedAt: c.CapturedAt,
		CreatedAt:  time.Now(),
	}
	if c.CameraID != "" {
		row.CameraID = &c.CameraID
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *CaptureRepository) ListRecent(ctx context.Context, limit int) ([]anpr.Capture, error) {
	query := r.db.WithContext(ctx).Order("captured_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
		if limit > 200 {
			query = query.Limit(200)
		}
	}
	var rows []Capture
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]anpr.Capture, 0, len(rows))
	for _, row := range rows {
		c := anpr.Capture{
			ID:         row.ID,
			Plate:      row.Plate,
			Confidence: row.Confidence,
			ImageRef:   row.ImageRef,
			CapturedAt: row.CapturedAt,
		}
		if row.CameraID != nil {
			c.CameraID = *row.CameraID
		}
		out = append(out, c)
	}
	return out, nil
}
