package service

import (
	"context"
	"fmt"
	"time"

	"echallan-service/internal/domain/challan"
)

const (
	recentWindow       = 30 * 24 * time.Hour
	defaultRecentLimit = 10
)

// violationBuckets map dashboard keys to the label fragment they count.
var violationBuckets = []struct {
	Key      string
	Fragment string
}{
	{"Expired Insurance", "Insurance"},
	{"Expired PUC", "PUC"},
	{"Expired RC", "RC"},
	{"Expired Fitness", "Fitness"},
	{"No Permit", "Permit"},
	{"Unpaid Tax", "Tax"},
}

// Stats aggregates every challan for the dashboard.
func (s *Issuer) Stats(ctx context.Context) (*challan.Stats, error) {
	var (
		stats challan.Stats
		err   error
	)
	if stats.Total, err = s.challans.CountByStatus(ctx, ""); err != nil {
		return nil, fmt.Errorf("count challans: %w", err)
	}
	if stats.Pending, err = s.challans.CountByStatus(ctx, challan.StatusPending); err != nil {
		return nil, fmt.Errorf("count pending challans: %w", err)
	}
	if stats.Paid, err = s.challans.CountByStatus(ctx, challan.StatusPaid); err != nil {
		return nil, fmt.Errorf("count paid challans: %w", err)
	}
	if stats.TotalRevenue, err = s.challans.SumByStatus(ctx, challan.StatusPaid); err != nil {
		return nil, fmt.Errorf("sum revenue: %w", err)
	}
	if stats.TotalUnpaid, err = s.challans.SumByStatus(ctx, challan.StatusPending); err != nil {
		return nil, fmt.Errorf("sum unpaid: %w", err)
	}

	stats.ViolationCounts = make(challan.ViolationCounts, len(violationBuckets))
	for _, b := range violationBuckets {
		n, err := s.challans.CountByViolation(ctx, b.Fragment)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", b.Key, err)
		}
		stats.ViolationCounts[b.Key] = n
	}

	if stats.RecentChallans, err = s.challans.ListSince(ctx, s.now().Add(-recentWindow)); err != nil {
		return nil, fmt.Errorf("list recent challans: %w", err)
	}
	return &stats, nil
}

// Recent lists the newest challans by issue time; limit defaults to 10.
func (s *Issuer) Recent(ctx context.Context, limit int) ([]challan.Challan, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	list, err := s.challans.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list challans: %w", err)
	}
	return list, nil
}
