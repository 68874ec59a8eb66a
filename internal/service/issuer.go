package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"echallan-service/internal/compliance"
	"echallan-service/internal/domain/challan"
	"echallan-service/internal/evidence"
	"echallan-service/internal/notify"
	"echallan-service/internal/reference"
	"echallan-service/internal/utils"
)

// Issuer turns evaluated plates into persisted challans and triggers their
// notification. It also owns the payment transition.
type Issuer struct {
	challans  ChallanStore
	inspector *Inspector
	evidence  *evidence.Lifecycle
	notifier  Notifier
	renderer  notify.Renderer
	validate  *validator.Validate
	now       func() time.Time
	log       zerolog.Logger
}

type IssuerOption func(*Issuer)

func WithClock(now func() time.Time) IssuerOption {
	return func(s *Issuer) {
		if now != nil {
			s.now = now
		}
	}
}

func WithNotifier(n Notifier) IssuerOption {
	return func(s *Issuer) { s.notifier = n }
}

func WithRenderer(r notify.Renderer) IssuerOption {
	return func(s *Issuer) { s.renderer = r }
}

func NewIssuer(challans ChallanStore, inspector *Inspector, lifecycle *evidence.Lifecycle, log zerolog.Logger, opts ...IssuerOption) *Issuer {
	s := &Issuer{
		challans:  challans,
		inspector: inspector,
		evidence:  lifecycle,
		validate:  validator.New(),
		now:       time.Now,
		log:       log.With().Str("component", "issuer").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueRequest carries an evaluated plate into issuance. When PromoteProof is
// set, Proof is a capture-time reference that is renamed after the plate.
type IssueRequest struct {
	Report       compliance.Report
	Proof        evidence.Ref
	PromoteProof bool
	Official     challan.Official
	Location     string
}

// Issue persists a Pending challan for a report with at least one violation
// and returns (nil, nil) otherwise. Only the persistence step can fail the
// call; evidence and notification problems are logged.
func (s *Issuer) Issue(ctx context.Context, req IssueRequest) (*challan.Challan, error) {
	if !req.Report.HasViolations() {
		return nil, nil
	}
	plate := utils.NormalizePlate(req.Report.Plate)
	if plate == "" {
		return nil, fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}
	if err := s.validate.Struct(req.Official); err != nil {
		return nil, fmt.Errorf("%w: official identity is required", ErrInvalidInput)
	}

	issuedAt := s.now()
	proof := req.Proof
	if req.PromoteProof && proof != "" && s.evidence != nil {
		promoted, err := s.evidence.Promote(ctx, proof, plate, issuedAt)
		if err != nil {
			s.log.Warn().Err(err).Str("plate", plate).Str("proof", string(proof)).Msg("failed to promote proof image; keeping capture name")
		} else {
			proof = promoted
		}
	}

	c := &challan.Challan{
		ID:           NewChallanID(),
		Plate:        plate,
		OwnerName:    req.Report.OwnerName,
		IssuedAt:     issuedAt,
		Violation:    req.Report.ViolationLabel(),
		Violations:   append([]string(nil), req.Report.Violations...),
		FineAmount:   req.Report.TotalFine,
		Status:       challan.StatusPending,
		OfficialID:   req.Official.ID,
		OfficialName: req.Official.Name,
		ProofImage:   string(proof),
		Location:     req.Location,
	}
	if err := s.persist(ctx, c); err != nil {
		return nil, err
	}
	s.notify(c, req.Report.OwnerEmail)
	return c, nil
}

// ManualRequest is an operator-entered challan. Violation and Amount are
// taken as given.
type ManualRequest struct {
	Plate     string           `json:"plate_number" validate:"required"`
	OwnerName string           `json:"owner_name"`
	Violation string           `json:"violation"`
	Amount    decimal.Decimal  `json:"amount"`
	Location  string           `json:"location"`
	Official  challan.Official `json:"official"`
}

func (s *Issuer) IssueManual(ctx context.Context, req ManualRequest) (*challan.Challan, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	plate := utils.NormalizePlate(req.Plate)
	if plate == "" {
		return nil, fmt.Errorf("%w: plate cannot be empty after normalization", ErrInvalidInput)
	}
	if req.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount cannot be negative", ErrInvalidInput)
	}

	violation := req.Violation
	if violation == "" {
		violation = "Manual Entry"
	}
	rec, known := s.inspector.Record(plate)
	owner := req.OwnerName
	if owner == "" {
		owner = "Unknown"
		if known {
			owner = rec.OwnerName
		}
	}

	c := &challan.Challan{
		ID:           NewChallanID(),
		Plate:        plate,
		OwnerName:    owner,
		IssuedAt:     s.now(),
		Violation:    violation,
		Violations:   []string{violation},
		FineAmount:   req.Amount,
		Status:       challan.StatusPending,
		OfficialID:   req.Official.ID,
		OfficialName: req.Official.Name,
		Location:     req.Location,
	}
	if err := s.persist(ctx, c); err != nil {
		return nil, err
	}
	if known {
		s.notify(c, rec.OwnerEmail)
	}
	return c, nil
}

func (s *Issuer) persist(ctx context.Context, c *challan.Challan) error {
	if err := s.challans.Insert(ctx, c); err != nil {
		s.log.Error().
			Err(err).
			Str("challan_id", c.ID).
			Str("plate", c.Plate).
			Msg("failed to persist challan")
		return fmt.Errorf("%w: insert challan %s: %w", ErrPersistence, c.ID, err)
	}
	s.log.Info().
		Str("challan_id", c.ID).
		Str("plate", c.Plate).
		Str("violation", c.Violation).
		Str("fine", c.FineAmount.StringFixed(2)).
		Str("official_id", c.OfficialID).
		Msg("challan issued")
	return nil
}

func (s *Issuer) notify(c *challan.Challan, email string) {
	if s.notifier == nil {
		return
	}
	if !reference.UsableEmail(email) {
		s.log.Debug().Str("challan_id", c.ID).Msg("no usable owner email; notice skipped")
		return
	}
	if err := s.notifier.Enqueue(notify.Job{Challan: *c, To: email}); err != nil {
		s.log.Warn().Err(err).Str("challan_id", c.ID).Msg("challan notice not queued")
	}
}

// MarkPaid moves a challan to Paid. Paying an already paid challan returns it
// unchanged.
func (s *Issuer) MarkPaid(ctx context.Context, id string) (*challan.Challan, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == challan.StatusPaid {
		return c, nil
	}
	found, err := s.challans.UpdateStatus(ctx, id, challan.StatusPaid)
	if err != nil {
		return nil, fmt.Errorf("%w: update challan %s: %w", ErrPersistence, id, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: challan %s", ErrNotFound, id)
	}
	c.Status = challan.StatusPaid
	s.log.Info().Str("challan_id", id).Str("plate", c.Plate).Msg("challan paid")
	return c, nil
}

func (s *Issuer) Get(ctx context.Context, id string) (*challan.Challan, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: challan id is required", ErrInvalidInput)
	}
	c, err := s.challans.Find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find challan: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: challan %s", ErrNotFound, id)
	}
	return c, nil
}

// PendingForPlate lists unpaid challans for a plate, newest first.
func (s *Issuer) PendingForPlate(ctx context.Context, plate string) ([]challan.Challan, error) {
	normalized := utils.NormalizePlate(plate)
	if normalized == "" {
		return nil, fmt.Errorf("%w: plate query cannot be empty", ErrInvalidInput)
	}
	list, err := s.challans.FindByPlateAndStatus(ctx, normalized, challan.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to find challans: %w", err)
	}
	return list, nil
}

// Document renders the challan notice PDF.
func (s *Issuer) Document(ctx context.Context, id string) ([]byte, error) {
	if s.renderer == nil {
		return nil, fmt.Errorf("document rendering is not configured")
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.renderer.Render(ctx, *c)
}

// ResendRequest asks for a challan notice to be mailed to an arbitrary address.
type ResendRequest struct {
	ChallanID string `json:"challan_id" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
}

// Resend delivers one notice synchronously and reports delivery errors.
func (s *Issuer) Resend(ctx context.Context, req ResendRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if s.notifier == nil {
		return fmt.Errorf("notifications are not configured")
	}
	c, err := s.Get(ctx, req.ChallanID)
	if err != nil {
		return err
	}
	return s.notifier.Deliver(ctx, notify.Job{Challan: *c, To: req.Email})
}
