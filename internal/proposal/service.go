// Package proposal implements the proposal CRUD workflow: ownership checks,
// schema validation, and the share/accept flow used by clients.
package proposal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"proposalmate/internal/apperr"
	"proposalmate/internal/models"
)

// Store persists proposals. Lookups return nil, nil when nothing matches.
type Store interface {
	Insert(ctx context.Context, p *models.Proposal) error
	FindByOwner(ctx context.Context, owner bson.ObjectID) ([]models.Proposal, error)
	FindByID(ctx context.Context, id bson.ObjectID) (*models.Proposal, error)
	FindByShareToken(ctx context.Context, token string) (*models.Proposal, error)
	Update(ctx context.Context, id bson.ObjectID, patch models.ProposalPatch, updatedAt time.Time) (*models.Proposal, error)
	Delete(ctx context.Context, id bson.ObjectID) error
}

// AcceptanceStore records client acceptances.
type AcceptanceStore interface {
	Create(ctx context.Context, a *models.Acceptance) error
	FindByProposal(ctx context.Context, proposalID bson.ObjectID) (*models.Acceptance, error)
}

// Caller is the authenticated identity performing an operation.
type Caller struct {
	ID   bson.ObjectID
	Role string
}

func (c Caller) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

type Service struct {
	store       Store
	acceptances AcceptanceStore
	validate    *validator.Validate
	log         *slog.Logger
	now         func() time.Time
}

func NewService(store Store, acceptances AcceptanceStore, log *slog.Logger) *Service {
	return &Service{
		store:       store,
		acceptances: acceptances,
		validate:    newValidator(),
		log:         log,
		now:         time.Now,
	}
}

// Create persists payload as a new proposal owned by ownerID. Any owner,
// identifier or timestamps carried by payload are discarded.
func (s *Service) Create(ctx context.Context, ownerID bson.ObjectID, payload models.Proposal) (*models.Proposal, error) {
	p := payload
	p.ID = bson.ObjectID{}
	p.User = ownerID
	p.ShareToken = ""
	p.AcceptedAt = nil
	if p.Pricing.Currency == "" {
		p.Pricing.Currency = models.DefaultCurrency
	}
	if p.Template == "" {
		p.Template = models.DefaultTemplate
	}
	if p.Status == "" {
		p.Status = models.StatusDraft
	}
	normalize(&p)

	if err := s.validate.Struct(p); err != nil {
		return nil, validationError(err)
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.store.Insert(ctx, &p); err != nil {
		return nil, apperr.Internal(fmt.Errorf("proposal.Create: %w", err))
	}
	s.log.Info("proposal created", slog.String("id", p.ID.Hex()), slog.String("user", ownerID.Hex()))
	return &p, nil
}

// List returns every proposal owned by ownerID.
func (s *Service) List(ctx context.Context, ownerID bson.ObjectID) ([]models.Proposal, error) {
	proposals, err := s.store.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("proposal.List: %w", err))
	}
	if proposals == nil {
		proposals = []models.Proposal{}
	}
	return proposals, nil
}

func (s *Service) Get(ctx context.Context, caller Caller, id string) (*models.Proposal, error) {
	return s.load(ctx, caller, id, "access")
}

// Update applies patch after the ownership check. updatedAt never moves
// backwards, even if the clock does.
func (s *Service) Update(ctx context.Context, caller Caller, id string, patch models.ProposalPatch) (*models.Proposal, error) {
	existing, err := s.load(ctx, caller, id, "update")
	if err != nil {
		return nil, err
	}

	// Internal fields are only set by the share/accept flow.
	patch.ShareToken = nil
	patch.AcceptedAt = nil
	normalizePatch(&patch)
	if err := s.validate.Struct(patch); err != nil {
		return nil, validationError(err)
	}
	if patch.IsEmpty() {
		return existing, nil
	}

	return s.apply(ctx, existing, patch)
}

func (s *Service) Delete(ctx context.Context, caller Caller, id string) error {
	existing, err := s.load(ctx, caller, id, "delete")
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, existing.ID); err != nil {
		return apperr.Internal(fmt.Errorf("proposal.Delete: %w", err))
	}
	s.log.Info("proposal deleted", slog.String("id", existing.ID.Hex()), slog.String("by", caller.ID.Hex()))
	return nil
}

// Share makes the proposal reachable through a public share token and marks
// drafts as sent. The token is stable across repeated shares.
func (s *Service) Share(ctx context.Context, caller Caller, id string) (*models.Proposal, error) {
	existing, err := s.load(ctx, caller, id, "share")
	if err != nil {
		return nil, err
	}

	var patch models.ProposalPatch
	if existing.ShareToken == "" {
		token := uuid.NewString()
		patch.ShareToken = &token
	}
	if existing.Status == models.StatusDraft {
		sent := models.StatusSent
		patch.Status = &sent
	}
	if patch.IsEmpty() {
		return existing, nil
	}
	return s.apply(ctx, existing, patch)
}

// ViewShared resolves a share token for the client-facing view. The first
// view of a sent proposal marks it as viewed.
func (s *Service) ViewShared(ctx context.Context, token string) (*models.Proposal, error) {
	p, err := s.loadShared(ctx, token)
	if err != nil {
		return nil, err
	}
	if p.Status != models.StatusSent {
		return p, nil
	}
	viewed := models.StatusViewed
	return s.apply(ctx, p, models.ProposalPatch{Status: &viewed})
}

// AcceptShared records the client's signature and marks the proposal
// accepted. Repeating the call returns the original acceptance.
func (s *Service) AcceptShared(ctx context.Context, token string, in models.Acceptance) (*models.Proposal, *models.Acceptance, bool, error) {
	p, err := s.loadShared(ctx, token)
	if err != nil {
		return nil, nil, false, err
	}

	existing, err := s.acceptances.FindByProposal(ctx, p.ID)
	if err != nil {
		return nil, nil, false, apperr.Internal(fmt.Errorf("proposal.AcceptShared: %w", err))
	}
	if existing != nil {
		return p, existing, false, nil
	}
	if p.Status == models.StatusRejected {
		return nil, nil, false, apperr.Validation("Proposal %s has been rejected", p.ID.Hex())
	}

	acc := models.Acceptance{
		ProposalID:  p.ID,
		ClientName:  in.ClientName,
		ClientEmail: in.ClientEmail,
		Signature:   in.Signature,
	}
	if err := s.validate.Struct(acc); err != nil {
		return nil, nil, false, validationError(err)
	}
	acc.CreatedAt = s.now().UTC().Truncate(time.Millisecond)
	if err := s.acceptances.Create(ctx, &acc); err != nil {
		return nil, nil, false, apperr.Internal(fmt.Errorf("proposal.AcceptShared: %w", err))
	}

	accepted := models.StatusAccepted
	at := acc.CreatedAt
	updated, err := s.apply(ctx, p, models.ProposalPatch{Status: &accepted, AcceptedAt: &at})
	if err != nil {
		return nil, nil, false, err
	}
	s.log.Info("proposal accepted", slog.String("id", p.ID.Hex()))
	return updated, &acc, true, nil
}

// load fetches the proposal and enforces ownership before anything else
// happens. verb only shapes the error message.
func (s *Service) load(ctx context.Context, caller Caller, id, verb string) (*models.Proposal, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.NotFound("Proposal not found with id of %s", id)
	}
	p, err := s.store.FindByID(ctx, oid)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("proposal.load: %w", err))
	}
	if p == nil {
		return nil, apperr.NotFound("Proposal not found with id of %s", id)
	}
	if p.User != caller.ID && !caller.IsAdmin() {
		return nil, apperr.New(apperr.KindNotOwner, "User %s is not authorized to %s this proposal", caller.ID.Hex(), verb)
	}
	return p, nil
}

func (s *Service) loadShared(ctx context.Context, token string) (*models.Proposal, error) {
	if token == "" {
		return nil, apperr.NotFound("Shared proposal not found")
	}
	p, err := s.store.FindByShareToken(ctx, token)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("proposal.loadShared: %w", err))
	}
	if p == nil {
		return nil, apperr.NotFound("Shared proposal not found")
	}
	return p, nil
}

func (s *Service) apply(ctx context.Context, existing *models.Proposal, patch models.ProposalPatch) (*models.Proposal, error) {
	updatedAt := s.now().UTC().Truncate(time.Millisecond)
	if updatedAt.Before(existing.UpdatedAt) {
		updatedAt = existing.UpdatedAt
	}
	updated, err := s.store.Update(ctx, existing.ID, patch, updatedAt)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("proposal.apply: %w", err))
	}
	if updated == nil {
		// Deleted between the read and the write.
		return nil, apperr.NotFound("Proposal not found with id of %s", existing.ID.Hex())
	}
	return updated, nil
}
