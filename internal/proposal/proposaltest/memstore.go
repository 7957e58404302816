// Package proposaltest provides in-memory stores for exercising the proposal
// service and the HTTP layer without a database.
package proposaltest

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"proposalmate/internal/models"
)

// Store is an in-memory proposal.Store. It preserves insertion order, which
// stands in for natural storage order.
type Store struct {
	mu      sync.Mutex
	order   []bson.ObjectID
	records map[bson.ObjectID]models.Proposal

	// Writes counts Insert, Update and Delete calls.
	Writes int
}

func NewStore() *Store {
	return &Store{records: make(map[bson.ObjectID]models.Proposal)}
}

func (s *Store) Insert(_ context.Context, p *models.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Writes++
	p.ID = bson.NewObjectID()
	s.records[p.ID] = clone(*p)
	s.order = append(s.order, p.ID)
	return nil
}

func (s *Store) FindByOwner(_ context.Context, owner bson.ObjectID) ([]models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Proposal
	for _, id := range s.order {
		if p, ok := s.records[id]; ok && p.User == owner {
			out = append(out, clone(p))
		}
	}
	return out, nil
}

func (s *Store) FindByID(_ context.Context, id bson.ObjectID) (*models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	c := clone(p)
	return &c, nil
}

func (s *Store) FindByShareToken(_ context.Context, token string) (*models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.records {
		if p.ShareToken != "" && p.ShareToken == token {
			c := clone(p)
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Store) Update(_ context.Context, id bson.ObjectID, patch models.ProposalPatch, updatedAt time.Time) (*models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Writes++
	p, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Client != nil {
		p.Client = *patch.Client
	}
	if patch.ProjectDetails != nil {
		p.ProjectDetails = *patch.ProjectDetails
	}
	if patch.Pricing != nil {
		p.Pricing = *patch.Pricing
	}
	if patch.Template != nil {
		p.Template = *patch.Template
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.ShareToken != nil {
		p.ShareToken = *patch.ShareToken
	}
	if patch.AcceptedAt != nil {
		at := *patch.AcceptedAt
		p.AcceptedAt = &at
	}
	p.UpdatedAt = updatedAt
	s.records[id] = p
	c := clone(p)
	return &c, nil
}

func (s *Store) Delete(_ context.Context, id bson.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Writes++
	delete(s.records, id)
	return nil
}

// Len returns the number of stored proposals.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// clone copies the slices a caller could otherwise mutate through.
func clone(p models.Proposal) models.Proposal {
	p.ProjectDetails.Deliverables = slices.Clone(p.ProjectDetails.Deliverables)
	p.Pricing.Breakdown = slices.Clone(p.Pricing.Breakdown)
	if tl := p.ProjectDetails.Timeline; tl != nil {
		c := *tl
		c.Milestones = slices.Clone(tl.Milestones)
		p.ProjectDetails.Timeline = &c
	}
	return p
}

// Acceptances is an in-memory proposal.AcceptanceStore.
type Acceptances struct {
	mu      sync.Mutex
	records map[bson.ObjectID]models.Acceptance
}

func NewAcceptances() *Acceptances {
	return &Acceptances{records: make(map[bson.ObjectID]models.Acceptance)}
}

func (a *Acceptances) Create(_ context.Context, acc *models.Acceptance) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	acc.ID = bson.NewObjectID()
	a.records[acc.ProposalID] = *acc
	return nil
}

func (a *Acceptances) FindByProposal(_ context.Context, proposalID bson.ObjectID) (*models.Acceptance, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	acc, ok := a.records[proposalID]
	if !ok {
		return nil, nil
	}
	return &acc, nil
}

// Fixture returns a minimal valid proposal payload.
func Fixture() models.Proposal {
	total := 1200.0
	return models.Proposal{
		Title:  "Wedding Package",
		Client: models.Client{Name: "Alice", Email: "alice@example.com"},
		ProjectDetails: models.ProjectDetails{
			Description: "Full-day wedding photography",
		},
		Pricing: models.Pricing{Total: &total},
	}
}
