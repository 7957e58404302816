package server

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"proposalmate/internal/mailer"
	"proposalmate/internal/models"
	"proposalmate/internal/repository"
)

type memUsers struct {
	mu    sync.Mutex
	order []bson.ObjectID
	byID  map[bson.ObjectID]models.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[bson.ObjectID]models.User)}
}

func (m *memUsers) find(match func(models.User) bool) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		if u := m.byID[id]; match(u) {
			return &u
		}
	}
	return nil
}

func (m *memUsers) FindByID(_ context.Context, id bson.ObjectID) (*models.User, error) {
	return m.find(func(u models.User) bool { return u.ID == id }), nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return m.find(func(u models.User) bool { return u.Email == email }), nil
}

func (m *memUsers) FindByCustomerID(_ context.Context, customerID string) (*models.User, error) {
	return m.find(func(u models.User) bool { return customerID != "" && u.StripeCustomerID == customerID }), nil
}

func (m *memUsers) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.Email = strings.ToLower(user.Email)
	for _, u := range m.byID {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	user.ID = bson.NewObjectID()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	m.byID[user.ID] = *user
	m.order = append(m.order, user.ID)
	return nil
}

func (m *memUsers) List(_ context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.User, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.byID[id])
	}
	return out, nil
}

func (m *memUsers) UpdateBilling(_ context.Context, id bson.ObjectID, billing models.Billing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.byID[id]
	u.Billing = billing
	m.byID[id] = u
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id bson.ObjectID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.byID[id]
	u.PasswordHash = hash
	m.byID[id] = u
	return nil
}

type memResets struct {
	mu     sync.Mutex
	tokens []models.PasswordResetToken
}

func (m *memResets) Create(_ context.Context, t *models.PasswordResetToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = bson.NewObjectID()
	t.CreatedAt = time.Now().UTC()
	m.tokens = append(m.tokens, *t)
	return nil
}

func (m *memResets) FindByToken(_ context.Context, token string) (*models.PasswordResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.Token == token {
			return &t, nil
		}
	}
	return nil, nil
}

func (m *memResets) MarkUsed(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tokens {
		if m.tokens[i].Token == token && !m.tokens[i].IsUsed {
			m.tokens[i].IsUsed = true
			return true, nil
		}
	}
	return false, nil
}

func (m *memResets) CountRecentByEmail(_ context.Context, email string, within time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	since := time.Now().Add(-within)
	for _, t := range m.tokens {
		if t.Email == email && t.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (m *memResets) last() models.PasswordResetToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[len(m.tokens)-1]
}

// outbox records every message instead of sending it.
type outbox struct {
	mu   sync.Mutex
	msgs []mailer.Message
}

func (o *outbox) Send(_ context.Context, msg mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *outbox) sent() []mailer.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]mailer.Message(nil), o.msgs...)
}
