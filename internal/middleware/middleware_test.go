package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"proposalmate/internal/auth"
	"proposalmate/internal/lib/sl"
	"proposalmate/internal/models"
)

type UserFinderMock struct {
	mock.Mock
}

func (m *UserFinderMock) FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func okHandler(t *testing.T, wantUser *models.User) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wantUser != nil {
			u, ok := UserFromContext(r.Context())
			require.True(t, ok)
			assert.Equal(t, wantUser.ID, u.ID)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate(t *testing.T) {
	tokens := auth.NewTokenMaker("test-secret", time.Hour)
	alice := &models.User{ID: bson.NewObjectID(), Email: "alice@example.com", Role: models.RoleUser}
	ghost := bson.NewObjectID()

	aliceToken, err := tokens.Generate(alice.ID.Hex(), alice.Role)
	require.NoError(t, err)
	ghostToken, err := tokens.Generate(ghost.Hex(), models.RoleUser)
	require.NoError(t, err)
	badIDToken, err := tokens.Generate("not-an-id", models.RoleUser)
	require.NoError(t, err)

	users := new(UserFinderMock)
	users.On("FindByID", mock.Anything, alice.ID).Return(alice, nil)
	users.On("FindByID", mock.Anything, ghost).Return(nil, nil)

	tests := []struct {
		name       string
		header     string
		cookie     string
		wantStatus int
	}{
		{"bearer header", "Bearer " + aliceToken, "", http.StatusOK},
		{"cookie fallback", "", aliceToken, http.StatusOK},
		{"missing token", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + aliceToken, "", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", "", http.StatusUnauthorized},
		{"deleted user", "Bearer " + ghostToken, "", http.StatusUnauthorized},
		{"non object id subject", "Bearer " + badIDToken, "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var want *models.User
			if tt.wantStatus == http.StatusOK {
				want = alice
			}
			h := Authenticate(tokens, users, sl.Discard())(okHandler(t, want))

			r := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: TokenCookie, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.JSONEq(t, `{"success":false,"error":"Not authorized to access this route"}`, w.Body.String())
			}
		})
	}
}

func TestAuthenticate_StoreFailureIs500(t *testing.T) {
	tokens := auth.NewTokenMaker("test-secret", time.Hour)
	id := bson.NewObjectID()
	tok, err := tokens.Generate(id.Hex(), models.RoleUser)
	require.NoError(t, err)

	users := new(UserFinderMock)
	users.On("FindByID", mock.Anything, id).Return(nil, errors.New("connection refused"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	Authenticate(tokens, users, sl.Discard())(okHandler(t, nil)).ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Server Error"}`, w.Body.String())
}

func serveAs(h http.Handler, u *models.User) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if u != nil {
		r = r.WithContext(WithUser(r.Context(), u))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestAuthorize(t *testing.T) {
	h := Authorize(models.RoleAdmin)(okHandler(t, nil))

	w := serveAs(h, &models.User{Role: models.RoleUser})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"User role user is not authorized to access this route"}`, w.Body.String())

	assert.Equal(t, http.StatusOK, serveAs(h, &models.User{Role: models.RoleAdmin}).Code)
	assert.Equal(t, http.StatusUnauthorized, serveAs(h, nil).Code)
}

func TestRequireActiveSubscription(t *testing.T) {
	h := RequireActiveSubscription(okHandler(t, nil))

	tests := []struct {
		name       string
		user       *models.User
		wantStatus int
	}{
		{"active", &models.User{Role: models.RoleUser, Billing: models.Billing{SubscriptionStatus: models.SubscriptionActive}}, http.StatusOK},
		{"trialing", &models.User{Role: models.RoleUser, Billing: models.Billing{SubscriptionStatus: models.SubscriptionTrialing}}, http.StatusOK},
		{"admin without subscription", &models.User{Role: models.RoleAdmin, Billing: models.Billing{SubscriptionStatus: models.SubscriptionNone}}, http.StatusOK},
		{"none", &models.User{Role: models.RoleUser, Billing: models.Billing{SubscriptionStatus: models.SubscriptionNone}}, http.StatusForbidden},
		{"past due", &models.User{Role: models.RoleUser, Billing: models.Billing{SubscriptionStatus: models.SubscriptionPastDue}}, http.StatusForbidden},
		{"canceled", &models.User{Role: models.RoleUser, Billing: models.Billing{SubscriptionStatus: models.SubscriptionCanceled}}, http.StatusForbidden},
		{"anonymous", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serveAs(h, tt.user)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusForbidden {
				assert.Contains(t, w.Body.String(), "You need an active subscription to access this resource")
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	l := NewRateLimiter(1, 2)
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"), "burst exhausted")
	assert.True(t, l.Allow("10.0.0.2"), "buckets are per client")

	clock = clock.Add(time.Second)
	assert.True(t, l.Allow("10.0.0.1"), "bucket refills")

	clock = clock.Add(time.Hour)
	l.Allow("10.0.0.3")
	l.mu.Lock()
	_, stale := l.visitors["10.0.0.2"]
	l.mu.Unlock()
	assert.False(t, stale, "idle visitors are evicted")
}

func TestRateLimiterSweepsOncePerInterval(t *testing.T) {
	l := NewRateLimiter(1, 1)
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	visitors := func() int {
		l.mu.Lock()
		defer l.mu.Unlock()
		return len(l.visitors)
	}

	l.Allow("10.0.0.1")
	swept := l.lastSweep

	clock = clock.Add(limiterIdleTTL + time.Second)
	l.Allow("10.0.0.2")
	assert.Equal(t, 1, visitors(), "first call after the interval sweeps")
	assert.True(t, l.lastSweep.After(swept))

	// 10.0.0.2 goes idle, but the next sweep is not due yet.
	clock = clock.Add(limiterIdleTTL + time.Second)
	l.lastSweep = clock.Add(-sweepInterval / 2)
	l.Allow("10.0.0.3")
	assert.Equal(t, 2, visitors(), "no sweep within the interval")

	clock = clock.Add(sweepInterval)
	l.Allow("10.0.0.3")
	assert.Equal(t, 1, visitors())
}

func TestRateLimiterMiddleware(t *testing.T) {
	h := NewRateLimiter(0.001, 1).Middleware(sl.Discard())(okHandler(t, nil))

	do := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		r.RemoteAddr = "192.0.2.7:51234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}
	assert.Equal(t, http.StatusOK, do().Code)
	w := do()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Too many requests")
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/v1/proposals/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/proposals/"+id, nil))
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body),
		`proposalmate_http_requests_total{method="GET",route="/api/v1/proposals/{id}",status="404"} 2`)
	assert.Contains(t, string(body), "proposalmate_http_request_duration_seconds_bucket")
}
