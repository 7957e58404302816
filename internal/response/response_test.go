package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proposalmate/internal/apperr"
	"proposalmate/internal/lib/sl"
)

func TestOK(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	OK(w, r, http.StatusCreated, map[string]string{"title": "Wedding Package"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"title":"Wedding Package"}}`, w.Body.String())
}

func TestListIncludesCount(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	List[string](w, r, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"count":0,"data":[]}`, w.Body.String())
}

func TestEmpty(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodDelete, "/", nil)

	Empty(w, r)

	assert.JSONEq(t, `{"success":true,"data":{}}`, w.Body.String())
}

func TestError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"not found", apperr.NotFound("Proposal not found with id of abc"), http.StatusNotFound, "Proposal not found with id of abc"},
		{"validation", apperr.Validation("Please add a title"), http.StatusBadRequest, "Please add a title"},
		{"internal", errors.New("mongo: connection reset"), http.StatusInternalServerError, "Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/v1/proposals/abc", nil)

			Error(w, r, sl.Discard(), tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body ErrorEnvelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantError, body.Error)
		})
	}
}
