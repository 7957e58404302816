// Package handlers implements the HTTP endpoints of the API on top of the
// proposal, billing and auth services.
package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"proposalmate/internal/apperr"
	"proposalmate/internal/middleware"
	"proposalmate/internal/models"
	"proposalmate/internal/proposal"
)

// maxBodyBytes bounds JSON request bodies. Signatures arrive as data URLs,
// so this is larger than a plain form would need.
const maxBodyBytes = 2 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// requestMessages maps "<field>|<tag>" to the message shown to clients.
var requestMessages = map[string]string{
	"Name|required":           "Please add a name",
	"Name|max":                "Name can not be more than 50 characters",
	"Email|required":          "Please add an email",
	"Email|email":             "Please add a valid email",
	"Password|required":       "Please add a password",
	"Password|min":            "Password must be at least 6 characters",
	"RecipientEmail|required": "Please provide a recipient email",
	"RecipientEmail|email":    "Please add a valid email",
}

// checkRequest validates a decoded request body against its struct tags.
func checkRequest(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Internal(err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := requestMessages[fe.Field()+"|"+fe.Tag()]
		if !ok {
			msg = "Invalid value for " + fe.Field()
		}
		msgs = append(msgs, msg)
	}
	return apperr.Validation("%s", strings.Join(msgs, ", "))
}

// decodeJSON reads the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := render.DecodeJSON(r.Body, v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apperr.Validation("Request body too large")
		case errors.Is(err, io.EOF):
			return apperr.Validation("Request body is empty")
		}
		return apperr.Validation("Invalid request body")
	}
	return nil
}

// currentUser returns the user Authenticate stored on the request.
func currentUser(r *http.Request) (*models.User, error) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		return nil, apperr.New(apperr.KindUnauthenticated, "Not authorized to access this route")
	}
	return u, nil
}

func callerOf(u *models.User) proposal.Caller {
	return proposal.Caller{ID: u.ID, Role: u.Role}
}
