package proposal

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"proposalmate/internal/apperr"
	"proposalmate/internal/models"
)

var clientEmailPattern = regexp.MustCompile(`^\w+([\.-]?\w+)*@\w+([\.-]?\w+)*(\.\w{2,3})+$`)

// messages maps "<field path>|<tag>" to the message shown to clients.
var messages = map[string]string{
	"Title|required":                           "Please add a title",
	"Title|max":                                "Title cannot be more than 100 characters",
	"Client.Name|required":                     "Please add a client name",
	"Client.Email|required":                    "Please add a client email",
	"Client.Email|proposal_email":              "Please add a valid email",
	"ProjectDetails.Description|required_with": "Please add a project description",
	"Pricing.Total|required":                   "Please add a total price",
	"Status|required":                          "Please add a status",
	"Status|proposal_status":                   "Status must be one of draft, sent, viewed, accepted, rejected",
	"ClientName|required":                      "Please add your name",
	"ClientEmail|required":                     "Please add your email",
	"ClientEmail|email":                        "Please add a valid email",
	"Signature|required":                       "Please add a signature",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("proposal_email", func(fl validator.FieldLevel) bool {
		return clientEmailPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("proposal_status", func(fl validator.FieldLevel) bool {
		return models.ProposalStatus(fl.Field().String()).Valid()
	})
	return v
}

// validationError turns validator output into a single ValidationError whose
// message lists every violation.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Internal(err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, messageFor(fe))
	}
	return apperr.Validation("%s", strings.Join(msgs, ", "))
}

func messageFor(fe validator.FieldError) string {
	path := fe.StructNamespace()
	if i := strings.IndexByte(path, '.'); i >= 0 {
		path = path[i+1:]
	}
	if msg, ok := messages[path+"|"+fe.Tag()]; ok {
		return msg
	}
	return "Invalid value for " + path
}

// normalize trims the string fields that are stored trimmed and fills in
// absent lists.
func normalize(p *models.Proposal) {
	p.Title = strings.TrimSpace(p.Title)
	normalizeClient(&p.Client)
	p.EnsureLists()
}

func normalizeClient(c *models.Client) {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Company = strings.TrimSpace(c.Company)
	c.Phone = strings.TrimSpace(c.Phone)
}

func normalizePatch(p *models.ProposalPatch) {
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		p.Title = &t
	}
	if p.Client != nil {
		normalizeClient(p.Client)
	}
	if p.ProjectDetails != nil {
		p.ProjectDetails.EnsureLists()
	}
	if p.Pricing != nil {
		if p.Pricing.Currency == "" {
			p.Pricing.Currency = models.DefaultCurrency
		}
		p.Pricing.EnsureLists()
	}
}
