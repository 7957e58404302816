package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type ProposalStatus string

const (
	StatusDraft    ProposalStatus = "draft"
	StatusSent     ProposalStatus = "sent"
	StatusViewed   ProposalStatus = "viewed"
	StatusAccepted ProposalStatus = "accepted"
	StatusRejected ProposalStatus = "rejected"
)

const (
	DefaultCurrency = "GBP"
	DefaultTemplate = "default"
)

type Client struct {
	Name    string `bson:"name" json:"name" validate:"required"`
	Email   string `bson:"email" json:"email" validate:"required,proposal_email"`
	Company string `bson:"company,omitempty" json:"company,omitempty"`
	Phone   string `bson:"phone,omitempty" json:"phone,omitempty"`
}

type Milestone struct {
	Title       string     `bson:"title" json:"title"`
	Date        *time.Time `bson:"date,omitempty" json:"date,omitempty"`
	Description string     `bson:"description,omitempty" json:"description,omitempty"`
}

type Timeline struct {
	StartDate  *time.Time  `bson:"start_date,omitempty" json:"startDate,omitempty"`
	EndDate    *time.Time  `bson:"end_date,omitempty" json:"endDate,omitempty"`
	Milestones []Milestone `bson:"milestones" json:"milestones"`
}

// ProjectDetails may be omitted entirely; once any part of it is given, the
// description becomes mandatory.
type ProjectDetails struct {
	Description  string    `bson:"description" json:"description" validate:"required_with=Scope Deliverables Timeline"`
	Scope        string    `bson:"scope,omitempty" json:"scope,omitempty"`
	Deliverables []string  `bson:"deliverables" json:"deliverables"`
	Timeline     *Timeline `bson:"timeline,omitempty" json:"timeline,omitempty"`
}

// LineItem is one row of a pricing breakdown. Amount is taken as given and
// never recomputed from Quantity and UnitPrice.
type LineItem struct {
	Item        string  `bson:"item" json:"item"`
	Description string  `bson:"description,omitempty" json:"description,omitempty"`
	Quantity    float64 `bson:"quantity" json:"quantity"`
	UnitPrice   float64 `bson:"unit_price" json:"unitPrice"`
	Amount      float64 `bson:"amount" json:"amount"`
}

type Pricing struct {
	Currency     string     `bson:"currency" json:"currency"`
	Total        *float64   `bson:"total" json:"total" validate:"required"`
	Breakdown    []LineItem `bson:"breakdown" json:"breakdown"`
	PaymentTerms string     `bson:"payment_terms,omitempty" json:"paymentTerms,omitempty"`
}

type Proposal struct {
	ID             bson.ObjectID  `bson:"_id,omitempty" json:"_id"`
	Title          string         `bson:"title" json:"title" validate:"required,max=100"`
	Client         Client         `bson:"client" json:"client"`
	ProjectDetails ProjectDetails `bson:"project_details" json:"projectDetails"`
	Pricing        Pricing        `bson:"pricing" json:"pricing"`
	Template       string         `bson:"template" json:"template"`
	Status         ProposalStatus `bson:"status" json:"status" validate:"required,proposal_status"`
	User           bson.ObjectID  `bson:"user" json:"user"`
	ShareToken     string         `bson:"share_token,omitempty" json:"-"`
	AcceptedAt     *time.Time     `bson:"accepted_at,omitempty" json:"acceptedAt,omitempty"`
	CreatedAt      time.Time      `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time      `bson:"updated_at" json:"updatedAt"`
}

// ProposalPatch replaces whole top-level sections of a proposal. Nil fields
// are left untouched. The owner is not patchable.
type ProposalPatch struct {
	Title          *string         `json:"title" validate:"omitnil,required,max=100"`
	Client         *Client         `json:"client"`
	ProjectDetails *ProjectDetails `json:"projectDetails"`
	Pricing        *Pricing        `json:"pricing"`
	Template       *string         `json:"template"`
	Status         *ProposalStatus `json:"status" validate:"omitnil,proposal_status"`
	ShareToken     *string         `json:"-"`
	AcceptedAt     *time.Time      `json:"-"`
}

func (p ProposalPatch) IsEmpty() bool {
	return p.Title == nil && p.Client == nil && p.ProjectDetails == nil && p.Pricing == nil &&
		p.Template == nil && p.Status == nil && p.ShareToken == nil && p.AcceptedAt == nil
}

// EnsureLists replaces absent lists with empty ones, so they are stored and
// rendered as [] rather than null.
func (p *Proposal) EnsureLists() {
	p.ProjectDetails.EnsureLists()
	p.Pricing.EnsureLists()
}

func (d *ProjectDetails) EnsureLists() {
	if d.Deliverables == nil {
		d.Deliverables = []string{}
	}
	if d.Timeline != nil && d.Timeline.Milestones == nil {
		d.Timeline.Milestones = []Milestone{}
	}
}

func (p *Pricing) EnsureLists() {
	if p.Breakdown == nil {
		p.Breakdown = []LineItem{}
	}
}

func (s ProposalStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusViewed, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// Dates coming from HTML date inputs arrive as plain YYYY-MM-DD, so timeline
// fields accept that as well as RFC 3339.

func (m *Milestone) UnmarshalJSON(data []byte) error {
	var aux struct {
		Title       string `json:"title"`
		Date        string `json:"date"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	date, err := parseDate(aux.Date)
	if err != nil {
		return fmt.Errorf("milestone date: %w", err)
	}
	*m = Milestone{Title: aux.Title, Date: date, Description: aux.Description}
	return nil
}

func (t *Timeline) UnmarshalJSON(data []byte) error {
	var aux struct {
		StartDate  string      `json:"startDate"`
		EndDate    string      `json:"endDate"`
		Milestones []Milestone `json:"milestones"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	start, err := parseDate(aux.StartDate)
	if err != nil {
		return fmt.Errorf("timeline startDate: %w", err)
	}
	end, err := parseDate(aux.EndDate)
	if err != nil {
		return fmt.Errorf("timeline endDate: %w", err)
	}
	*t = Timeline{StartDate: start, EndDate: end, Milestones: aux.Milestones}
	return nil
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q", s)
}
