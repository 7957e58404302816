// Package export renders proposals as downloadable PDF and DOCX documents.
package export

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"proposalmate/internal/models"
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return "application/octet-stream"
}

// FileName returns the attachment name for p in format f.
func FileName(p *models.Proposal, f Format) string {
	return fmt.Sprintf("proposal-%s.%s", p.ID.Hex(), f)
}

type Options struct {
	// DocxFullContent extends DOCX output past the description with scope,
	// deliverables, timeline, pricing and the footer. PDF output always
	// carries them.
	DocxFullContent bool
}

type Exporter struct {
	opts Options
}

func New(opts Options) *Exporter {
	return &Exporter{opts: opts}
}

const dateLayout = "02/01/2006"

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

func money(currency string, v float64) string {
	return currency + " " + decimal.NewFromFloat(v).StringFixed(2)
}

func quantity(v float64) string {
	return decimal.NewFromFloat(v).String()
}

func total(p *models.Proposal) float64 {
	if p.Pricing.Total == nil {
		return 0
	}
	return *p.Pricing.Total
}
