package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"proposalmate/internal/models"
)

const (
	pdfFont       = "Helvetica"
	pdfLineHeight = 6.0
)

// PDF writes p as an A4 document to w. Pages break automatically and every
// page carries the creation-date footer.
func (e *Exporter) PDF(w io.Writer, p *models.Proposal) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(p.Title), false)
	pdf.SetCreator("ProposalMate", false)
	pdf.SetAutoPageBreak(true, 25)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-20)
		pdf.SetFont(pdfFont, "", 9)
		pdf.CellFormat(0, 5, "Proposal created on "+p.CreatedAt.UTC().Format(dateLayout), "", 1, "C", false, 0, "")
		pdf.CellFormat(0, 5, "Generated by ProposalMate", "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(pdfFont, "B", 24)
	pdf.CellFormat(0, 12, "PROPOSAL", "", 1, "C", false, 0, "")
	pdf.SetFont(pdfFont, "", 16)
	pdf.MultiCell(0, 9, tr(p.Title), "", "C", false)
	pdf.Ln(8)

	section := func(title string) {
		pdf.SetFont(pdfFont, "BU", 13)
		pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
		pdf.Ln(1)
		pdf.SetFont(pdfFont, "", 11)
	}
	line := func(s string) {
		pdf.MultiCell(0, pdfLineHeight, tr(s), "", "L", false)
	}
	label := func(s string) {
		pdf.SetFont(pdfFont, "B", 11)
		pdf.CellFormat(0, pdfLineHeight, s, "", 1, "L", false, 0, "")
		pdf.SetFont(pdfFont, "", 11)
	}

	section("CLIENT INFORMATION")
	line("Client: " + p.Client.Name)
	line("Email: " + p.Client.Email)
	if p.Client.Company != "" {
		line("Company: " + p.Client.Company)
	}
	if p.Client.Phone != "" {
		line("Phone: " + p.Client.Phone)
	}
	pdf.Ln(6)

	details := p.ProjectDetails
	section("PROJECT DETAILS")
	if details.Description != "" {
		line(details.Description)
		pdf.Ln(3)
	}
	if details.Scope != "" {
		label("Scope of Work:")
		line(details.Scope)
		pdf.Ln(3)
	}
	if len(details.Deliverables) > 0 {
		label("Deliverables:")
		for _, d := range details.Deliverables {
			line("• " + d)
		}
		pdf.Ln(3)
	}
	if tl := details.Timeline; tl != nil {
		label("Timeline:")
		if tl.StartDate != nil {
			line("Start Date: " + formatDate(tl.StartDate))
		}
		if tl.EndDate != nil {
			line("End Date: " + formatDate(tl.EndDate))
		}
		if len(tl.Milestones) > 0 {
			pdf.Ln(2)
			label("Milestones:")
			for _, m := range tl.Milestones {
				text := "• " + m.Title
				if d := formatDate(m.Date); d != "" {
					text += " - " + d
				}
				line(text)
				if m.Description != "" {
					pdf.SetFont(pdfFont, "", 9)
					pdf.SetX(pdf.GetX() + 5)
					line(m.Description)
					pdf.SetFont(pdfFont, "", 11)
				}
			}
		}
		pdf.Ln(3)
	}
	pdf.Ln(3)

	pricing := p.Pricing
	section("PRICING")
	line("Total: " + money(pricing.Currency, total(p)))
	if len(pricing.Breakdown) > 0 {
		pdf.Ln(2)
		label("Breakdown:")
		breakdownTable(pdf, tr, pricing)
	}
	if pricing.PaymentTerms != "" {
		pdf.Ln(3)
		label("Payment Terms:")
		line(pricing.PaymentTerms)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("export.PDF: %w", err)
	}
	return nil
}

var breakdownCols = []struct {
	title string
	width float64
	align string
}{
	{"Item", 80, "L"},
	{"Quantity", 25, "R"},
	{"Unit Price", 37, "R"},
	{"Amount", 38, "R"},
}

func breakdownTable(pdf *gofpdf.Fpdf, tr func(string) string, pricing models.Pricing) {
	pdf.SetFont(pdfFont, "B", 10)
	pdf.SetFillColor(235, 235, 235)
	for _, c := range breakdownCols {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, c.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(pdfFont, "", 10)
	for _, item := range pricing.Breakdown {
		cells := []string{
			tr(item.Item),
			quantity(item.Quantity),
			money(pricing.Currency, item.UnitPrice),
			money(pricing.Currency, item.Amount),
		}
		for i, c := range breakdownCols {
			pdf.CellFormat(c.width, 7, cells[i], "1", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}
}
