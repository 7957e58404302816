package export

import (
	"fmt"
	"io"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
	"github.com/gomutex/godocx/wml/stypes"

	"proposalmate/internal/models"
)

// DOCX writes p as a Word document to w. By default the document carries the
// title, client information and description only; scope, deliverables,
// timeline, pricing and the footer are added when the exporter was built
// with DocxFullContent.
func (e *Exporter) DOCX(w io.Writer, p *models.Proposal) error {
	const op = "export.DOCX"

	doc, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	title, err := doc.AddHeading("PROPOSAL", 0)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	title.Justification(stypes.JustificationCenter)
	doc.AddParagraph(p.Title).Justification(stypes.JustificationCenter)

	if err := section(doc, "CLIENT INFORMATION"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	labelled(doc, "Client", p.Client.Name)
	labelled(doc, "Email", p.Client.Email)
	if p.Client.Company != "" {
		labelled(doc, "Company", p.Client.Company)
	}
	if p.Client.Phone != "" {
		labelled(doc, "Phone", p.Client.Phone)
	}

	details := p.ProjectDetails
	if err := section(doc, "PROJECT DETAILS"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if details.Description != "" {
		doc.AddParagraph(details.Description)
	}

	if e.opts.DocxFullContent {
		if err := docxExtended(doc, p); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := doc.Write(w); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// docxExtended appends everything the PDF carries past the description.
func docxExtended(doc *docx.RootDoc, p *models.Proposal) error {
	details := p.ProjectDetails
	if details.Scope != "" {
		labelled(doc, "Scope of Work", details.Scope)
	}
	for _, d := range details.Deliverables {
		doc.AddParagraph(d).Style("ListBullet")
	}
	if tl := details.Timeline; tl != nil {
		if tl.StartDate != nil {
			labelled(doc, "Start Date", formatDate(tl.StartDate))
		}
		if tl.EndDate != nil {
			labelled(doc, "End Date", formatDate(tl.EndDate))
		}
		for _, m := range tl.Milestones {
			s := m.Title
			if d := formatDate(m.Date); d != "" {
				s += " - " + d
			}
			doc.AddParagraph(s).Style("ListBullet")
		}
	}

	pricing := p.Pricing
	if err := section(doc, "PRICING"); err != nil {
		return err
	}
	labelled(doc, "Total", money(pricing.Currency, total(p)))
	if len(pricing.Breakdown) > 0 {
		tbl := doc.AddTable()
		tbl.Style("TableGrid")
		header := tbl.AddRow()
		for _, h := range []string{"Item", "Qty", "Unit Price", "Amount"} {
			header.AddCell().AddEmptyPara().AddText(h).Bold(true)
		}
		for _, item := range pricing.Breakdown {
			row := tbl.AddRow()
			row.AddCell().AddParagraph(item.Item)
			row.AddCell().AddParagraph(quantity(item.Quantity))
			row.AddCell().AddParagraph(money(pricing.Currency, item.UnitPrice))
			row.AddCell().AddParagraph(money(pricing.Currency, item.Amount))
		}
	}
	if pricing.PaymentTerms != "" {
		labelled(doc, "Payment Terms", pricing.PaymentTerms)
	}

	doc.AddEmptyParagraph()
	doc.AddParagraph("Proposal created on " + p.CreatedAt.UTC().Format(dateLayout)).
		Justification(stypes.JustificationCenter)
	doc.AddParagraph("Generated by ProposalMate").Justification(stypes.JustificationCenter)
	return nil
}

func section(doc *docx.RootDoc, name string) error {
	_, err := doc.AddHeading(name, 1)
	return err
}

// labelled adds "label: value" with the label in bold.
func labelled(doc *docx.RootDoc, label, value string) {
	para := doc.AddEmptyParagraph()
	para.AddText(label + ": ").Bold(true)
	para.AddText(value)
}
