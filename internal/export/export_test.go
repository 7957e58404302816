package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"proposalmate/internal/models"
)

func sample() *models.Proposal {
	total := 1200.0
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return &models.Proposal{
		ID:     bson.NewObjectID(),
		Title:  "Wedding Package",
		Client: models.Client{Name: "Alice", Email: "alice@example.com", Company: "Rose & Thorn"},
		ProjectDetails: models.ProjectDetails{
			Description:  "Full-day wedding photography",
			Deliverables: []string{"Edited gallery", "Printed album"},
			Timeline: &models.Timeline{
				StartDate:  &start,
				Milestones: []models.Milestone{{Title: "Engagement shoot", Date: &start}},
			},
		},
		Pricing: models.Pricing{
			Currency: "GBP",
			Total:    &total,
			Breakdown: []models.LineItem{
				{Item: "Photography", Quantity: 1, UnitPrice: 1000, Amount: 1000},
				{Item: "Album", Quantity: 2, UnitPrice: 100, Amount: 200},
			},
			PaymentTerms: "50% deposit",
		},
		Template:  models.DefaultTemplate,
		Status:    models.StatusDraft,
		CreatedAt: time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func readPDF(t *testing.T, data []byte) *pdf.Reader {
	t.Helper()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return r
}

func pageText(t *testing.T, r *pdf.Reader, n int) string {
	t.Helper()
	text, err := r.Page(n).GetPlainText(nil)
	require.NoError(t, err)
	return text
}

func TestPDF_Content(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{}).PDF(&buf, sample()))
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	r := readPDF(t, buf.Bytes())
	require.Equal(t, 1, r.NumPage())

	text := pageText(t, r, 1)
	for _, want := range []string{
		"PROPOSAL",
		"Wedding Package",
		"CLIENT INFORMATION",
		"Company: Rose & Thorn",
		"PROJECT DETAILS",
		"Edited gallery",
		"Engagement shoot - 01/06/2025",
		"Total: GBP 1200.00",
		"GBP 1000.00",
		"50% deposit",
		"Proposal created on 14/03/2025",
		"Generated by ProposalMate",
	} {
		assert.Contains(t, text, want)
	}
}

func TestPDF_PaginatesWithFooterOnEveryPage(t *testing.T) {
	p := sample()
	for i := range 120 {
		p.ProjectDetails.Deliverables = append(p.ProjectDetails.Deliverables, fmt.Sprintf("Deliverable %d", i))
	}

	var buf bytes.Buffer
	require.NoError(t, New(Options{}).PDF(&buf, p))

	r := readPDF(t, buf.Bytes())
	require.Greater(t, r.NumPage(), 1)
	for n := 1; n <= r.NumPage(); n++ {
		assert.Contains(t, pageText(t, r, n), "Generated by ProposalMate", "page %d", n)
	}
}

func TestPDF_MinimalProposal(t *testing.T) {
	total := 0.0
	p := &models.Proposal{
		ID:      bson.NewObjectID(),
		Title:   "Quick quote",
		Client:  models.Client{Name: "Bob", Email: "bob@example.com"},
		Pricing: models.Pricing{Currency: "EUR", Total: &total},
	}

	var buf bytes.Buffer
	require.NoError(t, New(Options{}).PDF(&buf, p))
	assert.Contains(t, pageText(t, readPDF(t, buf.Bytes()), 1), "Total: EUR 0.00")
}

func docxDocument(t *testing.T, data []byte) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	names := make([]string, 0, len(zr.File))
	var document string
	for _, f := range zr.File {
		names = append(names, f.Name)
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		document = string(b)
	}
	assert.Contains(t, names, "[Content_Types].xml")
	assert.Contains(t, names, "word/styles.xml")
	require.NotEmpty(t, document, "word/document.xml missing")
	return document
}

// docxText returns the visible text of document, one line per paragraph.
func docxText(t *testing.T, document string) string {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(document))
	var (
		sb     strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		switch el := tok.(type) {
		case xml.StartElement:
			inText = el.Name.Local == "t"
		case xml.EndElement:
			inText = false
			if el.Name.Local == "p" {
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(el)
			}
		}
	}
	return sb.String()
}

func renderDOCX(t *testing.T, opts Options, p *models.Proposal) (document, text string) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, New(opts).DOCX(&buf, p))
	document = docxDocument(t, buf.Bytes())
	return document, docxText(t, document)
}

func TestDOCX_DefaultCarriesDescriptionOnly(t *testing.T) {
	p := sample()
	p.ProjectDetails.Scope = "Ceremony and reception"
	doc, text := renderDOCX(t, Options{}, p)

	assert.Contains(t, doc, `<w:pStyle w:val="Title"`)
	assert.Contains(t, doc, `<w:pStyle w:val="Heading1"`)
	for _, want := range []string{
		"PROPOSAL",
		"Wedding Package",
		"CLIENT INFORMATION",
		"Client: Alice",
		"Company: Rose & Thorn",
		"PROJECT DETAILS",
		"Full-day wedding photography",
	} {
		assert.Contains(t, text, want)
	}
	for _, absent := range []string{
		"Scope of Work",
		"Edited gallery",
		"Start Date",
		"Engagement shoot",
		"PRICING",
		"1200.00",
		"Generated by ProposalMate",
	} {
		assert.NotContains(t, text, absent)
	}
}

func TestDOCX_FullContent(t *testing.T) {
	p := sample()
	p.ProjectDetails.Scope = "Ceremony and reception"
	_, text := renderDOCX(t, Options{DocxFullContent: true}, p)

	for _, want := range []string{
		"Full-day wedding photography",
		"Scope of Work: Ceremony and reception",
		"Edited gallery",
		"Printed album",
		"Start Date: 01/06/2025",
		"Engagement shoot - 01/06/2025",
		"PRICING",
		"Total: GBP 1200.00",
		"Album",
		"GBP 100.00",
		"GBP 200.00",
		"Payment Terms: 50% deposit",
		"Proposal created on 14/03/2025",
		"Generated by ProposalMate",
	} {
		assert.Contains(t, text, want)
	}
}

func TestDOCX_EscapesMarkup(t *testing.T) {
	p := sample()
	p.Title = `<script>alert("x")</script>`
	doc, text := renderDOCX(t, Options{}, p)

	assert.NotContains(t, doc, "<script>")
	assert.Contains(t, doc, "&lt;script&gt;")
	assert.Contains(t, text, p.Title)
}

func TestFileNameAndContentType(t *testing.T) {
	p := sample()
	assert.Equal(t, "proposal-"+p.ID.Hex()+".pdf", FileName(p, FormatPDF))
	assert.Equal(t, "proposal-"+p.ID.Hex()+".docx", FileName(p, FormatDOCX))
	assert.Equal(t, "application/pdf", FormatPDF.ContentType())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", FormatDOCX.ContentType())
}
