package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

var layout = template.Must(template.New("email").Parse(`<div style="font-family: sans-serif; max-width: 520px; margin: 0 auto; padding: 24px;">
<h2 style="color: #333;">{{.Heading}}</h2>
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}{{if .Link}}<a href="{{.Link}}" style="display: inline-block; background: #6366f1; color: white; padding: 12px 24px; border-radius: 8px; text-decoration: none; font-weight: 600;">{{.LinkText}}</a>
{{end}}{{if .Footer}}<p style="color: #888; font-size: 13px; margin-top: 16px;">{{.Footer}}</p>
{{end}}</div>`))

type page struct {
	Heading    string
	Paragraphs []string
	Link       string
	LinkText   string
	Footer     string
}

func render(p page) string {
	var buf bytes.Buffer
	if err := layout.Execute(&buf, p); err != nil {
		// The template is static; only a broken writer could fail here.
		return ""
	}
	return buf.String()
}

// PasswordReset builds the reset mail carrying link.
func PasswordReset(to, link string) Message {
	return Message{
		To:      []string{to},
		Subject: "ProposalMate password reset",
		Text: fmt.Sprintf("You are receiving this email because you (or someone else) requested a password reset.\n\n"+
			"Reset your password here: %s\n\nThis link expires in 15 minutes.", link),
		HTML: render(page{
			Heading:    "Reset your password",
			Paragraphs: []string{"You are receiving this email because you (or someone else) requested a password reset."},
			Link:       link,
			LinkText:   "Reset password",
			Footer:     "This link expires in 15 minutes and can only be used once. If you didn't request this, you can safely ignore this email.",
		}),
	}
}

// ShareProposal builds the mail a user sends to invite a client to view a
// proposal.
func ShareProposal(to, replyTo, subject, note, senderName, title, link string) Message {
	if subject == "" {
		subject = fmt.Sprintf("Proposal: %s", title)
	}
	paragraphs := []string{fmt.Sprintf("%s has shared the proposal \"%s\" with you.", senderName, title)}
	if note != "" {
		paragraphs = append(paragraphs, note)
	}
	return Message{
		To:      []string{to},
		ReplyTo: replyTo,
		Subject: subject,
		Text:    fmt.Sprintf("%s\n\nView the proposal: %s", strings.Join(paragraphs, "\n\n"), link),
		HTML: render(page{
			Heading:    title,
			Paragraphs: paragraphs,
			Link:       link,
			LinkText:   "View proposal",
			Footer:     "Sent with ProposalMate",
		}),
	}
}

// ProposalAccepted tells the owner that a client signed.
func ProposalAccepted(to, title, clientName, clientEmail string) Message {
	line := fmt.Sprintf("%s (%s) has accepted your proposal \"%s\".", clientName, clientEmail, title)
	return Message{
		To:      []string{to},
		Subject: fmt.Sprintf("Proposal accepted: %s", title),
		Text:    line,
		HTML: render(page{
			Heading:    "Proposal accepted",
			Paragraphs: []string{line},
			Footer:     "Sent with ProposalMate",
		}),
	}
}
