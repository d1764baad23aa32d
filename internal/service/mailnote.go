package service

import (
	"regexp"
	"strings"

	"github.com/deskhub/helpdesk/internal/domain"
)

// MailNote renders an inbound email into a ticket note: a sender line,
// then the plain-text body when one exists, otherwise the HTML part
// flattened to text. The flattening is a readability policy, not a
// faithful HTML renderer.
func MailNote(msg *domain.IncomingMessage) string {
	var b strings.Builder
	b.WriteString(fromLine(msg))

	body := msg.Text
	if body == "" && msg.HTML != "" {
		body = flattenHTML(msg.HTML)
	}
	if body != "" {
		b.WriteString("\n")
		b.WriteString(body)
	}
	return strings.TrimSpace(b.String())
}

func fromLine(msg *domain.IncomingMessage) string {
	switch {
	case msg.FromName != "" && msg.FromAddr != "":
		return "From: " + msg.FromName + " <" + msg.FromAddr + ">"
	case msg.FromAddr != "":
		return "From: " + msg.FromAddr
	default:
		return "From: unknown"
	}
}

var (
	reBlockTag  = regexp.MustCompile(`(?i)<(?:br|/p|/div|/tr|/h[1-6]|/blockquote)\s*/?>`)
	reListItem  = regexp.MustCompile(`(?i)<li[^>]*>`)
	reTableCell = regexp.MustCompile(`(?i)</t[dh]>`)
	reTag       = regexp.MustCompile(`<[^>]*>`)
	reBlank     = regexp.MustCompile(`\n{3,}`)
)

// flattenHTML reduces an HTML body to readable plain text: block-level
// closers become newlines, list items become bulleted lines, table cells
// are tab-separated, and everything else is stripped.
func flattenHTML(s string) string {
	s = reBlockTag.ReplaceAllString(s, "\n")
	s = reListItem.ReplaceAllString(s, "\n- ")
	s = reTableCell.ReplaceAllString(s, "\t")
	s = reTag.ReplaceAllString(s, "")

	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	// Trim trailing whitespace per line and collapse runs of blank lines.
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	s = strings.Join(lines, "\n")
	s = reBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
