package ingest

import (
	"bytes"
	"fmt"
	"io"

	"github.com/emersion/go-message/mail"

	"github.com/deskhub/helpdesk/internal/domain"
)

// decodeMessage parses raw RFC 822 bytes into the structure the ticket
// service persists. Header parse failures are fatal for the message;
// unreadable individual parts are skipped.
func decodeMessage(raw []byte) (*domain.IncomingMessage, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("create mail reader: %w", err)
	}

	msg := &domain.IncomingMessage{}

	header := mr.Header
	if fromList, err := header.AddressList("From"); err == nil && len(fromList) > 0 {
		msg.FromName = fromList[0].Name
		msg.FromAddr = fromList[0].Address
	}
	if subject, err := header.Subject(); err == nil {
		msg.Subject = subject
	}
	if date, err := header.Date(); err == nil {
		msg.Date = date
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			b, err := io.ReadAll(p.Body)
			if err != nil {
				continue
			}
			t, _, _ := h.ContentType()
			switch t {
			case "text/plain":
				msg.Text += string(b)
			case "text/html":
				msg.HTML += string(b)
			}
		case *mail.AttachmentHeader:
			filename, err := h.Filename()
			if err != nil || filename == "" {
				filename = "attachment"
			}
			content, err := io.ReadAll(p.Body)
			if err != nil {
				continue
			}
			msg.Attachments = append(msg.Attachments, domain.MessageAttachment{
				Filename: filename,
				Content:  content,
			})
		}
	}

	return msg, nil
}
