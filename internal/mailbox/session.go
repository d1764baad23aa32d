// Package mailbox speaks IMAP to the remote support inbox: folder
// selection, unseen search, raw fetch and the \Seen flag update that
// commits an import.
package mailbox

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/deskhub/helpdesk/internal/domain"
)

// Session is one authenticated IMAP conversation. It is owned by a single
// import run for its full lifetime and is not safe for concurrent use.
type Session interface {
	// SelectFolder opens a folder. readOnly must be false when the run
	// intends to update flags afterwards.
	SelectFolder(name string, readOnly bool) error
	// SearchUnseen returns the UIDs of unseen messages in server-reported
	// order. An empty result is success, not an error.
	SearchUnseen() ([]uint32, error)
	// FetchRaw returns the full RFC 822 bytes of one message.
	FetchRaw(uid uint32) ([]byte, error)
	// MarkSeen adds the \Seen flag to one message.
	MarkSeen(uid uint32) error
	// Close logs out and drops the connection. Always called, on every
	// exit path of the owning run.
	Close() error
}

// Dialer opens authenticated sessions. The production implementation
// dials TLS and performs the XOAUTH2 exchange; tests substitute a fake.
type Dialer interface {
	Dial(ctx context.Context, host, user, accessToken string) (Session, error)
}

// IMAPDialer is the production Dialer backed by emersion/go-imap.
type IMAPDialer struct {
	// Timeout applies to every command on the underlying connection so
	// a stalled server surfaces as a protocol error instead of a hang.
	Timeout time.Duration
}

func (d *IMAPDialer) Dial(ctx context.Context, host, user, accessToken string) (Session, error) {
	c, err := client.DialTLS(host, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", domain.ErrProtocol, host, err)
	}
	if d.Timeout > 0 {
		c.Timeout = d.Timeout
	}

	if err := c.Authenticate(NewXOAuth2(user, accessToken)); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("%w: XOAUTH2 exchange for %s: %v", domain.ErrAuth, user, err)
	}

	// Watch for external cancellation: terminating the connection unblocks
	// any in-flight command, so a cancelled run never hangs on the socket.
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.Terminate()
		case <-done:
		}
	}()

	return &imapSession{c: c, done: done}, nil
}

type imapSession struct {
	c    *client.Client
	done chan struct{}
}

func (s *imapSession) SelectFolder(name string, readOnly bool) error {
	if _, err := s.c.Select(name, readOnly); err != nil {
		return fmt.Errorf("%w: select %q: %v", domain.ErrProtocol, name, err)
	}
	return nil
}

func (s *imapSession) SearchUnseen() ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	uids, err := s.c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("%w: search unseen: %v", domain.ErrProtocol, err)
	}
	return uids, nil
}

func (s *imapSession) FetchRaw(uid uint32) ([]byte, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	if err := s.c.UidFetch(seqset, items, messages); err != nil {
		return nil, fmt.Errorf("%w: fetch uid %d: %v", domain.ErrProtocol, uid, err)
	}

	msg := <-messages
	if msg == nil {
		return nil, fmt.Errorf("%w: fetch uid %d: no message returned", domain.ErrProtocol, uid)
	}
	body := msg.GetBody(section)
	if body == nil {
		return nil, fmt.Errorf("%w: fetch uid %d: server returned no body section", domain.ErrProtocol, uid)
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: read uid %d: %v", domain.ErrProtocol, uid, err)
	}
	return raw, nil
}

func (s *imapSession) MarkSeen(uid uint32) error {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}
	if err := s.c.UidStore(seqset, item, flags, nil); err != nil {
		return fmt.Errorf("%w: mark uid %d seen: %v", domain.ErrProtocol, uid, err)
	}
	return nil
}

func (s *imapSession) Close() error {
	close(s.done)
	return s.c.Logout()
}
