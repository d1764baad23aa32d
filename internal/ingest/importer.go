// Package ingest is the mail-to-ticket import pipeline: it exchanges the
// refresh credential for an access token, opens an authenticated IMAP
// session, and turns every unseen message into a ticket. Messages are
// flagged \Seen only after successful persistence, which makes the import
// at-least-once: a crash between persistence and flagging re-imports that
// one message on the next run. That duplicate window is accepted and
// documented, not hidden.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/deskhub/helpdesk/internal/domain"
	"github.com/deskhub/helpdesk/internal/mailbox"
)

// TokenSource acquires the access token a run authenticates with.
// Implemented by token.Broker.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// MailboxResolver resolves the operator-created mailbox record imports
// are destined for. Implemented by the ticket repository.
type MailboxResolver interface {
	GetMailboxByName(ctx context.Context, name string) (*domain.Mailbox, error)
}

// TicketCreator persists one decoded message as a ticket. Implemented by
// the ticket service; this is the only ticket-creation path the pipeline
// invokes.
type TicketCreator interface {
	CreateFromMail(ctx context.Context, msg *domain.IncomingMessage) (*domain.Ticket, error)
}

// Options parameterize one import run.
type Options struct {
	// Mailbox names the destination mailbox record. A missing record is
	// an operator error and aborts the run with domain.ErrConfig.
	Mailbox string
	// Folder overrides the IMAP folder to poll; empty falls back to the
	// mailbox record's folder, then INBOX.
	Folder string
	// MarkSeen controls whether persisted messages are flagged \Seen.
	MarkSeen bool
	// DryRun inspects the mailbox without persisting or flagging anything.
	DryRun bool
	// Limit truncates the unseen UID set, preserving server order.
	// Zero means no limit.
	Limit int
}

// Importer orchestrates one run of the pipeline. Each run owns its own
// session for its full lifetime; nothing here is shared across runs.
type Importer struct {
	broker  TokenSource
	dialer  mailbox.Dialer
	boxes   MailboxResolver
	tickets TicketCreator
	limiter *rate.Limiter
	logger  *zap.Logger

	host string
	user string
}

// New builds an importer. fetchRate bounds message fetches per second
// within a run (<= 0 disables throttling).
func New(
	broker TokenSource,
	dialer mailbox.Dialer,
	boxes MailboxResolver,
	tickets TicketCreator,
	host, user string,
	fetchRate int,
	logger *zap.Logger,
) *Importer {
	limit := rate.Inf
	burst := 1
	if fetchRate > 0 {
		limit = rate.Limit(fetchRate)
		burst = fetchRate
	}
	return &Importer{
		broker:  broker,
		dialer:  dialer,
		boxes:   boxes,
		tickets: tickets,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
		host:    host,
		user:    user,
	}
}

// Run executes one import and returns the number of messages persisted
// as tickets. Zero with a nil error means no unread mail.
func (imp *Importer) Run(ctx context.Context, opts Options) (int, error) {
	log := imp.logger.With(zap.String("mailbox", opts.Mailbox))

	accessToken, err := imp.broker.AccessToken(ctx)
	if err != nil {
		// Abort without touching the mailbox.
		return 0, err
	}

	session, err := imp.dialer.Dial(ctx, imp.host, imp.user, accessToken)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn("closing IMAP session", zap.Error(err))
		}
	}()

	// The record is resolved before folder selection because it is the
	// second fallback tier for the folder choice.
	record, err := imp.boxes.GetMailboxByName(ctx, opts.Mailbox)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, fmt.Errorf("%w: mailbox record %q does not exist", domain.ErrConfig, opts.Mailbox)
		}
		return 0, fmt.Errorf("resolve mailbox %q: %w", opts.Mailbox, err)
	}

	folder := effectiveFolder(opts, record)
	log = log.With(zap.String("folder", folder))

	// Read-write unless this is a dry run: flag updates need it later.
	if err := session.SelectFolder(folder, opts.DryRun); err != nil {
		return 0, err
	}

	uids, err := session.SearchUnseen()
	if err != nil {
		return 0, err
	}
	if opts.Limit > 0 && len(uids) > opts.Limit {
		uids = uids[:opts.Limit]
	}

	imported := 0
	for _, uid := range uids {
		if err := imp.limiter.Wait(ctx); err != nil {
			return imported, fmt.Errorf("run cancelled: %w", err)
		}

		raw, err := session.FetchRaw(uid)
		if err != nil {
			// Per-message failure: skip, leave unseen, keep going.
			log.Warn("fetch failed, message stays unseen", zap.Uint32("uid", uid), zap.Error(err))
			continue
		}

		if opts.DryRun {
			continue
		}

		msg, err := decodeMessage(raw)
		if err != nil {
			log.Warn("undecodable message skipped", zap.Uint32("uid", uid), zap.Error(err))
			continue
		}

		ticket, err := imp.tickets.CreateFromMail(ctx, msg)
		if err != nil {
			log.Warn("persisting message failed, message stays unseen", zap.Uint32("uid", uid), zap.Error(err))
			continue
		}
		imported++

		if opts.MarkSeen {
			if err := session.MarkSeen(uid); err != nil {
				// Non-fatal: the message re-imports next run; the duplicate
				// risk of this window is the documented at-least-once cost.
				log.Warn("could not mark message seen, it will re-import",
					zap.Uint32("uid", uid), zap.String("ticket_id", ticket.ID), zap.Error(err))
			}
		}

		log.Info("message imported", zap.Uint32("uid", uid), zap.String("ticket_id", ticket.ID))
	}

	return imported, nil
}

func effectiveFolder(opts Options, box *domain.Mailbox) string {
	if opts.Folder != "" {
		return opts.Folder
	}
	if box.Folder != "" {
		return box.Folder
	}
	return "INBOX"
}
