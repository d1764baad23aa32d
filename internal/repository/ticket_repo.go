package repository

import (
	"context"

	"github.com/deskhub/helpdesk/internal/domain"
)

// TicketRepository is the persistence boundary of the core. The interactive
// CRUD surface of the application lives elsewhere; this interface carries
// exactly what the import pipeline, ticket service and event fanout need.
type TicketRepository interface {
	CreateTicket(ctx context.Context, t *domain.Ticket) error
	GetTicket(ctx context.Context, id string) (*domain.Ticket, error)
	UpdateTicket(ctx context.Context, t *domain.Ticket) error
	AddCoAssignee(ctx context.Context, ticketID, userID string) error

	CreateComment(ctx context.Context, c *domain.Comment) error

	// QueryTeamMembers returns the current members of a team. Used by the
	// fanout to expand team-addressed notifications into personal groups.
	QueryTeamMembers(ctx context.Context, teamID string) ([]domain.User, error)

	// GetMailboxByName resolves the operator-created mailbox record the
	// import pipeline writes into. domain.ErrNotFound when absent.
	GetMailboxByName(ctx context.Context, name string) (*domain.Mailbox, error)

	// CreateTicketFromMail persists a mail-created ticket together with
	// its attachments in a single transaction, so a crash mid-batch never
	// leaves a half-written ticket visible to readers.
	CreateTicketFromMail(ctx context.Context, t *domain.Ticket, attachments []domain.MessageAttachment) error
}
