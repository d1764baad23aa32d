package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/deskhub/helpdesk/internal/domain"
	"github.com/deskhub/helpdesk/internal/repository"
)

// Events is the explicit trigger table of the notification fanout. The
// service calls these directly after a mutation commits; there is no
// ambient signal registration. Dispatch failures never surface here.
type Events interface {
	TicketCreated(ctx context.Context, t *domain.Ticket)
	AssigneeChanged(ctx context.Context, t *domain.Ticket, newAssigneeID string)
	TeamChanged(ctx context.Context, t *domain.Ticket, newTeamID string)
	CoAssigneeAdded(ctx context.Context, t *domain.Ticket, userID string)
}

// TicketService owns ticket mutations and the "who gets notified for
// what" policy around them. Handlers and the import pipeline depend on
// this service, not on the repository or the fanout directly.
type TicketService struct {
	repo   repository.TicketRepository
	events Events
	logger *zap.Logger

	// systemUserID is the account mail-created tickets are attributed to.
	systemUserID string
}

func NewTicketService(repo repository.TicketRepository, events Events, systemUserID string, logger *zap.Logger) *TicketService {
	if systemUserID == "" {
		systemUserID = "mailer"
	}
	return &TicketService{repo: repo, events: events, systemUserID: systemUserID, logger: logger}
}

// Create validates and persists an interactively created ticket, then
// fans out the creation event.
func (s *TicketService) Create(ctx context.Context, req domain.CreateTicketRequest) (*domain.Ticket, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t := &domain.Ticket{
		ID:         uuid.New().String(),
		Title:      req.Title,
		Note:       req.Note,
		CreatedBy:  req.CreatedBy,
		AssigneeID: req.AssigneeID,
		TeamID:     req.TeamID,
		Priority:   req.Priority,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.CreateTicket(ctx, t); err != nil {
		return nil, fmt.Errorf("persist ticket: %w", err)
	}

	s.events.TicketCreated(ctx, t)
	return t, nil
}

func (s *TicketService) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	return s.repo.GetTicket(ctx, id)
}

// Update applies a partial change. Assignment changes are detected by
// comparing the persisted prior state against the incoming state before
// the write commits (read-before-write); post-write hooks cannot reliably
// tell which fields changed. Only genuine assignment changes dispatch
// notifications; edits to title, note, priority and the like stay silent.
func (s *TicketService) Update(ctx context.Context, id string, change domain.TicketChange) (*domain.Ticket, error) {
	prior, err := s.repo.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}

	next := *prior
	change.Apply(&next)
	next.UpdatedAt = time.Now().UTC()

	newAssignee, assigneeChanged := assignmentDiff(prior.AssigneeID, next.AssigneeID)
	newTeam, teamChanged := assignmentDiff(prior.TeamID, next.TeamID)

	if err := s.repo.UpdateTicket(ctx, &next); err != nil {
		return nil, fmt.Errorf("persist ticket update: %w", err)
	}

	if assigneeChanged {
		s.events.AssigneeChanged(ctx, &next, newAssignee)
	}
	if teamChanged {
		s.events.TeamChanged(ctx, &next, newTeam)
	}
	return &next, nil
}

// AddCoAssignee adds an additive notification target and notifies the
// added user. The primary assignee is untouched.
func (s *TicketService) AddCoAssignee(ctx context.Context, id, userID string) (*domain.Ticket, error) {
	if err := s.repo.AddCoAssignee(ctx, id, userID); err != nil {
		return nil, err
	}
	t, err := s.repo.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}

	s.events.CoAssigneeAdded(ctx, t, userID)
	return t, nil
}

// AddComment appends a note to a ticket's timeline. Comments notify
// nobody; they are record-keeping, not assignment.
func (s *TicketService) AddComment(ctx context.Context, ticketID, authorID, text string) (*domain.Comment, error) {
	if _, err := s.repo.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}

	c := &domain.Comment{
		ID:        uuid.New().String(),
		TicketID:  ticketID,
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateComment(ctx, c); err != nil {
		return nil, fmt.Errorf("persist comment: %w", err)
	}
	return c, nil
}

// CreateFromMail is the only ticket-creation path the import pipeline
// invokes. The ticket and its attachments are persisted in one
// transaction; the creation event fans out afterwards.
func (s *TicketService) CreateFromMail(ctx context.Context, msg *domain.IncomingMessage) (*domain.Ticket, error) {
	now := time.Now().UTC()
	title := msg.Subject
	if title == "" {
		title = "(no subject)"
	}

	t := &domain.Ticket{
		ID:        uuid.New().String(),
		Title:     title,
		Note:      MailNote(msg),
		CreatedBy: s.systemUserID,
		Priority:  domain.PriorityNormal,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateTicketFromMail(ctx, t, msg.Attachments); err != nil {
		return nil, fmt.Errorf("persist mail ticket: %w", err)
	}

	s.events.TicketCreated(ctx, t)
	return t, nil
}

// assignmentDiff reports whether a nullable assignment field changed to a
// new non-empty value. Clearing a field dispatches nothing: there is no
// one to notify.
func assignmentDiff(prior, next *string) (string, bool) {
	if next == nil {
		return "", false
	}
	if prior != nil && *prior == *next {
		return "", false
	}
	return *next, true
}
