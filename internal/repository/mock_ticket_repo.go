package repository

import (
	"context"
	"sync"

	"github.com/deskhub/helpdesk/internal/domain"
)

// MockTicketRepository is a hand-written, in-memory implementation of
// TicketRepository used in unit tests. No mock-generation library needed.
type MockTicketRepository struct {
	mu          sync.RWMutex
	tickets     map[string]*domain.Ticket
	comments    map[string][]*domain.Comment
	attachments map[string][]domain.MessageAttachment
	teams       map[string][]domain.User
	mailboxes   map[string]*domain.Mailbox

	// Optional error overrides — set in tests to simulate failure paths.
	CreateErr     error
	UpdateErr     error
	FromMailErr   error
	TeamQueryErr  error
	GetMailboxErr error
}

func NewMockTicketRepository() *MockTicketRepository {
	return &MockTicketRepository{
		tickets:     make(map[string]*domain.Ticket),
		comments:    make(map[string][]*domain.Comment),
		attachments: make(map[string][]domain.MessageAttachment),
		teams:       make(map[string][]domain.User),
		mailboxes:   make(map[string]*domain.Mailbox),
	}
}

// SeedTeam registers team members returned by QueryTeamMembers.
func (m *MockTicketRepository) SeedTeam(teamID string, members ...domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teams[teamID] = members
}

// SeedMailbox registers a mailbox record resolvable by name.
func (m *MockTicketRepository) SeedMailbox(box *domain.Mailbox) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mailboxes[box.Name] = box
}

// Tickets returns a snapshot of every stored ticket.
func (m *MockTicketRepository) Tickets() []*domain.Ticket {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Ticket, 0, len(m.tickets))
	for _, t := range m.tickets {
		clone := *t
		out = append(out, &clone)
	}
	return out
}

func (m *MockTicketRepository) CreateTicket(_ context.Context, t *domain.Ticket) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *t
	m.tickets[t.ID] = &clone
	return nil
}

func (m *MockTicketRepository) GetTicket(_ context.Context, id string) (*domain.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *t
	clone.CoAssigneeIDs = append([]string(nil), t.CoAssigneeIDs...)
	return &clone, nil
}

func (m *MockTicketRepository) UpdateTicket(_ context.Context, t *domain.Ticket) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tickets[t.ID]; !ok {
		return domain.ErrNotFound
	}
	clone := *t
	m.tickets[t.ID] = &clone
	return nil
}

func (m *MockTicketRepository) AddCoAssignee(_ context.Context, ticketID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[ticketID]
	if !ok {
		return domain.ErrNotFound
	}
	for _, existing := range t.CoAssigneeIDs {
		if existing == userID {
			return domain.ErrAlreadyAssigned
		}
	}
	t.CoAssigneeIDs = append(t.CoAssigneeIDs, userID)
	return nil
}

func (m *MockTicketRepository) CreateComment(_ context.Context, c *domain.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *c
	m.comments[c.TicketID] = append(m.comments[c.TicketID], &clone)
	return nil
}

func (m *MockTicketRepository) QueryTeamMembers(_ context.Context, teamID string) ([]domain.User, error) {
	if m.TeamQueryErr != nil {
		return nil, m.TeamQueryErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.User(nil), m.teams[teamID]...), nil
}

func (m *MockTicketRepository) GetMailboxByName(_ context.Context, name string) (*domain.Mailbox, error) {
	if m.GetMailboxErr != nil {
		return nil, m.GetMailboxErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	box, ok := m.mailboxes[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *box
	return &clone, nil
}

func (m *MockTicketRepository) CreateTicketFromMail(_ context.Context, t *domain.Ticket, attachments []domain.MessageAttachment) error {
	if m.FromMailErr != nil {
		return m.FromMailErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *t
	m.tickets[t.ID] = &clone
	m.attachments[t.ID] = append([]domain.MessageAttachment(nil), attachments...)
	return nil
}

var _ TicketRepository = (*MockTicketRepository)(nil)
