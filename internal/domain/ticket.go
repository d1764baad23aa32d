package domain

import "time"

// Priority orders tickets in the agent-facing views.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

// Ticket is the core helpdesk entity. At most one primary assignee;
// co-assignees and the team are additive notification targets only.
type Ticket struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Note          string     `json:"note"`
	CreatedBy     string     `json:"created_by"`
	AssigneeID    *string    `json:"assignee_id,omitempty"`
	TeamID        *string    `json:"team_id,omitempty"`
	CoAssigneeIDs []string   `json:"co_assignee_ids,omitempty"`
	Done          bool       `json:"done"`
	Priority      Priority   `json:"priority"`
	PausedUntil   *time.Time `json:"paused_until,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// User is a helpdesk account. Referenced by ID everywhere; the full record
// is only needed when building notification recipient lists.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Staff bool   `json:"staff"`
}

// Team groups staff users for shared ticket ownership.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Mailbox is an operator-created record naming a support inbox that the
// import pipeline feeds. Folder names the IMAP folder to poll when no
// per-run override is given; empty means INBOX.
type Mailbox struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Folder string `json:"folder"`
}

// Comment is a note on a ticket's timeline.
type Comment struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateTicketRequest is the inbound payload for an interactively
// created ticket.
type CreateTicketRequest struct {
	Title      string   `json:"title"`
	Note       string   `json:"note"`
	CreatedBy  string   `json:"created_by"`
	AssigneeID *string  `json:"assignee_id,omitempty"`
	TeamID     *string  `json:"team_id,omitempty"`
	Priority   Priority `json:"priority"`
}

func (r *CreateTicketRequest) Validate() error {
	if r.Title == "" || len(r.Title) > 255 {
		return ErrInvalidTitle
	}
	if r.CreatedBy == "" {
		return ErrInvalidCreator
	}
	if r.Priority == "" {
		r.Priority = PriorityNormal
	}
	if !r.Priority.IsValid() {
		return ErrInvalidPriority
	}
	return nil
}

// TicketChange is a partial update. Nil fields are left untouched;
// AssigneeID and TeamID use a double pointer so "clear the field" is
// distinguishable from "not part of this change".
type TicketChange struct {
	Title       *string     `json:"title,omitempty"`
	Note        *string     `json:"note,omitempty"`
	AssigneeID  **string    `json:"-"`
	TeamID      **string    `json:"-"`
	Done        *bool       `json:"done,omitempty"`
	Priority    *Priority   `json:"priority,omitempty"`
	PausedUntil **time.Time `json:"-"`
}

// Apply copies the change onto t, returning t for chaining.
func (c TicketChange) Apply(t *Ticket) *Ticket {
	if c.Title != nil {
		t.Title = *c.Title
	}
	if c.Note != nil {
		t.Note = *c.Note
	}
	if c.AssigneeID != nil {
		t.AssigneeID = *c.AssigneeID
	}
	if c.TeamID != nil {
		t.TeamID = *c.TeamID
	}
	if c.Done != nil {
		t.Done = *c.Done
	}
	if c.Priority != nil {
		t.Priority = *c.Priority
	}
	if c.PausedUntil != nil {
		t.PausedUntil = *c.PausedUntil
	}
	return t
}
