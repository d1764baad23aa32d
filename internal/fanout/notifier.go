// Package fanout turns ticket lifecycle events into notification payloads
// and publishes them to the delivery groups that should hear about them.
package fanout

import (
	"context"

	"go.uber.org/zap"

	"github.com/deskhub/helpdesk/internal/domain"
	"github.com/deskhub/helpdesk/internal/pubsub"
)

// TeamMemberSource resolves a team into its current members. Implemented
// by the ticket repository.
type TeamMemberSource interface {
	QueryTeamMembers(ctx context.Context, teamID string) ([]domain.User, error)
}

// Hooks carries the metric callbacks injected by main.
type Hooks struct {
	OnPublished func(group string)
	OnDropped   func()
}

// Notifier is the event-fanout component. All dispatches are best-effort
// and asynchronous: the triggering mutation has already committed by the
// time a payload is published, and a delivery failure is logged and
// dropped, never surfaced to the mutating caller.
type Notifier struct {
	channel pubsub.Publisher
	members TeamMemberSource
	logger  *zap.Logger
	hooks   Hooks

	d *dispatcher
}

// New starts the notifier's dispatch workers. Call Close on shutdown to
// drain them.
func New(channel pubsub.Publisher, members TeamMemberSource, logger *zap.Logger, hooks Hooks) *Notifier {
	if hooks.OnPublished == nil {
		hooks.OnPublished = func(string) {}
	}
	if hooks.OnDropped == nil {
		hooks.OnDropped = func() {}
	}
	n := &Notifier{
		channel: channel,
		members: members,
		logger:  logger,
		hooks:   hooks,
	}
	n.d = newDispatcher(n.deliver, logger)
	return n
}

// Close stops accepting dispatches and waits for in-flight publishes.
func (n *Notifier) Close() {
	n.d.close()
}

// TicketCreated notifies the broadcast group plus, when set, the primary
// assignee and every member of the assigned team. Fired for interactive
// and mail-created tickets alike.
func (n *Notifier) TicketCreated(ctx context.Context, t *domain.Ticket) {
	payload := domain.Notification{
		Title:   "New ticket",
		Message: t.Title,
		URL:     ticketURL(t),
		Level:   domain.LevelInfo,
	}

	n.d.enqueue(domain.BroadcastGroup, payload, n.hooks)
	if t.AssigneeID != nil {
		n.d.enqueue(domain.UserGroup(*t.AssigneeID), payload, n.hooks)
	}
	if t.TeamID != nil {
		n.notifyTeam(ctx, *t.TeamID, payload)
	}
}

// AssigneeChanged notifies only the new primary assignee. Callers detect
// the change by comparing the persisted prior state against the incoming
// state before the write commits.
func (n *Notifier) AssigneeChanged(_ context.Context, t *domain.Ticket, newAssigneeID string) {
	n.d.enqueue(domain.UserGroup(newAssigneeID), domain.Notification{
		Title:   "Ticket assigned to you",
		Message: t.Title,
		URL:     ticketURL(t),
		Level:   domain.LevelSuccess,
	}, n.hooks)
}

// TeamChanged notifies every current member of the newly assigned team.
func (n *Notifier) TeamChanged(ctx context.Context, t *domain.Ticket, newTeamID string) {
	n.notifyTeam(ctx, newTeamID, domain.Notification{
		Title:   "New team ticket",
		Message: t.Title,
		URL:     ticketURL(t),
		Level:   domain.LevelInfo,
	})
}

// CoAssigneeAdded notifies the user who was just added.
func (n *Notifier) CoAssigneeAdded(_ context.Context, t *domain.Ticket, userID string) {
	n.d.enqueue(domain.UserGroup(userID), domain.Notification{
		Title:   "Added as co-assignee",
		Message: t.Title,
		URL:     ticketURL(t),
		Level:   domain.LevelInfo,
	}, n.hooks)
}

func (n *Notifier) notifyTeam(ctx context.Context, teamID string, payload domain.Notification) {
	members, err := n.members.QueryTeamMembers(ctx, teamID)
	if err != nil {
		// Degrade gracefully: the mutation already happened, the team
		// simply does not get notified this time.
		n.logger.Warn("could not resolve team members for fanout",
			zap.String("team_id", teamID), zap.Error(err))
		return
	}
	for _, m := range members {
		n.d.enqueue(domain.UserGroup(m.ID), payload, n.hooks)
	}
}

func ticketURL(t *domain.Ticket) string {
	return "/tickets/" + t.ID
}

func (n *Notifier) deliver(group string, payload domain.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := n.channel.Publish(ctx, group, payload); err != nil {
		n.logger.Warn("notification dropped: delivery channel unavailable",
			zap.String("group", group),
			zap.String("title", payload.Title),
			zap.Error(err))
		n.hooks.OnDropped()
		return
	}
	n.hooks.OnPublished(group)
}
