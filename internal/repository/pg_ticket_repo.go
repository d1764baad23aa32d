package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskhub/helpdesk/internal/domain"
)

// PgTicketRepository implements TicketRepository on PostgreSQL. It also
// exposes Reset so the scheduler can discard stale connections between
// ticks.
type PgTicketRepository struct {
	pool *pgxpool.Pool
}

// NewPgTicketRepository returns a TicketRepository backed by PostgreSQL.
func NewPgTicketRepository(pool *pgxpool.Pool) *PgTicketRepository {
	return &PgTicketRepository{pool: pool}
}

// Reset closes all idle and checked-in connections in the pool. In-use
// connections are closed on return.
func (r *PgTicketRepository) Reset() {
	r.pool.Reset()
}

const ticketColumns = `id, title, note, created_by, assignee_id, team_id,
       done, priority, paused_until, created_at, updated_at`

func (r *PgTicketRepository) CreateTicket(ctx context.Context, t *domain.Ticket) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tickets
			(id, title, note, created_by, assignee_id, team_id,
			 done, priority, paused_until, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		t.ID, t.Title, t.Note, t.CreatedBy, t.AssigneeID, t.TeamID,
		t.Done, t.Priority, t.PausedUntil, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

func (r *PgTicketRepository) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)

	t, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM ticket_co_assignees WHERE ticket_id = $1 ORDER BY added_at`, id)
	if err != nil {
		return nil, fmt.Errorf("load co-assignees: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		t.CoAssigneeIDs = append(t.CoAssigneeIDs, uid)
	}
	return t, rows.Err()
}

func (r *PgTicketRepository) UpdateTicket(ctx context.Context, t *domain.Ticket) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tickets
		SET title = $1, note = $2, assignee_id = $3, team_id = $4,
		    done = $5, priority = $6, paused_until = $7, updated_at = $8
		WHERE id = $9`,
		t.Title, t.Note, t.AssigneeID, t.TeamID,
		t.Done, t.Priority, t.PausedUntil, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgTicketRepository) AddCoAssignee(ctx context.Context, ticketID, userID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO ticket_co_assignees (ticket_id, user_id, added_at)
		VALUES ($1, $2, now())`,
		ticketID, userID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "ticket_co_assignees_pkey") {
			return domain.ErrAlreadyAssigned
		}
		return fmt.Errorf("add co-assignee: %w", err)
	}
	return nil
}

func (r *PgTicketRepository) CreateComment(ctx context.Context, c *domain.Comment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO comments (id, ticket_id, author_id, text, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		c.ID, c.TicketID, c.AuthorID, c.Text, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (r *PgTicketRepository) QueryTeamMembers(ctx context.Context, teamID string) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.name, u.email, u.staff
		FROM users u
		JOIN team_members tm ON tm.user_id = u.id
		WHERE tm.team_id = $1
		ORDER BY u.name`, teamID)
	if err != nil {
		return nil, fmt.Errorf("query team members: %w", err)
	}
	defer rows.Close()

	var members []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Staff); err != nil {
			return nil, err
		}
		members = append(members, u)
	}
	return members, rows.Err()
}

func (r *PgTicketRepository) GetMailboxByName(ctx context.Context, name string) (*domain.Mailbox, error) {
	var m domain.Mailbox
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, folder FROM mailboxes WHERE name = $1`, name,
	).Scan(&m.ID, &m.Name, &m.Folder)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get mailbox %q: %w", name, err)
	}
	return &m, nil
}

func (r *PgTicketRepository) CreateTicketFromMail(ctx context.Context, t *domain.Ticket, attachments []domain.MessageAttachment) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin mail-import tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO tickets
			(id, title, note, created_by, assignee_id, team_id,
			 done, priority, paused_until, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		t.ID, t.Title, t.Note, t.CreatedBy, t.AssigneeID, t.TeamID,
		t.Done, t.Priority, t.PausedUntil, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert mail ticket: %w", err)
	}

	for _, att := range attachments {
		_, err = tx.Exec(ctx, `
			INSERT INTO attachments (ticket_id, filename, content, created_at)
			VALUES ($1, $2, $3, now())`,
			t.ID, att.Filename, att.Content,
		)
		if err != nil {
			return fmt.Errorf("insert attachment %q: %w", att.Filename, err)
		}
	}

	return tx.Commit(ctx)
}

// compile-time check that PgTicketRepository implements TicketRepository
var _ TicketRepository = (*PgTicketRepository)(nil)

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	err := row.Scan(
		&t.ID, &t.Title, &t.Note, &t.CreatedBy, &t.AssigneeID, &t.TeamID,
		&t.Done, &t.Priority, &t.PausedUntil, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
