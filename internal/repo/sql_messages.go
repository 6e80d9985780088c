package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/LeventeLantos/sms-questionnaire/internal/model"
)

const messageColumns = `id, provider_id, direction, sender, recipient, body, status, account_id, user_id, created_at, updated_at`

// statusRank mirrors model.Status.Rank so stale callbacks can be filtered in SQL.
const statusRank = `CASE status
	WHEN 'queued' THEN 1
	WHEN 'sending' THEN 2
	WHEN 'sent' THEN 3
	WHEN 'delivered' THEN 4
	WHEN 'undelivered' THEN 4
	WHEN 'failed' THEN 4
	ELSE 0 END`

type SQLMessageRepo struct {
	c conn
}

func (r *SQLMessageRepo) RecordIncoming(ctx context.Context, in model.InboundMessage) (model.Message, error) {
	status := in.Status
	if status == "" {
		status = model.Received
	}
	return r.insert(ctx, model.Message{
		ProviderID: in.ProviderID,
		Direction:  model.Incoming,
		From:       in.From,
		To:         in.To,
		Body:       in.Body,
		Status:     status,
		AccountID:  in.AccountID,
	})
}

func (r *SQLMessageRepo) RecordOutgoing(ctx context.Context, m model.Message) (model.Message, error) {
	m.Direction = model.Outgoing
	if m.Status == "" {
		m.Status = model.Queued
	}
	return r.insert(ctx, m)
}

func (r *SQLMessageRepo) insert(ctx context.Context, m model.Message) (model.Message, error) {
	now := r.c.now()
	m.CreatedAt = now
	m.UpdatedAt = now

	err := r.c.queryRow(ctx, `
		INSERT INTO messages (provider_id, direction, sender, recipient, body, status, account_id, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider_id) DO NOTHING
		RETURNING id
	`,
		m.ProviderID,
		string(m.Direction),
		m.From,
		m.To,
		m.Body,
		string(m.Status),
		m.AccountID,
		nullableInt64(m.UserID),
		now,
		now,
	).Scan(&m.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Message{}, fmt.Errorf("message %s: %w", m.ProviderID, ErrDuplicateDelivery)
	}
	if err != nil {
		return model.Message{}, err
	}
	return m, nil
}

// UpdateStatus patches the status of an existing outgoing message. It never
// creates rows and never moves a message backwards in its lifecycle. The
// returned bool reports whether an outgoing message with that id exists.
func (r *SQLMessageRepo) UpdateStatus(ctx context.Context, providerID string, status model.Status) (bool, error) {
	res, err := r.c.exec(ctx, `
		UPDATE messages
		SET status = ?, updated_at = ?
		WHERE provider_id = ?
		  AND direction = 'outgoing'
		  AND `+statusRank+` <= ?
	`, string(status), r.c.now(), providerID, status.Rank())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	var exists bool
	err = r.c.queryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM messages WHERE provider_id = ? AND direction = 'outgoing'
		)
	`, providerID).Scan(&exists)
	return exists, err
}

func (r *SQLMessageRepo) HasOutgoingTo(ctx context.Context, phone string) (bool, error) {
	var exists bool
	err := r.c.queryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM messages WHERE recipient = ? AND direction = 'outgoing'
		)
	`, phone).Scan(&exists)
	return exists, err
}

func (r *SQLMessageRepo) List(ctx context.Context, f ListFilter) ([]model.Message, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	query := `SELECT ` + messageColumns + ` FROM messages`
	var args []any
	if f.Direction != "" {
		query += ` WHERE direction = ?`
		args = append(args, string(f.Direction))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	rows, err := r.c.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		var direction, status string
		var userID sql.NullInt64

		if err := rows.Scan(
			&m.ID,
			&m.ProviderID,
			&direction,
			&m.From,
			&m.To,
			&m.Body,
			&status,
			&m.AccountID,
			&userID,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, err
		}

		m.Direction = model.Direction(direction)
		m.Status = model.Status(status)
		m.UserID = int64Ptr(userID)
		out = append(out, m)
	}
	return out, rows.Err()
}
