package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/LeventeLantos/sms-questionnaire/internal/model"
)

type SQLResponseRepo struct {
	c conn
}

// Create records answerKey for sq as the answer carried by in. Unique indexes
// on sent_question_id and inbound_provider_id make a second answer to the same
// dispatch, or a second answer from the same reply, fail with
// ErrAlreadyAnswered, including when two transactions race.
func (r *SQLResponseRepo) Create(ctx context.Context, q model.Question, sq model.SentQuestion, in model.InboundMessage, answerKey string) (model.Response, error) {
	label, ok := q.Label(answerKey)
	if !ok {
		return model.Response{}, fmt.Errorf("question %d has no option %q", q.ID, answerKey)
	}

	sqID := sq.ID
	resp := model.Response{
		QuestionID:        q.ID,
		SentQuestionID:    &sqID,
		InboundProviderID: in.ProviderID,
		Phone:             in.From,
		Answer:            answerKey,
		PlainAnswer:       label,
		CreatedAt:         r.c.now(),
	}
	err := r.c.queryRow(ctx, `
		INSERT INTO responses (question_id, sent_question_id, inbound_provider_id, phone, answer, plain_answer, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
		RETURNING id
	`, resp.QuestionID, sqID, nullableString(in.ProviderID), resp.Phone, answerKey, label, resp.CreatedAt).Scan(&resp.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Response{}, ErrAlreadyAnswered
	}
	if err != nil {
		return model.Response{}, err
	}
	return resp, nil
}

func (r *SQLResponseRepo) HasAnswered(ctx context.Context, sentQuestionID int64) (bool, error) {
	var exists bool
	err := r.c.queryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM responses WHERE sent_question_id = ?)
	`, sentQuestionID).Scan(&exists)
	return exists, err
}

// HasResponseFrom reports whether the inbound message with this carrier id
// already produced a response.
func (r *SQLResponseRepo) HasResponseFrom(ctx context.Context, inboundProviderID string) (bool, error) {
	if inboundProviderID == "" {
		return false, nil
	}
	var exists bool
	err := r.c.queryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM responses WHERE inbound_provider_id = ?)
	`, inboundProviderID).Scan(&exists)
	return exists, err
}

func (r *SQLResponseRepo) ListByPhone(ctx context.Context, phone string) ([]model.Response, error) {
	rows, err := r.c.query(ctx, `
		SELECT id, question_id, sent_question_id, inbound_provider_id, phone, answer, plain_answer, created_at
		FROM responses
		WHERE phone = ?
		ORDER BY id ASC
	`, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Response
	for rows.Next() {
		var resp model.Response
		var (
			sqID      sql.NullInt64
			inboundID sql.NullString
		)
		if err := rows.Scan(
			&resp.ID,
			&resp.QuestionID,
			&sqID,
			&inboundID,
			&resp.Phone,
			&resp.Answer,
			&resp.PlainAnswer,
			&resp.CreatedAt,
		); err != nil {
			return nil, err
		}
		resp.SentQuestionID = int64Ptr(sqID)
		resp.InboundProviderID = inboundID.String
		out = append(out, resp)
	}
	return out, rows.Err()
}
