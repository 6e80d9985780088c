package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/LeventeLantos/sms-questionnaire/internal/model"
)

type SQLSentQuestionRepo struct {
	c conn
}

func (r *SQLSentQuestionRepo) Create(ctx context.Context, phone string, questionID int64, userID *int64) (model.SentQuestion, error) {
	sq := model.SentQuestion{
		Phone:      phone,
		QuestionID: questionID,
		UserID:     userID,
		CreatedAt:  r.c.now(),
	}
	err := r.c.queryRow(ctx, `
		INSERT INTO sent_questions (phone, question_id, user_id, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`, phone, questionID, nullableInt64(userID), sq.CreatedAt).Scan(&sq.ID)
	if err != nil {
		return model.SentQuestion{}, err
	}
	return sq, nil
}

// LatestFor returns the newest dispatch to phone. Dispatches sharing a
// created_at are ordered by id, so the last inserted wins.
func (r *SQLSentQuestionRepo) LatestFor(ctx context.Context, phone string) (model.SentQuestion, error) {
	var sq model.SentQuestion
	var userID sql.NullInt64
	err := r.c.queryRow(ctx, `
		SELECT id, phone, question_id, user_id, created_at
		FROM sent_questions
		WHERE phone = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, phone).Scan(&sq.ID, &sq.Phone, &sq.QuestionID, &userID, &sq.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SentQuestion{}, ErrNotFound
	}
	if err != nil {
		return model.SentQuestion{}, err
	}
	sq.UserID = int64Ptr(userID)
	return sq, nil
}
