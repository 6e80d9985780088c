package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/LeventeLantos/sms-questionnaire/internal/model"
)

type SQLQuestionRepo struct {
	c conn
}

// Create inserts q unless a question with the same text exists, in which case
// the existing row is returned with created=false.
func (r *SQLQuestionRepo) Create(ctx context.Context, q model.Question) (model.Question, bool, error) {
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return model.Question{}, false, fmt.Errorf("encode options: %w", err)
	}

	err = r.c.queryRow(ctx, `
		INSERT INTO questions (prompt, options, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (prompt) DO NOTHING
		RETURNING id
	`, q.Text, string(opts), r.c.now()).Scan(&q.ID)
	if errors.Is(err, sql.ErrNoRows) {
		existing, err := r.scanOne(ctx, `WHERE prompt = ?`, q.Text)
		return existing, false, err
	}
	if err != nil {
		return model.Question{}, false, err
	}
	return q, true, nil
}

func (r *SQLQuestionRepo) Get(ctx context.Context, id int64) (model.Question, error) {
	return r.scanOne(ctx, `WHERE id = ?`, id)
}

// Random picks one question uniformly at random.
func (r *SQLQuestionRepo) Random(ctx context.Context) (model.Question, error) {
	return r.scanOne(ctx, `ORDER BY RANDOM() LIMIT 1`)
}

func (r *SQLQuestionRepo) List(ctx context.Context) ([]model.Question, error) {
	rows, err := r.c.query(ctx, `SELECT id, prompt, options FROM questions ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *SQLQuestionRepo) scanOne(ctx context.Context, clause string, args ...any) (model.Question, error) {
	q, err := scanQuestion(r.c.queryRow(ctx, `SELECT id, prompt, options FROM questions `+clause, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Question{}, ErrNotFound
	}
	return q, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuestion(s scanner) (model.Question, error) {
	var q model.Question
	var opts string
	if err := s.Scan(&q.ID, &q.Text, &opts); err != nil {
		return model.Question{}, err
	}
	if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
		return model.Question{}, fmt.Errorf("decode options of question %d: %w", q.ID, err)
	}
	return q, nil
}
