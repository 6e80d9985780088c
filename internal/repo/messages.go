package repo

import (
	"context"
	"errors"

	"github.com/LeventeLantos/sms-questionnaire/internal/model"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateDelivery = errors.New("duplicate delivery")
	ErrAlreadyAnswered   = errors.New("sent question already answered")
)

type ListFilter struct {
	Direction model.Direction
	Limit     int
	Offset    int
}

type MessageRepository interface {
	RecordIncoming(ctx context.Context, in model.InboundMessage) (model.Message, error)
	RecordOutgoing(ctx context.Context, m model.Message) (model.Message, error)
	UpdateStatus(ctx context.Context, providerID string, status model.Status) (bool, error)
	HasOutgoingTo(ctx context.Context, phone string) (bool, error)
	List(ctx context.Context, f ListFilter) ([]model.Message, error)
}

type QuestionRepository interface {
	Create(ctx context.Context, q model.Question) (model.Question, bool, error)
	Get(ctx context.Context, id int64) (model.Question, error)
	Random(ctx context.Context) (model.Question, error)
	List(ctx context.Context) ([]model.Question, error)
}

type SentQuestionRepository interface {
	Create(ctx context.Context, phone string, questionID int64, userID *int64) (model.SentQuestion, error)
	LatestFor(ctx context.Context, phone string) (model.SentQuestion, error)
}

type ResponseRepository interface {
	Create(ctx context.Context, q model.Question, sq model.SentQuestion, in model.InboundMessage, answerKey string) (model.Response, error)
	HasAnswered(ctx context.Context, sentQuestionID int64) (bool, error)
	HasResponseFrom(ctx context.Context, inboundProviderID string) (bool, error)
	ListByPhone(ctx context.Context, phone string) ([]model.Response, error)
}

// Queries groups the repositories bound to one connection or transaction.
type Queries interface {
	Messages() MessageRepository
	Questions() QuestionRepository
	SentQuestions() SentQuestionRepository
	Responses() ResponseRepository
}

type Store interface {
	Queries
	// WithTx runs fn inside a transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(q Queries) error) error
}
