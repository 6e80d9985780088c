// Package events publishes questionnaire domain events to RabbitMQ.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TypeQuestionDispatched = "questionnaire.dispatched"
	TypeQuestionAnswered   = "questionnaire.answered"
)

type Meta struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	Time   time.Time `json:"time"`
	Source string    `json:"source"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

func NewEnvelope(eventType string, data any) Envelope {
	return Envelope{
		Meta: Meta{
			ID:     uuid.NewString(),
			Type:   eventType,
			Time:   time.Now().UTC(),
			Source: "sms-questionnaire",
		},
		Data: data,
	}
}

type QuestionDispatched struct {
	SentQuestionID int64  `json:"sentQuestionId"`
	QuestionID     int64  `json:"questionId"`
	Phone          string `json:"phone"`
	ProviderID     string `json:"providerId"`
	UserID         *int64 `json:"userId,omitempty"`
}

type QuestionAnswered struct {
	ResponseID     int64  `json:"responseId"`
	SentQuestionID int64  `json:"sentQuestionId"`
	QuestionID     int64  `json:"questionId"`
	Phone          string `json:"phone"`
	Answer         string `json:"answer"`
	PlainAnswer    string `json:"plainAnswer"`
}

type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Envelope) error { return nil }
