package model

import (
	"strings"
	"time"
)

type Option struct {
	Key   string `json:"key" yaml:"key"`
	Label string `json:"label" yaml:"label"`
}

type Question struct {
	ID      int64    `json:"id"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// Label resolves an option key to its label.
func (q Question) Label(key string) (string, bool) {
	for _, o := range q.Options {
		if o.Key == key {
			return o.Label, true
		}
	}
	return "", false
}

func (q Question) Keys() []string {
	keys := make([]string, 0, len(q.Options))
	for _, o := range q.Options {
		keys = append(keys, o.Key)
	}
	return keys
}

// Render formats the question text followed by one "<key>. <label>" line per option.
func (q Question) Render() string {
	var b strings.Builder
	b.WriteString(q.Text)
	for _, o := range q.Options {
		b.WriteString("\n")
		b.WriteString(o.Key)
		b.WriteString(". ")
		b.WriteString(o.Label)
	}
	return b.String()
}

type SentQuestion struct {
	ID         int64     `json:"id"`
	Phone      string    `json:"phone"`
	QuestionID int64     `json:"questionId"`
	UserID     *int64    `json:"userId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Response is an answer to one dispatch. InboundProviderID is the carrier id
// of the reply that produced it; one reply answers at most one dispatch.
type Response struct {
	ID                int64     `json:"id"`
	QuestionID        int64     `json:"questionId"`
	SentQuestionID    *int64    `json:"sentQuestionId,omitempty"`
	InboundProviderID string    `json:"inboundProviderId,omitempty"`
	Phone             string    `json:"phone"`
	Answer            string    `json:"answer"`
	PlainAnswer       string    `json:"plainAnswer"`
	CreatedAt         time.Time `json:"createdAt"`
}
