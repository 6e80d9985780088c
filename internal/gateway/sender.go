// Package gateway adapts the carrier client to the questionnaire's delivery
// contract: one synchronous send with a bounded wait and classified failures.
package gateway

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/LeventeLantos/sms-questionnaire/internal/client"
	"github.com/LeventeLantos/sms-questionnaire/internal/model"
)

type Outbound struct {
	To     string
	Body   string
	UserID *int64
}

type Result struct {
	ProviderID string
	Status     model.Status
	From       string
	To         string
	AccountID  string
}

type Gateway interface {
	Send(ctx context.Context, out Outbound) (Result, error)
}

type SendClient interface {
	Send(ctx context.Context, to, body string) (client.SendResult, error)
}

type Sender struct {
	client     SendClient
	contentMax int
	timeout    time.Duration
	from       string
	accountID  string
}

// NewSender wraps c. from and accountID fill in the result when the carrier
// response omits them.
func NewSender(c SendClient, contentMax int, timeout time.Duration, from, accountID string) *Sender {
	return &Sender{
		client:     c,
		contentMax: contentMax,
		timeout:    timeout,
		from:       from,
		accountID:  accountID,
	}
}

func (s *Sender) Send(ctx context.Context, out Outbound) (Result, error) {
	if n := utf8.RuneCountInString(out.Body); s.contentMax > 0 && n > s.contentMax {
		return Result{}, &Error{
			Kind:    ContentTooLong,
			Message: fmt.Sprintf("content has %d chars, limit is %d", n, s.contentMax),
		}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := s.client.Send(ctx, out.To, out.Body)
	if err != nil {
		return Result{}, classify(err)
	}

	r := Result{
		ProviderID: res.SID,
		Status:     model.Status(res.Status),
		From:       firstNonEmpty(res.From, s.from),
		To:         firstNonEmpty(res.To, out.To),
		AccountID:  firstNonEmpty(res.AccountSID, s.accountID),
	}
	if r.Status == "" {
		r.Status = model.Queued
	}
	return r, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
