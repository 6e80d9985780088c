package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/LeventeLantos/sms-questionnaire/internal/cache"
	"github.com/LeventeLantos/sms-questionnaire/internal/events"
	"github.com/LeventeLantos/sms-questionnaire/internal/gateway"
	"github.com/LeventeLantos/sms-questionnaire/internal/model"
	"github.com/LeventeLantos/sms-questionnaire/internal/repo"
)

const (
	GreetingNew       = "Welcome to our service!"
	GreetingReturning = "Welcome back!"
	confirmationText  = "You selected: "
)

// ErrUnrecorded means an SMS went out but the ledger write that should
// accompany it failed. It is never retried, since retrying would send again.
var ErrUnrecorded = errors.New("sms sent but not recorded")

// Questionnaire sends random multiple-choice questions to phone numbers and
// resolves inbound replies against the latest question sent to that number.
type Questionnaire struct {
	store   repo.Store
	gateway gateway.Gateway
	cache   cache.RecipientCache
	events  events.Publisher
}

type Option func(*Questionnaire)

func WithRecipientCache(c cache.RecipientCache) Option {
	return func(q *Questionnaire) { q.cache = c }
}

func WithPublisher(p events.Publisher) Option {
	return func(q *Questionnaire) { q.events = p }
}

func NewQuestionnaire(store repo.Store, gw gateway.Gateway, opts ...Option) *Questionnaire {
	q := &Questionnaire{
		store:   store,
		gateway: gw,
		cache:   cache.Nop{},
		events:  events.Nop{},
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// WelcomeMessage picks the greeting for phone: the returning variant once any
// outgoing message to it exists. Inbound messages from the phone do not count.
func (q *Questionnaire) WelcomeMessage(ctx context.Context, phone string) (string, error) {
	cached, err := q.cache.WasContacted(ctx, phone)
	if err != nil {
		slog.Warn("recipient cache lookup failed", "phone", phone, "err", err)
	}
	if cached {
		return GreetingReturning, nil
	}

	contacted, err := q.store.Messages().HasOutgoingTo(ctx, phone)
	if err != nil {
		return "", fmt.Errorf("lookup outgoing messages: %w", err)
	}
	if !contacted {
		return GreetingNew, nil
	}
	q.markContacted(ctx, phone)
	return GreetingReturning, nil
}

// Dispatch sends a random catalog question to phone and records the dispatch.
// An empty catalog is logged and is not an error. A failed send leaves no
// dispatch behind. Once the carrier accepts the message it is always stored as
// an outgoing message, even when the dispatch itself cannot be recorded.
func (q *Questionnaire) Dispatch(ctx context.Context, phone string, userID *int64) error {
	question, err := q.store.Questions().Random(ctx)
	if errors.Is(err, repo.ErrNotFound) {
		slog.Warn("question catalog is empty, nothing dispatched", "phone", phone)
		return nil
	}
	if err != nil {
		return fmt.Errorf("pick question: %w", err)
	}

	welcome, err := q.WelcomeMessage(ctx, phone)
	if err != nil {
		return err
	}
	body := welcome + "\n" + question.Render()

	res, err := q.gateway.Send(ctx, gateway.Outbound{To: phone, Body: body, UserID: userID})
	if err != nil {
		return fmt.Errorf("send question %d to %s: %w", question.ID, phone, err)
	}

	// The carrier accepted the message; a caller going away must not stop
	// the bookkeeping for it.
	ctx = context.WithoutCancel(ctx)

	q.recordOutgoing(ctx, res, body, userID)
	q.markContacted(ctx, phone)

	sq, err := q.store.SentQuestions().Create(ctx, phone, question.ID, userID)
	if err != nil {
		slog.Error("question sent but dispatch not recorded",
			"anomaly", true,
			"phone", phone,
			"question_id", question.ID,
			"provider_id", res.ProviderID,
			"err", err,
		)
		return fmt.Errorf("%w: dispatch %s: %w", ErrUnrecorded, res.ProviderID, err)
	}

	q.publish(ctx, events.TypeQuestionDispatched, events.QuestionDispatched{
		SentQuestionID: sq.ID,
		QuestionID:     question.ID,
		Phone:          phone,
		ProviderID:     res.ProviderID,
		UserID:         userID,
	})

	slog.Info("question dispatched",
		"phone", phone,
		"question_id", question.ID,
		"sent_question_id", sq.ID,
		"provider_id", res.ProviderID,
	)
	return nil
}

// Resolve treats an inbound message as a possible answer to the latest
// question sent to its sender. It returns true only when a new response was
// recorded and confirmed. Non-matching bodies, senders without an open
// question, repeat answers and replies that already answered a dispatch all
// resolve to false without error.
func (q *Questionnaire) Resolve(ctx context.Context, in model.InboundMessage) (bool, error) {
	// Webhook work runs to completion once started.
	ctx = context.WithoutCancel(ctx)
	phone := in.From

	sq, err := q.store.SentQuestions().LatestFor(ctx, phone)
	if errors.Is(err, repo.ErrNotFound) {
		slog.Info("inbound message has no open question", "phone", phone, "provider_id", in.ProviderID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("latest dispatch for %s: %w", phone, err)
	}

	question, err := q.store.Questions().Get(ctx, sq.QuestionID)
	if err != nil {
		return false, fmt.Errorf("question %d: %w", sq.QuestionID, err)
	}

	key := strings.TrimSpace(in.Body)
	label, ok := question.Label(key)
	if !ok {
		slog.Info("inbound message is not an answer",
			"phone", phone,
			"sent_question_id", sq.ID,
			"valid_keys", question.Keys(),
		)
		return false, nil
	}

	body := confirmationText + label
	var (
		resp    model.Response
		confirm gateway.Result
	)
	err = q.store.WithTx(ctx, func(tx repo.Queries) error {
		// A redelivered reply must not answer a dispatch sent after it.
		used, err := tx.Responses().HasResponseFrom(ctx, in.ProviderID)
		if err != nil {
			return err
		}
		answered, err := tx.Responses().HasAnswered(ctx, sq.ID)
		if err != nil {
			return err
		}
		if used || answered {
			return repo.ErrAlreadyAnswered
		}

		resp, err = tx.Responses().Create(ctx, question, sq, in, key)
		if err != nil {
			return err
		}

		confirm, err = q.gateway.Send(ctx, gateway.Outbound{To: phone, Body: body, UserID: sq.UserID})
		if err != nil {
			return fmt.Errorf("send confirmation to %s: %w", phone, err)
		}
		return nil
	})
	if errors.Is(err, repo.ErrAlreadyAnswered) {
		slog.Info("duplicate answer ignored", "phone", phone, "sent_question_id", sq.ID, "provider_id", in.ProviderID)
		return false, nil
	}
	if err != nil {
		if confirm.ProviderID != "" {
			slog.Error("confirmation sent but response not recorded",
				"anomaly", true,
				"phone", phone,
				"sent_question_id", sq.ID,
				"provider_id", confirm.ProviderID,
				"err", err,
			)
			return false, fmt.Errorf("%w: response to dispatch %d: %w", ErrUnrecorded, sq.ID, err)
		}
		return false, err
	}

	q.recordOutgoing(ctx, confirm, body, sq.UserID)
	q.publish(ctx, events.TypeQuestionAnswered, events.QuestionAnswered{
		ResponseID:     resp.ID,
		SentQuestionID: sq.ID,
		QuestionID:     question.ID,
		Phone:          phone,
		Answer:         resp.Answer,
		PlainAnswer:    resp.PlainAnswer,
	})

	slog.Info("answer recorded",
		"phone", phone,
		"sent_question_id", sq.ID,
		"response_id", resp.ID,
		"answer", key,
	)
	return true, nil
}

func (q *Questionnaire) recordOutgoing(ctx context.Context, res gateway.Result, body string, userID *int64) {
	_, err := q.store.Messages().RecordOutgoing(ctx, model.Message{
		ProviderID: res.ProviderID,
		From:       res.From,
		To:         res.To,
		Body:       body,
		Status:     res.Status,
		AccountID:  res.AccountID,
		UserID:     userID,
	})
	if err != nil {
		slog.Error("outgoing message not recorded", "anomaly", true, "provider_id", res.ProviderID, "to", res.To, "err", err)
	}
}

func (q *Questionnaire) markContacted(ctx context.Context, phone string) {
	if err := q.cache.MarkContacted(ctx, phone); err != nil {
		slog.Warn("recipient cache update failed", "phone", phone, "err", err)
	}
}

func (q *Questionnaire) publish(ctx context.Context, eventType string, data any) {
	if err := q.events.Publish(ctx, events.NewEnvelope(eventType, data)); err != nil {
		slog.Warn("event publish failed", "type", eventType, "err", err)
	}
}
