package service_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/LeventeLantos/sms-questionnaire/internal/events"
	"github.com/LeventeLantos/sms-questionnaire/internal/gateway"
	"github.com/LeventeLantos/sms-questionnaire/internal/model"
	"github.com/LeventeLantos/sms-questionnaire/internal/repo"
)

type fakeGateway struct {
	mu    sync.Mutex
	sent  []gateway.Outbound
	err   error
	count int
}

func (f *fakeGateway) Send(ctx context.Context, out gateway.Outbound) (gateway.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return gateway.Result{}, f.err
	}
	f.count++
	f.sent = append(f.sent, out)
	return gateway.Result{
		ProviderID: fmt.Sprintf("SMfake%04d", f.count),
		Status:     model.Queued,
		From:       "+15559999",
		To:         out.To,
		AccountID:  "ACfake",
	}, nil
}

func (f *fakeGateway) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeGateway) bodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.Body)
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Envelope
}

func (p *recordingPublisher) Publish(ctx context.Context, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, env)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Meta.Type)
	}
	return out
}

type memoryCache struct {
	mu        sync.Mutex
	contacted map[string]bool
}

func (c *memoryCache) MarkContacted(ctx context.Context, phone string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.contacted == nil {
		c.contacted = map[string]bool{}
	}
	c.contacted[phone] = true
	return nil
}

func (c *memoryCache) WasContacted(ctx context.Context, phone string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contacted[phone], nil
}

// brokenDispatchLedger is a real store whose dispatch inserts always fail.
type brokenDispatchLedger struct {
	repo.Store
	err error
}

func (b brokenDispatchLedger) SentQuestions() repo.SentQuestionRepository {
	return brokenSentQuestions{SentQuestionRepository: b.Store.SentQuestions(), err: b.err}
}

type brokenSentQuestions struct {
	repo.SentQuestionRepository
	err error
}

func (b brokenSentQuestions) Create(ctx context.Context, phone string, questionID int64, userID *int64) (model.SentQuestion, error) {
	return model.SentQuestion{}, b.err
}
