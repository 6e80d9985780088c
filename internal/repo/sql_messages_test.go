package repo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/LeventeLantos/sms-questionnaire/internal/model"
	"github.com/LeventeLantos/sms-questionnaire/internal/repo"
	"github.com/LeventeLantos/sms-questionnaire/internal/repo/repotest"
)

func TestRecordIncoming_DefaultsStatusAndRejectsDuplicates(t *testing.T) {
	t.Parallel()

	s := repotest.NewSQLite(t)
	ctx := context.Background()

	in := model.InboundMessage{
		ProviderID: "SM100",
		AccountID:  "AC1",
		From:       "+15550000",
		To:         "+15559999",
		Body:       "1",
	}

	m, err := s.Messages().RecordIncoming(ctx, in)
	if err != nil {
		t.Fatalf("RecordIncoming() error: %v", err)
	}
	if m.ID == 0 {
		t.Fatalf("expected id to be assigned")
	}
	if m.Status != model.Received {
		t.Fatalf("expected status %q, got %q", model.Received, m.Status)
	}
	if m.Direction != model.Incoming {
		t.Fatalf("expected incoming direction, got %q", m.Direction)
	}

	_, err = s.Messages().RecordIncoming(ctx, in)
	if !errors.Is(err, repo.ErrDuplicateDelivery) {
		t.Fatalf("expected ErrDuplicateDelivery, got %v", err)
	}

	items, err := s.Messages().List(ctx, repo.ListFilter{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 message, got %d", len(items))
	}
}

func TestUpdateStatus(t *testing.T) {
	t.Parallel()

	s := repotest.NewSQLite(t)
	ctx := context.Background()
	msgs := s.Messages()

	userID := int64(7)
	if _, err := msgs.RecordOutgoing(ctx, model.Message{
		ProviderID: "SM200",
		From:       "+15559999",
		To:         "+15550000",
		Body:       "hello",
		Status:     model.Queued,
		AccountID:  "AC1",
		UserID:     &userID,
	}); err != nil {
		t.Fatalf("RecordOutgoing() error: %v", err)
	}
	if _, err := msgs.RecordIncoming(ctx, model.InboundMessage{
		ProviderID: "SM201", From: "+15550000", To: "+15559999", Body: "hi",
	}); err != nil {
		t.Fatalf("RecordIncoming() error: %v", err)
	}

	t.Run("unknown id is a no-op", func(t *testing.T) {
		ok, err := msgs.UpdateStatus(ctx, "SMunknown", model.Delivered)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Fatalf("expected false for unknown id")
		}
	})

	t.Run("incoming messages are never patched", func(t *testing.T) {
		ok, err := msgs.UpdateStatus(ctx, "SM201", model.Delivered)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Fatalf("expected false for incoming message")
		}
	})

	t.Run("same status twice is idempotent", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			ok, err := msgs.UpdateStatus(ctx, "SM200", model.Sent)
			if err != nil {
				t.Fatalf("call %d: unexpected error: %v", i, err)
			}
			if !ok {
				t.Fatalf("call %d: expected match", i)
			}
		}
		assertOutgoingStatus(t, s, "SM200", model.Sent)
	})

	t.Run("stale callback does not move status backwards", func(t *testing.T) {
		if _, err := msgs.UpdateStatus(ctx, "SM200", model.Delivered); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ok, err := msgs.UpdateStatus(ctx, "SM200", model.Sending)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			t.Fatalf("expected stale callback to still match")
		}
		assertOutgoingStatus(t, s, "SM200", model.Delivered)
	})
}

func TestHasOutgoingTo_IgnoresIncoming(t *testing.T) {
	t.Parallel()

	s := repotest.NewSQLite(t)
	ctx := context.Background()
	msgs := s.Messages()

	if _, err := msgs.RecordIncoming(ctx, model.InboundMessage{
		ProviderID: "SM300", From: "+15551111", To: "+15559999", Body: "hello?",
	}); err != nil {
		t.Fatalf("RecordIncoming() error: %v", err)
	}
	// An inbound message *to* the number must not count either.
	if _, err := msgs.RecordIncoming(ctx, model.InboundMessage{
		ProviderID: "SM301", From: "+15559999", To: "+15551111", Body: "odd",
	}); err != nil {
		t.Fatalf("RecordIncoming() error: %v", err)
	}

	got, err := msgs.HasOutgoingTo(ctx, "+15551111")
	if err != nil {
		t.Fatalf("HasOutgoingTo() error: %v", err)
	}
	if got {
		t.Fatalf("expected false with only incoming messages")
	}

	if _, err := msgs.RecordOutgoing(ctx, model.Message{
		ProviderID: "SM302", From: "+15559999", To: "+15551111", Body: "hi",
	}); err != nil {
		t.Fatalf("RecordOutgoing() error: %v", err)
	}

	got, err = msgs.HasOutgoingTo(ctx, "+15551111")
	if err != nil {
		t.Fatalf("HasOutgoingTo() error: %v", err)
	}
	if !got {
		t.Fatalf("expected true after an outgoing message")
	}
}

func TestListMessages_FiltersByDirection(t *testing.T) {
	t.Parallel()

	s := repotest.NewSQLite(t)
	ctx := context.Background()
	msgs := s.Messages()

	if _, err := msgs.RecordIncoming(ctx, model.InboundMessage{ProviderID: "SM1", From: "+1", To: "+2", Body: "a"}); err != nil {
		t.Fatalf("RecordIncoming() error: %v", err)
	}
	if _, err := msgs.RecordOutgoing(ctx, model.Message{ProviderID: "SM2", From: "+2", To: "+1", Body: "b"}); err != nil {
		t.Fatalf("RecordOutgoing() error: %v", err)
	}
	if _, err := msgs.RecordOutgoing(ctx, model.Message{ProviderID: "SM3", From: "+2", To: "+1", Body: "c"}); err != nil {
		t.Fatalf("RecordOutgoing() error: %v", err)
	}

	out, err := msgs.List(ctx, repo.ListFilter{Direction: model.Outgoing})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 outgoing messages, got %d", len(out))
	}
	if out[0].ProviderID != "SM3" {
		t.Fatalf("expected newest first, got %q", out[0].ProviderID)
	}

	page, err := msgs.List(ctx, repo.ListFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(page) != 1 || page[0].ProviderID != "SM2" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func assertOutgoingStatus(t *testing.T, s repo.Store, providerID string, want model.Status) {
	t.Helper()

	out, err := s.Messages().List(context.Background(), repo.ListFilter{Direction: model.Outgoing, Limit: 100})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	found := 0
	for _, m := range out {
		if m.ProviderID != providerID {
			continue
		}
		found++
		if m.Status != want {
			t.Fatalf("expected status %q, got %q", want, m.Status)
		}
	}
	if found != 1 {
		t.Fatalf("expected exactly one row for %s, got %d", providerID, found)
	}
}
