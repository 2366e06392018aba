package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"golang.org/x/text/language"

	"bilancio/internal/amqp"
	"bilancio/internal/notify"
	"bilancio/internal/storage"
)

type fakeSyncer struct {
	calls []string
	err   error
}

func (f *fakeSyncer) SyncTransaction(_ context.Context, id string, version int64) error {
	f.calls = append(f.calls, fmt.Sprintf("%s@%d", id, version))
	return f.err
}

type fakeNotifier struct {
	texts []string
	err   error
}

func (f *fakeNotifier) Send(_ context.Context, text string) error {
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, text)
	return nil
}

func delivery(t *testing.T, typ string, msg interface{ ToJSON() ([]byte, error) }) amqp.Delivery {
	t.Helper()
	body, err := msg.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	return amqp.Delivery{Type: typ, Body: body}
}

func TestHandler_Dispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("sync message", func(t *testing.T) {
		syncer := &fakeSyncer{}
		h := NewHandler(syncer, &fakeNotifier{}, language.Spanish, nil)

		err := h.Handle(ctx, delivery(t, amqp.TypeTransactionSync, amqp.NewTransactionSyncMessage("abc", 2)))
		if err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		if len(syncer.calls) != 1 || syncer.calls[0] != "abc@2" {
			t.Errorf("unexpected syncer calls %v", syncer.calls)
		}
	})

	t.Run("reminder message", func(t *testing.T) {
		n := &fakeNotifier{}
		h := NewHandler(nil, n, language.English, nil)
		msg := &amqp.ReminderMessage{Kind: amqp.BudgetExceeded, Key: "k", Name: "Food", TargetCents: 100, CurrentCents: 150}

		if err := h.Handle(ctx, delivery(t, amqp.TypeReminder, msg)); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		if len(n.texts) != 1 || n.texts[0] == "" {
			t.Errorf("expected one rendered reminder, got %v", n.texts)
		}
	})

	t.Run("permanent failures", func(t *testing.T) {
		tests := []struct {
			name string
			h    *Handler
			d    amqp.Delivery
		}{
			{"unknown type", NewHandler(nil, nil, language.English, nil), amqp.Delivery{Type: "other"}},
			{"bad sync body", NewHandler(&fakeSyncer{}, nil, language.English, nil), amqp.Delivery{Type: amqp.TypeTransactionSync, Body: []byte("{")}},
			{"bad reminder body", NewHandler(nil, nil, language.English, nil), amqp.Delivery{Type: amqp.TypeReminder, Body: []byte("nope")}},
			{
				"missing transaction",
				NewHandler(&fakeSyncer{err: fmt.Errorf("get: %w", storage.ErrNotFound)}, nil, language.English, nil),
				delivery(t, amqp.TypeTransactionSync, amqp.NewTransactionSyncMessage("gone", 1)),
			},
			{
				"sync attempts exhausted",
				NewHandler(&fakeSyncer{err: fmt.Errorf("append: %w", storage.ErrSyncExhausted)}, nil, language.English, nil),
				delivery(t, amqp.TypeTransactionSync, amqp.NewTransactionSyncMessage("tired", 1)),
			},
			{
				"telegram rejected",
				NewHandler(nil, &fakeNotifier{err: notify.ErrRejected}, language.English, nil),
				delivery(t, amqp.TypeReminder, &amqp.ReminderMessage{Kind: amqp.GoalBehind}),
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := tt.h.Handle(ctx, tt.d); !errors.Is(err, amqp.ErrPermanent) {
					t.Errorf("expected ErrPermanent, got %v", err)
				}
			})
		}
	})

	t.Run("transient failures are requeued", func(t *testing.T) {
		boom := errors.New("sheets down")
		h := NewHandler(&fakeSyncer{err: boom}, &fakeNotifier{err: boom}, language.English, nil)

		err := h.Handle(ctx, delivery(t, amqp.TypeTransactionSync, amqp.NewTransactionSyncMessage("a", 1)))
		if !errors.Is(err, boom) || errors.Is(err, amqp.ErrPermanent) {
			t.Errorf("sync: expected transient error, got %v", err)
		}
		err = h.Handle(ctx, delivery(t, amqp.TypeReminder, &amqp.ReminderMessage{Kind: amqp.GoalBehind}))
		if !errors.Is(err, boom) || errors.Is(err, amqp.ErrPermanent) {
			t.Errorf("reminder: expected transient error, got %v", err)
		}
	})

	t.Run("no syncer drops sync messages", func(t *testing.T) {
		h := NewHandler(nil, nil, language.English, nil)
		if err := h.Handle(ctx, delivery(t, amqp.TypeTransactionSync, amqp.NewTransactionSyncMessage("a", 1))); err != nil {
			t.Errorf("expected ack, got %v", err)
		}
	})
}

func TestDirectPublisher(t *testing.T) {
	syncer := &fakeSyncer{}
	n := &fakeNotifier{}
	p := NewDirectPublisher(NewHandler(syncer, n, language.Spanish, nil))
	ctx := context.Background()

	if err := p.PublishTransactionSync(ctx, "x", 1); err != nil {
		t.Fatal(err)
	}
	if err := p.PublishReminder(ctx, amqp.ReminderMessage{Kind: amqp.GoalCompleted, Name: "Ahorro"}); err != nil {
		t.Fatal(err)
	}
	if len(syncer.calls) != 1 || len(n.texts) != 1 {
		t.Errorf("expected inline delivery, got syncs=%v texts=%v", syncer.calls, n.texts)
	}
}
