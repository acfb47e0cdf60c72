package worker

import (
	"context"
	"testing"
	"time"
)

func TestMerge(t *testing.T) {
	a := newFakeSource(Message{ChatID: 1, Text: "a"})
	b := newFakeSource(Message{ChatID: 2, Text: "b"})
	close(a.ch)
	close(b.ch)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	m := Merge(ctx, a, b)

	got := map[int64]string{}
	for msg := range m.Messages() {
		got[msg.ChatID] = msg.Text
	}
	if got[1] != "a" || got[2] != "b" {
		t.Fatalf("merged messages = %v", got)
	}

	if err := m.Reply(ctx, 2, "ok"); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if b.replyCount() != 1 || a.replyCount() != 0 {
		t.Errorf("reply routed wrong: a=%d b=%d", a.replyCount(), b.replyCount())
	}
	if err := m.Reply(ctx, 99, "ok"); err == nil {
		t.Error("expected error for unknown chat")
	}
}
