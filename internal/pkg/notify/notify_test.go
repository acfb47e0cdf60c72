package notify

import (
	"context"
	"testing"

	"github.com/Vodeneev/betrunner/internal/pkg/models"
)

func TestForOutcome(t *testing.T) {
	req := models.BetRequest{RaceName: "Ascot", RaceNumber: "3", Horse: "Thunder Bolt", Odds: "2.5", BetType: "Win"}

	tests := []struct {
		name    string
		outcome models.BetOutcome
		want    string
	}{
		{
			name:    "success",
			outcome: models.BetOutcome{Request: req, Status: models.OutcomeSuccess},
			want:    "✅ Aposta Sucesso: Ascot - Thunder Bolt",
		},
		{
			name:    "failure with reason",
			outcome: models.BetOutcome{Request: req, Status: models.OutcomeFailed, FailureReason: "Falha no login"},
			want:    "❌ Aposta Erro: Ascot - Thunder Bolt (Falha no login)",
		},
		{
			name:    "failure without reason",
			outcome: models.BetOutcome{Request: req, Status: models.OutcomeFailed},
			want:    "❌ Aposta Erro: Ascot - Thunder Bolt",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ForOutcome(tt.outcome).Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMulti(t *testing.T) {
	var calls int
	reject := NotifierFunc(func(context.Context, Notification) bool { calls++; return false })
	accept := NotifierFunc(func(context.Context, Notification) bool { calls++; return true })

	if (Multi{reject, reject}).Notify(context.Background(), Notification{Title: "x"}) {
		t.Error("expected false when every notifier rejects")
	}
	if !(Multi{reject, nil, accept}).Notify(context.Background(), Notification{Title: "x"}) {
		t.Error("expected true when one notifier accepts")
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestLogNotifier(t *testing.T) {
	if !(LogNotifier{}).Notify(context.Background(), Notification{Title: "t", Severity: SeverityWarning}) {
		t.Error("LogNotifier should always accept")
	}
}
