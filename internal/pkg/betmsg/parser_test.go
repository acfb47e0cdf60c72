package betmsg

import (
	"errors"
	"testing"

	"github.com/Vodeneev/betrunner/internal/pkg/models"
)

const ascotMessage = `🏇 NOVA APOSTA
Nome da Corrida: Ascot
Número da Corrida: 2
Cavalo: Thunder Strike
Odds: @ 2.75
Tipo: Win`

func TestParse_WellFormed(t *testing.T) {
	got, err := Parse(ascotMessage)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	want := models.BetRequest{RaceName: "Ascot", RaceNumber: "2", Horse: "Thunder Strike", Odds: "2.75", BetType: "Win"}
	if got != want {
		t.Errorf("Parse() = %+v, want %+v", got, want)
	}
}

func TestParse_FieldVariants(t *testing.T) {
	tests := []struct {
		name string
		text string
		want models.BetRequest
	}{
		{
			name: "crlf and padding",
			text: "Nome da Corrida:   Chelmsford City  \r\nNúmero da Corrida: 7\r\nCavalo: Red Rum\r\nOdds:@3,5\r\nTipo: E/W\r\n",
			want: models.BetRequest{RaceName: "Chelmsford City", RaceNumber: "7", Horse: "Red Rum", Odds: "3,5", BetType: "E/W"},
		},
		{
			name: "fields out of order",
			text: "Tipo: Place\nOdds: 4.0\nCavalo: Frankel\nNúmero da Corrida: 1\nNome da Corrida: York",
			want: models.BetRequest{RaceName: "York", RaceNumber: "1", Horse: "Frankel", Odds: "4.0", BetType: "Place"},
		},
		{
			name: "unparseable odds still accepted",
			text: "Nome da Corrida: Kempton\nNúmero da Corrida: 3\nCavalo: Sea Bird\nOdds: SP\nTipo: Win",
			want: models.BetRequest{RaceName: "Kempton", RaceNumber: "3", Horse: "Sea Bird", Odds: "SP", BetType: "Win"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.text)
			if err != nil {
				t.Fatalf("Parse returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParse_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr error
	}{
		{"plain chat", "bom dia a todos", ErrNotABet},
		{"missing horse marker", "Nome da Corrida: Ascot\nNúmero da Corrida: 2\nOdds: 2.75\nTipo: Win", ErrNotABet},
		{"missing race marker", "Cavalo: Thunder Strike\nOdds: 2.75", ErrNotABet},
		{"missing odds", "Nome da Corrida: Ascot\nNúmero da Corrida: 2\nCavalo: Thunder Strike\nTipo: Win", ErrIncompleteBet},
		{"empty bet type", "Nome da Corrida: Ascot\nNúmero da Corrida: 2\nCavalo: Thunder Strike\nOdds: 2.75\nTipo:   ", ErrIncompleteBet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParse_IncompleteListsMissingFields(t *testing.T) {
	_, err := Parse("Nome da Corrida: Ascot\nCavalo: Thunder Strike")
	var inc *IncompleteError
	if !errors.As(err, &inc) {
		t.Fatalf("expected *IncompleteError, got %v", err)
	}
	want := []string{"Número da Corrida", "Odds", "Tipo"}
	if len(inc.Missing) != len(want) {
		t.Fatalf("Missing = %v, want %v", inc.Missing, want)
	}
	for i := range want {
		if inc.Missing[i] != want[i] {
			t.Errorf("Missing[%d] = %q, want %q", i, inc.Missing[i], want[i])
		}
	}
}

func TestParse_Idempotent(t *testing.T) {
	first, err1 := Parse(ascotMessage)
	second, err2 := Parse(ascotMessage)
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v, %v", err1, err2)
	}
	if first != second {
		t.Errorf("Parse is not idempotent: %+v vs %+v", first, second)
	}
}
