package storage

import (
	"reflect"
	"testing"
)

func TestBuildHistoryQuery(t *testing.T) {
	tests := []struct {
		name      string
		filter    Filter
		wantQuery string
		wantArgs  []interface{}
	}{
		{
			name:      "no filters",
			filter:    Filter{},
			wantQuery: "SELECT ts, race_name, race_number, horse, odds, bet_type, status FROM bet_history ORDER BY ts DESC, id ASC",
		},
		{
			name:      "race and status with limit",
			filter:    Filter{Race: "Ascot", Status: "Erro", Limit: 5},
			wantQuery: "SELECT ts, race_name, race_number, horse, odds, bet_type, status FROM bet_history WHERE strpos(lower(race_name), lower($1)) > 0 AND strpos(lower(status), lower($2)) > 0 ORDER BY ts DESC, id ASC LIMIT 5",
			wantArgs:  []interface{}{"Ascot", "Erro"},
		},
		{
			name:      "horse only",
			filter:    Filter{Horse: "50%_off"},
			wantQuery: "SELECT ts, race_name, race_number, horse, odds, bet_type, status FROM bet_history WHERE strpos(lower(horse), lower($1)) > 0 ORDER BY ts DESC, id ASC",
			wantArgs:  []interface{}{"50%_off"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildHistoryQuery(tt.filter)
			if query != tt.wantQuery {
				t.Errorf("query =\n  %s\nwant\n  %s", query, tt.wantQuery)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}
