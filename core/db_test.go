package core

import (
	"reflect"
	"testing"
)

func TestParseOrderings(t *testing.T) {
	allowed := []string{"started_at", "outcome"}

	tests := []struct {
		name    string
		val     string
		want    []DBOrdering
		wantErr bool
	}{
		{name: "empty", val: "  "},
		{name: "ascending", val: "outcome", want: []DBOrdering{{Field: "outcome", Ascending: true}}},
		{
			name: "many",
			val:  "-started_at, outcome",
			want: []DBOrdering{{Field: "started_at"}, {Field: "outcome", Ascending: true}},
		},
		{name: "unknown field", val: "-password", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOrderings(tt.val, allowed...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOrderings() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if _, ok := err.(*ValidationError); !ok {
					t.Errorf("ParseOrderings() error type = %T, want *ValidationError", err)
				}
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseOrderings() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDBOrdering_String(t *testing.T) {
	if got := (DBOrdering{Field: "started_at"}).String(); got != "started_at DESC" {
		t.Errorf("String() = %q", got)
	}
	if got := (DBOrdering{Field: "outcome", Ascending: true}).String(); got != "outcome ASC" {
		t.Errorf("String() = %q", got)
	}
}
