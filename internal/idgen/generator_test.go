package idgen

import (
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/segmentio/ksuid"
)

func TestNew(t *testing.T) {
	tests := []struct {
		kind  string
		want  string
		parse func(string) error
	}{
		{"", "uuid", func(s string) error { _, err := uuid.Parse(s); return err }},
		{"UUID", "uuid", func(s string) error { _, err := uuid.Parse(s); return err }},
		{"ulid", "ulid", func(s string) error { _, err := ulid.Parse(s); return err }},
		{"ksuid", "ksuid", func(s string) error { _, err := ksuid.Parse(s); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.want+"/"+tt.kind, func(t *testing.T) {
			g, err := New(tt.kind)
			if err != nil {
				t.Fatalf("New(%q) error = %v", tt.kind, err)
			}
			if g.Kind() != tt.want {
				t.Errorf("Kind() = %q, want %q", g.Kind(), tt.want)
			}

			seen := make(map[string]bool)
			for i := 0; i < 100; i++ {
				id, err := g.Generate()
				if err != nil {
					t.Fatalf("Generate() error = %v", err)
				}
				if err := tt.parse(id); err != nil {
					t.Fatalf("generated id %q does not parse: %v", id, err)
				}
				if seen[id] {
					t.Fatalf("duplicate id %q", id)
				}
				seen[id] = true
			}
		})
	}
}

func TestNew_Unsupported(t *testing.T) {
	if _, err := New("snowflake"); err == nil {
		t.Error("expected error for unsupported kind")
	}
}
