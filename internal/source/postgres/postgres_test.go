package postgres

import (
	"context"
	"testing"
)

func TestPgFQN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"farmers", `"farmers"`},
		{"public.farmers", `"public"."farmers"`},
		{`tricky"name`, `"tricky""name"`},
	}
	for _, tt := range tests {
		if got := pgFQN(tt.in); got != tt.want {
			t.Errorf("pgFQN(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestNewStore_RequiresDSN(t *testing.T) {
	t.Parallel()

	if _, _, err := NewStore(context.Background(), Config{DSN: " "}); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}
