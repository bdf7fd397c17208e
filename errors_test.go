package market

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		err  error
		want []string
	}{
		{&NameConflictError{Name: "db"}, []string{"db", "already offered"}},
		{&CycleError{Name: "a", Path: []string{"a", "b", "a"}}, []string{"circular", "a -> b -> a"}},
		{&CycleError{Name: "a"}, []string{"circular", `"a"`}},
		{&MissingSupplyError{Product: "server", Supply: "port"}, []string{"server", "port", "not provided"}},
		{&OptimisticPendingError{Product: "feed", Pending: 3}, []string{"feed", "optimistic", "3"}},
		{&UnknownSlotError{Supplier: "sink", Variant: "stranger"}, []string{"sink", "stranger", "slot"}},
	}

	for _, tc := range cases {
		msg := tc.err.Error()
		for _, want := range tc.want {
			if !strings.Contains(msg, want) {
				t.Errorf("%T message %q missing %q", tc.err, msg, want)
			}
		}
	}
}

func TestAssemblyErrorUnwraps(t *testing.T) {
	cause := errors.New("root cause")
	err := newAssemblyError("svc", CacheKey{Supplier: "svc", Assembly: "1"}, cause)

	if !errors.Is(err, cause) {
		t.Error("expected AssemblyError to unwrap to its cause")
	}
	if len(err.StackTrace) == 0 {
		t.Error("expected a captured stack trace")
	}
	if !strings.Contains(err.Error(), "svc") || !strings.Contains(err.Error(), "root cause") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestSafeAssertion(t *testing.T) {
	if v, err := as[int](42); err != nil || v != 42 {
		t.Errorf("expected 42, got %v (%v)", v, err)
	}

	if _, err := as[string](42); err == nil {
		t.Error("expected type assertion error")
	}

	// nil erases to the zero value without an error.
	if v, err := as[*int](nil); err != nil || v != nil {
		t.Errorf("expected nil, got %v (%v)", v, err)
	}
}
