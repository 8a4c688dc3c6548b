package claims

import (
	"context"
	"errors"
	"testing"
)

func TestRunStepsInOrder(t *testing.T) {
	var order []string
	steps := []step{
		{name: "first", run: func(context.Context) error { order = append(order, "first"); return nil }},
		{name: "second", run: func(context.Context) error { order = append(order, "second"); return nil }},
	}

	err := runSteps(context.Background(), steps, func(context.Context, string, error) {
		t.Fatalf("compensation must not fire on success")
	})
	if err != nil {
		t.Fatalf("runSteps: %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestRunStepsCompensatesOnFailure(t *testing.T) {
	boom := errors.New("boom")
	var compensatedStep string
	var compensatedCause error
	ranLater := false

	steps := []step{
		{name: "first", run: func(context.Context) error { return nil }},
		{name: "failing", run: func(context.Context) error { return boom }},
		{name: "later", run: func(context.Context) error { ranLater = true; return nil }},
	}

	err := runSteps(context.Background(), steps, func(_ context.Context, name string, cause error) {
		compensatedStep = name
		compensatedCause = cause
	})

	if !errors.Is(err, boom) {
		t.Fatalf("original error must propagate unchanged, got %v", err)
	}
	if compensatedStep != "failing" || !errors.Is(compensatedCause, boom) {
		t.Fatalf("compensation saw %q %v", compensatedStep, compensatedCause)
	}
	if ranLater {
		t.Fatalf("steps after the failure must not run")
	}
}
