package resilience_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/accentis/accentis/internal/resilience"
)

// failStep returns a step that always fails with err and counts invocations.
func failStep(name string, err error, calls *int) resilience.Step[string] {
	return resilience.Step[string]{
		Name: name,
		Run: func(context.Context) (string, error) {
			*calls++
			return "", err
		},
	}
}

// okStep returns a step that succeeds with v and counts invocations.
func okStep(name, v string, calls *int) resilience.Step[string] {
	return resilience.Step[string]{
		Name: name,
		Run: func(context.Context) (string, error) {
			*calls++
			return v, nil
		},
	}
}

func TestExecute_FirstSuccessWins(t *testing.T) {
	t.Parallel()

	var first, second int
	chain := resilience.NewChain("load",
		okStep("first", "a", &first),
		okStep("second", "b", &second),
	)

	v, err := chain.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if v != "a" {
		t.Errorf("value: want a, got %q", v)
	}
	if first != 1 || second != 0 {
		t.Errorf("calls: want 1/0, got %d/%d", first, second)
	}
}

func TestExecute_FallsThroughFailures(t *testing.T) {
	t.Parallel()

	var fails, wins int
	chain := resilience.NewChain("load",
		failStep("broken", errors.New("nope"), &fails),
		failStep("also-broken", errors.New("still nope"), &fails),
		okStep("works", "v", &wins),
	)

	v, err := chain.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if v != "v" {
		t.Errorf("value: want v, got %q", v)
	}
	if fails != 2 || wins != 1 {
		t.Errorf("calls: want 2 failures and 1 success, got %d/%d", fails, wins)
	}
}

func TestExecute_AllFail(t *testing.T) {
	t.Parallel()

	var calls int
	last := errors.New("disk full")
	chain := resilience.NewChain("artifact-load",
		failStep("a", errors.New("first error"), &calls),
		failStep("b", last, &calls),
	)

	_, err := chain.Execute(context.Background())
	if err == nil {
		t.Fatal("want error, got nil")
	}
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Errorf("want ErrAllFailed in chain, got %v", err)
	}
	// The final error carries the last underlying cause, not the first.
	if !errors.Is(err, last) {
		t.Errorf("want last step error wrapped, got %v", err)
	}
	if !strings.Contains(err.Error(), "artifact-load") {
		t.Errorf("want chain name in error, got %v", err)
	}
}

func TestExecute_EmptyChain(t *testing.T) {
	t.Parallel()

	chain := resilience.NewChain[string]("empty")
	if _, err := chain.Execute(context.Background()); err == nil {
		t.Fatal("want error for empty chain, got nil")
	}
}

func TestExecute_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	chain := resilience.NewChain("load",
		resilience.Step[string]{
			Name: "cancels",
			Run: func(context.Context) (string, error) {
				calls++
				cancel()
				return "", errors.New("interrupted")
			},
		},
		okStep("never-reached", "v", &calls),
	)

	_, err := chain.Execute(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls: want 1, got %d", calls)
	}
}
