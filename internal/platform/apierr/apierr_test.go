package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

var errMissing = errors.New("missing")

func TestMatchUsesFirstMatchingRule(t *testing.T) {
	rules := []Rule{
		{Target: errMissing, Status: http.StatusNotFound, Code: "generation_not_found"},
	}
	got := Match(fmt.Errorf("lookup: %w", errMissing), rules)
	if got.Status != http.StatusNotFound || got.Code != "generation_not_found" {
		t.Fatalf("got %+v", got)
	}
	if !errors.Is(got, errMissing) {
		t.Fatalf("match should keep the cause")
	}

	other := Match(errors.New("boom"), rules)
	if other.Status != http.StatusInternalServerError || other.Code != "internal_error" {
		t.Fatalf("fallback=%+v", other)
	}

	pre := New(http.StatusConflict, "generation_finished", nil)
	if Match(pre, rules) != pre {
		t.Fatalf("an existing api error should pass through")
	}
}

func TestForRunScopesCopy(t *testing.T) {
	base := New(http.StatusConflict, "generation_finished", errors.New("already finished"))
	scoped := base.ForRun("r-1")
	if base.RunID != "" {
		t.Fatalf("ForRun mutated the original")
	}
	if scoped.RunID != "r-1" || scoped.Error() != "run r-1: already finished" {
		t.Fatalf("scoped=%+v msg=%q", scoped, scoped.Error())
	}
	if got := New(http.StatusTeapot, "", nil).Error(); got != "api error (418)" {
		t.Fatalf("empty error message=%q", got)
	}
}
