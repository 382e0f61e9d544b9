package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestRunHeadlessRunsEveryStepInOrder(t *testing.T) {
	var out bytes.Buffer
	r := &Runner{Steps: []string{"a", "b", "c"}, Headless: true, Out: &out}

	var seen []int
	err := r.Run(func(i int) error {
		seen = append(seen, i)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(seen) != 3 || seen[0] != 0 || seen[1] != 1 || seen[2] != 2 {
		t.Fatalf("steps ran out of order: %v", seen)
	}
	for _, label := range r.Steps {
		if !strings.Contains(out.String(), label+" done") {
			t.Errorf("output missing %q done line:\n%s", label, out.String())
		}
	}
}

func TestRunHeadlessStopsAtFirstError(t *testing.T) {
	var out bytes.Buffer
	r := &Runner{Steps: []string{"a", "b"}, Headless: true, Out: &out}
	boom := errors.New("boom")

	var ran []int
	err := r.Run(func(i int) error {
		ran = append(ran, i)
		if i == 0 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run: got %v, want %v", err, boom)
	}
	if len(ran) != 1 {
		t.Fatalf("expected to stop after first step, ran %v", ran)
	}
	if !strings.Contains(out.String(), "a failed: boom") {
		t.Errorf("output missing failure line:\n%s", out.String())
	}
}

func TestRunHeadlessWithNoSteps(t *testing.T) {
	r := &Runner{Headless: true}
	called := false
	if err := r.Run(func(int) error { called = true; return nil }); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if called {
		t.Fatal("next should not be called with zero steps")
	}
}
