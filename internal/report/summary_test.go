package report

import (
	"strings"
	"testing"
)

func TestDistribution_DescendingOrder(t *testing.T) {
	t.Parallel()
	s := NewSummary()
	for i := 0; i < 3; i++ {
		s.Add("normal")
	}
	s.Add("dos")
	s.Add("dos")
	s.Add("other_attack")

	dist := s.Distribution()
	if len(dist) != 3 {
		t.Fatalf("distribution has %d entries, want 3", len(dist))
	}
	want := []LabelCount{{"normal", 3}, {"dos", 2}, {"other_attack", 1}}
	for i, lc := range want {
		if dist[i] != lc {
			t.Errorf("dist[%d] = %+v, want %+v", i, dist[i], lc)
		}
	}
}

func TestDistribution_TiesAlphabetical(t *testing.T) {
	t.Parallel()
	s := NewSummary()
	s.Add("other_attack")
	s.Add("dos")

	dist := s.Distribution()
	if dist[0].Label != "dos" || dist[1].Label != "other_attack" {
		t.Errorf("tie order = %v, want dos before other_attack", dist)
	}
}

func TestProcessedAndSkipped(t *testing.T) {
	t.Parallel()
	s := NewSummary()
	s.Add("normal")
	s.Add("dos")
	s.Skip()

	if s.Processed() != 2 {
		t.Errorf("Processed = %d, want 2", s.Processed())
	}
	if s.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", s.Skipped)
	}
}

func TestRender_IncludesAllLabels(t *testing.T) {
	t.Parallel()
	s := NewSummary()
	s.Add("normal")
	s.Add("dos")
	s.Skip()

	out := s.Render()
	for _, want := range []string{"normal", "dos", "classified", "skipped"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered summary missing %q:\n%s", want, out)
		}
	}
}
