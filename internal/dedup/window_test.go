package dedup

import (
	"testing"

	"bidflow/internal/model"
)

func orders(ids ...string) []model.Order {
	out := make([]model.Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Order{OrderID: id})
	}
	return out
}

func ids(orders []model.Order) []string {
	out := make([]string, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.OrderID)
	}
	return out
}

func TestFilterNewDropsSeen(t *testing.T) {
	w := NewWindow(10)
	got := w.FilterNew(orders("a", "b", "a"))
	if len(got) != 2 {
		t.Fatalf("expected 2 fresh orders, got %d", len(got))
	}
	got = w.FilterNew(orders("b", "c"))
	if len(got) != 1 || got[0].OrderID != "c" {
		t.Fatalf("expected only c, got %v", ids(got))
	}
}

func TestFilterNewDropsEmptyID(t *testing.T) {
	w := NewWindow(10)
	got := w.FilterNew(orders("", "x"))
	if len(got) != 1 || got[0].OrderID != "x" {
		t.Fatalf("empty-id order not dropped: %v", ids(got))
	}
}

func TestFIFOEviction(t *testing.T) {
	w := NewWindow(2)
	w.FilterNew(orders("A", "B"))
	w.FilterNew(orders("C")) // evicts A

	if w.Contains("A") {
		t.Fatal("A should have been evicted")
	}
	if !w.Contains("B") || !w.Contains("C") {
		t.Fatal("B and C should still be present")
	}

	got := w.FilterNew(orders("A"))
	if len(got) != 1 {
		t.Fatal("re-submitted A should be treated as new")
	}
	if got := w.FilterNew(orders("C")); len(got) != 0 {
		t.Fatalf("C should still be filtered, got %v", ids(got))
	}
}

func TestWindowPreservesInputOrder(t *testing.T) {
	w := NewWindow(10)
	got := w.FilterNew(orders("z", "a", "m"))
	want := []string{"z", "a", "m"}
	for i, id := range ids(got) {
		if id != want[i] {
			t.Fatalf("order not preserved: got %v", ids(got))
		}
	}
}

func TestWindowCapacityStable(t *testing.T) {
	w := NewWindow(3)
	w.FilterNew(orders("1", "2", "3", "4", "5", "6", "7"))
	if w.Len() != 3 {
		t.Fatalf("window grew past capacity: %d", w.Len())
	}
	// last three inserted remain
	for _, id := range []string{"5", "6", "7"} {
		if !w.Contains(id) {
			t.Errorf("expected %s in window", id)
		}
	}
}
