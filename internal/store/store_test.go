package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type widget struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

func (w widget) EntityID() string { return w.ID }

func newWidgets(t *testing.T) *Collection[widget] {
	t.Helper()
	st, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return NewCollection[widget](st, "widgets")
}

func TestMissingFileLoadsAsEmptyCollection(t *testing.T) {
	widgets := newWidgets(t)
	items, err := widgets.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty collection, got %d items", len(items))
	}
}

func TestAddAndGetByID(t *testing.T) {
	widgets := newWidgets(t)
	if err := widgets.Add(widget{ID: "w-1", Label: "first"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	got, err := widgets.GetByID("w-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Label != "first" {
		t.Fatalf("unexpected widget: %+v", got)
	}
	if _, err := widgets.GetByID("w-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWherePreservesInsertionOrder(t *testing.T) {
	widgets := newWidgets(t)
	for _, id := range []string{"w-1", "w-2", "w-3"} {
		if err := widgets.Add(widget{ID: id, Count: 1}); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	matched, err := widgets.Where(func(w widget) bool { return w.Count == 1 })
	if err != nil {
		t.Fatalf("where: %v", err)
	}
	if len(matched) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matched))
	}
	for i, id := range []string{"w-1", "w-2", "w-3"} {
		if matched[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, matched[i].ID)
		}
	}
}

func TestUpdateWhereMutatesInPlace(t *testing.T) {
	widgets := newWidgets(t)
	if err := widgets.Add(widget{ID: "w-1", Count: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}
	err := widgets.UpdateWhere(
		func(w widget) bool { return w.ID == "w-1" },
		func(w *widget) { w.Count += 3 },
	)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := widgets.GetByID("w-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Count != 5 {
		t.Fatalf("expected count 5, got %d", got.Count)
	}
}

func TestUpdateWhereZeroMatchesFails(t *testing.T) {
	widgets := newWidgets(t)
	if err := widgets.Add(widget{ID: "w-1"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	err := widgets.UpdateWhere(
		func(w widget) bool { return w.ID == "missing" },
		func(w *widget) { w.Count++ },
	)
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestRemoveWhereKeepsDifference(t *testing.T) {
	widgets := newWidgets(t)
	for _, id := range []string{"w-1", "w-2", "w-3"} {
		if err := widgets.Add(widget{ID: id}); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	if err := widgets.RemoveWhere(func(w widget) bool { return w.ID == "w-2" }); err != nil {
		t.Fatalf("remove: %v", err)
	}
	items, err := widgets.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(items) != 2 || items[0].ID != "w-1" || items[1].ID != "w-3" {
		t.Fatalf("unexpected survivors: %+v", items)
	}
	err = widgets.RemoveWhere(func(w widget) bool { return w.ID == "w-2" })
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch on second remove, got %v", err)
	}
}

func TestCollectionFileIsRewrittenWholesale(t *testing.T) {
	st, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	widgets := NewCollection[widget](st, "widgets")
	if err := widgets.Add(widget{ID: "w-1"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(st.Dir(), "widgets.json"))
	if err != nil {
		t.Fatalf("read collection file: %v", err)
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		t.Fatalf("expected trailing newline in collection file")
	}
}
