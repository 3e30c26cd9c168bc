package cart

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAddMergesUncustomizedLines(t *testing.T) {
	store, err := NewStore(&MemoryStorage{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.Add(Item{MenuID: 1, MenuName: "Nasi Goreng", Quantity: 1, UnitPrice: 25000}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Add(Item{MenuID: 1, MenuName: "Nasi Goreng", Quantity: 2, UnitPrice: 25000}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	items := store.Items()
	if len(items) != 1 {
		t.Fatalf("expected merged single line, got %d", len(items))
	}
	if items[0].Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", items[0].Quantity)
	}
}

func TestAddKeepsCustomizedLinesSeparate(t *testing.T) {
	store, err := NewStore(&MemoryStorage{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spicy := Customization{GroupID: 1, GroupName: "Level Pedas", OptionID: 3, OptionName: "Pedas", ExtraPrice: 0}
	extraEgg := Customization{GroupID: 2, GroupName: "Tambahan", OptionID: 7, OptionName: "Telur", ExtraPrice: 5000}

	_ = store.Add(Item{MenuID: 1, Quantity: 1, UnitPrice: 25000, Customizations: []Customization{spicy}})
	_ = store.Add(Item{MenuID: 1, Quantity: 1, UnitPrice: 25000, Customizations: []Customization{extraEgg}})
	_ = store.Add(Item{MenuID: 1, Quantity: 1, UnitPrice: 25000})

	if got := len(store.Items()); got != 3 {
		t.Fatalf("expected 3 separate lines, got %d", got)
	}
}

func TestTotalIncludesCustomizationSurcharge(t *testing.T) {
	store, err := NewStore(&MemoryStorage{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.Add(Item{MenuID: 1, Quantity: 2, UnitPrice: 25000}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.Total(); got != 50000 {
		t.Fatalf("expected total 50000, got %d", got)
	}

	extra := Customization{GroupID: 2, OptionID: 7, OptionName: "Telur", ExtraPrice: 5000}
	if err := store.Add(Item{MenuID: 2, Quantity: 1, UnitPrice: 20000, Customizations: []Customization{extra}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.Total(); got != 75000 {
		t.Fatalf("expected total 75000, got %d", got)
	}
}

func TestClearPersistsEmptyCart(t *testing.T) {
	mem := &MemoryStorage{}
	store, err := NewStore(mem)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_ = store.Add(Item{MenuID: 1, Quantity: 1, UnitPrice: 25000})
	if err := store.Clear(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.Items()) != 0 {
		t.Fatal("expected no items after clear")
	}
	if len(mem.Saved.Items) != 0 {
		t.Fatal("expected persisted cart to be empty after clear")
	}
}

func TestSetQuantityRemovesAtZero(t *testing.T) {
	store, err := NewStore(&MemoryStorage{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_ = store.Add(Item{MenuID: 1, Quantity: 2, UnitPrice: 25000})
	if err := store.SetQuantity(0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.Items()) != 0 {
		t.Fatal("expected item removed when quantity set to zero")
	}
	if err := store.SetQuantity(5, 1); err == nil {
		t.Fatal("expected error for out-of-range index")
	}
}

func TestSetTableAbandonsPreviousCart(t *testing.T) {
	store, err := NewStore(&MemoryStorage{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_ = store.SetTable("T-01")
	_ = store.Add(Item{MenuID: 1, Quantity: 1, UnitPrice: 25000})
	_ = store.SetTable("T-02")

	if len(store.Items()) != 0 {
		t.Fatal("expected cart emptied when table changes")
	}
	if store.TableCode() != "T-02" {
		t.Fatalf("expected table T-02, got %s", store.TableCode())
	}
}

func TestFileStorageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "cart.json")

	store, err := NewStore(NewFileStorage(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = store.SetTable("T-03")
	if err := store.Add(Item{MenuID: 4, MenuName: "Es Teh", Quantity: 2, UnitPrice: 8000}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reloaded, err := NewStore(NewFileStorage(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reloaded.TableCode() != "T-03" {
		t.Fatalf("expected table T-03, got %s", reloaded.TableCode())
	}
	if got := reloaded.Total(); got != 16000 {
		t.Fatalf("expected total 16000, got %d", got)
	}

	// Corrupt file falls back to an empty cart rather than failing.
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fresh, err := NewStore(NewFileStorage(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fresh.Items()) != 0 {
		t.Fatal("expected empty cart from corrupt file")
	}
}
