package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"drinksmenu/internal/model"
)

// runStoreContract exercises behaviour every Store implementation shares.
func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	list, err := s.ListDrinks(ctx)
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty store, got %d drinks", len(list))
	}

	water, err := s.CreateDrink(ctx, "Water", `[{"name":"water","color":"blue","parts":1}]`)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if water.ID == 0 {
		t.Fatal("expected id to be assigned")
	}
	latte, err := s.CreateDrink(ctx, "Latte", `[{"name":"milk","color":"white","parts":3}]`)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if latte.ID == water.ID {
		t.Fatalf("ids must be unique, both %d", latte.ID)
	}

	if _, err := s.CreateDrink(ctx, "Water", `[]`); !errors.Is(err, ErrDuplicateTitle) {
		t.Fatalf("duplicate title: got %v", err)
	}

	tooLong := strings.Repeat("x", MaxTitleLength+1)
	if _, err := s.CreateDrink(ctx, tooLong, `[]`); !errors.Is(err, ErrTitleTooLong) {
		t.Fatalf("create %d char title: got %v", len(tooLong), err)
	}
	if _, err := s.UpdateDrink(ctx, latte.ID, model.DrinkPatch{Title: &tooLong}); !errors.Is(err, ErrTitleTooLong) {
		t.Fatalf("update to %d char title: got %v", len(tooLong), err)
	}
	// the limit counts characters, not bytes
	longest := strings.Repeat("é", MaxTitleLength)
	maxed, err := s.CreateDrink(ctx, longest, `[]`)
	if err != nil {
		t.Fatalf("create %d char title: %v", MaxTitleLength, err)
	}
	if err := s.DeleteDrink(ctx, maxed.ID); err != nil {
		t.Fatalf("delete max title drink: %v", err)
	}

	got, err := s.GetDrink(ctx, water.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Water" || got.Recipe != water.Recipe {
		t.Fatalf("get mismatch: %+v", got)
	}

	title := "Sparkling Water"
	upd, err := s.UpdateDrink(ctx, water.ID, model.DrinkPatch{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if upd.ID != water.ID || upd.Title != title || upd.Recipe != water.Recipe {
		t.Fatalf("update result: %+v", upd)
	}
	recipe := `[{"name":"soda","color":"clear","parts":2}]`
	upd, err = s.UpdateDrink(ctx, water.ID, model.DrinkPatch{Recipe: &recipe})
	if err != nil {
		t.Fatalf("update recipe: %v", err)
	}
	if upd.Title != title || upd.Recipe != recipe {
		t.Fatalf("update recipe result: %+v", upd)
	}
	taken := "Latte"
	if _, err := s.UpdateDrink(ctx, water.ID, model.DrinkPatch{Title: &taken}); !errors.Is(err, ErrDuplicateTitle) {
		t.Fatalf("update to taken title: got %v", err)
	}
	if _, err := s.UpdateDrink(ctx, 9999, model.DrinkPatch{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing: got %v", err)
	}

	list, err = s.ListDrinks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != water.ID || list[1].ID != latte.ID {
		t.Fatalf("list order/content: %+v", list)
	}

	if err := s.DeleteDrink(ctx, water.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteDrink(ctx, water.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete twice: got %v", err)
	}
	if _, err := s.GetDrink(ctx, water.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get deleted: got %v", err)
	}

	again, err := s.CreateDrink(ctx, "Water", `[]`)
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if again.ID == water.ID {
		t.Fatalf("deleted id %d was reused", water.ID)
	}

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemory())
}

func TestMemoryPingCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewMemory().Ping(ctx); err == nil {
		t.Fatal("expected error on canceled context")
	}
}
