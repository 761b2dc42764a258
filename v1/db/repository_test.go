package db

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	toolkiterrors "github.com/mirkobrombin/go-toolkit/v1/errors"
)

func TestRepositoryCRUD(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	err := d.Session(ctx, func(tx *gorm.DB) error {
		repo := NewRepository[account, uint](tx)

		if m, err := repo.One(ctx, 1); err != nil || m != nil {
			t.Fatalf("expected absent row, got %v %v", m, err)
		}
		created, err := repo.Create(ctx, &account{Email: "ann@example.com", Name: "Ann"})
		if err != nil || created.ID == 0 {
			t.Fatalf("create: %+v %v", created, err)
		}
		if ok, err := repo.Exists(ctx, created.ID); err != nil || !ok {
			t.Fatalf("exists: %v %v", ok, err)
		}

		updated, err := repo.Update(ctx, created.ID, map[string]any{"balance": 40, "Name": "Ann B"})
		if err != nil || updated.Balance != 40 || updated.Name != "Ann B" {
			t.Fatalf("update: %+v %v", updated, err)
		}
		var ce *ColumnError
		if _, err := repo.Update(ctx, created.ID, map[string]any{"nickname": "x"}); !errors.As(err, &ce) {
			t.Fatalf("expected column error, got %v", err)
		}
		if _, err := repo.Update(ctx, 999, map[string]any{"balance": 1}); !errors.Is(err, toolkiterrors.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}

		if err := repo.Delete(ctx, created.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		var nf *NotFoundError
		if err := repo.Delete(ctx, created.ID); !errors.As(err, &nf) || nf.ID != created.ID {
			t.Fatalf("expected not found on second delete, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("session: %v", err)
	}
}

func TestRepositoryStringKeys(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	repo := NewRepository[tag, string](d.SessionUnsafe(ctx))

	items, err := repo.CreateMany(ctx, []*tag{{Code: "go", Label: "Go"}, {Code: "db", Label: "Databases"}, {Code: "x' OR '1'='1", Label: "quoted"}})
	if err != nil || len(items) != 3 {
		t.Fatalf("create many: %v", err)
	}
	got, err := repo.One(ctx, "go")
	if err != nil || got == nil || got.Label != "Go" {
		t.Fatalf("one: %+v %v", got, err)
	}
	if ok, _ := repo.Exists(ctx, "x' OR '1'='1"); !ok {
		t.Fatal("string keys must be bound as values")
	}
	if ok, _ := repo.Exists(ctx, "rust"); ok {
		t.Fatal("unexpected row")
	}

	if err := repo.DeleteMany(ctx, []string{"go", "missing"}); !errors.Is(err, toolkiterrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if ok, _ := repo.Exists(ctx, "go"); !ok {
		t.Fatal("a failed DeleteMany must not delete anything")
	}
	if err := repo.DeleteMany(ctx, []string{"go", "db"}); err != nil {
		t.Fatalf("delete many: %v", err)
	}
	if all, _ := repo.Many(ctx, Query{}); len(all) != 1 {
		t.Fatalf("expected one row left, got %d", len(all))
	}
}

func TestRepositoryMany(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	repo := NewRepository[account, uint](d.SessionUnsafe(ctx))

	var batch []*account
	for i, email := range []string{"a@x", "b@x", "c@x", "d@x", "e@x"} {
		batch = append(batch, &account{Email: email, Balance: i * 10})
	}
	if _, err := repo.CreateMany(ctx, batch); err != nil {
		t.Fatalf("create many: %v", err)
	}

	page, err := repo.Many(ctx, Query{Where: "balance >= ?", Args: []any{10}, Order: "balance desc", Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("many: %v", err)
	}
	if len(page) != 2 || page[0].Balance != 20 || page[1].Balance != 10 {
		t.Fatalf("unexpected page %+v", page)
	}
	if all, _ := repo.Many(ctx, Query{}); len(all) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(all))
	}
}

func TestToMap(t *testing.T) {
	m, err := ToMap(&account{ID: 3, Email: "z@x", Name: "Zed", Balance: 7}, map[string]any{"role": "admin"})
	if err != nil {
		t.Fatalf("to map: %v", err)
	}
	if m["id"] != uint(3) || m["email"] != "z@x" || m["balance"] != 7 || m["role"] != "admin" {
		t.Fatalf("unexpected map %v", m)
	}
	if _, err := ToMap((*account)(nil), nil); err == nil {
		t.Fatal("expected error for nil model")
	}
}
