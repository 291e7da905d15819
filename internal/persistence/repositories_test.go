package persistence_test

import (
	"context"
	"errors"
	"testing"

	"github.com/example/session-coordinator/internal/persistence"
	"github.com/example/session-coordinator/internal/persistence/memory"
	"github.com/example/session-coordinator/internal/testfixtures"
)

// Every SessionRepository implementation must satisfy the same contract.
func TestSessionRepositoryContract(t *testing.T) {
	t.Parallel()

	implementations := map[string]func(t *testing.T) persistence.SessionRepository{
		"memory": func(*testing.T) persistence.SessionRepository { return memory.New() },
		"sqlite": func(t *testing.T) persistence.SessionRepository { return testfixtures.NewSQLiteHarness(t).Sessions },
	}

	for name, factory := range implementations {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			runSessionContract(t, factory(t))
		})
	}
}

func runSessionContract(t *testing.T, repo persistence.SessionRepository) {
	ctx := context.Background()

	first := testfixtures.NewSessionFixture(testfixtures.WithSchedule("2026-05-03", "18:00", 2)).Session()
	second := testfixtures.NewSessionFixture(testfixtures.WithSchedule("2026-05-04", "09:30", 1.5), testfixtures.WithGuests("Cy")).Session()

	for _, s := range []struct {
		label string
		id    string
	}{{"first", first.ID}, {"second", second.ID}} {
		if _, err := repo.Get(ctx, s.id); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound before create, got %v", s.label, err)
		}
	}

	if _, err := repo.Create(ctx, first); err != nil {
		t.Fatalf("create first: %v", err)
	}
	if _, err := repo.Create(ctx, second); err != nil {
		t.Fatalf("create second: %v", err)
	}
	if _, err := repo.Create(ctx, first); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for repeated create, got %v", err)
	}

	all, err := repo.FetchAll(ctx)
	if err != nil {
		t.Fatalf("fetch all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(all))
	}

	got, err := repo.Get(ctx, second.ID)
	if err != nil {
		t.Fatalf("get second: %v", err)
	}
	if got.StartTime != "09:30" || got.DurationHours != 1.5 || len(got.Guests) != 1 || got.Guests[0].Name != "Cy" {
		t.Fatalf("second did not round trip: %+v", got)
	}

	edited := got.Clone()
	edited.Title = "Renamed"
	edited.OwnerIdentity = "someone-else@example.com"
	updated, err := repo.Update(ctx, edited)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	reloaded, err := repo.Get(ctx, second.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if updated.Title != "Renamed" || reloaded.Title != "Renamed" {
		t.Fatalf("title not updated: %q / %q", updated.Title, reloaded.Title)
	}
	if reloaded.OwnerIdentity != second.OwnerIdentity {
		t.Fatalf("owner must be fixed at create, got %q", reloaded.OwnerIdentity)
	}

	missing := first.Clone()
	missing.ID = "does-not-exist"
	if _, err := repo.Update(ctx, missing); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update of missing session, got %v", err)
	}

	if err := repo.Delete(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, first.ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
