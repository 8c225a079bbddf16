package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/desertthunder/stemx/internal/models"
	"github.com/desertthunder/stemx/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func testTracks() models.TrackSet {
	return models.TrackSet{
		models.Vocals: "/static/output/abc/vocals.wav",
		models.Drums:  "/static/output/abc/drums.wav",
	}
}

func TestSessionRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))

		first := models.NewSessionRecord("one", "song.wav", testTracks())
		second := models.NewSessionRecord("two", "https://youtu.be/x", testTracks())
		if err := repo.Create(first); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
		if err := repo.Create(second); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		if first.Sequence() != 1 || second.Sequence() != 2 {
			t.Errorf("expected sequences 1 and 2, got %d and %d", first.Sequence(), second.Sequence())
		}
	})

	t.Run("Create rejects invalid records", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))

		if err := repo.Create(models.NewSessionRecord("", "song.wav", testTracks())); err == nil {
			t.Error("expected validation error for empty id")
		}
		if err := repo.Create(models.NewSessionRecord("x", "song.wav", models.TrackSet{})); err == nil {
			t.Error("expected validation error for empty tracks")
		}
	})

	t.Run("Get", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		rec := models.NewSessionRecord("one", "song.wav", testTracks())
		if err := repo.Create(rec); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		got, err := repo.Get("one")
		if err != nil {
			t.Fatalf("failed to get session: %v", err)
		}
		if got.Source() != "song.wav" {
			t.Errorf("expected source song.wav, got %s", got.Source())
		}
		if got.Tracks()[models.Vocals] != "/static/output/abc/vocals.wav" || len(got.Tracks()) != 2 {
			t.Errorf("unexpected tracks %v", got.Tracks())
		}
		if got.Deleted() {
			t.Error("new session should not be deleted")
		}
	})

	t.Run("Get NotFound", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		if _, err := repo.Get("missing"); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		rec := models.NewSessionRecord("one", "song.wav", testTracks())
		_ = repo.Create(rec)

		rec.SetCacheDir("/tmp/stems/one")
		rec.SetTracks(models.TrackSet{models.Bass: "/b.wav"})
		if err := repo.Update(rec); err != nil {
			t.Fatalf("failed to update session: %v", err)
		}

		got, _ := repo.Get("one")
		if got.CacheDir() != "/tmp/stems/one" || !got.Tracks().Present(models.Bass) {
			t.Errorf("update not persisted: %s %v", got.CacheDir(), got.Tracks())
		}
	})

	t.Run("Update NotFound", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		if err := repo.Update(models.NewSessionRecord("ghost", "x", testTracks())); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Delete marks the session and keeps history", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		_ = repo.Create(models.NewSessionRecord("one", "song.wav", testTracks()))
		_ = repo.Create(models.NewSessionRecord("two", "song.wav", testTracks()))

		if err := repo.Delete("one"); err != nil {
			t.Fatalf("failed to delete session: %v", err)
		}
		if err := repo.Delete("one"); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected second delete to fail, got %v", err)
		}

		got, err := repo.Get("one")
		if err != nil {
			t.Fatalf("deleted session should still be readable: %v", err)
		}
		if !got.Deleted() {
			t.Error("expected deleted_at to be set")
		}

		pending, err := repo.Pending()
		if err != nil {
			t.Fatalf("failed to list pending: %v", err)
		}
		if len(pending) != 1 || pending[0].ID() != "two" {
			t.Errorf("expected only session two pending, got %d", len(pending))
		}
	})

	t.Run("List with limit keeps the most recent", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		for _, id := range []string{"a", "b", "c"} {
			_ = repo.Create(models.NewSessionRecord(id, "song.wav", testTracks()))
		}

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(all) != 3 || all[0].ID() != "a" {
			t.Errorf("unexpected listing %d", len(all))
		}

		recent, err := repo.List(map[string]any{"limit": 2})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(recent) != 2 || recent[0].ID() != "b" || recent[1].ID() != "c" {
			t.Errorf("expected b and c, got %d rows", len(recent))
		}
	})

	t.Run("Record creates then updates", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		ctx := context.Background()

		if err := repo.Record(ctx, "one", "song.wav", testTracks()); err != nil {
			t.Fatalf("failed to record: %v", err)
		}
		if err := repo.Record(ctx, "one", "song.wav", models.TrackSet{models.Other: "/o.wav"}); err != nil {
			t.Fatalf("failed to re-record: %v", err)
		}

		all, _ := repo.List(nil)
		if len(all) != 1 || !all[0].Tracks().Present(models.Other) {
			t.Errorf("expected one updated row, got %d", len(all))
		}

		if err := repo.Record(ctx, "", "song.wav", testTracks()); !errors.Is(err, shared.ErrNoSessionID) {
			t.Errorf("expected ErrNoSessionID, got %v", err)
		}
	})

	t.Run("SetCacheDir", func(t *testing.T) {
		repo := NewSessionRepository(setupTestDB(t))
		_ = repo.Create(models.NewSessionRecord("one", "song.wav", testTracks()))

		if err := repo.SetCacheDir("one", "/cache/one"); err != nil {
			t.Fatalf("failed to set cache dir: %v", err)
		}
		got, _ := repo.Get("one")
		if got.CacheDir() != "/cache/one" {
			t.Errorf("expected /cache/one, got %s", got.CacheDir())
		}
		if err := repo.SetCacheDir("ghost", "/x"); err == nil {
			t.Error("expected error for unknown session")
		}
	})
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "sessions")
		if err != nil {
			t.Fatalf("NextSequence failed: %v", err)
		}
		if got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}
	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for missing sequence table")
	}
}
