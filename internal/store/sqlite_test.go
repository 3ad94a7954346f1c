package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jokr/taaskly/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

func seedUser(t *testing.T, s *SQLiteStore, username string, workplaceID int64) int64 {
	t.Helper()
	res, err := s.db.Exec(`INSERT INTO users (username, workplace_id) VALUES (?, ?)`, username, workplaceID)
	if err != nil {
		t.Fatal(err)
	}
	id, _ := res.LastInsertId()
	return id
}

func seedDocument(t *testing.T, s *SQLiteStore, name, privacy string, ownerID int64) int64 {
	t.Helper()
	res, err := s.db.Exec(
		`INSERT INTO documents (name, content, privacy, owner_id) VALUES (?, ?, ?, ?)`,
		name, []byte("content of "+name), privacy, ownerID,
	)
	if err != nil {
		t.Fatal(err)
	}
	id, _ := res.LastInsertId()
	return id
}

func TestCommunityRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetCommunity(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("expected (nil, nil) for missing community")
	}

	community := &models.Community{ID: 1, Name: "Acme", AccessToken: "tok"}
	if err := s.UpsertCommunity(ctx, community); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetCommunity(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.AccessToken != "tok" {
		t.Fatalf("unexpected community: %+v", got)
	}

	// Upsert refreshes the token in place.
	community.AccessToken = "tok2"
	if err := s.UpsertCommunity(ctx, community); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetCommunity(ctx, 1)
	if got.AccessToken != "tok2" {
		t.Fatalf("token not refreshed: %+v", got)
	}

	if err := s.DeleteCommunity(ctx, 1); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetCommunity(ctx, 1)
	if got != nil {
		t.Fatal("community not deleted")
	}
}

func TestDocumentVisibility(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ownerID := seedUser(t, s, "ada", 100)
	otherID := seedUser(t, s, "bob", 200)
	publicID := seedDocument(t, s, "public doc", "public", ownerID)
	privateID := seedDocument(t, s, "private doc", "restricted", ownerID)

	owner := &models.User{ID: ownerID}
	other := &models.User{ID: otherID}

	// Anyone sees public documents, anonymous included.
	doc, err := s.GetDocumentForViewer(ctx, publicID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if doc == nil {
		t.Fatal("public document should be visible to anonymous viewers")
	}

	// Restricted documents are owner-only.
	doc, _ = s.GetDocumentForViewer(ctx, privateID, other)
	if doc != nil {
		t.Fatal("restricted document leaked to non-owner")
	}
	doc, _ = s.GetDocumentForViewer(ctx, privateID, owner)
	if doc == nil {
		t.Fatal("owner should see their restricted document")
	}

	docs, err := s.ListDocumentsForViewer(ctx, other, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].ID != publicID {
		t.Fatalf("unexpected listing for non-owner: %+v", docs)
	}
	docs, _ = s.ListDocumentsForViewer(ctx, owner, 10)
	if len(docs) != 2 {
		t.Fatalf("owner should see both documents, got %d", len(docs))
	}
}

func TestListLimitZeroMeansUnlimited(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ownerID := seedUser(t, s, "ada", 100)
	for i := 0; i < 3; i++ {
		if _, err := s.db.Exec(`INSERT INTO tasks (title, owner_id) VALUES (?, ?)`, "task", ownerID); err != nil {
			t.Fatal(err)
		}
	}

	tasks, err := s.ListTasksWithOwners(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 3 {
		t.Fatalf("limit 0 should return all rows, got %d", len(tasks))
	}
	tasks, err = s.ListTasksWithOwners(ctx, -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 3 {
		t.Fatalf("negative limit should return all rows, got %d", len(tasks))
	}
	tasks, _ = s.ListTasksWithOwners(ctx, 2)
	if len(tasks) != 2 {
		t.Fatalf("limit 2 should cap the rows, got %d", len(tasks))
	}
	if tasks[0].Owner == nil || tasks[0].Owner.Username != "ada" {
		t.Fatalf("owner not joined: %+v", tasks[0])
	}
}

func TestCompleteTaskIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ownerID := seedUser(t, s, "ada", 100)
	res, err := s.db.Exec(`INSERT INTO tasks (title, owner_id) VALUES (?, ?)`, "ship", ownerID)
	if err != nil {
		t.Fatal(err)
	}
	taskID, _ := res.LastInsertId()

	for i := 0; i < 2; i++ {
		if err := s.CompleteTask(ctx, taskID); err != nil {
			t.Fatal(err)
		}
	}
	task, err := s.GetTaskWithOwner(ctx, taskID)
	if err != nil {
		t.Fatal(err)
	}
	if !task.Completed {
		t.Fatal("task not completed")
	}
}

func TestCallbackAuditTrail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cb, err := s.CreateCallback(ctx, "/callback", map[string]string{"X-Hub-Signature": "sha1=abc"}, []byte(`{"object":"page"}`))
	if err != nil {
		t.Fatal(err)
	}
	if cb.ID.String() == "" || cb.ReceivedAt.IsZero() {
		t.Fatalf("incomplete callback record: %+v", cb)
	}

	purged, err := s.PurgeCallbacks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged record, got %d", purged)
	}
}

func TestGetUserByWorkplaceID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.GetUserByWorkplaceID(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if user != nil {
		t.Fatal("expected (nil, nil) for unknown workplace id")
	}

	seedUser(t, s, "ada", 42)
	user, err = s.GetUserByWorkplaceID(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if user == nil || user.Username != "ada" || !user.Linked() {
		t.Fatalf("unexpected user: %+v", user)
	}
}
