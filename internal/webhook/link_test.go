package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jokr/taaskly/internal/models"
	"github.com/jokr/taaskly/internal/store"
)

// fakeStore implements the lookups the link pipeline touches; the
// embedded interface panics on anything else.
type fakeStore struct {
	store.DataStore
	community *models.Community
	user      *models.User
	task      *models.Task
	completed []int64
	documents []models.Document
	folders   []models.Folder
}

func (f *fakeStore) CreateCallback(ctx context.Context, path string, headers map[string]string, body []byte) (*models.Callback, error) {
	return &models.Callback{}, nil
}

func (f *fakeStore) GetCommunity(ctx context.Context, id int64) (*models.Community, error) {
	if f.community != nil && f.community.ID == id {
		return f.community, nil
	}
	return nil, nil
}

func (f *fakeStore) GetUserByWorkplaceID(ctx context.Context, workplaceID int64) (*models.User, error) {
	if f.user != nil && f.user.WorkplaceID != nil && *f.user.WorkplaceID == workplaceID {
		return f.user, nil
	}
	return nil, nil
}

func (f *fakeStore) GetTaskWithOwner(ctx context.Context, id int64) (*models.Task, error) {
	if f.task != nil && f.task.ID == id {
		return f.task, nil
	}
	return nil, nil
}

func (f *fakeStore) ListTasksWithOwners(ctx context.Context, limit int) ([]models.Task, error) {
	if f.task == nil {
		return nil, nil
	}
	return []models.Task{*f.task}, nil
}

func (f *fakeStore) CompleteTask(ctx context.Context, id int64) error {
	f.completed = append(f.completed, id)
	return nil
}

func (f *fakeStore) GetDocumentForViewer(ctx context.Context, id int64, viewer *models.User) (*models.Document, error) {
	for i := range f.documents {
		if f.documents[i].ID == id {
			return &f.documents[i], nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListDocumentsForViewer(ctx context.Context, viewer *models.User, limit int) ([]models.Document, error) {
	return f.documents, nil
}

func (f *fakeStore) ListFoldersForViewer(ctx context.Context, viewer *models.User, limit int) ([]models.Folder, error) {
	return f.folders, nil
}

func (f *fakeStore) ListFolderDocuments(ctx context.Context, folderID int64, viewer *models.User, limit int) ([]models.Document, error) {
	return f.documents, nil
}

func newLinkHandler(t *testing.T, fs *fakeStore) *Handler {
	t.Helper()
	h, _ := newTestHandler(t)
	h.store = fs
	return h
}

func linkedUser() *models.User {
	wid := int64(100)
	return &models.User{ID: 1, Username: "ada", WorkplaceID: &wid, CreatedAt: time.Unix(1000, 0)}
}

func TestExtractID(t *testing.T) {
	kind, id, err := extractID("https://taaskly.example/document/42")
	if err != nil {
		t.Fatal(err)
	}
	if kind != "document" || id != 42 {
		t.Fatalf("got %s/%d", kind, id)
	}

	if _, _, err := extractID("https://taaskly.example/about"); err == nil {
		t.Fatal("expected error for unknown link shape")
	}
}

func TestPreviewDocument(t *testing.T) {
	fs := &fakeStore{
		community: &models.Community{ID: 7, AccessToken: "tok"},
		user:      linkedUser(),
		documents: []models.Document{{ID: 42, Name: "Roadmap", Content: []byte("Q3 plans"), Privacy: models.PrivacyPublic}},
	}
	h := newLinkHandler(t, fs)

	resp, err := h.handlePreview(context.Background(), &LinkChange{
		Link:      "https://taaskly.example/document/42",
		Community: Party{ID: "7"},
		User:      Party{ID: "100"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.LinkedUser {
		t.Fatal("expected linked_user true")
	}
	if len(resp.Data) != 1 {
		t.Fatalf("expected one entity, got %d", len(resp.Data))
	}
	entity := resp.Data[0]
	if entity.Title != "Roadmap" || entity.Type != "doc" || entity.Privacy != "organization" {
		t.Fatalf("unexpected entity: %+v", entity)
	}
	if entity.Description != "Q3 plans" {
		t.Fatalf("unexpected excerpt: %q", entity.Description)
	}
}

func TestPreviewUnknownCommunity(t *testing.T) {
	h := newLinkHandler(t, &fakeStore{})

	_, err := h.handlePreview(context.Background(), &LinkChange{
		Link:      "https://taaskly.example/document/42",
		Community: Party{ID: "7"},
		User:      Party{ID: "100"},
	})
	badReq, ok := err.(*BadRequestError)
	if !ok {
		t.Fatalf("expected BadRequestError, got %v", err)
	}
	if badReq.Message != "Unknown community." {
		t.Fatalf("unexpected message: %q", badReq.Message)
	}
}

func TestCollectionIncludesSyntheticTasksFolder(t *testing.T) {
	fs := &fakeStore{
		community: &models.Community{ID: 7},
		user:      linkedUser(),
		folders:   []models.Folder{{ID: 3, Name: "Specs", Privacy: models.PrivacyPublic}},
	}
	h := newLinkHandler(t, fs)

	resp, err := h.handleCollection(context.Background(), &LinkChange{
		Community: Party{ID: "7"},
		User:      Party{ID: "100"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) < 2 {
		t.Fatalf("expected synthetic folder plus real folders, got %d entities", len(resp.Data))
	}
	first := resp.Data[0]
	if first.Title != "Tasks" || first.Privacy != "personalized" || !strings.HasSuffix(first.Link, "personalized-tasks") {
		t.Fatalf("unexpected first entity: %+v", first)
	}
}

func TestCollectionUnlinkedUserIsEmpty(t *testing.T) {
	fs := &fakeStore{community: &models.Community{ID: 7}}
	h := newLinkHandler(t, fs)

	resp, err := h.handleCollection(context.Background(), &LinkChange{
		Community: Party{ID: "7"},
		User:      Party{ID: "100"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.LinkedUser || len(resp.Data) != 0 {
		t.Fatalf("expected empty response for unlinked user: %+v", resp)
	}
}

func TestPostbackClosesTask(t *testing.T) {
	fs := &fakeStore{
		community: &models.Community{ID: 7},
		user:      linkedUser(),
		task:      &models.Task{ID: 9, Title: "Ship it", Owner: linkedUser()},
	}
	h := newLinkHandler(t, fs)

	resp, err := h.handlePostback(context.Background(), &LinkChange{
		Link:      "https://taaskly.example/task/9",
		Community: Party{ID: "7"},
		User:      Party{ID: "100"},
		Payload:   "Close.Task",
		Value:     "Close",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(fs.completed) != 1 || fs.completed[0] != 9 {
		t.Fatalf("task not completed: %v", fs.completed)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("expected task entity, got %d", len(resp.Data))
	}
	action := resp.Data[0].Actions[0]
	if !action.Disabled {
		t.Fatal("close action should be disabled after completion")
	}
}

func TestPostbackRejectsNonTaskLink(t *testing.T) {
	h := newLinkHandler(t, &fakeStore{community: &models.Community{ID: 7}})

	_, err := h.handlePostback(context.Background(), &LinkChange{
		Link:      "https://taaskly.example/document/9",
		Community: Party{ID: "7"},
		User:      Party{ID: "100"},
	})
	badReq, ok := err.(*BadRequestError)
	if !ok || badReq.Message != "Invalid url." {
		t.Fatalf("expected invalid url error, got %v", err)
	}
}

func TestLinkCallbackWrongTopic(t *testing.T) {
	h := newLinkHandler(t, &fakeStore{})

	body := `{"object":"page","entry":[{"changes":[{"field":"preview","value":{}}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/link/callback", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.LinkCallback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong topic, got %d", rec.Code)
	}
}

func TestLinkCallbackUnknownField(t *testing.T) {
	h := newLinkHandler(t, &fakeStore{})

	body := `{"object":"link","entry":[{"changes":[{"field":"mystery","value":{}}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/link/callback", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.LinkCallback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No handler for change.") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
