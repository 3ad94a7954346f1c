package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jokr/taaskly/internal/models"
)

// SQLiteStore handles SQLite database operations. It backs local
// development and single-tenant deployments without a DATABASE_URL.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/taaskly.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/taaskly.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// sqliteLimit maps the interface's "zero or less means unlimited"
// onto SQLite's negative-limit convention.
func sqliteLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS communities (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		access_token TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		access_token TEXT NOT NULL,
		community_id INTEGER NOT NULL,
		community_name TEXT NOT NULL,
		install_id INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		workplace_id INTEGER UNIQUE,
		community_id INTEGER REFERENCES communities(id) ON DELETE SET NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS folders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		privacy TEXT NOT NULL DEFAULT 'public',
		owner_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		content BLOB NOT NULL,
		privacy TEXT NOT NULL DEFAULT 'public',
		owner_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		folder_id INTEGER REFERENCES folders(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		completed INTEGER NOT NULL DEFAULT 0,
		priority TEXT,
		owner_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS callbacks (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		headers TEXT NOT NULL,
		body BLOB NOT NULL,
		received_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_workplace_id ON users(workplace_id);
	CREATE INDEX IF NOT EXISTS idx_documents_folder_id ON documents(folder_id);
	CREATE INDEX IF NOT EXISTS idx_callbacks_received_at ON callbacks(received_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateCallback appends one audit record for an inbound delivery.
func (s *SQLiteStore) CreateCallback(ctx context.Context, path string, headers map[string]string, body []byte) (*models.Callback, error) {
	headerJSON, err := json.Marshal(headers)
	if err != nil {
		return nil, err
	}

	cb := &models.Callback{
		ID:         uuid.New(),
		Path:       path,
		Headers:    headers,
		Body:       body,
		ReceivedAt: time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO callbacks (id, path, headers, body, received_at)
		VALUES (?, ?, ?, ?, ?)
	`, cb.ID.String(), path, string(headerJSON), body, cb.ReceivedAt)
	if err != nil {
		return nil, err
	}
	return cb, nil
}

// PurgeCallbacks deletes all audit records and returns the count.
func (s *SQLiteStore) PurgeCallbacks(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM callbacks`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetCommunity retrieves a community by ID.
func (s *SQLiteStore) GetCommunity(ctx context.Context, id int64) (*models.Community, error) {
	community := &models.Community{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, access_token FROM communities WHERE id = ?
	`, id).Scan(&community.ID, &community.Name, &community.AccessToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return community, nil
}

// FirstCommunity retrieves any installed community.
func (s *SQLiteStore) FirstCommunity(ctx context.Context) (*models.Community, error) {
	community := &models.Community{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, access_token FROM communities ORDER BY id LIMIT 1
	`).Scan(&community.ID, &community.Name, &community.AccessToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return community, nil
}

// UpsertCommunity creates or refreshes a community install.
func (s *SQLiteStore) UpsertCommunity(ctx context.Context, community *models.Community) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO communities (id, name, access_token)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, access_token = excluded.access_token
	`, community.ID, community.Name, community.AccessToken)
	return err
}

// DeleteCommunity removes a community install.
func (s *SQLiteStore) DeleteCommunity(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM communities WHERE id = ?`, id)
	return err
}

// GetPage retrieves a page-level install by ID.
func (s *SQLiteStore) GetPage(ctx context.Context, id int64) (*models.Page, error) {
	page := &models.Page{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, access_token, community_id, community_name, install_id
		FROM pages WHERE id = ?
	`, id).Scan(&page.ID, &page.Name, &page.AccessToken, &page.CommunityID, &page.CommunityName, &page.InstallID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return page, nil
}

// GetUserByWorkplaceID retrieves a user linked to a Workplace account.
func (s *SQLiteStore) GetUserByWorkplaceID(ctx context.Context, workplaceID int64) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, workplace_id, community_id, created_at
		FROM users WHERE workplace_id = ?
	`, workplaceID).Scan(&user.ID, &user.Username, &user.WorkplaceID, &user.CommunityID, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// GetDocumentForViewer retrieves a document the viewer may see.
func (s *SQLiteStore) GetDocumentForViewer(ctx context.Context, id int64, viewer *models.User) (*models.Document, error) {
	doc := &models.Document{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, content, privacy, owner_id, folder_id, created_at
		FROM documents
		WHERE id = ? AND (privacy = 'public' OR owner_id = ?)
	`, id, viewerID(viewer)).Scan(
		&doc.ID, &doc.Name, &doc.Content, &doc.Privacy, &doc.OwnerID, &doc.FolderID, &doc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return doc, nil
}

func (s *SQLiteStore) scanDocuments(rows *sql.Rows) ([]models.Document, error) {
	defer rows.Close()
	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		err := rows.Scan(&doc.ID, &doc.Name, &doc.Content, &doc.Privacy, &doc.OwnerID, &doc.FolderID, &doc.CreatedAt)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ListDocumentsForViewer retrieves the newest documents the viewer may see.
func (s *SQLiteStore) ListDocumentsForViewer(ctx context.Context, viewer *models.User, limit int) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, content, privacy, owner_id, folder_id, created_at
		FROM documents
		WHERE privacy = 'public' OR owner_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, viewerID(viewer), sqliteLimit(limit))
	if err != nil {
		return nil, err
	}
	return s.scanDocuments(rows)
}

// ListFolderDocuments retrieves visible documents inside a folder.
func (s *SQLiteStore) ListFolderDocuments(ctx context.Context, folderID int64, viewer *models.User, limit int) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, content, privacy, owner_id, folder_id, created_at
		FROM documents
		WHERE folder_id = ? AND (privacy = 'public' OR owner_id = ?)
		ORDER BY created_at DESC
		LIMIT ?
	`, folderID, viewerID(viewer), sqliteLimit(limit))
	if err != nil {
		return nil, err
	}
	return s.scanDocuments(rows)
}

// GetFolderForViewer retrieves a folder the viewer may see.
func (s *SQLiteStore) GetFolderForViewer(ctx context.Context, id int64, viewer *models.User) (*models.Folder, error) {
	folder := &models.Folder{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, privacy, owner_id, created_at
		FROM folders
		WHERE id = ? AND (privacy = 'public' OR owner_id = ?)
	`, id, viewerID(viewer)).Scan(&folder.ID, &folder.Name, &folder.Privacy, &folder.OwnerID, &folder.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return folder, nil
}

// ListFoldersForViewer retrieves the newest folders the viewer may see.
func (s *SQLiteStore) ListFoldersForViewer(ctx context.Context, viewer *models.User, limit int) ([]models.Folder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, privacy, owner_id, created_at
		FROM folders
		WHERE privacy = 'public' OR owner_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, viewerID(viewer), sqliteLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var folders []models.Folder
	for rows.Next() {
		var folder models.Folder
		err := rows.Scan(&folder.ID, &folder.Name, &folder.Privacy, &folder.OwnerID, &folder.CreatedAt)
		if err != nil {
			return nil, err
		}
		folders = append(folders, folder)
	}
	return folders, rows.Err()
}

// GetTaskWithOwner retrieves a task with its owning user joined.
func (s *SQLiteStore) GetTaskWithOwner(ctx context.Context, id int64) (*models.Task, error) {
	task := &models.Task{Owner: &models.User{}}
	err := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.title, t.completed, t.priority, t.owner_id, t.created_at,
		       u.id, u.username, u.workplace_id, u.community_id, u.created_at
		FROM tasks t
		JOIN users u ON u.id = t.owner_id
		WHERE t.id = ?
	`, id).Scan(
		&task.ID, &task.Title, &task.Completed, &task.Priority, &task.OwnerID, &task.CreatedAt,
		&task.Owner.ID, &task.Owner.Username, &task.Owner.WorkplaceID, &task.Owner.CommunityID, &task.Owner.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return task, nil
}

// ListTasksWithOwners retrieves the newest tasks with owners joined.
func (s *SQLiteStore) ListTasksWithOwners(ctx context.Context, limit int) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.title, t.completed, t.priority, t.owner_id, t.created_at,
		       u.id, u.username, u.workplace_id, u.community_id, u.created_at
		FROM tasks t
		JOIN users u ON u.id = t.owner_id
		ORDER BY t.created_at DESC
		LIMIT ?
	`, sqliteLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task := models.Task{Owner: &models.User{}}
		err := rows.Scan(
			&task.ID, &task.Title, &task.Completed, &task.Priority, &task.OwnerID, &task.CreatedAt,
			&task.Owner.ID, &task.Owner.Username, &task.Owner.WorkplaceID, &task.Owner.CommunityID, &task.Owner.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// CompleteTask marks a task completed.
func (s *SQLiteStore) CompleteTask(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tasks SET completed = 1 WHERE id = ?`, id)
	return err
}
