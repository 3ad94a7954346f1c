package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jokr/taaskly/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateCallback appends one audit record for an inbound delivery.
func (s *PostgresStore) CreateCallback(ctx context.Context, path string, headers map[string]string, body []byte) (*models.Callback, error) {
	headerJSON, err := json.Marshal(headers)
	if err != nil {
		return nil, err
	}

	cb := &models.Callback{Path: path, Headers: headers, Body: body}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO callbacks (path, headers, body)
		VALUES ($1, $2, $3)
		RETURNING id, received_at
	`, path, headerJSON, body).Scan(&cb.ID, &cb.ReceivedAt)
	if err != nil {
		return nil, err
	}
	return cb, nil
}

// PurgeCallbacks deletes all audit records and returns the count.
func (s *PostgresStore) PurgeCallbacks(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM callbacks`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// GetCommunity retrieves a community by ID.
func (s *PostgresStore) GetCommunity(ctx context.Context, id int64) (*models.Community, error) {
	community := &models.Community{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, access_token FROM communities WHERE id = $1
	`, id).Scan(&community.ID, &community.Name, &community.AccessToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return community, nil
}

// FirstCommunity retrieves any installed community. Used as the final
// fallback when resolving an access token.
func (s *PostgresStore) FirstCommunity(ctx context.Context) (*models.Community, error) {
	community := &models.Community{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, access_token FROM communities ORDER BY id LIMIT 1
	`).Scan(&community.ID, &community.Name, &community.AccessToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return community, nil
}

// UpsertCommunity creates or refreshes a community install.
func (s *PostgresStore) UpsertCommunity(ctx context.Context, community *models.Community) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO communities (id, name, access_token)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = $2, access_token = $3
	`, community.ID, community.Name, community.AccessToken)
	return err
}

// DeleteCommunity removes a community install.
func (s *PostgresStore) DeleteCommunity(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM communities WHERE id = $1`, id)
	return err
}

// GetPage retrieves a page-level install by ID.
func (s *PostgresStore) GetPage(ctx context.Context, id int64) (*models.Page, error) {
	page := &models.Page{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, access_token, community_id, community_name, install_id
		FROM pages WHERE id = $1
	`, id).Scan(&page.ID, &page.Name, &page.AccessToken, &page.CommunityID, &page.CommunityName, &page.InstallID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return page, nil
}

// GetUserByWorkplaceID retrieves a user linked to a Workplace account.
func (s *PostgresStore) GetUserByWorkplaceID(ctx context.Context, workplaceID int64) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, workplace_id, community_id, created_at
		FROM users WHERE workplace_id = $1
	`, workplaceID).Scan(&user.ID, &user.Username, &user.WorkplaceID, &user.CommunityID, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// pgLimit maps the interface's "zero or less means unlimited" onto
// the NULLIF($n, 0) clauses: negatives are clamped to 0, which NULLIF
// turns into LIMIT NULL (no limit).
func pgLimit(limit int) int {
	if limit < 0 {
		return 0
	}
	return limit
}

// viewerID returns the viewer's user ID, or 0 for anonymous viewers.
// No real row has ID 0, so the owner_id = 0 branch never matches.
func viewerID(viewer *models.User) int64 {
	if viewer == nil {
		return 0
	}
	return viewer.ID
}

// GetDocumentForViewer retrieves a document the viewer may see.
func (s *PostgresStore) GetDocumentForViewer(ctx context.Context, id int64, viewer *models.User) (*models.Document, error) {
	doc := &models.Document{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, content, privacy, owner_id, folder_id, created_at
		FROM documents
		WHERE id = $1 AND (privacy = 'public' OR owner_id = $2)
	`, id, viewerID(viewer)).Scan(
		&doc.ID, &doc.Name, &doc.Content, &doc.Privacy, &doc.OwnerID, &doc.FolderID, &doc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return doc, nil
}

func (s *PostgresStore) scanDocuments(rows pgx.Rows) ([]models.Document, error) {
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
func (s *PostgresStore) ListDocumentsForViewer(ctx context.Context, viewer *models.User, limit int) ([]models.Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, content, privacy, owner_id, folder_id, created_at
		FROM documents
		WHERE privacy = 'public' OR owner_id = $1
		ORDER BY created_at DESC
		LIMIT NULLIF($2, 0)
	`, viewerID(viewer), pgLimit(limit))
	if err != nil {
		return nil, err
	}
	return s.scanDocuments(rows)
}

// ListFolderDocuments retrieves visible documents inside a folder.
func (s *PostgresStore) ListFolderDocuments(ctx context.Context, folderID int64, viewer *models.User, limit int) ([]models.Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, content, privacy, owner_id, folder_id, created_at
		FROM documents
		WHERE folder_id = $1 AND (privacy = 'public' OR owner_id = $2)
		ORDER BY created_at DESC
		LIMIT NULLIF($3, 0)
	`, folderID, viewerID(viewer), pgLimit(limit))
	if err != nil {
		return nil, err
	}
	return s.scanDocuments(rows)
}

// GetFolderForViewer retrieves a folder the viewer may see.
func (s *PostgresStore) GetFolderForViewer(ctx context.Context, id int64, viewer *models.User) (*models.Folder, error) {
	folder := &models.Folder{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, privacy, owner_id, created_at
		FROM folders
		WHERE id = $1 AND (privacy = 'public' OR owner_id = $2)
	`, id, viewerID(viewer)).Scan(&folder.ID, &folder.Name, &folder.Privacy, &folder.OwnerID, &folder.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return folder, nil
}

// ListFoldersForViewer retrieves the newest folders the viewer may see.
func (s *PostgresStore) ListFoldersForViewer(ctx context.Context, viewer *models.User, limit int) ([]models.Folder, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, privacy, owner_id, created_at
		FROM folders
		WHERE privacy = 'public' OR owner_id = $1
		ORDER BY created_at DESC
		LIMIT NULLIF($2, 0)
	`, viewerID(viewer), pgLimit(limit))
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
func (s *PostgresStore) GetTaskWithOwner(ctx context.Context, id int64) (*models.Task, error) {
	task := &models.Task{Owner: &models.User{}}
	err := s.pool.QueryRow(ctx, `
		SELECT t.id, t.title, t.completed, t.priority, t.owner_id, t.created_at,
		       u.id, u.username, u.workplace_id, u.community_id, u.created_at
		FROM tasks t
		JOIN users u ON u.id = t.owner_id
		WHERE t.id = $1
	`, id).Scan(
		&task.ID, &task.Title, &task.Completed, &task.Priority, &task.OwnerID, &task.CreatedAt,
		&task.Owner.ID, &task.Owner.Username, &task.Owner.WorkplaceID, &task.Owner.CommunityID, &task.Owner.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return task, nil
}

// ListTasksWithOwners retrieves the newest tasks with owners joined.
func (s *PostgresStore) ListTasksWithOwners(ctx context.Context, limit int) ([]models.Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.id, t.title, t.completed, t.priority, t.owner_id, t.created_at,
		       u.id, u.username, u.workplace_id, u.community_id, u.created_at
		FROM tasks t
		JOIN users u ON u.id = t.owner_id
		ORDER BY t.created_at DESC
		LIMIT NULLIF($1, 0)
	`, pgLimit(limit))
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

// CompleteTask marks a task completed. Already-completed tasks are a
// no-op, which keeps postback redelivery harmless.
func (s *PostgresStore) CompleteTask(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE tasks SET completed = TRUE WHERE id = $1`, id)
	return err
}
