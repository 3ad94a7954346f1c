package store

import (
	"context"

	"github.com/jokr/taaskly/internal/models"
)

// DataStore defines the interface for persistent storage of the
// relational model behind the webhook core. Both PostgresStore and
// SQLiteStore implement this interface. Lookups return (nil, nil)
// when no row matches. List operations treat a limit of zero or less
// as unlimited.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Callback audit trail
	CreateCallback(ctx context.Context, path string, headers map[string]string, body []byte) (*models.Callback, error)
	PurgeCallbacks(ctx context.Context) (int64, error)

	// Community operations
	GetCommunity(ctx context.Context, id int64) (*models.Community, error)
	FirstCommunity(ctx context.Context) (*models.Community, error)
	UpsertCommunity(ctx context.Context, community *models.Community) error
	DeleteCommunity(ctx context.Context, id int64) error

	// Page operations. Page-level installs carry their own token.
	GetPage(ctx context.Context, id int64) (*models.Page, error)

	// User operations
	GetUserByWorkplaceID(ctx context.Context, workplaceID int64) (*models.User, error)

	// Document operations. "ForViewer" lookups return public rows
	// plus rows owned by the viewer; viewer may be nil.
	GetDocumentForViewer(ctx context.Context, id int64, viewer *models.User) (*models.Document, error)
	ListDocumentsForViewer(ctx context.Context, viewer *models.User, limit int) ([]models.Document, error)
	ListFolderDocuments(ctx context.Context, folderID int64, viewer *models.User, limit int) ([]models.Document, error)

	// Folder operations
	GetFolderForViewer(ctx context.Context, id int64, viewer *models.User) (*models.Folder, error)
	ListFoldersForViewer(ctx context.Context, viewer *models.User, limit int) ([]models.Folder, error)

	// Task operations
	GetTaskWithOwner(ctx context.Context, id int64) (*models.Task, error)
	ListTasksWithOwners(ctx context.Context, limit int) ([]models.Task, error)
	CompleteTask(ctx context.Context, id int64) error
}
