package lifeops

import (
	"context"

	"github.com/lifeops-dev/lifeops/internal/remote"
)

// SheetsClient is the tabular slice of the remote client, kept as an
// interface so stores can be exercised against in-memory fakes.
type SheetsClient interface {
	ProbeSpreadsheet(ctx context.Context, spreadsheetID string) error
	CreateSpreadsheet(ctx context.Context, title string, sheetTitles []string) (string, error)
	SheetProperties(ctx context.Context, spreadsheetID string) ([]remote.SheetProperties, error)
	AddSheet(ctx context.Context, spreadsheetID, title string) error
	ReadRange(ctx context.Context, spreadsheetID, a1 string) ([][]string, error)
	UpdateRange(ctx context.Context, spreadsheetID, a1 string, values [][]string) error
	AppendRows(ctx context.Context, spreadsheetID, sheetTitle string, values [][]string) error
	DeleteRows(ctx context.Context, spreadsheetID string, sheetID, start, end int64) error
}

type CalendarClient interface {
	InsertEvent(ctx context.Context, event remote.Event) (remote.Event, error)
	PatchEvent(ctx context.Context, eventID string, event remote.Event) (remote.Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
	SearchEvents(ctx context.Context, text string, max int) ([]remote.Event, error)
}

type DriveClient interface {
	GetFile(ctx context.Context, fileID string) (remote.DriveFile, error)
	SearchFiles(ctx context.Context, query, orderBy string) ([]remote.DriveFile, error)
	ListChildren(ctx context.Context, folderID, mimeType string) ([]remote.DriveFile, error)
	CreateFolder(ctx context.Context, name, parentID string) (string, error)
	CreateFile(ctx context.Context, meta remote.DriveFile, content []byte, contentType string) (remote.DriveFile, error)
	RenameFile(ctx context.Context, fileID, name string) error
	MoveFile(ctx context.Context, fileID, addParent, removeParent string) error
	TrashFile(ctx context.Context, fileID string) error
}
