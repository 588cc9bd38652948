package lifeops

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lifeops-dev/lifeops/internal/remote"
)

// Resolver locates-or-creates the durable remote containers features live
// in, caches their ids, and merges duplicates down to one canonical
// container per label.
type Resolver struct {
	sheets SheetsClient
	drive  DriveClient
	cache  Cache
	log    Logger
}

func NewResolver(sheets SheetsClient, drive DriveClient, cache Cache, log Logger) *Resolver {
	if log == nil {
		log = nopLogger{}
	}
	return &Resolver{sheets: sheets, drive: drive, cache: cache, log: log}
}

// Spreadsheet resolves the spreadsheet titled title, creating it with one
// sheet per schema when absent. Duplicate spreadsheets with the same title
// are merged: data rows of every duplicate move into the first by creation
// order, then the duplicates are trashed. Running the merge again against a
// single survivor is a no-op.
func (r *Resolver) Spreadsheet(ctx context.Context, key Key, title string, schemas []Schema) (string, error) {
	if cached, ok, err := r.cache.Get(key); err != nil {
		return "", err
	} else if ok && cached != "" {
		probeErr := r.sheets.ProbeSpreadsheet(ctx, cached)
		if probeErr == nil {
			return cached, nil
		}
		if !errors.Is(probeErr, remote.ErrNotFound) {
			return "", probeErr
		}
		// Cached id no longer resolves; fall through to discovery.
		if err := r.cache.Delete(key); err != nil {
			return "", err
		}
	}

	matches, err := r.drive.SearchFiles(ctx, remote.FileByNameQuery(title, remote.MimeSpreadsheet), "createdTime")
	if err != nil {
		return "", err
	}

	var id string
	switch len(matches) {
	case 0:
		titles := make([]string, 0, len(schemas))
		for _, schema := range schemas {
			titles = append(titles, schema.Sheet)
		}
		created, createErr := r.sheets.CreateSpreadsheet(ctx, title, titles)
		if createErr != nil {
			return "", createErr
		}
		id = created
		for _, schema := range schemas {
			if err := r.sheets.UpdateRange(ctx, id, headerRange(schema), [][]string{schema.Header()}); err != nil {
				return "", err
			}
		}
	case 1:
		id = matches[0].ID
		if err := r.ensureSheets(ctx, id, schemas); err != nil {
			return "", err
		}
	default:
		id = matches[0].ID
		if err := r.ensureSheets(ctx, id, schemas); err != nil {
			return "", err
		}
		for _, duplicate := range matches[1:] {
			if err := r.mergeSpreadsheet(ctx, id, duplicate.ID, schemas); err != nil {
				return "", err
			}
			if err := r.drive.TrashFile(ctx, duplicate.ID); err != nil {
				return "", err
			}
			r.log.Printf("merged duplicate spreadsheet %s into %s", duplicate.ID, id)
		}
	}

	if err := r.cache.Put(key, id); err != nil {
		return "", err
	}
	return id, nil
}

// Folder resolves a folder by name under parentID (or at the root when
// parentID is empty), with the same cached-probe, search, create and
// duplicate-merge policy as Spreadsheet. Children of duplicates are moved
// into the canonical folder; duplicates are trashed, never hard-deleted.
func (r *Resolver) Folder(ctx context.Context, key Key, name, parentID string) (string, error) {
	if key != "" {
		if cached, ok, err := r.cache.Get(key); err != nil {
			return "", err
		} else if ok && cached != "" {
			file, probeErr := r.drive.GetFile(ctx, cached)
			if probeErr == nil && !file.Trashed {
				return cached, nil
			}
			if probeErr != nil && !errors.Is(probeErr, remote.ErrNotFound) {
				return "", probeErr
			}
			if err := r.cache.Delete(key); err != nil {
				return "", err
			}
		}
	}

	matches, err := r.drive.SearchFiles(ctx, remote.FolderQuery(name, parentID), "createdTime")
	if err != nil {
		return "", err
	}

	var id string
	switch len(matches) {
	case 0:
		created, createErr := r.drive.CreateFolder(ctx, name, parentID)
		if createErr != nil {
			return "", createErr
		}
		id = created
	default:
		id = matches[0].ID
		for _, duplicate := range matches[1:] {
			if err := r.mergeFolder(ctx, id, duplicate.ID); err != nil {
				return "", err
			}
			if err := r.drive.TrashFile(ctx, duplicate.ID); err != nil {
				return "", err
			}
			r.log.Printf("merged duplicate folder %q (%s) into %s", name, duplicate.ID, id)
		}
	}

	if key != "" {
		if err := r.cache.Put(key, id); err != nil {
			return "", err
		}
	}
	return id, nil
}

// EnsureSheet guarantees the sheet exists with the schema's header row,
// rewriting the header if it drifted.
func (r *Resolver) EnsureSheet(ctx context.Context, spreadsheetID string, schema Schema) error {
	props, err := r.sheets.SheetProperties(ctx, spreadsheetID)
	if err != nil {
		return err
	}
	found := false
	for _, prop := range props {
		if prop.Title == schema.Sheet {
			found = true
			break
		}
	}
	if !found {
		if err := r.sheets.AddSheet(ctx, spreadsheetID, schema.Sheet); err != nil {
			return err
		}
		return r.sheets.UpdateRange(ctx, spreadsheetID, headerRange(schema), [][]string{schema.Header()})
	}
	rows, err := r.sheets.ReadRange(ctx, spreadsheetID, headerRange(schema))
	if err != nil {
		return err
	}
	if len(rows) > 0 && headerMatches(rows[0], schema.Columns) {
		return nil
	}
	return r.sheets.UpdateRange(ctx, spreadsheetID, headerRange(schema), [][]string{schema.Header()})
}

func (r *Resolver) ensureSheets(ctx context.Context, spreadsheetID string, schemas []Schema) error {
	for _, schema := range schemas {
		if err := r.EnsureSheet(ctx, spreadsheetID, schema); err != nil {
			return err
		}
	}
	return nil
}

// mergeSpreadsheet appends each duplicate sheet's data rows (header
// excluded) to the canonical spreadsheet. A sheet missing from the
// duplicate, or holding only its header, contributes nothing.
func (r *Resolver) mergeSpreadsheet(ctx context.Context, canonicalID, duplicateID string, schemas []Schema) error {
	for _, schema := range schemas {
		rows, err := r.sheets.ReadRange(ctx, duplicateID, dataRange(schema))
		if err != nil {
			if errors.Is(err, remote.ErrNotFound) {
				continue
			}
			return err
		}
		if len(rows) == 0 {
			continue
		}
		full := make([][]string, 0, len(rows))
		for _, row := range rows {
			full = append(full, padRow(row, schema.Width()))
		}
		if err := r.sheets.AppendRows(ctx, canonicalID, schema.Sheet, full); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) mergeFolder(ctx context.Context, canonicalID, duplicateID string) error {
	children, err := r.drive.ListChildren(ctx, duplicateID, "")
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := r.drive.MoveFile(ctx, child.ID, canonicalID, duplicateID); err != nil {
			return err
		}
	}
	return nil
}

func headerMatches(row, columns []string) bool {
	if len(row) < len(columns) {
		return false
	}
	for i, want := range columns {
		if !strings.EqualFold(strings.TrimSpace(row[i]), want) {
			return false
		}
	}
	return true
}

func headerRange(schema Schema) string {
	return fmt.Sprintf("'%s'!A1:%s1", schema.Sheet, colLetter(schema.Width()-1))
}

// dataRange addresses every row below the header.
func dataRange(schema Schema) string {
	return fmt.Sprintf("'%s'!A2:%s", schema.Sheet, colLetter(schema.Width()-1))
}

// colLetter converts a zero-based column index to its A1 letter form.
func colLetter(index int) string {
	if index < 0 {
		return "A"
	}
	letters := ""
	for {
		letters = string(rune('A'+index%26)) + letters
		index = index/26 - 1
		if index < 0 {
			break
		}
	}
	return letters
}
