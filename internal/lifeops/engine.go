package lifeops

import (
	"context"
	"fmt"
	"strings"
)

// SheetTable reads and writes one sheet's data rows through a record codec.
// Rows are located by the id column (column 0); a linear scan is fine at
// the row counts these sheets hold.
type SheetTable[T any] struct {
	sheets        SheetsClient
	spreadsheetID string
	codec         Codec[T]
}

func NewSheetTable[T any](sheets SheetsClient, spreadsheetID string, codec Codec[T]) *SheetTable[T] {
	return &SheetTable[T]{sheets: sheets, spreadsheetID: spreadsheetID, codec: codec}
}

// List decodes every non-empty data row in sheet order.
func (t *SheetTable[T]) List(ctx context.Context) ([]T, error) {
	rows, err := t.sheets.ReadRange(ctx, t.spreadsheetID, dataRange(t.codec.Schema))
	if err != nil {
		return nil, err
	}
	records := make([]T, 0, len(rows))
	for _, row := range rows {
		if rowEmpty(row) {
			continue
		}
		records = append(records, t.codec.Decode(row))
	}
	return records, nil
}

func (t *SheetTable[T]) Append(ctx context.Context, records []T) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, padRow(t.codec.Encode(record), t.codec.Schema.Width()))
	}
	return t.sheets.AppendRows(ctx, t.spreadsheetID, t.codec.Schema.Sheet, rows)
}

// Update rewrites the full row for the record, located by its id.
// ErrNotFound when no row carries that id.
func (t *SheetTable[T]) Update(ctx context.Context, record T) error {
	rowNumber, err := t.locate(ctx, t.codec.ID(record))
	if err != nil {
		return err
	}
	a1 := fmt.Sprintf("'%s'!A%d:%s%d", t.codec.Schema.Sheet, rowNumber, colLetter(t.codec.Schema.Width()-1), rowNumber)
	return t.sheets.UpdateRange(ctx, t.spreadsheetID, a1, [][]string{padRow(t.codec.Encode(record), t.codec.Schema.Width())})
}

// UpdateColumns writes only a contiguous run of cells in the record's row,
// starting at the zero-based column firstColumn. This is the targeted write
// mutations use instead of rewriting the whole row.
func (t *SheetTable[T]) UpdateColumns(ctx context.Context, id string, firstColumn int, values []string) error {
	if firstColumn < 0 || firstColumn+len(values) > t.codec.Schema.Width() {
		return ErrInvalidInput
	}
	rowNumber, err := t.locate(ctx, id)
	if err != nil {
		return err
	}
	a1 := fmt.Sprintf("'%s'!%s%d:%s%d",
		t.codec.Schema.Sheet,
		colLetter(firstColumn), rowNumber,
		colLetter(firstColumn+len(values)-1), rowNumber)
	return t.sheets.UpdateRange(ctx, t.spreadsheetID, a1, [][]string{values})
}

// Delete removes the record's row. The sheet id is looked up by title
// because the row-deletion endpoint addresses sheets numerically.
func (t *SheetTable[T]) Delete(ctx context.Context, id string) error {
	rowNumber, err := t.locate(ctx, id)
	if err != nil {
		return err
	}
	props, err := t.sheets.SheetProperties(ctx, t.spreadsheetID)
	if err != nil {
		return err
	}
	for _, prop := range props {
		if prop.Title == t.codec.Schema.Sheet {
			return t.sheets.DeleteRows(ctx, t.spreadsheetID, prop.SheetID, int64(rowNumber-1), int64(rowNumber))
		}
	}
	return ErrNotFound
}

// locate returns the one-based sheet row number of the record with the
// given id. Data rows start at row 2.
func (t *SheetTable[T]) locate(ctx context.Context, id string) (int, error) {
	if strings.TrimSpace(id) == "" {
		return 0, ErrInvalidInput
	}
	rows, err := t.sheets.ReadRange(ctx, t.spreadsheetID, dataRange(t.codec.Schema))
	if err != nil {
		return 0, err
	}
	for i, row := range rows {
		if col(row, 0) == id {
			return i + 2, nil
		}
	}
	return 0, ErrNotFound
}

func rowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// DedupeByKey keeps the first occurrence of each key in input order and
// drops the rest.
func DedupeByKey[T any](items []T, key func(T) string) []T {
	seen := map[string]struct{}{}
	result := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		result = append(result, item)
	}
	return result
}

// MissingKeys returns the items whose key is absent from observed.
func MissingKeys[T any](items []T, key func(T) string, observed map[string]struct{}) []T {
	missing := make([]T, 0)
	for _, item := range items {
		if _, ok := observed[key(item)]; !ok {
			missing = append(missing, item)
		}
	}
	return missing
}

// LogItemID derives the stable per-day id for a template instantiation.
// Running materialization twice for the same date produces the same ids.
func LogItemID(templateID, date string) string {
	return "log_" + templateID + "_" + date
}

// DayResult is one materialization pass: the day's full working set plus
// the subset created by this pass.
type DayResult struct {
	Items   []RoutineLogItem
	Created []RoutineLogItem
}

// MaterializeDay builds the day's log from the templates: observed remote
// rows for the date are deduplicated by template id (first in remote order
// wins; duplicate rows stay on the sheet untouched), then one item is
// appended for each template with no row yet. A second pass for the same
// date observes everything and creates nothing.
func MaterializeDay(ctx context.Context, table *SheetTable[RoutineLogItem], templates []RoutineTemplate, date string) (DayResult, error) {
	all, err := table.List(ctx)
	if err != nil {
		return DayResult{}, err
	}

	todays := make([]RoutineLogItem, 0, len(all))
	for _, item := range all {
		if item.Date == date {
			todays = append(todays, item)
		}
	}
	observed := DedupeByKey(todays, func(item RoutineLogItem) string { return item.RoutineID })

	observedIDs := make(map[string]struct{}, len(observed))
	for _, item := range observed {
		observedIDs[item.RoutineID] = struct{}{}
	}
	missing := MissingKeys(templates, func(t RoutineTemplate) string { return t.ID }, observedIDs)

	created := make([]RoutineLogItem, 0, len(missing))
	for _, template := range missing {
		created = append(created, RoutineLogItem{
			ID:        LogItemID(template.ID, date),
			RoutineID: template.ID,
			Label:     template.Label,
			Detail:    template.Detail,
			Date:      date,
			Completed: false,
		})
	}
	if len(created) > 0 {
		if err := table.Append(ctx, created); err != nil {
			return DayResult{}, err
		}
	}

	return DayResult{Items: append(observed, created...), Created: created}, nil
}
