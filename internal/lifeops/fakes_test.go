package lifeops

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/lifeops-dev/lifeops/internal/remote"
)

// fakeRemote is an in-memory stand-in for the whole remote suite, shared
// by the container, engine and store tests.
type fakeRemote struct {
	mu     sync.Mutex
	nextID int

	files      map[string]*fakeFile
	grids      map[string]map[string][][]string
	sheetOrder map[string][]string
	events     map[string]remote.Event

	failPatch   map[string]bool
	insertCalls int
	searchCalls int
}

type fakeFile struct {
	id      string
	name    string
	mime    string
	parents []string
	trashed bool
	seq     int
	content []byte
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		files:      map[string]*fakeFile{},
		grids:      map[string]map[string][][]string{},
		sheetOrder: map[string][]string{},
		events:     map[string]remote.Event{},
		failPatch:  map[string]bool{},
	}
}

func notFoundErr() error {
	return &remote.StatusError{StatusCode: http.StatusNotFound, Message: "not found"}
}

func (f *fakeRemote) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// --- sheets ---

func (f *fakeRemote) ProbeSpreadsheet(_ context.Context, spreadsheetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[spreadsheetID]
	if !ok || file.trashed || file.mime != remote.MimeSpreadsheet {
		return notFoundErr()
	}
	return nil
}

func (f *fakeRemote) CreateSpreadsheet(_ context.Context, title string, sheetTitles []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id("ss")
	f.files[id] = &fakeFile{id: id, name: title, mime: remote.MimeSpreadsheet, seq: f.nextID}
	grid := map[string][][]string{}
	for _, sheetTitle := range sheetTitles {
		grid[sheetTitle] = [][]string{}
	}
	f.grids[id] = grid
	f.sheetOrder[id] = append([]string(nil), sheetTitles...)
	return id, nil
}

func (f *fakeRemote) SheetProperties(_ context.Context, spreadsheetID string) ([]remote.SheetProperties, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.grids[spreadsheetID]; !ok {
		return nil, notFoundErr()
	}
	titles := f.sheetOrder[spreadsheetID]
	props := make([]remote.SheetProperties, 0, len(titles))
	for i, title := range titles {
		props = append(props, remote.SheetProperties{SheetID: int64(i), Title: title})
	}
	return props, nil
}

func (f *fakeRemote) AddSheet(_ context.Context, spreadsheetID, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	grid, ok := f.grids[spreadsheetID]
	if !ok {
		return notFoundErr()
	}
	if _, exists := grid[title]; !exists {
		grid[title] = [][]string{}
		f.sheetOrder[spreadsheetID] = append(f.sheetOrder[spreadsheetID], title)
	}
	return nil
}

func (f *fakeRemote) ReadRange(_ context.Context, spreadsheetID, a1 string) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sheet, startRow, endRow, _, err := parseA1(a1)
	if err != nil {
		return nil, err
	}
	grid, ok := f.grids[spreadsheetID]
	if !ok {
		return nil, notFoundErr()
	}
	rows, ok := grid[sheet]
	if !ok {
		return nil, notFoundErr()
	}
	start := startRow - 1
	if start >= len(rows) {
		return nil, nil
	}
	end := len(rows)
	if endRow > 0 && endRow < end {
		end = endRow
	}
	out := make([][]string, 0, end-start)
	for _, row := range rows[start:end] {
		out = append(out, append([]string(nil), row...))
	}
	return out, nil
}

func (f *fakeRemote) UpdateRange(_ context.Context, spreadsheetID, a1 string, values [][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sheet, startRow, _, startCol, err := parseA1(a1)
	if err != nil {
		return err
	}
	grid, ok := f.grids[spreadsheetID]
	if !ok {
		return notFoundErr()
	}
	rows, ok := grid[sheet]
	if !ok {
		return notFoundErr()
	}
	for i, value := range values {
		target := startRow - 1 + i
		for len(rows) <= target {
			rows = append(rows, []string{})
		}
		row := rows[target]
		for j, cell := range value {
			column := startCol + j
			for len(row) <= column {
				row = append(row, "")
			}
			row[column] = cell
		}
		rows[target] = row
	}
	grid[sheet] = rows
	return nil
}

func (f *fakeRemote) AppendRows(_ context.Context, spreadsheetID, sheetTitle string, values [][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	grid, ok := f.grids[spreadsheetID]
	if !ok {
		return notFoundErr()
	}
	rows, ok := grid[sheetTitle]
	if !ok {
		return notFoundErr()
	}
	for _, value := range values {
		rows = append(rows, append([]string(nil), value...))
	}
	grid[sheetTitle] = rows
	return nil
}

func (f *fakeRemote) DeleteRows(_ context.Context, spreadsheetID string, sheetID, start, end int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	grid, ok := f.grids[spreadsheetID]
	if !ok {
		return notFoundErr()
	}
	titles := f.sheetOrder[spreadsheetID]
	if int(sheetID) >= len(titles) {
		return notFoundErr()
	}
	title := titles[sheetID]
	rows := grid[title]
	if start < 0 || end > int64(len(rows)) || start >= end {
		return notFoundErr()
	}
	grid[title] = append(rows[:start], rows[end:]...)
	return nil
}

// --- calendar ---

func (f *fakeRemote) InsertEvent(_ context.Context, event remote.Event) (remote.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	event.ID = f.id("ev")
	f.events[event.ID] = event
	return event, nil
}

func (f *fakeRemote) PatchEvent(_ context.Context, eventID string, event remote.Event) (remote.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.events[eventID]
	if !ok || f.failPatch[eventID] {
		return remote.Event{}, notFoundErr()
	}
	if event.Summary != "" {
		current.Summary = event.Summary
	}
	if event.Start != nil {
		current.Start = event.Start
	}
	if event.End != nil {
		current.End = event.End
	}
	if len(event.Recurrence) > 0 {
		current.Recurrence = event.Recurrence
	}
	f.events[eventID] = current
	return current, nil
}

func (f *fakeRemote) DeleteEvent(_ context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Deleting an already-gone event succeeds, as the real client does.
	delete(f.events, eventID)
	return nil
}

func (f *fakeRemote) SearchEvents(_ context.Context, text string, _ int) ([]remote.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	matches := make([]remote.Event, 0)
	for _, event := range f.events {
		if strings.Contains(event.Summary, text) {
			matches = append(matches, event)
		}
	}
	return matches, nil
}

func (f *fakeRemote) liveEventCount(summary string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, event := range f.events {
		if event.Summary == summary {
			count++
		}
	}
	return count
}

// --- drive ---

func (f *fakeRemote) GetFile(_ context.Context, fileID string) (remote.DriveFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[fileID]
	if !ok {
		return remote.DriveFile{}, notFoundErr()
	}
	return f.driveFileLocked(file), nil
}

func (f *fakeRemote) SearchFiles(_ context.Context, query, _ string) ([]remote.DriveFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	terms := strings.Split(query, " and ")
	matches := make([]*fakeFile, 0)
	for _, file := range f.files {
		if fileMatches(file, terms) {
			matches = append(matches, file)
		}
	}
	// Creation order, which the sequence counter preserves.
	for i := 0; i < len(matches); i++ {
		for j := i + 1; j < len(matches); j++ {
			if matches[j].seq < matches[i].seq {
				matches[i], matches[j] = matches[j], matches[i]
			}
		}
	}
	out := make([]remote.DriveFile, 0, len(matches))
	for _, file := range matches {
		out = append(out, f.driveFileLocked(file))
	}
	return out, nil
}

func (f *fakeRemote) ListChildren(_ context.Context, folderID, mimeType string) ([]remote.DriveFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]remote.DriveFile, 0)
	for _, file := range f.files {
		if file.trashed || !hasParent(file, folderID) {
			continue
		}
		if mimeType != "" && file.mime != mimeType {
			continue
		}
		out = append(out, f.driveFileLocked(file))
	}
	return out, nil
}

func (f *fakeRemote) CreateFolder(_ context.Context, name, parentID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id("dir")
	file := &fakeFile{id: id, name: name, mime: remote.MimeFolder, seq: f.nextID}
	if parentID != "" {
		file.parents = []string{parentID}
	}
	f.files[id] = file
	return id, nil
}

func (f *fakeRemote) CreateFile(_ context.Context, meta remote.DriveFile, content []byte, contentType string) (remote.DriveFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id("file")
	mime := meta.MimeType
	if mime == "" {
		mime = contentType
	}
	file := &fakeFile{id: id, name: meta.Name, mime: mime, parents: meta.Parents, seq: f.nextID, content: content}
	f.files[id] = file
	return f.driveFileLocked(file), nil
}

func (f *fakeRemote) RenameFile(_ context.Context, fileID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[fileID]
	if !ok {
		return notFoundErr()
	}
	file.name = name
	return nil
}

func (f *fakeRemote) MoveFile(_ context.Context, fileID, addParent, removeParent string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[fileID]
	if !ok {
		return notFoundErr()
	}
	parents := make([]string, 0, len(file.parents)+1)
	for _, parent := range file.parents {
		if parent != removeParent {
			parents = append(parents, parent)
		}
	}
	if addParent != "" {
		parents = append(parents, addParent)
	}
	file.parents = parents
	return nil
}

func (f *fakeRemote) TrashFile(_ context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[fileID]
	if !ok {
		return notFoundErr()
	}
	file.trashed = true
	return nil
}

func (f *fakeRemote) driveFileLocked(file *fakeFile) remote.DriveFile {
	return remote.DriveFile{
		ID:          file.id,
		Name:        file.name,
		MimeType:    file.mime,
		Parents:     append([]string(nil), file.parents...),
		Trashed:     file.trashed,
		CreatedTime: fmt.Sprintf("2025-01-01T00:00:%02dZ", file.seq%60),
	}
}

func fileMatches(file *fakeFile, terms []string) bool {
	for _, term := range terms {
		term = strings.TrimSpace(term)
		switch {
		case strings.HasPrefix(term, "name='"):
			if file.name != strings.TrimSuffix(strings.TrimPrefix(term, "name='"), "'") {
				return false
			}
		case strings.HasPrefix(term, "mimeType='"):
			if file.mime != strings.TrimSuffix(strings.TrimPrefix(term, "mimeType='"), "'") {
				return false
			}
		case term == "trashed=false":
			if file.trashed {
				return false
			}
		case strings.HasSuffix(term, "in parents"):
			parent := strings.TrimSuffix(strings.TrimPrefix(term, "'"), "' in parents")
			if !hasParent(file, parent) {
				return false
			}
		}
	}
	return true
}

func hasParent(file *fakeFile, parentID string) bool {
	for _, parent := range file.parents {
		if parent == parentID {
			return true
		}
	}
	return false
}

// parseA1 understands the range shapes this codebase emits:
// 'Sheet'!A1:G1, 'Sheet'!A2:G, 'Sheet'!F3:G3. endRow 0 means unbounded.
func parseA1(a1 string) (sheet string, startRow, endRow, startCol int, err error) {
	bang := strings.LastIndex(a1, "!")
	if bang < 0 || !strings.HasPrefix(a1, "'") {
		return "", 0, 0, 0, fmt.Errorf("bad range %q", a1)
	}
	sheet = strings.Trim(a1[:bang], "'")
	ref := a1[bang+1:]
	parts := strings.SplitN(ref, ":", 2)
	startCol, startRow, err = parseCell(parts[0])
	if err != nil {
		return "", 0, 0, 0, err
	}
	if len(parts) == 2 {
		_, end, cellErr := parseCell(parts[1])
		if cellErr == nil {
			endRow = end
		}
	}
	return sheet, startRow, endRow, startCol, nil
}

func parseCell(cell string) (column, row int, err error) {
	i := 0
	for i < len(cell) && cell[i] >= 'A' && cell[i] <= 'Z' {
		i++
	}
	if i == 0 {
		return 0, 0, fmt.Errorf("bad cell %q", cell)
	}
	for _, letter := range cell[:i] {
		column = column*26 + int(letter-'A') + 1
	}
	column--
	if i == len(cell) {
		return column, 0, fmt.Errorf("no row in %q", cell)
	}
	row, err = strconv.Atoi(cell[i:])
	return column, row, err
}
