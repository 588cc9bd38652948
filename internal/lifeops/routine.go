package lifeops

import (
	"context"
	"sync"
	"time"
)

const routineSpreadsheetTitle = "LifeOps Routines"

// DefaultTemplates seeds a fresh spreadsheet so the first materialized day
// is not empty. Users replace these through the template operations.
func DefaultTemplates() []RoutineTemplate {
	return []RoutineTemplate{
		{ID: "r-morning", Label: "Morning review", Detail: "Plan the day before opening anything else", Order: 1},
		{ID: "r-project", Label: "Project work", Detail: "One focused block on the main project", Order: 2},
		{ID: "r-study", Label: "Study session", Detail: "Language or certification practice", Order: 3},
		{ID: "r-jobsearch", Label: "Job search", Detail: "Check one posting, touch the resume", Order: 4},
	}
}

// RoutineStore owns the routine spreadsheet: the template sheet and the
// per-day log sheet. All merge/dedup logic lives in the resolver and the
// engine; this type only wires them and holds the working set.
type RoutineStore struct {
	resolver *Resolver
	sheets   SheetsClient
	notifier Notifier
	log      Logger
	now      func() time.Time
	location *time.Location

	mu       sync.Mutex
	syncing  bool
	saving   bool
	seededID string

	templates []RoutineTemplate
	today     []RoutineLogItem
	date      string
}

type RoutineStoreOptions struct {
	Resolver *Resolver
	Sheets   SheetsClient
	Notifier Notifier
	Logger   Logger
	Now      func() time.Time
	Location *time.Location
}

func NewRoutineStore(opts RoutineStoreOptions) *RoutineStore {
	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	location := opts.Location
	if location == nil {
		location = time.Local
	}
	return &RoutineStore{
		resolver: opts.Resolver,
		sheets:   opts.Sheets,
		notifier: opts.Notifier,
		log:      logger,
		now:      now,
		location: location,
	}
}

func (s *RoutineStore) Syncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing
}

func (s *RoutineStore) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

// Snapshot returns the current working set without touching the remote.
func (s *RoutineStore) Snapshot() (date string, templates []RoutineTemplate, today []RoutineLogItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.date, append([]RoutineTemplate(nil), s.templates...), append([]RoutineLogItem(nil), s.today...)
}

// Today materializes the current date's log and returns the working set.
// Safe to call repeatedly; a second call for the same date creates nothing.
func (s *RoutineStore) Today(ctx context.Context) ([]RoutineLogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncing = true
	defer func() { s.syncing = false }()

	date := s.todayKey()
	id, err := s.ensureContainer(ctx)
	if err != nil {
		return nil, err
	}

	templates, err := s.loadTemplates(ctx, id)
	if err != nil {
		return nil, err
	}

	logTable := NewSheetTable(s.sheets, id, LogItemCodec)
	result, err := MaterializeDay(ctx, logTable, templates, date)
	if err != nil {
		return nil, err
	}

	s.templates = templates
	s.today = result.Items
	s.date = date
	if len(result.Created) > 0 {
		s.notify("routines")
	}
	return append([]RoutineLogItem(nil), s.today...), nil
}

// Refresh drops the cached working set and re-materializes.
func (s *RoutineStore) Refresh(ctx context.Context) ([]RoutineLogItem, error) {
	s.mu.Lock()
	s.today = nil
	s.date = ""
	s.mu.Unlock()
	return s.Today(ctx)
}

// Toggle flips the completion flag of one item, writing only the completed
// and completedAt cells. A missing remote row is reported and leaves the
// local set unchanged.
func (s *RoutineStore) Toggle(ctx context.Context, itemID string) (RoutineLogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = true
	defer func() { s.saving = false }()

	index := -1
	for i, item := range s.today {
		if item.ID == itemID {
			index = i
			break
		}
	}
	if index < 0 {
		return RoutineLogItem{}, ErrNotFound
	}

	updated := s.today[index]
	updated.Completed = !updated.Completed
	if updated.Completed {
		updated.CompletedAt = s.now().In(s.location).Format(time.RFC3339)
	} else {
		updated.CompletedAt = ""
	}

	id, err := s.ensureContainer(ctx)
	if err != nil {
		return RoutineLogItem{}, err
	}
	logTable := NewSheetTable(s.sheets, id, LogItemCodec)
	completedCol := colIndex(LogItemSchema, "completed")
	err = logTable.UpdateColumns(ctx, itemID, completedCol, []string{
		boolCell(updated.Completed),
		updated.CompletedAt,
	})
	if err != nil {
		return RoutineLogItem{}, err
	}

	s.today[index] = updated
	s.notify("routines")
	return updated, nil
}

// Postpone moves the item's date forward one day in place; the item drops
// out of today's set.
func (s *RoutineStore) Postpone(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = true
	defer func() { s.saving = false }()

	index := -1
	for i, item := range s.today {
		if item.ID == itemID {
			index = i
			break
		}
	}
	if index < 0 {
		return ErrNotFound
	}

	current := s.today[index]
	day, err := time.ParseInLocation("2006-01-02", current.Date, s.location)
	if err != nil {
		return ErrInvalidInput
	}
	nextDate := day.AddDate(0, 0, 1).Format("2006-01-02")

	id, err := s.ensureContainer(ctx)
	if err != nil {
		return err
	}
	logTable := NewSheetTable(s.sheets, id, LogItemCodec)
	dateCol := colIndex(LogItemSchema, "date")
	if err := logTable.UpdateColumns(ctx, itemID, dateCol, []string{nextDate}); err != nil {
		return err
	}

	s.today = append(s.today[:index], s.today[index+1:]...)
	s.notify("routines")
	return nil
}

func (s *RoutineStore) AddTemplate(ctx context.Context, template RoutineTemplate) error {
	if template.ID == "" || template.Label == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = true
	defer func() { s.saving = false }()

	id, err := s.ensureContainer(ctx)
	if err != nil {
		return err
	}
	for _, existing := range s.templates {
		if existing.ID == template.ID {
			return ErrInvalidInput
		}
	}
	templateTable := NewSheetTable(s.sheets, id, TemplateCodec)
	if err := templateTable.Append(ctx, []RoutineTemplate{template}); err != nil {
		return err
	}
	s.templates = append(s.templates, template)
	s.notify("routines")
	return nil
}

// RemoveTemplate deletes the template row. Already-materialized log items
// keep their snapshot of the template's label and detail.
func (s *RoutineStore) RemoveTemplate(ctx context.Context, templateID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = true
	defer func() { s.saving = false }()

	id, err := s.ensureContainer(ctx)
	if err != nil {
		return err
	}
	templateTable := NewSheetTable(s.sheets, id, TemplateCodec)
	if err := templateTable.Delete(ctx, templateID); err != nil {
		return err
	}
	kept := s.templates[:0]
	for _, template := range s.templates {
		if template.ID != templateID {
			kept = append(kept, template)
		}
	}
	s.templates = kept
	s.notify("routines")
	return nil
}

// ResetToday deletes today's log rows and re-materializes a fresh,
// all-unchecked set.
func (s *RoutineStore) ResetToday(ctx context.Context) ([]RoutineLogItem, error) {
	s.mu.Lock()
	s.saving = true

	date := s.todayKey()
	id, err := s.ensureContainer(ctx)
	if err != nil {
		s.saving = false
		s.mu.Unlock()
		return nil, err
	}
	logTable := NewSheetTable(s.sheets, id, LogItemCodec)
	items, err := logTable.List(ctx)
	if err != nil {
		s.saving = false
		s.mu.Unlock()
		return nil, err
	}
	// Rows shift upward after each deletion, so re-locate by id every time.
	for _, item := range items {
		if item.Date != date {
			continue
		}
		if err := logTable.Delete(ctx, item.ID); err != nil {
			s.saving = false
			s.mu.Unlock()
			return nil, err
		}
	}
	s.today = nil
	s.date = ""
	s.saving = false
	s.mu.Unlock()

	return s.Today(ctx)
}

// ensureContainer resolves the spreadsheet on every call, so a container
// trashed out-of-band is rediscovered on the next operation. Default
// templates are seeded once per resolved id. Callers hold the mutex.
func (s *RoutineStore) ensureContainer(ctx context.Context) (string, error) {
	schemas := []Schema{TemplateSchema, LogItemSchema}
	id, err := s.resolver.Spreadsheet(ctx, KeyRoutineSpreadsheetID, routineSpreadsheetTitle, schemas)
	if err != nil {
		return "", err
	}
	if id == s.seededID {
		return id, nil
	}
	templateTable := NewSheetTable(s.sheets, id, TemplateCodec)
	existing, err := templateTable.List(ctx)
	if err != nil {
		return "", err
	}
	if len(existing) == 0 {
		if err := templateTable.Append(ctx, DefaultTemplates()); err != nil {
			return "", err
		}
	}
	s.seededID = id
	return id, nil
}

func (s *RoutineStore) loadTemplates(ctx context.Context, spreadsheetID string) ([]RoutineTemplate, error) {
	templateTable := NewSheetTable(s.sheets, spreadsheetID, TemplateCodec)
	templates, err := templateTable.List(ctx)
	if err != nil {
		return nil, err
	}
	return DedupeByKey(templates, func(t RoutineTemplate) string { return t.ID }), nil
}

func (s *RoutineStore) todayKey() string {
	return s.now().In(s.location).Format("2006-01-02")
}

func (s *RoutineStore) notify(topic string) {
	if s.notifier != nil {
		s.notifier.Notify(topic)
	}
}

func colIndex(schema Schema, name string) int {
	for i, column := range schema.Columns {
		if column == name {
			return i
		}
	}
	return -1
}

func boolCell(value bool) string {
	if value {
		return "true"
	}
	return "false"
}
