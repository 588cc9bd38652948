package lifeops

import (
	"context"
	"sync"
	"time"
)

// DayLogStore keeps one mood/energy/note row per date in the routine
// spreadsheet. Save upserts by date: writing a date that already has a row
// rewrites that row instead of appending a second one.
type DayLogStore struct {
	resolver *Resolver
	sheets   SheetsClient
	notifier Notifier
	now      func() time.Time
	location *time.Location

	mu        sync.Mutex
	saving    bool
	ensuredID string
}

type DayLogStoreOptions struct {
	Resolver *Resolver
	Sheets   SheetsClient
	Notifier Notifier
	Now      func() time.Time
	Location *time.Location
}

func NewDayLogStore(opts DayLogStoreOptions) *DayLogStore {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	location := opts.Location
	if location == nil {
		location = time.Local
	}
	return &DayLogStore{
		resolver: opts.Resolver,
		sheets:   opts.Sheets,
		notifier: opts.Notifier,
		now:      now,
		location: location,
	}
}

func (s *DayLogStore) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

// Today returns the entry for the current date, defaulted to the scale
// midpoint when no row exists yet.
func (s *DayLogStore) Today(ctx context.Context) (DayLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	date := s.now().In(s.location).Format("2006-01-02")
	id, err := s.ensureContainer(ctx)
	if err != nil {
		return DayLogEntry{}, err
	}
	table := NewSheetTable(s.sheets, id, DayLogCodec)
	entries, err := table.List(ctx)
	if err != nil {
		return DayLogEntry{}, err
	}
	for _, entry := range entries {
		if entry.Date == date {
			return entry, nil
		}
	}
	return DayLogEntry{Date: date, Mood: dayLogScaleDefault, Energy: dayLogScaleDefault}, nil
}

// Save upserts today's entry. Mood and energy are clamped to the 1..5
// scale; zero values take the midpoint default.
func (s *DayLogStore) Save(ctx context.Context, entry DayLogEntry) (DayLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = true
	defer func() { s.saving = false }()

	if entry.Date == "" {
		entry.Date = s.now().In(s.location).Format("2006-01-02")
	}
	entry.Mood = clampScale(entry.Mood)
	entry.Energy = clampScale(entry.Energy)

	id, err := s.ensureContainer(ctx)
	if err != nil {
		return DayLogEntry{}, err
	}
	table := NewSheetTable(s.sheets, id, DayLogCodec)
	entries, err := table.List(ctx)
	if err != nil {
		return DayLogEntry{}, err
	}
	exists := false
	for _, existing := range entries {
		if existing.Date == entry.Date {
			exists = true
			break
		}
	}
	if exists {
		err = table.Update(ctx, entry)
	} else {
		err = table.Append(ctx, []DayLogEntry{entry})
	}
	if err != nil {
		return DayLogEntry{}, err
	}
	if s.notifier != nil {
		s.notifier.Notify("daylog")
	}
	return entry, nil
}

// ensureContainer resolves the shared spreadsheet on every call, so a
// container trashed out-of-band is rediscovered on the next operation.
// Another feature may have created the spreadsheet without the day log
// sheet, so the sheet itself is ensured once per resolved id.
func (s *DayLogStore) ensureContainer(ctx context.Context) (string, error) {
	schemas := []Schema{TemplateSchema, LogItemSchema, DayLogSchema}
	id, err := s.resolver.Spreadsheet(ctx, KeyRoutineSpreadsheetID, routineSpreadsheetTitle, schemas)
	if err != nil {
		return "", err
	}
	if id == s.ensuredID {
		return id, nil
	}
	if err := s.resolver.EnsureSheet(ctx, id, DayLogSchema); err != nil {
		return "", err
	}
	s.ensuredID = id
	return id, nil
}

func clampScale(value int) int {
	if value <= 0 {
		return dayLogScaleDefault
	}
	if value > 5 {
		return 5
	}
	return value
}
