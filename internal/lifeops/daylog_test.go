package lifeops

import (
	"context"
	"testing"
	"time"
)

func newTestDayLogStore(fake *fakeRemote) *DayLogStore {
	resolver, _ := newTestResolver(fake)
	return NewDayLogStore(DayLogStoreOptions{
		Resolver: resolver,
		Sheets:   fake,
		Now:      fixedClock("2025-03-10T20:00:00Z"),
		Location: time.UTC,
	})
}

func TestDayLogTodayDefault(t *testing.T) {
	store := newTestDayLogStore(newFakeRemote())
	entry, err := store.Today(context.Background())
	if err != nil {
		t.Fatalf("today: %v", err)
	}
	if entry.Date != "2025-03-10" || entry.Mood != dayLogScaleDefault || entry.Energy != dayLogScaleDefault {
		t.Fatalf("default entry: %+v", entry)
	}
}

func TestDayLogSaveUpserts(t *testing.T) {
	fake := newFakeRemote()
	store := newTestDayLogStore(fake)
	ctx := context.Background()

	first, err := store.Save(ctx, DayLogEntry{Mood: 4, Energy: 2, Note: "long day"})
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	if first.Date != "2025-03-10" {
		t.Fatalf("defaulted date: %q", first.Date)
	}

	second, err := store.Save(ctx, DayLogEntry{Date: "2025-03-10", Mood: 5, Energy: 3, Note: "better now"})
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if second.Mood != 5 {
		t.Fatalf("second entry: %+v", second)
	}

	table := NewSheetTable(fake, store.ensuredID, DayLogCodec)
	entries, err := table.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("%d rows for one date, upsert must rewrite", len(entries))
	}
	if entries[0].Note != "better now" || entries[0].Mood != 5 {
		t.Fatalf("row after upsert: %+v", entries[0])
	}

	entry, err := store.Today(ctx)
	if err != nil {
		t.Fatalf("today: %v", err)
	}
	if entry.Note != "better now" {
		t.Fatalf("today after save: %+v", entry)
	}
}

func TestDayLogSaveClampsScales(t *testing.T) {
	store := newTestDayLogStore(newFakeRemote())
	entry, err := store.Save(context.Background(), DayLogEntry{Mood: 11, Energy: 0})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if entry.Mood != 5 || entry.Energy != dayLogScaleDefault {
		t.Fatalf("clamped entry: %+v", entry)
	}
}

func TestDayLogKeepsOtherDates(t *testing.T) {
	fake := newFakeRemote()
	store := newTestDayLogStore(fake)
	ctx := context.Background()

	if _, err := store.Save(ctx, DayLogEntry{Date: "2025-03-09", Mood: 2, Energy: 2}); err != nil {
		t.Fatalf("seed yesterday: %v", err)
	}
	if _, err := store.Save(ctx, DayLogEntry{Date: "2025-03-10", Mood: 4, Energy: 4}); err != nil {
		t.Fatalf("save today: %v", err)
	}

	table := NewSheetTable(fake, store.ensuredID, DayLogCodec)
	entries, _ := table.List(ctx)
	if len(entries) != 2 {
		t.Fatalf("%d rows, one per date expected", len(entries))
	}
}

func TestDayLogGainsSheetInSharedSpreadsheet(t *testing.T) {
	fake := newFakeRemote()
	resolver, _ := newTestResolver(fake)

	// The routine store resolves the shared spreadsheet first and creates
	// it without a day log sheet.
	routines := NewRoutineStore(RoutineStoreOptions{
		Resolver: resolver,
		Sheets:   fake,
		Now:      fixedClock("2025-03-10T08:00:00Z"),
		Location: time.UTC,
	})
	ctx := context.Background()
	if _, err := routines.Today(ctx); err != nil {
		t.Fatalf("routines today: %v", err)
	}

	daylog := NewDayLogStore(DayLogStoreOptions{
		Resolver: resolver,
		Sheets:   fake,
		Now:      fixedClock("2025-03-10T20:00:00Z"),
		Location: time.UTC,
	})
	entry, err := daylog.Today(ctx)
	if err != nil {
		t.Fatalf("daylog today after routine resolution: %v", err)
	}
	if entry.Date != "2025-03-10" {
		t.Fatalf("entry: %+v", entry)
	}
	saved, err := daylog.Save(ctx, DayLogEntry{Mood: 4, Energy: 3, Note: "shared sheet"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Note != "shared sheet" {
		t.Fatalf("saved: %+v", saved)
	}
	if daylog.ensuredID != mustSpreadID(t, routines) {
		t.Fatalf("stores resolved different spreadsheets: %q vs %q", daylog.ensuredID, mustSpreadID(t, routines))
	}
}
