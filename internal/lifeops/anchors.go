package lifeops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/lifeops-dev/lifeops/internal/remote"
)

type Recurrence string

const (
	RecurrenceDaily    Recurrence = "daily"
	RecurrenceWeekdays Recurrence = "weekdays"
)

// Anchor is a recurring reminder mirrored to one calendar event. An enabled
// anchor holds at most one live event reference; a disabled one holds none.
type Anchor struct {
	ID         string     `json:"id"`
	Summary    string     `json:"summary"`
	Time       string     `json:"time,omitempty"` // "15:04"; empty means all-day
	Recurrence Recurrence `json:"recurrence"`
	Enabled    bool       `json:"enabled"`
	EventID    string     `json:"eventId,omitempty"`
}

// anchorState is the explicit enabled-by-reference state the sync pass
// dispatches on.
type anchorState int

const (
	stateDisabledNoRef anchorState = iota
	stateDisabledRef
	stateEnabledNoRef
	stateEnabledRef
)

func anchorStateOf(a Anchor) anchorState {
	hasRef := strings.TrimSpace(a.EventID) != ""
	switch {
	case !a.Enabled && !hasRef:
		return stateDisabledNoRef
	case !a.Enabled && hasRef:
		return stateDisabledRef
	case a.Enabled && !hasRef:
		return stateEnabledNoRef
	default:
		return stateEnabledRef
	}
}

const anchorEventDuration = 30 * time.Minute

// AnchorStore owns the anchor list, persisted as JSON in the cache, and
// keeps it converged against the calendar.
type AnchorStore struct {
	calendar CalendarClient
	cache    Cache
	notifier Notifier
	log      Logger
	now      func() time.Time
	location *time.Location

	mu      sync.Mutex
	loaded  bool
	syncing bool
	seq     int
	anchors []Anchor
}

type AnchorStoreOptions struct {
	Calendar CalendarClient
	Cache    Cache
	Notifier Notifier
	Logger   Logger
	Now      func() time.Time
	Location *time.Location
}

func NewAnchorStore(opts AnchorStoreOptions) *AnchorStore {
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
	return &AnchorStore{
		calendar: opts.Calendar,
		cache:    opts.Cache,
		notifier: opts.Notifier,
		log:      logger,
		now:      now,
		location: location,
	}
}

func (s *AnchorStore) Syncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing
}

func (s *AnchorStore) List() ([]Anchor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	return append([]Anchor(nil), s.anchors...), nil
}

// Add creates the anchor locally and runs one sync pass over it, so an
// enabled anchor gains its event reference immediately.
func (s *AnchorStore) Add(ctx context.Context, anchor Anchor) (Anchor, error) {
	if strings.TrimSpace(anchor.Summary) == "" {
		return Anchor{}, ErrInvalidInput
	}
	if anchor.Recurrence == "" {
		anchor.Recurrence = RecurrenceDaily
	}
	if anchor.Recurrence != RecurrenceDaily && anchor.Recurrence != RecurrenceWeekdays {
		return Anchor{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return Anchor{}, err
	}
	if strings.TrimSpace(anchor.ID) == "" {
		// The sequence keeps ids distinct when two adds land on the same
		// clock reading.
		s.seq++
		anchor.ID = fmt.Sprintf("anchor_%d_%d", s.now().UnixNano(), s.seq)
	}
	for _, existing := range s.anchors {
		if existing.ID == anchor.ID {
			return Anchor{}, ErrInvalidInput
		}
	}
	anchor.EventID = ""
	if err := s.syncOne(ctx, &anchor); err != nil {
		return Anchor{}, err
	}
	s.anchors = append(s.anchors, anchor)
	if err := s.persist(); err != nil {
		return Anchor{}, err
	}
	s.notify()
	return anchor, nil
}

// AnchorUpdate carries a partial update. Nil fields keep the current
// value; a non-nil empty Time explicitly clears the anchor to all-day.
type AnchorUpdate struct {
	Summary    *string     `json:"summary"`
	Time       *string     `json:"time"`
	Recurrence *Recurrence `json:"recurrence"`
	Enabled    *bool       `json:"enabled"`
}

// Update applies the provided fields and re-syncs that anchor. Disabling
// tears the event down; enabling brings it up.
func (s *AnchorStore) Update(ctx context.Context, anchorID string, update AnchorUpdate) (Anchor, error) {
	if update.Summary != nil && strings.TrimSpace(*update.Summary) == "" {
		return Anchor{}, ErrInvalidInput
	}
	if update.Recurrence != nil && *update.Recurrence != RecurrenceDaily && *update.Recurrence != RecurrenceWeekdays {
		return Anchor{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return Anchor{}, err
	}
	index := s.indexOf(anchorID)
	if index < 0 {
		return Anchor{}, ErrNotFound
	}
	current := s.anchors[index]
	if update.Summary != nil {
		current.Summary = *update.Summary
	}
	if update.Time != nil {
		current.Time = *update.Time
	}
	if update.Recurrence != nil {
		current.Recurrence = *update.Recurrence
	}
	if update.Enabled != nil {
		current.Enabled = *update.Enabled
	}
	if err := s.syncOne(ctx, &current); err != nil {
		return Anchor{}, err
	}
	s.anchors[index] = current
	if err := s.persist(); err != nil {
		return Anchor{}, err
	}
	s.notify()
	return current, nil
}

// Remove deletes the anchor and its event, if any. A missing event is fine.
func (s *AnchorStore) Remove(ctx context.Context, anchorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return err
	}
	index := s.indexOf(anchorID)
	if index < 0 {
		return ErrNotFound
	}
	if eventID := s.anchors[index].EventID; eventID != "" {
		if err := s.calendar.DeleteEvent(ctx, eventID); err != nil {
			return err
		}
	}
	s.anchors = append(s.anchors[:index], s.anchors[index+1:]...)
	if err := s.persist(); err != nil {
		return err
	}
	s.notify()
	return nil
}

// SyncAll runs the state machine over every anchor, strictly sequentially.
// One anchor's failure is isolated and the pass continues; an unauthorized
// response aborts the whole pass. The list is persisted after every anchor
// so partial progress survives a crash.
func (s *AnchorStore) SyncAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return err
	}
	s.syncing = true
	defer func() { s.syncing = false }()

	var failures []error
	changed := false
	for i := range s.anchors {
		anchor := s.anchors[i]
		before := anchor
		err := s.syncOne(ctx, &anchor)
		if err != nil {
			if errors.Is(err, remote.ErrUnauthorized) {
				return err
			}
			failures = append(failures, fmt.Errorf("anchor %s: %w", anchor.ID, err))
			continue
		}
		if anchor != before {
			s.anchors[i] = anchor
			changed = true
			if err := s.persist(); err != nil {
				return err
			}
		}
	}
	if changed {
		s.notify()
	}
	return errors.Join(failures...)
}

// syncOne drives one anchor toward its converged state:
//
//	disabled, no ref  -> nothing
//	disabled, ref     -> delete event, clear ref (gone counts as deleted)
//	enabled, no ref   -> search by summary, adopt or create
//	enabled, ref      -> update; a failed update means the ref is stale,
//	                     so fall back to the search-or-create path
func (s *AnchorStore) syncOne(ctx context.Context, anchor *Anchor) error {
	switch anchorStateOf(*anchor) {
	case stateDisabledNoRef:
		return nil
	case stateDisabledRef:
		if err := s.calendar.DeleteEvent(ctx, anchor.EventID); err != nil {
			return err
		}
		anchor.EventID = ""
		return nil
	case stateEnabledNoRef:
		return s.adoptOrCreate(ctx, anchor)
	default:
		desired, err := s.eventFor(*anchor)
		if err != nil {
			return err
		}
		if _, patchErr := s.calendar.PatchEvent(ctx, anchor.EventID, desired); patchErr != nil {
			if errors.Is(patchErr, remote.ErrUnauthorized) {
				return patchErr
			}
			s.log.Printf("anchor %s: stale event %s, recovering: %v", anchor.ID, anchor.EventID, patchErr)
			anchor.EventID = ""
			return s.adoptOrCreate(ctx, anchor)
		}
		return nil
	}
}

// adoptOrCreate searches the calendar for a live recurring event carrying
// the anchor's summary before ever creating one, so a lost reference never
// turns into a second event.
func (s *AnchorStore) adoptOrCreate(ctx context.Context, anchor *Anchor) error {
	desired, err := s.eventFor(*anchor)
	if err != nil {
		return err
	}
	matches, err := s.calendar.SearchEvents(ctx, anchor.Summary, 10)
	if err != nil {
		return err
	}
	live := make([]remote.Event, 0, len(matches))
	for _, event := range matches {
		if event.Status == "cancelled" {
			continue
		}
		if event.Summary != anchor.Summary {
			continue
		}
		if len(event.Recurrence) == 0 {
			continue
		}
		live = append(live, event)
	}
	if len(live) > 0 {
		if len(live) > 1 {
			s.log.Printf("anchor %s: %d recurring events match summary %q, adopting the first", anchor.ID, len(live), anchor.Summary)
		}
		anchor.EventID = live[0].ID
		if _, err := s.calendar.PatchEvent(ctx, anchor.EventID, desired); err != nil {
			return err
		}
		return nil
	}
	created, err := s.calendar.InsertEvent(ctx, desired)
	if err != nil {
		return err
	}
	anchor.EventID = created.ID
	return nil
}

// eventFor materializes the anchor's desired calendar event: all-day when
// no time-of-day is set, a fixed-length timed event otherwise, starting at
// the next occurrence of its recurrence rule.
func (s *AnchorStore) eventFor(anchor Anchor) (remote.Event, error) {
	rule, err := s.ruleFor(anchor)
	if err != nil {
		return remote.Event{}, err
	}
	start := rule.After(s.now().In(s.location), true)
	if start.IsZero() {
		return remote.Event{}, fmt.Errorf("anchor %s: recurrence yields no occurrence", anchor.ID)
	}

	event := remote.Event{
		Summary:    anchor.Summary,
		Recurrence: []string{"RRULE:" + rule.String()},
		Reminders: &remote.EventReminders{
			Overrides: []remote.ReminderOverride{{Method: "popup", Minutes: 10}},
		},
	}
	if anchor.Time == "" {
		date := start.Format("2006-01-02")
		end := start.AddDate(0, 0, 1).Format("2006-01-02")
		event.Start = &remote.EventTime{Date: date}
		event.End = &remote.EventTime{Date: end}
	} else {
		event.Start = &remote.EventTime{
			DateTime: start.Format(time.RFC3339),
			TimeZone: s.location.String(),
		}
		event.End = &remote.EventTime{
			DateTime: start.Add(anchorEventDuration).Format(time.RFC3339),
			TimeZone: s.location.String(),
		}
	}
	return event, nil
}

func (s *AnchorStore) ruleFor(anchor Anchor) (*rrule.RRule, error) {
	opt := rrule.ROption{Freq: rrule.DAILY, Dtstart: s.dtstart(anchor)}
	if anchor.Recurrence == RecurrenceWeekdays {
		opt.Byweekday = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR}
	}
	return rrule.NewRRule(opt)
}

// dtstart anchors the rule at today's occurrence time so After() lands on
// the next wall-clock occurrence, not on an arbitrary epoch.
func (s *AnchorStore) dtstart(anchor Anchor) time.Time {
	now := s.now().In(s.location)
	hour, minute := 0, 0
	if anchor.Time != "" {
		if parsed, err := time.Parse("15:04", anchor.Time); err == nil {
			hour, minute = parsed.Hour(), parsed.Minute()
		}
	}
	return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, s.location)
}

// NextOccurrence reports when the anchor fires next, for display.
func (s *AnchorStore) NextOccurrence(anchor Anchor) (time.Time, error) {
	rule, err := s.ruleFor(anchor)
	if err != nil {
		return time.Time{}, err
	}
	next := rule.After(s.now().In(s.location), true)
	if next.IsZero() {
		return time.Time{}, ErrNotFound
	}
	return next, nil
}

func (s *AnchorStore) ensureLoaded() error {
	if s.loaded {
		return nil
	}
	raw, ok, err := s.cache.Get(KeyAnchorList)
	if err != nil {
		return err
	}
	if ok && raw != "" {
		var anchors []Anchor
		if err := json.Unmarshal([]byte(raw), &anchors); err != nil {
			return err
		}
		s.anchors = anchors
	}
	s.loaded = true
	return nil
}

func (s *AnchorStore) persist() error {
	data, err := json.Marshal(s.anchors)
	if err != nil {
		return err
	}
	return s.cache.Put(KeyAnchorList, string(data))
}

func (s *AnchorStore) indexOf(anchorID string) int {
	for i, anchor := range s.anchors {
		if anchor.ID == anchorID {
			return i
		}
	}
	return -1
}

func (s *AnchorStore) notify() {
	if s.notifier != nil {
		s.notifier.Notify("anchors")
	}
}
