package lifeops

import (
	ics "github.com/arran4/golang-ical"
)

// ExportICS renders every enabled anchor as a VEVENT with its recurrence
// rule, for subscribing from calendar apps outside the remote suite.
func (s *AnchorStore) ExportICS() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//lifeops//anchors//EN")

	now := s.now()
	for _, anchor := range s.anchors {
		if !anchor.Enabled {
			continue
		}
		rule, err := s.ruleFor(anchor)
		if err != nil {
			return "", err
		}
		start := rule.After(now.In(s.location), true)
		if start.IsZero() {
			continue
		}

		event := cal.AddEvent(anchor.ID + "@lifeops")
		event.SetDtStampTime(now)
		event.SetSummary(anchor.Summary)
		event.AddRrule(rule.String())
		if anchor.Time == "" {
			event.SetAllDayStartAt(start)
			event.SetAllDayEndAt(start.AddDate(0, 0, 1))
		} else {
			event.SetStartAt(start)
			event.SetEndAt(start.Add(anchorEventDuration))
		}
	}
	return cal.Serialize(), nil
}
