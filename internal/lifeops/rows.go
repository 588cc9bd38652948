package lifeops

import (
	"strconv"
	"strings"
)

// Schema is the column contract for one sheet. Column order is versionless:
// decoding tolerates rows shorter than the schema, encoding always emits
// the full declared width.
type Schema struct {
	Sheet   string
	Columns []string
}

// Width is the declared column count.
func (s Schema) Width() int {
	return len(s.Columns)
}

// Header is the first row of the sheet.
func (s Schema) Header() []string {
	header := make([]string, len(s.Columns))
	copy(header, s.Columns)
	return header
}

// Codec is the bidirectional mapping between one sheet row and one record.
type Codec[T any] struct {
	Schema Schema
	Decode func(row []string) T
	Encode func(record T) []string
	ID     func(record T) string
}

// col reads one cell, defaulting to "" when the row is shorter than the
// schema.
func col(row []string, index int) string {
	if index < 0 || index >= len(row) {
		return ""
	}
	return row[index]
}

// padRow widens a row to the declared schema width.
func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row[:width]
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}

func parseIntCell(cell string, fallback int) int {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return fallback
	}
	value, err := strconv.Atoi(cell)
	if err != nil {
		return fallback
	}
	return value
}

func parseBoolCell(cell string) bool {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

type RoutineTemplate struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Detail      string `json:"detail,omitempty"`
	Category    string `json:"category,omitempty"`
	Order       int    `json:"order"`
	ActionURL   string `json:"actionUrl,omitempty"`
	ActionLabel string `json:"actionLabel,omitempty"`
}

type RoutineLogItem struct {
	ID          string `json:"id"`
	RoutineID   string `json:"routineId"`
	Label       string `json:"label"`
	Detail      string `json:"detail,omitempty"`
	Date        string `json:"date"`
	Completed   bool   `json:"completed"`
	CompletedAt string `json:"completedAt,omitempty"`
}

type DayLogEntry struct {
	Date   string `json:"date"`
	Mood   int    `json:"mood"`
	Energy int    `json:"energy"`
	Note   string `json:"note,omitempty"`
}

var TemplateSchema = Schema{
	Sheet:   "RoutineTemplates",
	Columns: []string{"id", "label", "detail", "category", "order", "actionUrl", "actionLabel"},
}

var LogItemSchema = Schema{
	Sheet:   "RoutineLog",
	Columns: []string{"id", "routineId", "label", "detail", "date", "completed", "completedAt"},
}

var DayLogSchema = Schema{
	Sheet:   "DailyLog",
	Columns: []string{"date", "mood", "energy", "note"},
}

var TemplateCodec = Codec[RoutineTemplate]{
	Schema: TemplateSchema,
	Decode: func(row []string) RoutineTemplate {
		return RoutineTemplate{
			ID:          col(row, 0),
			Label:       col(row, 1),
			Detail:      col(row, 2),
			Category:    col(row, 3),
			Order:       parseIntCell(col(row, 4), 0),
			ActionURL:   col(row, 5),
			ActionLabel: col(row, 6),
		}
	},
	Encode: func(t RoutineTemplate) []string {
		return []string{
			t.ID,
			t.Label,
			t.Detail,
			t.Category,
			strconv.Itoa(t.Order),
			t.ActionURL,
			t.ActionLabel,
		}
	},
	ID: func(t RoutineTemplate) string { return t.ID },
}

var LogItemCodec = Codec[RoutineLogItem]{
	Schema: LogItemSchema,
	Decode: func(row []string) RoutineLogItem {
		return RoutineLogItem{
			ID:          col(row, 0),
			RoutineID:   col(row, 1),
			Label:       col(row, 2),
			Detail:      col(row, 3),
			Date:        col(row, 4),
			Completed:   parseBoolCell(col(row, 5)),
			CompletedAt: col(row, 6),
		}
	},
	Encode: func(item RoutineLogItem) []string {
		return []string{
			item.ID,
			item.RoutineID,
			item.Label,
			item.Detail,
			item.Date,
			strconv.FormatBool(item.Completed),
			item.CompletedAt,
		}
	},
	ID: func(item RoutineLogItem) string { return item.ID },
}

// Mood and energy default to the scale midpoint when the cell is empty or
// unreadable.
const dayLogScaleDefault = 3

var DayLogCodec = Codec[DayLogEntry]{
	Schema: DayLogSchema,
	Decode: func(row []string) DayLogEntry {
		return DayLogEntry{
			Date:   col(row, 0),
			Mood:   parseIntCell(col(row, 1), dayLogScaleDefault),
			Energy: parseIntCell(col(row, 2), dayLogScaleDefault),
			Note:   col(row, 3),
		}
	},
	Encode: func(entry DayLogEntry) []string {
		return []string{
			entry.Date,
			strconv.Itoa(entry.Mood),
			strconv.Itoa(entry.Energy),
			entry.Note,
		}
	},
	ID: func(entry DayLogEntry) string { return entry.Date },
}
