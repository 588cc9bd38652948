package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

type SheetProperties struct {
	SheetID int64  `json:"sheetId"`
	Title   string `json:"title"`
}

// ProbeSpreadsheet is the cheap existence check for a cached container id.
func (c *Client) ProbeSpreadsheet(ctx context.Context, spreadsheetID string) error {
	endpoint := fmt.Sprintf("%s/spreadsheets/%s?fields=spreadsheetId", c.sheetsBase, url.PathEscape(spreadsheetID))
	return c.doJSON(ctx, "sheets", http.MethodGet, endpoint, nil, nil)
}

func (c *Client) CreateSpreadsheet(ctx context.Context, title string, sheetTitles []string) (string, error) {
	sheets := make([]map[string]any, 0, len(sheetTitles))
	for _, sheetTitle := range sheetTitles {
		sheets = append(sheets, map[string]any{
			"properties": map[string]any{"title": sheetTitle},
		})
	}
	body := map[string]any{
		"properties": map[string]any{"title": title},
		"sheets":     sheets,
	}
	var out struct {
		SpreadsheetID string `json:"spreadsheetId"`
	}
	endpoint := c.sheetsBase + "/spreadsheets"
	if err := c.doJSON(ctx, "sheets", http.MethodPost, endpoint, body, &out); err != nil {
		return "", err
	}
	return out.SpreadsheetID, nil
}

func (c *Client) SheetProperties(ctx context.Context, spreadsheetID string) ([]SheetProperties, error) {
	endpoint := fmt.Sprintf("%s/spreadsheets/%s?fields=sheets.properties", c.sheetsBase, url.PathEscape(spreadsheetID))
	var out struct {
		Sheets []struct {
			Properties SheetProperties `json:"properties"`
		} `json:"sheets"`
	}
	if err := c.doJSON(ctx, "sheets", http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	props := make([]SheetProperties, 0, len(out.Sheets))
	for _, sheet := range out.Sheets {
		props = append(props, sheet.Properties)
	}
	return props, nil
}

func (c *Client) AddSheet(ctx context.Context, spreadsheetID, title string) error {
	body := map[string]any{
		"requests": []map[string]any{
			{"addSheet": map[string]any{"properties": map[string]any{"title": title}}},
		},
	}
	endpoint := fmt.Sprintf("%s/spreadsheets/%s:batchUpdate", c.sheetsBase, url.PathEscape(spreadsheetID))
	return c.doJSON(ctx, "sheets", http.MethodPost, endpoint, body, nil)
}

// ReadRange returns the requested A1 range as rows of strings. Cells edited
// out-of-band may come back as numbers or bools; they are flattened to their
// string form so the row codec only ever sees strings.
func (c *Client) ReadRange(ctx context.Context, spreadsheetID, a1 string) ([][]string, error) {
	endpoint := fmt.Sprintf("%s/spreadsheets/%s/values/%s", c.sheetsBase, url.PathEscape(spreadsheetID), url.PathEscape(a1))
	var out struct {
		Values [][]any `json:"values"`
	}
	if err := c.doJSON(ctx, "sheets", http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(out.Values))
	for _, raw := range out.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, cellString(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *Client) UpdateRange(ctx context.Context, spreadsheetID, a1 string, values [][]string) error {
	endpoint := fmt.Sprintf("%s/spreadsheets/%s/values/%s?valueInputOption=RAW",
		c.sheetsBase, url.PathEscape(spreadsheetID), url.PathEscape(a1))
	body := map[string]any{"values": values}
	return c.doJSON(ctx, "sheets", http.MethodPut, endpoint, body, nil)
}

func (c *Client) AppendRows(ctx context.Context, spreadsheetID, sheetTitle string, values [][]string) error {
	rangeRef := fmt.Sprintf("'%s'!A:A", sheetTitle)
	endpoint := fmt.Sprintf("%s/spreadsheets/%s/values/%s:append?valueInputOption=RAW&insertDataOption=INSERT_ROWS",
		c.sheetsBase, url.PathEscape(spreadsheetID), url.PathEscape(rangeRef))
	body := map[string]any{"values": values}
	return c.doJSON(ctx, "sheets", http.MethodPost, endpoint, body, nil)
}

// DeleteRows removes the half-open row interval [start, end) (zero-based,
// header row included) from one sheet.
func (c *Client) DeleteRows(ctx context.Context, spreadsheetID string, sheetID, start, end int64) error {
	body := map[string]any{
		"requests": []map[string]any{
			{"deleteDimension": map[string]any{
				"range": map[string]any{
					"sheetId":    sheetID,
					"dimension":  "ROWS",
					"startIndex": start,
					"endIndex":   end,
				},
			}},
		},
	}
	endpoint := fmt.Sprintf("%s/spreadsheets/%s:batchUpdate", c.sheetsBase, url.PathEscape(spreadsheetID))
	return c.doJSON(ctx, "sheets", http.MethodPost, endpoint, body, nil)
}

func cellString(cell any) string {
	switch v := cell.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
