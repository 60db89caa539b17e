package service

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Rishie123/billprocessor/config"
	"github.com/Rishie123/billprocessor/model"
)

// Worksheet is the slice of spreadsheet capability the ledger logic needs.
// The Sheets adapter implements it against the real API; tests implement it
// in memory.
type Worksheet interface {
	Title() string
	// HeaderRow returns row 1, empty for a fresh worksheet.
	HeaderRow(ctx context.Context) ([]string, error)
	// WriteHeaderRow writes headers into row 1 starting at the given
	// 1-based column.
	WriteHeaderRow(ctx context.Context, startCol int, headers []string) error
	AppendRow(ctx context.Context, row []string) error
}

// SheetsService maintains one worksheet per party inside the configured
// ledger spreadsheet.
type SheetsService struct {
	svc           *sheets.Service
	spreadsheetID string
}

func NewSheetsService(ctx context.Context, cfg *config.SheetsConfig, opts ...option.ClientOption) (*SheetsService, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &SheetsService{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
	}, nil
}

// Worksheet resolves the party worksheet: exact title match first, then a
// case-insensitive scan over all worksheets, then creation. The scan must
// run before creation or "ACME" and "Acme" would get two ledgers.
func (s *SheetsService) Worksheet(ctx context.Context, title string) (Worksheet, error) {
	ss, err := s.svc.Spreadsheets.Get(s.spreadsheetID).
		Context(ctx).
		Fields("sheets(properties(sheetId,title))").
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read spreadsheet: %w", err)
	}

	for _, sh := range ss.Sheets {
		if sh.Properties.Title == title {
			return s.worksheet(sh.Properties.Title), nil
		}
	}
	for _, sh := range ss.Sheets {
		if strings.EqualFold(sh.Properties.Title, title) {
			return s.worksheet(sh.Properties.Title), nil
		}
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title: title,
					GridProperties: &sheets.GridProperties{
						RowCount:    100,
						ColumnCount: 20,
					},
				},
			},
		}},
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return nil, fmt.Errorf("failed to add worksheet: %w", err)
	}
	return s.worksheet(title), nil
}

func (s *SheetsService) worksheet(title string) *sheetsWorksheet {
	return &sheetsWorksheet{
		svc:           s.svc,
		spreadsheetID: s.spreadsheetID,
		title:         title,
	}
}

type sheetsWorksheet struct {
	svc           *sheets.Service
	spreadsheetID string
	title         string
}

func (w *sheetsWorksheet) Title() string { return w.title }

func (w *sheetsWorksheet) HeaderRow(ctx context.Context) ([]string, error) {
	rng := fmt.Sprintf("'%s'!1:1", w.title)
	resp, err := w.svc.Spreadsheets.Values.Get(w.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}

	headers := make([]string, 0, len(resp.Values[0]))
	for _, cell := range resp.Values[0] {
		headers = append(headers, fmt.Sprint(cell))
	}
	return headers, nil
}

func (w *sheetsWorksheet) WriteHeaderRow(ctx context.Context, startCol int, headers []string) error {
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}

	rng := fmt.Sprintf("'%s'!%s1", w.title, columnName(startCol))
	vr := &sheets.ValueRange{Values: [][]interface{}{row}}
	_, err := w.svc.Spreadsheets.Values.Update(w.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}
	return nil
}

func (w *sheetsWorksheet) AppendRow(ctx context.Context, row []string) error {
	vals := make([]interface{}, len(row))
	for i, cell := range row {
		vals[i] = cell
	}

	rng := fmt.Sprintf("'%s'!A1", w.title)
	vr := &sheets.ValueRange{Values: [][]interface{}{vals}}
	_, err := w.svc.Spreadsheets.Values.Append(w.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}
	return nil
}

// columnName converts a 1-based column index to its A1 letter form.
func columnName(col int) string {
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

// UpsertRecord appends the record as a new row, reconciling the header row
// first. Existing headers are never reordered or removed; keys the sheet
// has not seen before are appended after the last existing header, in the
// record's own key order. Rows written before a header existed stay short
// rather than being padded, matching how the ledgers have always been read.
//
// The read-reconcile-append sequence is not transactional: two writers on
// the same worksheet can race. Known limitation; uploads are serialized by
// the single-form UI.
func UpsertRecord(ctx context.Context, ws Worksheet, rec *model.BillRecord) error {
	headers, err := ws.HeaderRow(ctx)
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(headers))
	for _, h := range headers {
		known[h] = true
	}
	var fresh []string
	for _, key := range rec.Keys() {
		if !known[key] {
			fresh = append(fresh, key)
		}
	}

	if len(headers) == 0 {
		if err := ws.WriteHeaderRow(ctx, 1, rec.Keys()); err != nil {
			return err
		}
	} else if len(fresh) > 0 {
		if err := ws.WriteHeaderRow(ctx, len(headers)+1, fresh); err != nil {
			return err
		}
	}

	// Re-read so the row aligns with the authoritative column order
	headers, err = ws.HeaderRow(ctx)
	if err != nil {
		return err
	}

	row := make([]string, len(headers))
	for i, h := range headers {
		row[i] = rec.Get(h, "")
	}
	return ws.AppendRow(ctx, row)
}
