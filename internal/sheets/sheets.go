// Package sheets uploads exported rows to a Google Sheets worksheet using a
// service-account credential file.
package sheets

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"
)

// DefaultWorksheet is the worksheet name used when none is configured.
const DefaultWorksheet = "order_data"

// Uploader pushes row data into one spreadsheet.
type Uploader struct {
	srv           *sheetsv4.Service
	spreadsheetID string
}

// New creates an Uploader authenticated with the given service-account
// JSON file.
func New(ctx context.Context, credentialsFile, spreadsheetID string) (*Uploader, error) {
	if _, err := os.Stat(credentialsFile); err != nil {
		return nil, fmt.Errorf("service account file: %w", err)
	}
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet ID is required")
	}

	srv, err := sheetsv4.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheetsv4.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	return &Uploader{srv: srv, spreadsheetID: spreadsheetID}, nil
}

// SpreadsheetID returns the target spreadsheet.
func (u *Uploader) SpreadsheetID() string { return u.spreadsheetID }

// Upload replaces the worksheet contents with the given records.
// The worksheet is cleared when it exists and created when it doesn't,
// then all values are written starting at A1 with USER_ENTERED parsing so
// numbers and dates land typed rather than as strings.
func (u *Uploader) Upload(ctx context.Context, worksheet string, records [][]string) error {
	if worksheet == "" {
		worksheet = DefaultWorksheet
	}

	exists, err := u.worksheetExists(ctx, worksheet)
	if err != nil {
		return err
	}

	if exists {
		_, err = u.srv.Spreadsheets.Values.
			Clear(u.spreadsheetID, worksheet, &sheetsv4.ClearValuesRequest{}).
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("clearing worksheet %q: %w", worksheet, err)
		}
	} else {
		_, err = u.srv.Spreadsheets.
			BatchUpdate(u.spreadsheetID, &sheetsv4.BatchUpdateSpreadsheetRequest{
				Requests: []*sheetsv4.Request{{
					AddSheet: &sheetsv4.AddSheetRequest{
						Properties: &sheetsv4.SheetProperties{Title: worksheet},
					},
				}},
			}).
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("creating worksheet %q: %w", worksheet, err)
		}
	}

	_, err = u.srv.Spreadsheets.Values.
		Update(u.spreadsheetID, worksheet+"!A1", toValueRange(records)).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("updating worksheet %q: %w", worksheet, err)
	}
	return nil
}

// worksheetExists checks the spreadsheet's sheet list for the given title.
func (u *Uploader) worksheetExists(ctx context.Context, worksheet string) (bool, error) {
	ss, err := u.srv.Spreadsheets.Get(u.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("fetching spreadsheet: %w", err)
	}
	for _, sheet := range ss.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == worksheet {
			return true, nil
		}
	}
	return false, nil
}

// toValueRange converts string records to the Sheets API value shape.
func toValueRange(records [][]string) *sheetsv4.ValueRange {
	values := make([][]any, len(records))
	for i, record := range records {
		row := make([]any, len(record))
		for j, cell := range record {
			row[j] = cell
		}
		values[i] = row
	}
	return &sheetsv4.ValueRange{Values: values}
}
