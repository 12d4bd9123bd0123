package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"watchlist-compare/logger"
	"watchlist-compare/models"
)

const maxSheetNameLength = 100

// Writer exports comparison results to Google Sheets
type Writer struct {
	service       *sheets.Service
	spreadsheetID string
	log           logger.Logger
}

// NewWriter creates a new Google Sheets writer from a service account file,
// or from GOOGLE_SHEETS_CREDENTIALS when credentialsPath is empty
func NewWriter(ctx context.Context, spreadsheetID, credentialsPath string, log logger.Logger) (*Writer, error) {
	credsJSON, err := readCredentials(credentialsPath)
	if err != nil {
		return nil, err
	}

	var creds map[string]interface{}
	if err := json.Unmarshal(credsJSON, &creds); err != nil {
		return nil, fmt.Errorf("invalid credentials JSON (check if JSON is properly formatted): %w", err)
	}
	if creds["type"] != "service_account" {
		return nil, fmt.Errorf("credentials must be a service account JSON file (type: service_account), got type: %v", creds["type"])
	}

	return newWriter(ctx, spreadsheetID, log, option.WithCredentialsJSON(credsJSON))
}

func newWriter(ctx context.Context, spreadsheetID string, log logger.Logger, opts ...option.ClientOption) (*Writer, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, fmt.Errorf("spreadsheet ID is empty")
	}
	if log == nil {
		log = logger.NewNop()
	}

	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Writer{
		service:       service,
		spreadsheetID: spreadsheetID,
		log:           log,
	}, nil
}

func readCredentials(credentialsPath string) ([]byte, error) {
	if credentialsPath != "" {
		credsJSON, err := os.ReadFile(credentialsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		return credsJSON, nil
	}

	credsEnv := strings.TrimSpace(os.Getenv("GOOGLE_SHEETS_CREDENTIALS"))
	if credsEnv == "" {
		return nil, fmt.Errorf("credentials not found: GOOGLE_SHEETS_CREDENTIALS environment variable is empty or not set")
	}
	return []byte(credsEnv), nil
}

// SheetURL returns the browser link to one sheet of the spreadsheet
func (w *Writer) SheetURL(sheetID int64) string {
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit#gid=%d", w.spreadsheetID, sheetID)
}

// CreateSheetAndWriteFilms creates a new sheet at the front of the spreadsheet
// and writes the shared films of usernames to it.
// Returns the sheet name and sheet ID (gid) that was created.
func (w *Writer) CreateSheetAndWriteFilms(ctx context.Context, sheetName string, films []models.Film, usernames []string) (string, int64, error) {
	sheetName = sanitizeSheetName(sheetName)

	batchUpdateRequest := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{
						Title: sheetName,
						Index: 0,
						// Index 0 is the zero value and would be dropped from the request
						ForceSendFields: []string{"Index"},
					},
				},
			},
		},
	}

	batchUpdateResp, err := w.service.Spreadsheets.BatchUpdate(w.spreadsheetID, batchUpdateRequest).Context(ctx).Do()
	if err != nil {
		return "", 0, fmt.Errorf("failed to create sheet: %w", err)
	}

	var sheetID int64
	if len(batchUpdateResp.Replies) > 0 && batchUpdateResp.Replies[0].AddSheet != nil {
		sheetID = batchUpdateResp.Replies[0].AddSheet.Properties.SheetId
	}
	w.log.Info("Created sheet", logger.String("sheet", sheetName), logger.Int64("sheet_id", sheetID))

	valueRange := &sheets.ValueRange{
		Values: filmRows(films, usernames, time.Now().UTC()),
	}
	_, err = w.service.Spreadsheets.Values.Update(w.spreadsheetID, fmt.Sprintf("'%s'!A1", sheetName), valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return "", 0, fmt.Errorf("failed to write to sheet: %w", err)
	}

	w.log.Info("Wrote films to sheet", logger.String("sheet", sheetName), logger.Int("films", len(films)))
	return sheetName, sheetID, nil
}

// filmRows lays out the sheet: a metadata row, a header row, one row per film
func filmRows(films []models.Film, usernames []string, at time.Time) [][]interface{} {
	values := [][]interface{}{
		{"Users", strings.Join(usernames, ", "), "Compared at", at.Format(time.RFC3339), "Common films", len(films)},
		{"#", "Title", "Link", "Poster"},
	}
	for i, f := range films {
		values = append(values, []interface{}{i + 1, f.Title, f.Link, f.Poster})
	}
	return values
}

// SheetNameFor builds the default sheet name for a comparison
func SheetNameFor(usernames []string, at time.Time) string {
	return fmt.Sprintf("%s %s", strings.Join(usernames, " vs "), at.Format("2006-01-02 15:04"))
}

// sanitizeSheetName removes invalid characters from sheet name
func sanitizeSheetName(name string) string {
	// Google Sheets sheet names cannot contain: / \ ? * [ ] '
	invalidChars := []string{"/", "\\", "?", "*", "[", "]", "'"}
	result := name
	for _, char := range invalidChars {
		result = strings.ReplaceAll(result, char, "_")
	}
	result = strings.TrimSpace(result)
	if result == "" {
		result = "Sheet1"
	}
	if r := []rune(result); len(r) > maxSheetNameLength {
		result = string(r[:maxSheetNameLength])
	}
	return result
}

// ExtractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL.
// A bare ID is returned unchanged.
func ExtractSpreadsheetID(url string) string {
	// https://docs.google.com/spreadsheets/d/SPREADSHEET_ID/edit?usp=sharing
	parts := strings.Split(url, "/d/")
	if len(parts) < 2 {
		if strings.Contains(url, "/") {
			return ""
		}
		return strings.TrimSpace(url)
	}

	idPart := parts[1]
	if idx := strings.Index(idPart, "/"); idx != -1 {
		idPart = idPart[:idx]
	}
	if idx := strings.Index(idPart, "?"); idx != -1 {
		idPart = idPart[:idx]
	}

	return strings.TrimSpace(idPart)
}
