// Package google writes exported expenses to Google Sheets.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	gauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"usos/internal/sheets"
)

var _ sheets.RowWriter = (*Client)(nil)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// CredentialsOption loads service account credentials from inline JSON or
// from a file, inline taking precedence
func CredentialsOption(ctx context.Context, file, inline string) (goption.ClientOption, error) {
	var data []byte
	switch {
	case strings.TrimSpace(inline) != "":
		data = []byte(inline)
	case strings.TrimSpace(file) != "":
		var err error
		data, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	creds, err := gauth.CredentialsFromJSON(ctx, data, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	return goption.WithCredentials(creds), nil
}

// New creates a Sheets client appending to sheetName of spreadsheetID
func New(ctx context.Context, spreadsheetID, sheetName string, opts ...goption.ClientOption) (*Client, error) {
	if spreadsheetID == "" {
		return nil, sheets.ErrNotConfigured
	}
	if sheetName == "" {
		sheetName = "Expenses"
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}, nil
}

// Append adds the row after the last filled row and returns the updated range
func (c *Client) Append(ctx context.Context, row sheets.Row) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:F", c.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{row.Values()}}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to append to sheet %s: %w", c.sheetName, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}
