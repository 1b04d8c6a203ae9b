package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

type Client struct {
	service *sheets.Service
}

// NewClient authenticates with a service account. Inline JSON credentials
// win over the credentials file when both are given.
func NewClient(ctx context.Context, credentialsJSON, credentialsFile string) (*Client, error) {
	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	switch {
	case credentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	case credentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	return NewClientWithOptions(ctx, opts...)
}

// NewClientWithOptions builds a client from raw API options, e.g. a custom
// endpoint and HTTP client.
func NewClientWithOptions(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Client{
		service: service,
	}, nil
}

// ListTabs returns the titles of every tab in the spreadsheet.
func (c *Client) ListTabs(ctx context.Context, spreadsheetID string) ([]string, error) {
	resp, err := c.service.Spreadsheets.Get(spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list tabs: %w", err)
	}

	titles := make([]string, 0, len(resp.Sheets))
	for _, s := range resp.Sheets {
		if s.Properties != nil {
			titles = append(titles, s.Properties.Title)
		}
	}
	return titles, nil
}

func (c *Client) CreateTab(ctx context.Context, spreadsheetID, title string) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: title},
			},
		}},
	}

	_, err := c.service.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to create tab %q: %w", title, err)
	}

	log.Info().Str("tab", title).Msg("Created sheet tab")
	return nil
}

// ReadRange returns raw cell values, so numbers come back as numbers and
// survive being written back with WriteRange.
func (c *Client) ReadRange(ctx context.Context, spreadsheetID, range_ string) ([][]interface{}, error) {
	resp, err := c.service.Spreadsheets.Values.Get(spreadsheetID, range_).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read range: %w", err)
	}

	return resp.Values, nil
}

func (c *Client) ClearRange(ctx context.Context, spreadsheetID, range_ string) error {
	_, err := c.service.Spreadsheets.Values.Clear(spreadsheetID, range_, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to clear range: %w", err)
	}

	return nil
}

// WriteRange overwrites values starting at the range's top-left cell.
// Values are stored as given, without formula or number parsing.
func (c *Client) WriteRange(ctx context.Context, spreadsheetID, range_ string, values [][]interface{}) error {
	valueRange := &sheets.ValueRange{
		Values: values,
	}

	_, err := c.service.Spreadsheets.Values.Update(spreadsheetID, range_, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update range: %w", err)
	}

	return nil
}

// IsNoData reports whether err is the 400 the Sheets API returns when a
// read targets a tab with nothing in it yet.
func IsNoData(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest
}
