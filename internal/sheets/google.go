package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// ValuesClient reads and writes A1 ranges of one spreadsheet.
type ValuesClient interface {
	Get(ctx context.Context, rng string) ([][]string, error)
	Update(ctx context.Context, rng string, values [][]string) error
}

// Credentials of a Google service account.
type Credentials struct {
	Email      string
	PrivateKey string
}

// Configured reports whether both fields are set.
func (c Credentials) Configured() bool {
	return c.Email != "" && c.PrivateKey != ""
}

// GoogleValuesClient talks to the Sheets v4 API.
type GoogleValuesClient struct {
	spreadsheetID string
	values        *gsheets.SpreadsheetsValuesService
}

// NewGoogleValuesClient authenticates with a service-account JWT. Build it
// once at startup and share it.
func NewGoogleValuesClient(ctx context.Context, spreadsheetID string, creds Credentials) (*GoogleValuesClient, error) {
	if !creds.Configured() {
		return nil, errors.New("google service account credentials are not configured")
	}

	conf := &jwt.Config{
		Email: creds.Email,
		// Keys pasted into env files usually carry literal \n sequences.
		PrivateKey: []byte(strings.ReplaceAll(creds.PrivateKey, `\n`, "\n")),
		Scopes:     []string{gsheets.SpreadsheetsScope},
		TokenURL:   google.JWTTokenURL,
	}

	svc, err := gsheets.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &GoogleValuesClient{
		spreadsheetID: spreadsheetID,
		values:        svc.Spreadsheets.Values,
	}, nil
}

func (c *GoogleValuesClient) Get(ctx context.Context, rng string) ([][]string, error) {
	resp, err := c.values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read range %s: %w", rng, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			if cell != nil {
				row[i] = fmt.Sprint(cell)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *GoogleValuesClient) Update(ctx context.Context, rng string, values [][]string) error {
	body := &gsheets.ValueRange{Values: make([][]interface{}, 0, len(values))}
	for _, row := range values {
		cells := make([]interface{}, len(row))
		for i, v := range row {
			cells[i] = v
		}
		body.Values = append(body.Values, cells)
	}

	_, err := c.values.Update(c.spreadsheetID, rng, body).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update range %s: %w", rng, err)
	}
	return nil
}
