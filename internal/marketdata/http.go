package marketdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout is the HTTP timeout used when a provider is built without one.
const DefaultTimeout = 25 * time.Second

// APIError represents an API error with status code and response body
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Body)
}

// getJSON performs a GET request and decodes a JSON response into out.
// Non-2xx responses are returned as *APIError.
func getJSON(ctx context.Context, client *http.Client, endpoint string, header http.Header, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.WithError(err).Debug("Failed to close response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)) // 64KB cap to avoid huge payloads
		if err != nil {
			return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("GET %s -> failed to read error body", endpoint)}
		}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("GET %s -> %s (retry-after: %s)", endpoint, strings.TrimSpace(string(body)), ra)}
		}
		return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("GET %s -> %s", endpoint, strings.TrimSpace(string(body)))}
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

// flexString decodes a JSON string, or keeps the raw text of any other
// value such as a bare number. Null leaves it empty.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] != '"' {
		*f = flexString(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*f = flexString(s)
	return nil
}

// flexFloat decodes a JSON number or numeric string. Blank strings, "--"
// and null leave it unset.
type flexFloat struct {
	v *float64
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
	}
	if s == "" || s == "--" || s == "-" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		// Malformed values are absent rather than fatal to the whole payload.
		return nil
	}
	v := d.InexactFloat64()
	f.v = &v
	return nil
}

// Ptr returns the decoded value or nil.
func (f flexFloat) Ptr() *float64 {
	return f.v
}
