package ghl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"bookys-sync/internal/model"
)

const (
	DefaultBaseURL = "https://services.leadconnectorhq.com"

	// apiVersion is the GoHighLevel API version header value
	apiVersion = "2021-07-28"
)

// Credentials identify one tenant's GoHighLevel location.
type Credentials struct {
	AccessToken string
	LocationID  string
}

// APIError is a non-2xx response from GoHighLevel.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gohighlevel returned %d: %s", e.StatusCode, e.Body)
}

// IsRateLimit reports whether err is (or wraps) a 429 response. The
// confirmation engine treats these specially: they never consume the retry
// budget.
func IsRateLimit(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// Client is a minimal GoHighLevel API client covering contact resolution and
// custom-field updates. Requests hitting the rate limit are retried inline
// with exponential backoff before the 429 is surfaced to the caller.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	// Rate-limit retry policy: MaxRetries attempts, waiting
	// BackoffBase*2^attempt between them (2s, 4s with the defaults).
	MaxRetries  int
	BackoffBase time.Duration
}

// NewClient creates a client against the production GoHighLevel API.
func NewClient() *Client {
	return &Client{
		BaseURL:     DefaultBaseURL,
		HTTP:        &http.Client{Timeout: 30 * time.Second},
		MaxRetries:  3,
		BackoffBase: 2 * time.Second,
	}
}

func (c *Client) headers(creds Credentials) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+creds.AccessToken)
	h.Set("Content-Type", "application/json")
	h.Set("Version", apiVersion)
	return h
}

// doWithRetry issues the request, retrying only on 429 responses.
func (c *Client) doWithRetry(ctx context.Context, method, endpoint string, headers http.Header, payload interface{}, out interface{}) error {
	var lastErr error

	for attempt := 0; attempt < c.MaxRetries; attempt++ {
		err := c.do(ctx, method, endpoint, headers, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests && attempt < c.MaxRetries-1 {
			wait := c.BackoffBase << attempt
			logrus.Warnf("GHL rate limit (429), retrying in %v (attempt %d/%d)", wait, attempt+1, c.MaxRetries)
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		return err
	}

	return lastErr
}

func (c *Client) do(ctx context.Context, method, endpoint string, headers http.Header, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = headers

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("request to GHL failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read GHL response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode GHL response: %w", err)
	}
	return nil
}

type contactSearchResponse struct {
	Contacts []struct {
		ID string `json:"id"`
	} `json:"contacts"`
}

// searchContact queries the contact search endpoint with a single eq filter.
func (c *Client) searchContact(ctx context.Context, creds Credentials, field, value string) (string, error) {
	payload := map[string]interface{}{
		"locationId": creds.LocationID,
		"pageLimit":  20,
		"filters": []map[string]string{
			{"field": field, "operator": "eq", "value": value},
		},
	}

	var resp contactSearchResponse
	if err := c.doWithRetry(ctx, http.MethodPost, "/contacts/search", c.headers(creds), payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Contacts) == 0 {
		return "", nil
	}
	return resp.Contacts[0].ID, nil
}

// duplicateContactID extracts the existing contact id from a "duplicated
// contact" rejection. GHL reports the match in the error payload's meta
// block rather than returning the contact.
func duplicateContactID(err error) string {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return ""
	}

	var payload struct {
		Meta struct {
			ContactID string `json:"contactId"`
		} `json:"meta"`
	}
	if jsonErr := json.Unmarshal([]byte(apiErr.Body), &payload); jsonErr != nil {
		return ""
	}
	return payload.Meta.ContactID
}

// FindOrCreateContact resolves the CRM contact for an appointment's patient.
// Lookup order is deterministic: email, then phone, then create. Search
// failures are non-fatal and fall through to the next step; a duplicate
// rejection on create resolves to the existing contact id.
func (c *Client) FindOrCreateContact(ctx context.Context, creds Credentials, appt model.NormalizedAppointment) (string, error) {
	if appt.PatientEmail != "" {
		id, err := c.searchContact(ctx, creds, "email", appt.PatientEmail)
		if err != nil {
			if IsRateLimit(err) {
				return "", err
			}
			logrus.Warnf("GHL contact search by email failed: %v", err)
		} else if id != "" {
			logrus.Infof("GHL contact found by email: %s", id)
			return id, nil
		}
	}

	if appt.PatientPhone != "" {
		id, err := c.searchContact(ctx, creds, "phone", appt.PatientPhone)
		if err != nil {
			if IsRateLimit(err) {
				return "", err
			}
			logrus.Warnf("GHL contact search by phone failed: %v", err)
		} else if id != "" {
			logrus.Infof("GHL contact found by phone: %s", id)
			return id, nil
		}
	}

	nameParts := strings.Fields(appt.PatientName)
	firstName := appt.PatientName
	lastName := ""
	if len(nameParts) > 0 {
		firstName = nameParts[0]
		lastName = strings.Join(nameParts[1:], " ")
	}

	payload := map[string]interface{}{
		"locationId": creds.LocationID,
		"firstName":  firstName,
		"lastName":   lastName,
		"name":       appt.PatientName,
		"source":     "Bookys Confirmation",
	}
	if appt.PatientEmail != "" {
		payload["email"] = appt.PatientEmail
	}
	if appt.PatientPhone != "" {
		payload["phone"] = appt.PatientPhone
	}

	var resp struct {
		Contact struct {
			ID string `json:"id"`
		} `json:"contact"`
	}
	err := c.doWithRetry(ctx, http.MethodPost, "/contacts/", c.headers(creds), payload, &resp)
	if err != nil {
		if existingID := duplicateContactID(err); existingID != "" {
			logrus.Infof("GHL reported existing contact %s on create", existingID)
			return existingID, nil
		}
		return "", fmt.Errorf("failed to create GHL contact: %w", err)
	}

	if resp.Contact.ID == "" {
		return "", fmt.Errorf("GHL contact create returned no id")
	}
	logrus.Infof("GHL contact created: %s", resp.Contact.ID)
	return resp.Contact.ID, nil
}

// UpdateContactCustomFields pushes the appointment snapshot into the
// contact's custom fields, including the for_confirmation marker that arms
// the CRM workflow. Unlike the source-state push-back this is not
// best-effort: its failure fails the whole confirmation.
func (c *Client) UpdateContactCustomFields(ctx context.Context, creds Credentials, contactID, platformAppointmentID string, appt model.NormalizedAppointment) error {
	payload := map[string]interface{}{
		"customFields": []map[string]string{
			{"key": "id_cita", "field_value": platformAppointmentID},
			{"key": "hora_inicio", "field_value": appt.StartTime},
			{"key": "fecha", "field_value": appt.Date},
			{"key": "nombre_dentista", "field_value": appt.PractitionerName},
			{"key": "id_sucursal", "field_value": appt.BranchID},
			{"key": "nombre_sucursal", "field_value": appt.BranchName},
			{"key": "nombre_paciente", "field_value": appt.PatientName},
			{"key": "id_paciente", "field_value": appt.PatientID},
			{"key": "rut", "field_value": appt.PatientTaxID},
			{"key": "for_confirmation", "field_value": "true"},
		},
	}

	if err := c.doWithRetry(ctx, http.MethodPut, "/contacts/"+contactID, c.headers(creds), payload, nil); err != nil {
		return fmt.Errorf("failed to update contact custom fields: %w", err)
	}

	logrus.Infof("GHL custom fields updated for contact %s", contactID)
	return nil
}
