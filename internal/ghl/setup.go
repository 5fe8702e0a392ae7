package ghl

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// CustomFieldDefinition describes one contact custom field the confirmation
// workflow depends on.
type CustomFieldDefinition struct {
	Name        string
	DataType    string
	Placeholder string
}

// RequiredCustomFields is the set of contact custom fields every synced
// location must have before confirmations can run.
var RequiredCustomFields = []CustomFieldDefinition{
	{Name: "id_cita", DataType: "TEXT", Placeholder: "Platform appointment id"},
	{Name: "hora_inicio", DataType: "TEXT", Placeholder: "Appointment start time (HH:mm:ss)"},
	{Name: "fecha", DataType: "TEXT", Placeholder: "Appointment date (YYYY-MM-DD)"},
	{Name: "nombre_dentista", DataType: "TEXT", Placeholder: "Practitioner name"},
	{Name: "nombre_paciente", DataType: "TEXT", Placeholder: "Patient name"},
	{Name: "id_paciente", DataType: "TEXT", Placeholder: "Patient id"},
	{Name: "id_sucursal", DataType: "TEXT", Placeholder: "Branch id"},
	{Name: "nombre_sucursal", DataType: "TEXT", Placeholder: "Branch name"},
	{Name: "rut", DataType: "TEXT", Placeholder: "Patient tax id"},
	{Name: "for_confirmation", DataType: "TEXT", Placeholder: "Awaiting confirmation (true/false)"},
}

// SetupResult summarizes an EnsureCustomFields run.
type SetupResult struct {
	Created  []string `json:"created"`
	Existing []string `json:"existing"`
	Errors   []string `json:"errors"`
}

type customFieldsResponse struct {
	CustomFields []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"customFields"`
}

func (c *Client) existingFieldNames(ctx context.Context, creds Credentials) (map[string]bool, error) {
	endpoint := fmt.Sprintf("/locations/%s/customFields?model=contact", creds.LocationID)

	var resp customFieldsResponse
	if err := c.doWithRetry(ctx, http.MethodGet, endpoint, c.headers(creds), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list custom fields: %w", err)
	}

	names := make(map[string]bool, len(resp.CustomFields))
	for _, f := range resp.CustomFields {
		names[strings.ToLower(f.Name)] = true
	}
	return names, nil
}

// EnsureCustomFields creates the required contact custom fields that are
// missing from the location. Per-field create errors are collected, not
// fatal to the rest of the run.
func (c *Client) EnsureCustomFields(ctx context.Context, creds Credentials) (*SetupResult, error) {
	logrus.Infof("Verifying GHL custom fields for location %s", creds.LocationID)

	existing, err := c.existingFieldNames(ctx, creds)
	if err != nil {
		return nil, err
	}

	result := &SetupResult{Created: []string{}, Existing: []string{}, Errors: []string{}}

	for _, def := range RequiredCustomFields {
		if existing[strings.ToLower(def.Name)] {
			result.Existing = append(result.Existing, def.Name)
			continue
		}

		payload := map[string]interface{}{
			"name":        def.Name,
			"dataType":    def.DataType,
			"model":       "contact",
			"placeholder": def.Placeholder,
			"position":    0,
		}
		endpoint := fmt.Sprintf("/locations/%s/customFields", creds.LocationID)

		if err := c.doWithRetry(ctx, http.MethodPost, endpoint, c.headers(creds), payload, nil); err != nil {
			logrus.Errorf("Failed to create custom field %q: %v", def.Name, err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", def.Name, err))
			continue
		}

		logrus.Infof("Custom field %q created", def.Name)
		result.Created = append(result.Created, def.Name)
	}

	return result, nil
}

// ValidateCustomFields reports which required custom fields are missing.
func (c *Client) ValidateCustomFields(ctx context.Context, creds Credentials) (valid bool, missing []string, err error) {
	existing, err := c.existingFieldNames(ctx, creds)
	if err != nil {
		return false, nil, err
	}

	missing = []string{}
	for _, def := range RequiredCustomFields {
		if !existing[strings.ToLower(def.Name)] {
			missing = append(missing, def.Name)
		}
	}
	return len(missing) == 0, missing, nil
}
