package ghl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookys-sync/internal/model"
)

func newTestClient(serverURL string) *Client {
	c := NewClient()
	c.BaseURL = serverURL
	c.BackoffBase = time.Millisecond
	return c
}

func testCreds() Credentials {
	return Credentials{AccessToken: "token", LocationID: "loc-1"}
}

func TestRetryOnRateLimitOnly(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"contacts":[{"id":"contact-1"}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	id, err := client.searchContact(context.Background(), testCreds(), "email", "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "contact-1", id)
	assert.Equal(t, 3, calls)
}

func TestRateLimitSurfacedAfterRetriesExhausted(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.searchContact(context.Background(), testCreds(), "email", "ana@example.com")
	require.Error(t, err)
	assert.True(t, IsRateLimit(err))
	assert.Equal(t, client.MaxRetries, calls)
}

func TestNoRetryOnOtherErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.searchContact(context.Background(), testCreds(), "email", "ana@example.com")
	require.Error(t, err)
	assert.False(t, IsRateLimit(err))
	assert.Equal(t, 1, calls)
}

func TestFindOrCreateContactPrefersEmailMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/contacts/search", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "2021-07-28", r.Header.Get("Version"))

		var payload struct {
			Filters []struct {
				Field string `json:"field"`
				Value string `json:"value"`
			} `json:"filters"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Len(t, payload.Filters, 1)
		assert.Equal(t, "email", payload.Filters[0].Field)

		fmt.Fprint(w, `{"contacts":[{"id":"by-email"}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	appt := model.NormalizedAppointment{
		PatientName:  "Ana Rojas",
		PatientEmail: "ana@example.com",
		PatientPhone: "+56911111111",
	}

	id, err := client.FindOrCreateContact(context.Background(), testCreds(), appt)
	require.NoError(t, err)
	assert.Equal(t, "by-email", id)
}

func TestFindOrCreateContactFallsBackToCreate(t *testing.T) {
	var created map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/contacts/search":
			fmt.Fprint(w, `{"contacts":[]}`)
		case "/contacts/":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			fmt.Fprint(w, `{"contact":{"id":"fresh"}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	appt := model.NormalizedAppointment{
		PatientName:  "Ana Maria Rojas",
		PatientEmail: "ana@example.com",
		PatientPhone: "+56911111111",
	}

	id, err := client.FindOrCreateContact(context.Background(), testCreds(), appt)
	require.NoError(t, err)
	assert.Equal(t, "fresh", id)
	assert.Equal(t, "Ana", created["firstName"])
	assert.Equal(t, "Maria Rojas", created["lastName"])
	assert.Equal(t, "loc-1", created["locationId"])
	assert.Equal(t, "Bookys Confirmation", created["source"])
}

func TestFindOrCreateContactResolvesDuplicateRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/contacts/search" {
			fmt.Fprint(w, `{"contacts":[]}`)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"This location does not allow duplicated contacts","meta":{"contactId":"existing-1"}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	appt := model.NormalizedAppointment{PatientName: "Ana Rojas", PatientEmail: "ana@example.com"}

	id, err := client.FindOrCreateContact(context.Background(), testCreds(), appt)
	require.NoError(t, err)
	assert.Equal(t, "existing-1", id)
}

func TestFindOrCreateContactRateLimitedSearchIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	appt := model.NormalizedAppointment{PatientName: "Ana Rojas", PatientEmail: "ana@example.com"}

	_, err := client.FindOrCreateContact(context.Background(), testCreds(), appt)
	require.Error(t, err)
	assert.True(t, IsRateLimit(err))
}

func TestUpdateContactCustomFields(t *testing.T) {
	var payload struct {
		CustomFields []struct {
			Key   string `json:"key"`
			Value string `json:"field_value"`
		} `json:"customFields"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/contacts/contact-1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	appt := model.NormalizedAppointment{
		Date:             "2026-09-01",
		StartTime:        "10:00:00",
		PatientID:        "55",
		PatientName:      "Ana Rojas",
		PatientTaxID:     "11.111.111-1",
		PractitionerName: "Dr. Soto",
		BranchID:         "2",
		BranchName:       "Centro",
	}

	err := client.UpdateContactCustomFields(context.Background(), testCreds(), "contact-1", "100", appt)
	require.NoError(t, err)

	fields := make(map[string]string)
	for _, f := range payload.CustomFields {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, "100", fields["id_cita"])
	assert.Equal(t, "2026-09-01", fields["fecha"])
	assert.Equal(t, "10:00:00", fields["hora_inicio"])
	assert.Equal(t, "Dr. Soto", fields["nombre_dentista"])
	assert.Equal(t, "true", fields["for_confirmation"])
	assert.Len(t, fields, 10)
}
