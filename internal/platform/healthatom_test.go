package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookys-sync/internal/model"
)

func newDentalinkTenant(apiKey string) *model.Tenant {
	return &model.Tenant{
		ID: "t1",
		Integrations: []model.TenantIntegration{
			{IntegrationType: model.PlatformDentalink, IsEnabled: true, APIKey: apiKey},
		},
	}
}

func stateFilter(r *http.Request) int {
	var filter struct {
		StateID struct {
			Eq int `json:"eq"`
		} `json:"id_estado"`
	}
	if err := json.Unmarshal([]byte(r.URL.Query().Get("q")), &filter); err != nil {
		return -1
	}
	return filter.StateID.Eq
}

func TestHealthAtomFetchIsolatesFailingStates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))

		if strings.HasPrefix(r.URL.Path, "/pacientes/") {
			fmt.Fprint(w, `{"data":{"email":"ana@example.com","celular":"","telefono":"+56911111111","rut":"11.111.111-1"}}`)
			return
		}

		switch stateFilter(r) {
		case 7:
			fmt.Fprint(w, `{"data":[{"id":100,"id_paciente":55,"nombre_paciente":"Ana Rojas","fecha":"2026-09-01","hora_inicio":"10:00:00","hora_fin":"10:30:00","duracion":30,"id_estado":7}]}`)
		case 3:
			w.WriteHeader(http.StatusInternalServerError)
		default:
			fmt.Fprint(w, `{"data":[]}`)
		}
	}))
	defer server.Close()

	adapter := NewHealthAtomAdapter()
	adapter.DentalinkBaseURL = server.URL + "/"

	config := &model.ConfirmationConfig{AppointmentStates: "7,3"}
	fetched, err := adapter.FetchAppointments(context.Background(), newDentalinkTenant("secret"), config, "2026-09-01", "America/Santiago")
	require.NoError(t, err)
	require.Len(t, fetched, 1)

	apt := fetched[0]
	assert.Equal(t, "100", apt.PlatformAppointmentID)
	assert.Equal(t, "ana@example.com", apt.AppointmentData.PatientEmail)
	// Landline backs up a missing cellphone
	assert.Equal(t, "+56911111111", apt.AppointmentData.PatientPhone)
	assert.Equal(t, "11.111.111-1", apt.AppointmentData.PatientTaxID)
}

func TestHealthAtomFetchDegradesOnPatientFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/pacientes/") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":100,"id_paciente":55,"nombre_paciente":"Ana Rojas","id_estado":7}]}`)
	}))
	defer server.Close()

	adapter := NewHealthAtomAdapter()
	adapter.DentalinkBaseURL = server.URL + "/"

	config := &model.ConfirmationConfig{AppointmentStates: "7"}
	fetched, err := adapter.FetchAppointments(context.Background(), newDentalinkTenant("secret"), config, "2026-09-01", "America/Santiago")
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	assert.Empty(t, fetched[0].AppointmentData.PatientEmail)
	assert.Empty(t, fetched[0].AppointmentData.PatientPhone)
	assert.Equal(t, "Ana Rojas", fetched[0].AppointmentData.PatientName)
}

func TestConfirmAppointmentFallsThroughToMedilink(t *testing.T) {
	var medilinkPut bool

	dentalink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer dentalink.Close()

	medilink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			var payload map[string]int
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, 12, payload["id_estado"])
			medilinkPut = true
		}
		fmt.Fprint(w, `{"data":{"id":100}}`)
	}))
	defer medilink.Close()

	adapter := NewHealthAtomAdapter()
	adapter.DentalinkBaseURL = dentalink.URL + "/"
	adapter.MedilinkBaseURL = medilink.URL + "/"

	tenant := &model.Tenant{
		ID: "t1",
		Integrations: []model.TenantIntegration{
			{IntegrationType: model.PlatformDentalinkMedilink, IsEnabled: true, APIKey: "secret"},
		},
	}

	err := adapter.ConfirmAppointment(context.Background(), tenant, "100", 12)
	require.NoError(t, err)
	assert.True(t, medilinkPut)
}

func TestConfirmAppointmentNotFoundAnywhere(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	adapter := NewHealthAtomAdapter()
	adapter.DentalinkBaseURL = server.URL + "/"

	err := adapter.ConfirmAppointment(context.Background(), newDentalinkTenant("secret"), "100", 12)
	assert.Error(t, err)
}

func TestConfirmAppointmentSkipsZeroState(t *testing.T) {
	adapter := NewHealthAtomAdapter()
	// No server: the call must not go out at all
	adapter.DentalinkBaseURL = "http://127.0.0.1:1/"

	err := adapter.ConfirmAppointment(context.Background(), newDentalinkTenant("secret"), "100", 0)
	assert.NoError(t, err)
}

func TestAppointmentStatesDedupAcrossAPIs(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":7,"nombre":"No Confirmado","habilitado":1},{"id":9,"nombre":"Anulada","habilitado":0}]}`)
	}
	dentalink := httptest.NewServer(http.HandlerFunc(handler))
	defer dentalink.Close()
	medilink := httptest.NewServer(http.HandlerFunc(handler))
	defer medilink.Close()

	adapter := NewHealthAtomAdapter()
	adapter.DentalinkBaseURL = dentalink.URL + "/"
	adapter.MedilinkBaseURL = medilink.URL + "/"

	tenant := &model.Tenant{
		ID: "t1",
		Integrations: []model.TenantIntegration{
			{IntegrationType: model.PlatformDentalinkMedilink, IsEnabled: true, APIKey: "secret"},
		},
	}

	states, err := adapter.AppointmentStates(context.Background(), tenant)
	require.NoError(t, err)
	// Disabled states dropped, duplicates across APIs collapsed
	require.Len(t, states, 1)
	assert.Equal(t, 7, states[0].ID)
}
