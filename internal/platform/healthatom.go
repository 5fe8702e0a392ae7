package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"bookys-sync/internal/model"
)

const (
	DefaultDentalinkBaseURL = "https://api.dentalink.healthatom.com/api/v1/"
	DefaultMedilinkBaseURL  = "https://api.medilink2.healthatom.com/api/v5/"
)

// HealthAtomAdapter talks to the HealthAtom clinical platforms. It serves
// plain Dentalink tenants and dual dentalink_medilink tenants; in dual mode
// state push-back is attempted on both APIs because the appointment's home
// API is not known in advance.
type HealthAtomAdapter struct {
	DentalinkBaseURL string
	MedilinkBaseURL  string
	HTTP             *http.Client
}

// NewHealthAtomAdapter creates the adapter against the production HealthAtom APIs.
func NewHealthAtomAdapter() *HealthAtomAdapter {
	return &HealthAtomAdapter{
		DentalinkBaseURL: DefaultDentalinkBaseURL,
		MedilinkBaseURL:  DefaultMedilinkBaseURL,
		HTTP:             &http.Client{Timeout: 25 * time.Second},
	}
}

// Platform implements Adapter.
func (a *HealthAtomAdapter) Platform() string {
	return model.PlatformDentalink
}

// healthAtomAppointment is the raw Dentalink/Medilink appointment payload.
type healthAtomAppointment struct {
	ID               int    `json:"id"`
	PatientID        int    `json:"id_paciente"`
	PatientName      string `json:"nombre_paciente"`
	PatientLegalName string `json:"nombre_social_paciente"`
	TreatmentID      int    `json:"id_tratamiento"`
	TreatmentName    string `json:"nombre_tratamiento"`
	Date             string `json:"fecha"`
	StartTime        string `json:"hora_inicio"`
	EndTime          string `json:"hora_fin"`
	Duration         int    `json:"duracion"`
	DentistID        int    `json:"id_dentista"`
	DentistName      string `json:"nombre_dentista"`
	BranchID         int    `json:"id_sucursal"`
	BranchName       string `json:"nombre_sucursal"`
	StateID          int    `json:"id_estado"`
	StateLabel       string `json:"estado_cita"`
	VisitReason      string `json:"motivo_atencion"`
	Comments         string `json:"comentarios"`
}

type healthAtomPatient struct {
	Email     string `json:"email"`
	Cellphone string `json:"celular"`
	Phone     string `json:"telefono"`
	TaxID     string `json:"rut"`
}

// AppointmentState is a source appointment state as exposed by HealthAtom.
type AppointmentState struct {
	ID          int    `json:"id"`
	Name        string `json:"nombre"`
	Enabled     int    `json:"habilitado"`
	InternalUse int    `json:"uso_interno"`
}

func (a *HealthAtomAdapter) apiKey(tenant *model.Tenant) string {
	for _, t := range []string{model.PlatformDentalinkMedilink, model.PlatformDentalink} {
		if integ := tenant.Integration(t); integ != nil && integ.APIKey != "" {
			return integ.APIKey
		}
	}
	return tenant.APIKey
}

// baseURLs returns the APIs to try for a tenant, Dentalink first.
func (a *HealthAtomAdapter) baseURLs(tenant *model.Tenant) []string {
	if tenant.HasIntegration(model.PlatformDentalinkMedilink) {
		return []string{a.DentalinkBaseURL, a.MedilinkBaseURL}
	}
	return []string{a.DentalinkBaseURL}
}

// FetchAppointments implements Adapter. The HealthAtom filter syntax has no
// multi-value operator, so one request is issued per configured state id;
// a failing state is skipped, not fatal.
func (a *HealthAtomAdapter) FetchAppointments(
	ctx context.Context,
	tenant *model.Tenant,
	config *model.ConfirmationConfig,
	appointmentDate string,
	timezone string,
) ([]FetchedAppointment, error) {
	apiKey := a.apiKey(tenant)
	stateIDs := config.StateIDs()

	logrus.Infof("[Dentalink] Filtering appointments on %s by states %v", appointmentDate, stateIDs)

	type sourced struct {
		apt     healthAtomAppointment
		baseURL string
	}

	var appointments []sourced
	seen := make(map[int]bool)

	for _, baseURL := range a.baseURLs(tenant) {
		for _, stateID := range stateIDs {
			filter, err := json.Marshal(map[string]interface{}{
				"fecha":     map[string]string{"eq": appointmentDate},
				"id_estado": map[string]int{"eq": stateID},
			})
			if err != nil {
				return nil, fmt.Errorf("failed to encode appointment filter: %w", err)
			}

			var page struct {
				Data []healthAtomAppointment `json:"data"`
			}
			endpoint := baseURL + "citas?q=" + url.QueryEscape(string(filter))
			if err := a.get(ctx, endpoint, apiKey, &page); err != nil {
				logrus.Errorf("[Dentalink] Failed to fetch appointments with state %d: %v", stateID, err)
				continue
			}

			logrus.Infof("[Dentalink] %d appointments with state %d", len(page.Data), stateID)
			for _, apt := range page.Data {
				if seen[apt.ID] {
					continue
				}
				seen[apt.ID] = true
				appointments = append(appointments, sourced{apt: apt, baseURL: baseURL})
			}
		}
	}

	fetched := make([]FetchedAppointment, 0, len(appointments))
	for _, src := range appointments {
		apt := src.apt
		email, phone, taxID := a.patientContact(ctx, src.baseURL, apiKey, apt.PatientID)

		fetched = append(fetched, FetchedAppointment{
			PlatformAppointmentID: strconv.Itoa(apt.ID),
			AppointmentData: model.NormalizedAppointment{
				PatientID:        strconv.Itoa(apt.PatientID),
				PatientName:      apt.PatientName,
				PatientLegalName: apt.PatientLegalName,
				PatientTaxID:     taxID,
				PatientEmail:     email,
				PatientPhone:     phone,
				TreatmentID:      strconv.Itoa(apt.TreatmentID),
				TreatmentName:    apt.TreatmentName,
				Date:             apt.Date,
				StartTime:        apt.StartTime,
				EndTime:          apt.EndTime,
				DurationMinutes:  apt.Duration,
				PractitionerID:   strconv.Itoa(apt.DentistID),
				PractitionerName: apt.DentistName,
				BranchID:         strconv.Itoa(apt.BranchID),
				BranchName:       apt.BranchName,
				StateID:          strconv.Itoa(apt.StateID),
				StateLabel:       apt.StateLabel,
				VisitReason:      apt.VisitReason,
				Comments:         apt.Comments,
			},
		})
	}

	logrus.Infof("[Dentalink] Total appointments fetched: %d", len(fetched))
	return fetched, nil
}

// patientContact enriches an appointment with the patient's contact details.
// Failures degrade to empty fields rather than dropping the appointment.
func (a *HealthAtomAdapter) patientContact(ctx context.Context, baseURL, apiKey string, patientID int) (email, phone, taxID string) {
	var resp struct {
		Data healthAtomPatient `json:"data"`
	}
	endpoint := fmt.Sprintf("%spacientes/%d", baseURL, patientID)
	if err := a.get(ctx, endpoint, apiKey, &resp); err != nil {
		logrus.Warnf("[Dentalink] Failed to fetch patient %d: %v", patientID, err)
		return "", "", ""
	}

	phone = resp.Data.Cellphone
	if phone == "" {
		phone = resp.Data.Phone
	}
	return resp.Data.Email, phone, resp.Data.TaxID
}

// ConfirmAppointment implements Adapter. Dual tenants may hold the
// appointment on either API, so each is tried until one accepts the update;
// a 404 means "not on this API" and falls through to the next.
func (a *HealthAtomAdapter) ConfirmAppointment(
	ctx context.Context,
	tenant *model.Tenant,
	platformAppointmentID string,
	stateID int,
) error {
	if stateID == 0 {
		return nil
	}

	appointmentID, err := strconv.Atoi(platformAppointmentID)
	if err != nil {
		logrus.Warnf("[Dentalink] Non-numeric appointment id %q, skipping state update", platformAppointmentID)
		return nil
	}

	apiKey := a.apiKey(tenant)
	var lastErr error

	for _, baseURL := range a.baseURLs(tenant) {
		endpoint := fmt.Sprintf("%scitas/%d", baseURL, appointmentID)

		var existing struct {
			Data healthAtomAppointment `json:"data"`
		}
		if err := a.get(ctx, endpoint, apiKey, &existing); err != nil {
			if isNotFound(err) {
				continue
			}
			lastErr = err
			continue
		}

		if err := a.put(ctx, endpoint, apiKey, map[string]int{"id_estado": stateID}); err != nil {
			if isNotFound(err) {
				continue
			}
			lastErr = err
			continue
		}

		logrus.Infof("[Dentalink] Appointment %d updated to state %d", appointmentID, stateID)
		return nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("appointment %d not found on any HealthAtom API", appointmentID)
	}
	return lastErr
}

// AppointmentStates lists the source appointment states across the tenant's
// HealthAtom APIs, deduplicated by id and filtered to enabled ones.
func (a *HealthAtomAdapter) AppointmentStates(ctx context.Context, tenant *model.Tenant) ([]AppointmentState, error) {
	apiKey := a.apiKey(tenant)

	var all []AppointmentState
	seen := make(map[int]bool)

	for _, baseURL := range a.baseURLs(tenant) {
		var resp struct {
			Data []AppointmentState `json:"data"`
		}
		if err := a.get(ctx, baseURL+"citas/estados", apiKey, &resp); err != nil {
			logrus.Warnf("[Dentalink] Failed to fetch appointment states from %s: %v", baseURL, err)
			continue
		}

		for _, state := range resp.Data {
			if state.Enabled == 1 && !seen[state.ID] {
				seen[state.ID] = true
				all = append(all, state)
			}
		}
	}

	if len(all) == 0 {
		return nil, fmt.Errorf("no appointment states available from any HealthAtom API")
	}
	return all, nil
}

// CreateAppointmentState creates a custom source state, trying each of the
// tenant's APIs until one accepts it.
func (a *HealthAtomAdapter) CreateAppointmentState(ctx context.Context, tenant *model.Tenant, name, color string) (*AppointmentState, error) {
	apiKey := a.apiKey(tenant)
	payload := map[string]interface{}{
		"nombre":    name,
		"color":     color,
		"anulacion": 0,
	}

	var lastErr error
	for _, baseURL := range a.baseURLs(tenant) {
		var resp struct {
			Data AppointmentState `json:"data"`
		}
		if err := a.post(ctx, baseURL+"citas/estados", apiKey, payload, &resp); err != nil {
			logrus.Errorf("[Dentalink] Failed to create state %q on %s: %v", name, baseURL, err)
			lastErr = err
			continue
		}

		logrus.Infof("[Dentalink] State %q created with id %d", name, resp.Data.ID)
		return &resp.Data, nil
	}

	return nil, fmt.Errorf("failed to create appointment state %q: %w", name, lastErr)
}

// notFoundError marks a 404 from the HealthAtom APIs so dual-mode callers
// can fall through to the other API.
type notFoundError struct{ endpoint string }

func (e *notFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.endpoint)
}

func isNotFound(err error) bool {
	_, ok := err.(*notFoundError)
	return ok
}

func (a *HealthAtomAdapter) get(ctx context.Context, endpoint, apiKey string, out interface{}) error {
	return a.do(ctx, http.MethodGet, endpoint, apiKey, nil, out)
}

func (a *HealthAtomAdapter) put(ctx context.Context, endpoint, apiKey string, payload interface{}) error {
	return a.do(ctx, http.MethodPut, endpoint, apiKey, payload, nil)
}

func (a *HealthAtomAdapter) post(ctx context.Context, endpoint, apiKey string, payload, out interface{}) error {
	return a.do(ctx, http.MethodPost, endpoint, apiKey, payload, out)
}

func (a *HealthAtomAdapter) do(ctx context.Context, method, endpoint, apiKey string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &notFoundError{endpoint: endpoint}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s %s returned %d: %s", method, endpoint, resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}
