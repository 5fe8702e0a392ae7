package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"bookys-sync/internal/model"
)

const DefaultReservoBaseURL = "https://reservo.cl/APIpublica/v2"

// Reservo appointment state codes. Only NC appointments are candidates for
// confirmation; waiting-list and suspended appointments are never notified.
const (
	reservoStateNotConfirmed = "NC"
	reservoStateConfirmed    = "C"
)

// ReservoAdapter talks to the Reservo booking platform.
type ReservoAdapter struct {
	BaseURL string
	HTTP    *http.Client
}

// NewReservoAdapter creates the adapter against the production Reservo API.
func NewReservoAdapter() *ReservoAdapter {
	return &ReservoAdapter{
		BaseURL: DefaultReservoBaseURL,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Platform implements Adapter.
func (a *ReservoAdapter) Platform() string {
	return model.PlatformReservo
}

type reservoAppointment struct {
	UUID     string `json:"uuid"`
	Start    string `json:"inicio"` // ISO 8601, UTC
	End      string `json:"fin"`
	TimeZone string `json:"zona_horaria"`
	Comment  string `json:"comentario"`
	State    struct {
		Code        string `json:"codigo"`
		Description string `json:"descripcion"`
	} `json:"estado"`
	Patient *struct {
		UUID           string `json:"uuid"`
		Identifier     string `json:"identificador"`
		Name           string `json:"nombre"`
		PaternalName   string `json:"apellido_paterno"`
		Phone1         string `json:"telefono_1"`
		Phone2         string `json:"telefono_2"`
		Mail           string `json:"mail"`
	} `json:"cliente"`
	Professional *struct {
		UUID string `json:"uuid"`
		Name string `json:"nombre"`
	} `json:"profesional"`
	Branch *struct {
		UUID string `json:"uuid"`
		Name string `json:"nombre"`
	} `json:"sucursal"`
	Treatments []struct {
		UUID string `json:"uuid"`
		Name string `json:"nombre"`
	} `json:"tratamientos"`
}

type reservoPage struct {
	Results  []reservoAppointment `json:"resultados"`
	NextPage *int                 `json:"pagina_siguiente"`
}

func (a *ReservoAdapter) apiToken(tenant *model.Tenant) (string, error) {
	integ := tenant.Integration(model.PlatformReservo)
	if integ == nil || integ.APIKey == "" {
		return "", fmt.Errorf("tenant %s has no Reservo integration", tenant.ID)
	}
	token := integ.APIKey
	if !strings.HasPrefix(token, "Token ") {
		token = "Token " + token
	}
	return token, nil
}

// FetchAppointments implements Adapter. Reservo returns UTC timestamps, so
// date, start/end time and duration are derived after converting to the
// appointment's timezone (falling back to the tenant's).
func (a *ReservoAdapter) FetchAppointments(
	ctx context.Context,
	tenant *model.Tenant,
	config *model.ConfirmationConfig,
	appointmentDate string,
	timezone string,
) ([]FetchedAppointment, error) {
	token, err := a.apiToken(tenant)
	if err != nil {
		return nil, err
	}

	appointments, err := a.appointmentsByDateRange(ctx, token, appointmentDate, appointmentDate)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Reservo appointments: %w", err)
	}
	logrus.Infof("[Reservo] %d appointments fetched for %s", len(appointments), appointmentDate)

	fetched := make([]FetchedAppointment, 0, len(appointments))
	for _, apt := range appointments {
		if apt.State.Code != reservoStateNotConfirmed {
			continue
		}

		normalized, err := a.normalize(apt, timezone)
		if err != nil {
			logrus.Errorf("[Reservo] Failed to normalize appointment %s: %v", apt.UUID, err)
			continue
		}

		fetched = append(fetched, FetchedAppointment{
			PlatformAppointmentID: apt.UUID,
			AppointmentData:       normalized,
		})
	}

	logrus.Infof("[Reservo] %d appointments in NC state", len(fetched))
	return fetched, nil
}

func (a *ReservoAdapter) normalize(apt reservoAppointment, fallbackTZ string) (model.NormalizedAppointment, error) {
	tzName := apt.TimeZone
	if tzName == "" {
		tzName = fallbackTZ
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return model.NormalizedAppointment{}, fmt.Errorf("unknown timezone %q: %w", tzName, err)
	}

	start, err := time.Parse(time.RFC3339, apt.Start)
	if err != nil {
		return model.NormalizedAppointment{}, fmt.Errorf("bad start time %q: %w", apt.Start, err)
	}
	end, err := time.Parse(time.RFC3339, apt.End)
	if err != nil {
		return model.NormalizedAppointment{}, fmt.Errorf("bad end time %q: %w", apt.End, err)
	}

	localStart := start.In(loc)
	localEnd := end.In(loc)

	normalized := model.NormalizedAppointment{
		Date:            localStart.Format("2006-01-02"),
		StartTime:       localStart.Format("15:04:05"),
		EndTime:         localEnd.Format("15:04:05"),
		DurationMinutes: int(localEnd.Sub(localStart) / time.Minute),
		StateID:         apt.State.Code,
		StateLabel:      apt.State.Description,
		Comments:        apt.Comment,
		PatientName:     "Sin paciente",
		TreatmentName:   "Sin tratamiento",
	}
	if normalized.StateLabel == "" {
		normalized.StateLabel = "No Confirmado"
	}

	if p := apt.Patient; p != nil {
		normalized.PatientID = p.UUID
		normalized.PatientName = strings.TrimSpace(p.Name + " " + p.PaternalName)
		normalized.PatientLegalName = p.Name
		normalized.PatientTaxID = p.Identifier
		normalized.PatientEmail = p.Mail
		normalized.PatientPhone = p.Phone1
		if normalized.PatientPhone == "" {
			normalized.PatientPhone = p.Phone2
		}
	}

	if pr := apt.Professional; pr != nil {
		normalized.PractitionerID = pr.UUID
		normalized.PractitionerName = pr.Name
	} else {
		normalized.PractitionerName = "Sin profesional"
	}

	if b := apt.Branch; b != nil {
		normalized.BranchID = b.UUID
		normalized.BranchName = b.Name
	} else {
		normalized.BranchName = "Sin sucursal"
	}

	if len(apt.Treatments) > 0 {
		normalized.TreatmentID = apt.Treatments[0].UUID
		names := make([]string, 0, len(apt.Treatments))
		for _, t := range apt.Treatments {
			names = append(names, t.Name)
		}
		normalized.TreatmentName = strings.Join(names, ", ")
	}

	return normalized, nil
}

func (a *ReservoAdapter) appointmentsByDateRange(ctx context.Context, token, from, to string) ([]reservoAppointment, error) {
	var all []reservoAppointment

	// The citas endpoint is paginated; 50 pages is a safety limit.
	for page := 1; page <= 50; page++ {
		endpoint := fmt.Sprintf("%s/citas/?fecha_inicial=%s&fecha_final=%s&pagina=%d", a.BaseURL, from, to, page)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", token)
		req.Header.Set("accept", "application/json")

		resp, err := a.HTTP.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			resp.Body.Close()
			return nil, fmt.Errorf("reservo returned %d: %s", resp.StatusCode, string(data))
		}

		var paginated reservoPage
		err = json.NewDecoder(resp.Body).Decode(&paginated)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode reservo page %d: %w", page, err)
		}

		all = append(all, paginated.Results...)
		if paginated.NextPage == nil {
			break
		}
	}

	return all, nil
}

// ConfirmAppointment implements Adapter by moving the appointment to the
// fixed "C" state. The numeric stateID is ignored; Reservo uses string codes.
func (a *ReservoAdapter) ConfirmAppointment(
	ctx context.Context,
	tenant *model.Tenant,
	platformAppointmentID string,
	stateID int,
) error {
	token, err := a.apiToken(tenant)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]string{
		"uuid":          platformAppointmentID,
		"estado_codigo": reservoStateConfirmed,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, a.BaseURL+"/citas/", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to confirm Reservo appointment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("reservo confirm returned %d: %s", resp.StatusCode, string(data))
	}

	logrus.Infof("[Reservo] Appointment %s confirmed", platformAppointmentID)
	return nil
}
