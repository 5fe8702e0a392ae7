package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// NormalizedAppointment is the platform-agnostic snapshot of an appointment.
// All identifiers are strings: Dentalink/Medilink use numeric ids, Reservo
// uses UUIDs. Adapters are the only place that knows the source field names.
type NormalizedAppointment struct {
	PatientID        string `json:"id_paciente"`
	PatientName      string `json:"nombre_paciente"`
	PatientLegalName string `json:"nombre_social_paciente,omitempty"`
	PatientTaxID     string `json:"rut_paciente,omitempty"`
	PatientEmail     string `json:"email_paciente,omitempty"`
	PatientPhone     string `json:"telefono_paciente,omitempty"`
	TreatmentID      string `json:"id_tratamiento"`
	TreatmentName    string `json:"nombre_tratamiento"`
	Date             string `json:"fecha"`       // YYYY-MM-DD
	StartTime        string `json:"hora_inicio"` // HH:mm:ss
	EndTime          string `json:"hora_fin"`
	DurationMinutes  int    `json:"duracion"`
	PractitionerID   string `json:"id_dentista"`
	PractitionerName string `json:"nombre_dentista"`
	BranchID         string `json:"id_sucursal"`
	BranchName       string `json:"nombre_sucursal"`
	StateID          string `json:"id_estado"`
	StateLabel       string `json:"estado_cita"`
	VisitReason      string `json:"motivo_atencion,omitempty"`
	Comments         string `json:"comentarios,omitempty"`
}

// Value serializes the snapshot to JSON for storage.
func (a NormalizedAppointment) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan deserializes the snapshot from its stored JSON form.
func (a *NormalizedAppointment) Scan(value interface{}) error {
	if value == nil {
		*a = NormalizedAppointment{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for NormalizedAppointment", value)
	}

	return json.Unmarshal(data, a)
}
