// Package claims holds the wire types shared between the transport layer,
// the session store, and the UI. Field names and JSON tags mirror the
// adjudication service's API exactly.
package claims

// Decision values returned by the adjudication service. PENDING is not a
// terminal outcome: it means the claim is held for human review.
const (
	DecisionApproved       = "APPROVED"
	DecisionRejected       = "REJECTED"
	DecisionPartial        = "PARTIALLY APPROVED"
	DecisionPending        = "PENDING"
	DecisionActionRequired = "ACTION REQUIRED"

	// DecisionError never comes from the service. The client synthesizes it
	// for assistant messages describing a request-fatal failure.
	DecisionError = "ERROR"
)

// ExtractedDocument is OCR-extracted (or user-supplied) claim form data.
type ExtractedDocument struct {
	MemberID          string   `json:"member_id"`
	PatientName       string   `json:"patient_name"`
	FormType          string   `json:"form_type,omitempty"`
	TreatmentType     string   `json:"treatment_type"`
	TreatmentDate     string   `json:"treatment_date"`
	PractitionerName  string   `json:"practitioner_name"`
	TotalCost         float64  `json:"total_cost"`
	SignaturePresent  bool     `json:"signature_present"`
	ProcedureCode     *int     `json:"procedure_code,omitempty"`
	ClinicalIndicator string   `json:"clinical_indicator,omitempty"`
	HospitalDays      *int     `json:"hospital_days,omitempty"`
	IsAccident        *bool    `json:"is_accident,omitempty"`
	SolicitorInvolved *bool    `json:"solicitor_involved,omitempty"`
}

// Request is the claim submission body. The same shape is sent as the first
// WebSocket frame and as the fallback POST body.
type Request struct {
	Message       string             `json:"message"`
	MemberID      string             `json:"member_id"`
	UserContext   map[string]any     `json:"user_context,omitempty"`
	ExtractedDoc  *ExtractedDocument `json:"extracted_document_data,omitempty"`
	CorrelationID string             `json:"session_id,omitempty"`
}

// Result is the terminal outcome of one claim request, identical for the
// streaming result frame and the fallback response body.
type Result struct {
	Decision      string   `json:"decision"`
	Reasoning     string   `json:"reasoning"`
	AgentTrace    []string `json:"agent_trace"`
	PayoutAmount  float64  `json:"payout_amount"`
	Flags         []string `json:"flags"`
	NeedsInfo     []string `json:"needs_info"`
	CorrelationID string   `json:"session_id,omitempty"`
}

// Rejected reports whether the decision is the rejection outcome.
func Rejected(decision string) bool {
	return decision == DecisionRejected
}

// Terminal reports whether the decision closes the claim. PENDING means the
// claim is still in review; an empty decision means no request has finished.
func Terminal(decision string) bool {
	switch decision {
	case DecisionApproved, DecisionRejected, DecisionPartial, DecisionActionRequired, DecisionError:
		return true
	}
	return false
}
