package submission

import (
	"encoding/json"
	"time"
)

// Record is an accepted submission as stored.
type Record struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	WizardID    string          `json:"wizard_id"`
	Payload     json.RawMessage `json:"payload"`
	SubmittedAt time.Time       `json:"submitted_at"`
}
