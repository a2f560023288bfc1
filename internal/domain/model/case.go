package model

// CaseType classifies a finding produced by the case configuration.
type CaseType string

const (
	CaseTypeNormal      CaseType = "Normal"
	CaseTypeInfo        CaseType = "Info"
	CaseTypeError       CaseType = "Error"
	CaseTypeWarning     CaseType = "Warning"
	CaseTypeIncident    CaseType = "Incident"
	CaseTypeSuccess     CaseType = "Success"
	CaseTypeLoss        CaseType = "Loss"
	CaseTypeDiscrepancy CaseType = "Discrepancy"
	CaseTypeDuplicate   CaseType = "Duplicate"
)

// Valid returns true for a known case type.
func (t CaseType) Valid() bool {
	switch t {
	case CaseTypeNormal, CaseTypeInfo, CaseTypeError, CaseTypeWarning,
		CaseTypeIncident, CaseTypeSuccess, CaseTypeLoss,
		CaseTypeDiscrepancy, CaseTypeDuplicate:
		return true
	}
	return false
}

// Case is one entry of the case configuration list.
type Case struct {
	ID          int64    `json:"case_id"`
	Value       string   `json:"case_value"`
	Type        CaseType `json:"case_type"`
	Description string   `json:"case_description,omitempty"`
}
