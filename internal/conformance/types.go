package conformance

// CaseResult is what one case produced. Hex fields use FormatHex.
type CaseResult struct {
	Name    string `json:"name"`
	Bytes   string `json:"bytes,omitempty"`
	Key     string `json:"key,omitempty"`
	KeyHash string `json:"keyhash,omitempty"`
	// Value is the decoded value in value.Format form.
	Value string `json:"value,omitempty"`
	// Error is the codec error code, if the case failed in the codec.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every case met its expectations.
	Pass     bool         `json:"pass"`
	Scenario string       `json:"scenario"`
	Type     string       `json:"type"`
	TypeID   string       `json:"type_id"`
	Cases    []CaseResult `json:"cases"`
	Errors   []string     `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult(scenario string) *Result {
	return &Result{
		Pass:     true,
		Scenario: scenario,
		Cases:    []CaseResult{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
