package importers

import "fmt"

// ImportResult is the terminal artifact of one pipeline run. Callers always
// get one back; failures are reported through Success and Errors.
type ImportResult struct {
	Success        bool     `json:"success"`
	EntityID       uint     `json:"entity_id,omitempty"`
	EntityType     string   `json:"entity_type,omitempty"`
	Extractor      string   `json:"extractor,omitempty"`
	RunID          string   `json:"run_id,omitempty"`
	StepsImported  int      `json:"steps_imported"`
	ImagesImported int      `json:"images_imported"`
	ImagesSkipped  int      `json:"images_skipped"`
	Errors         []string `json:"errors,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// Failed builds a failed result with the given error messages.
func Failed(errs ...string) ImportResult {
	return ImportResult{Success: false, Errors: errs}
}

// AddError records an error message.
func (r *ImportResult) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// AddWarning records a warning message.
func (r *ImportResult) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}
