package domain

// ValidationResult reports the outcome of checking a fused ranking.
// Errors mark a broken result the caller should not use; warnings mark a
// surprising but usable one.
type ValidationResult struct {
	// Errors lists blocking problems.
	Errors []string `json:"errors"`

	// Warnings lists non-blocking observations.
	Warnings []string `json:"warnings"`
}

// NewValidationResult returns an empty, valid result.
func NewValidationResult() ValidationResult {
	return ValidationResult{
		Errors:   make([]string, 0),
		Warnings: make([]string, 0),
	}
}

// IsValid reports whether no blocking errors were found.
func (r ValidationResult) IsValid() bool { return len(r.Errors) == 0 }

// AddError appends a blocking error.
func (r *ValidationResult) AddError(msg string) { r.Errors = append(r.Errors, msg) }

// AddWarning appends a non-blocking warning.
func (r *ValidationResult) AddWarning(msg string) { r.Warnings = append(r.Warnings, msg) }

// Merge folds other into r, preserving order.
func (r *ValidationResult) Merge(other ValidationResult) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}
