package services

import (
	"errors"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/zatekoja/caremarket/backend/internal/domain/entities"
)

// ValidationResult explains why a draft was rejected. Reasons maps field to the failed rule.
type ValidationResult struct {
	Valid   bool
	Reasons map[string]string
}

// String renders the reasons as "Field:rule" pairs in field order
func (r ValidationResult) String() string {
	if r.Valid {
		return "valid"
	}
	fields := make([]string, 0, len(r.Reasons))
	for field := range r.Reasons {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+":"+r.Reasons[field])
	}
	return strings.Join(parts, ",")
}

// DraftValidator gates drafts before reconciliation. Rejection is an outcome, not an error.
type DraftValidator struct {
	validate *validator.Validate
}

// NewDraftValidator creates a validator with the facility rules registered
func NewDraftValidator() *DraftValidator {
	v := validator.New()
	_ = v.RegisterValidation("not_placeholder", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != entities.PlaceholderFacilityName
	})
	return &DraftValidator{validate: v}
}

// Validate checks name, coordinates, city and province. The draft is not modified.
func (v *DraftValidator) Validate(draft *entities.FacilityDraft) ValidationResult {
	if draft == nil {
		return ValidationResult{Reasons: map[string]string{"Draft": "required"}}
	}

	err := v.validate.Struct(draft)
	if err == nil {
		return ValidationResult{Valid: true}
	}

	reasons := map[string]string{}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, ve := range validationErrors {
			reasons[ve.Field()] = ve.Tag()
		}
	} else {
		reasons["Draft"] = err.Error()
	}
	return ValidationResult{Reasons: reasons}
}
