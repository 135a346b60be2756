package app

import (
	"strings"
	"unicode/utf8"

	"biz_dashboard/internal/domain"
)

const minFieldLen = 2

var fieldLabels = map[string]string{
	domain.FieldName:     "Business name",
	domain.FieldLocation: "Location",
}

// Validate checks both form fields after trimming. An empty result means valid.
func Validate(name, location string) domain.FieldErrors {
	errs := domain.FieldErrors{}
	checkField(errs, domain.FieldName, name)
	checkField(errs, domain.FieldLocation, location)
	return errs
}

func checkField(errs domain.FieldErrors, field, value string) {
	v := strings.TrimSpace(value)
	label := fieldLabels[field]
	switch {
	case v == "":
		errs[field] = domain.FieldError{Field: field, Code: domain.Required, Message: label + " is required"}
	case utf8.RuneCountInString(v) < minFieldLen:
		errs[field] = domain.FieldError{Field: field, Code: domain.TooShort, Message: label + " must be at least 2 characters"}
	}
}
