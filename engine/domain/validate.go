package domain

import "strings"

// ValidateCourse checks that a course carries a name and a description.
func ValidateCourse(op string, c CourseInput) error {
	if strings.TrimSpace(c.Name) == "" {
		return NewValidationError(op, "name", ErrRequired)
	}
	if strings.TrimSpace(c.Description) == "" {
		return NewValidationError(op, "description", ErrRequired)
	}
	return nil
}

// ValidateVacancy checks that a vacancy carries a name and a description.
func ValidateVacancy(op string, v Vacancy) error {
	if strings.TrimSpace(v.Name) == "" {
		return NewValidationError(op, "vacant_name", ErrRequired)
	}
	if strings.TrimSpace(v.Description) == "" {
		return NewValidationError(op, "vacant_description", ErrRequired)
	}
	return nil
}

// ValidateID checks that an identifier is non-empty.
func ValidateID(op, field, id string) error {
	if strings.TrimSpace(id) == "" {
		return NewValidationError(op, field, ErrRequired)
	}
	return nil
}
