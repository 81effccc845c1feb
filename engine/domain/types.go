// Package domain defines the course and vacancy types shared by the
// retrieval pipeline, the validation gate in front of it, and the typed
// error kinds the API boundary maps to status codes.
package domain

import "strings"

// TextSeparator joins a name and a description into the text that gets
// embedded. Courses and vacancies use the same convention so that their
// vectors are comparable.
const TextSeparator = ". "

// Payload keys stored next to each vector.
const (
	PayloadCourseID    = "course_id"
	PayloadName        = "name"
	PayloadDescription = "description"
)

// Course is a course record as returned to callers.
type Course struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CourseInput is a course submitted for loading. ID is optional.
type CourseInput struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Text returns the embedding text for the course.
func (c CourseInput) Text() string {
	return JoinText(c.Name, c.Description)
}

// Payload returns the flat payload stored alongside the course vector.
func (c CourseInput) Payload() map[string]string {
	return map[string]string{
		PayloadCourseID:    c.ID,
		PayloadName:        strings.TrimSpace(c.Name),
		PayloadDescription: strings.TrimSpace(c.Description),
	}
}

// CourseFromPayload rebuilds a Course from a stored payload. fallbackID is
// used when the payload predates the course_id key.
func CourseFromPayload(fallbackID string, payload map[string]string) Course {
	id := payload[PayloadCourseID]
	if id == "" {
		id = fallbackID
	}
	return Course{
		ID:          id,
		Name:        payload[PayloadName],
		Description: payload[PayloadDescription],
	}
}

// Vacancy is a job vacancy used as a recommendation query.
type Vacancy struct {
	Name        string `json:"vacant_name"`
	Description string `json:"vacant_description"`
}

// Text returns the embedding text for the vacancy.
func (v Vacancy) Text() string {
	return JoinText(v.Name, v.Description)
}

// Match is a ranked recommendation.
type Match struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
}

// JoinText builds "name. description" from trimmed parts.
func JoinText(name, description string) string {
	return strings.TrimSpace(name) + TextSeparator + strings.TrimSpace(description)
}
