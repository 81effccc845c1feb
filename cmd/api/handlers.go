package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/LuisaMG01/course-vectorization/engine/course"
	"github.com/LuisaMG01/course-vectorization/engine/domain"
	"github.com/LuisaMG01/course-vectorization/pkg/metrics"
)

// Courses is the part of course.Service the handlers call.
type Courses interface {
	LoadCourse(ctx context.Context, in domain.CourseInput) (string, error)
	LoadCourses(ctx context.Context, batch []domain.CourseInput) course.BatchResult
	Recommend(ctx context.Context, v domain.Vacancy, limit int) ([]domain.Match, error)
	GetCourses(ctx context.Context, ids []string) ([]course.Lookup, error)
	DeleteCourse(ctx context.Context, id string) error
	DeleteAllCourses(ctx context.Context) (int, error)
}

const (
	pingMessage        = "Course Recommender API is running."
	missingBodyMessage = "Missing request data"
)

// routes registers every endpoint on a new mux.
func routes(svc Courses, reg *metrics.Registry, logger *slog.Logger) *http.ServeMux {
	h := &handlers{svc: svc, logger: logger}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", handlePing)
	mux.HandleFunc("GET /recommend", h.recommend)
	mux.HandleFunc("POST /recommend", h.recommend)
	mux.HandleFunc("POST /load-course", h.loadCourse)
	mux.HandleFunc("POST /load-courses", h.loadCourses)
	mux.HandleFunc("GET /get-courses", h.getCourses)
	mux.HandleFunc("POST /get-courses", h.getCourses)
	mux.HandleFunc("DELETE /delete-course", h.deleteCourse)
	mux.HandleFunc("DELETE /delete-all-courses", h.deleteAllCourses)
	if reg != nil {
		mux.Handle("GET /metrics", reg.Handler())
	}
	return mux
}

type handlers struct {
	svc    Courses
	logger *slog.Logger
}

func handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, pingMessage)
}

// --- Request / response bodies ---

// RecommendRequest is the body of POST /recommend. GET takes the same
// fields from the query string.
type RecommendRequest struct {
	domain.Vacancy
	Limit         int  `json:"limit,omitempty"`
	IncludeScores bool `json:"include_scores,omitempty"`
}

// RecommendResponse lists recommended course IDs, best first.
type RecommendResponse struct {
	Recommendations []string       `json:"recommendations"`
	Matches         []domain.Match `json:"matches,omitempty"`
}

// LoadCourseResponse is returned by POST /load-course.
type LoadCourseResponse struct {
	Message  string `json:"message"`
	CourseID string `json:"course_id"`
}

// LoadCoursesRequest is the body of POST /load-courses.
type LoadCoursesRequest struct {
	Courses *[]domain.CourseInput `json:"courses"`
}

// LoadCoursesResponse is returned by POST /load-courses.
type LoadCoursesResponse struct {
	Message        string             `json:"message"`
	ProcessedCount int                `json:"processed_courses_count"`
	FailedCount    int                `json:"failed_courses_count"`
	ProcessedIDs   []string           `json:"processed_course_ids"`
	Errors         []course.ItemError `json:"errors,omitempty"`
}

// GetCoursesRequest is the body of GET/POST /get-courses.
type GetCoursesRequest struct {
	IDs []string `json:"id_courses"`
}

// CourseEntry is one element of GetCoursesResponse: the course when found,
// otherwise the ID with an error message.
type CourseEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Error       string `json:"error,omitempty"`
}

// GetCoursesResponse is returned by /get-courses.
type GetCoursesResponse struct {
	Courses []CourseEntry `json:"courses"`
}

// DeleteCourseRequest is the body of DELETE /delete-course.
type DeleteCourseRequest struct {
	PointID string `json:"point_id"`
}

// MessageResponse carries a human-readable outcome.
type MessageResponse struct {
	Message      string `json:"message"`
	DeletedCount *int   `json:"deleted_count,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// --- Handlers ---

func (h *handlers) recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req.Name = q.Get("vacant_name")
		req.Description = q.Get("vacant_description")
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "limit must be an integer")
				return
			}
			req.Limit = n
		}
		req.IncludeScores, _ = strconv.ParseBool(q.Get("include_scores"))
	} else if !h.decode(w, r, &req) {
		return
	}

	matches, err := h.svc.Recommend(r.Context(), req.Vacancy, req.Limit)
	if err != nil {
		if domain.KindOf(err) == domain.KindValidation {
			writeError(w, http.StatusBadRequest, "Name and description for vacancy is not provided.")
			return
		}
		h.fail(w, err)
		return
	}

	resp := RecommendResponse{Recommendations: make([]string, len(matches))}
	for i, m := range matches {
		resp.Recommendations[i] = m.ID
	}
	if req.IncludeScores {
		resp.Matches = matches
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) loadCourse(w http.ResponseWriter, r *http.Request) {
	var in domain.CourseInput
	if !h.decode(w, r, &in) {
		return
	}
	id, err := h.svc.LoadCourse(r.Context(), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, LoadCourseResponse{Message: "Course saved successfully.", CourseID: id})
}

func (h *handlers) loadCourses(w http.ResponseWriter, r *http.Request) {
	var req LoadCoursesRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Courses == nil {
		writeError(w, http.StatusBadRequest, "Missing data or 'courses' key is not provided.")
		return
	}

	res := h.svc.LoadCourses(r.Context(), *req.Courses)
	h.logger.Info("courses processed", "processed", len(res.Processed), "total", len(*req.Courses))

	status := http.StatusCreated
	if res.Partial() {
		status = http.StatusPartialContent
	}
	writeJSON(w, status, LoadCoursesResponse{
		Message:        "Course processing completed",
		ProcessedCount: len(res.Processed),
		FailedCount:    res.Failed(),
		ProcessedIDs:   res.Processed,
		Errors:         res.Errors,
	})
}

func (h *handlers) getCourses(w http.ResponseWriter, r *http.Request) {
	var req GetCoursesRequest
	if v := r.URL.Query().Get("id_courses"); v != "" {
		req.IDs = strings.Split(v, ",")
	} else if hasBody(r) && !h.decode(w, r, &req) {
		return
	}
	// An explicit empty list is a valid request with nothing to look up;
	// only a missing key is rejected.
	if req.IDs != nil && len(req.IDs) == 0 {
		writeJSON(w, http.StatusOK, GetCoursesResponse{Courses: []CourseEntry{}})
		return
	}

	lookups, err := h.svc.GetCourses(r.Context(), req.IDs)
	if err != nil {
		if domain.KindOf(err) == domain.KindValidation {
			writeError(w, http.StatusBadRequest, "Missing 'id_courses' in the request parameters")
			return
		}
		h.fail(w, err)
		return
	}

	resp := GetCoursesResponse{Courses: make([]CourseEntry, len(lookups))}
	for i, l := range lookups {
		if !l.Found {
			resp.Courses[i] = CourseEntry{ID: l.ID, Error: fmt.Sprintf("Course with ID %s not found.", l.ID)}
			continue
		}
		resp.Courses[i] = CourseEntry{ID: l.Course.ID, Name: l.Course.Name, Description: l.Course.Description}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) deleteCourse(w http.ResponseWriter, r *http.Request) {
	var req DeleteCourseRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.DeleteCourse(r.Context(), req.PointID); err != nil {
		if domain.KindOf(err) == domain.KindValidation {
			writeError(w, http.StatusBadRequest, "Missing 'point_id' in the request parameters")
			return
		}
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("Course with ID %s deleted successfully.", strings.TrimSpace(req.PointID)),
	})
}

func (h *handlers) deleteAllCourses(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.DeleteAllCourses(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{
		Message:      "All courses have been deleted successfully.",
		DeletedCount: &n,
	})
}

// --- Helpers ---

// decode reads a JSON body into v and answers 400 (413 past the body
// limit) when it cannot. It reports whether the handler may go on.
func (h *handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, io.EOF):
		writeError(w, http.StatusBadRequest, missingBodyMessage)
	default:
		writeError(w, http.StatusBadRequest, "invalid request body")
	}
	return false
}

// fail maps a service error to its status code.
func (h *handlers) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "kind", domain.KindOf(err).String(), "err", err)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func hasBody(r *http.Request) bool {
	return r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
