// Package course implements the course recommender use cases on top of an
// Embedder and a vector Index: loading courses, recommending courses for a
// vacancy, looking courses up and deleting them.
//
// The Service holds no state between calls; everything it knows lives in
// the index.
package course

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/LuisaMG01/course-vectorization/engine/domain"
	"github.com/LuisaMG01/course-vectorization/engine/embedding"
	"github.com/LuisaMG01/course-vectorization/engine/semantic"
	"github.com/LuisaMG01/course-vectorization/pkg/fn"
	"github.com/LuisaMG01/course-vectorization/pkg/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Operation names, used for error ops, spans and metric labels.
const (
	OpLoadCourse       = "load_course"
	OpLoadCourses      = "load_courses"
	OpRecommend        = "recommend"
	OpGetCourses       = "get_courses"
	OpDeleteCourse     = "delete_course"
	OpDeleteAllCourses = "delete_all_courses"
)

// RecommendationLog records served recommendations somewhere outside the
// index. Failures are logged by the Service and never reach the caller.
type RecommendationLog interface {
	RecordRecommendation(ctx context.Context, v domain.Vacancy, matches []domain.Match) error
	ForgetCourse(ctx context.Context, id string) error
	ForgetAllCourses(ctx context.Context) error
}

// Options configures the Service.
type Options struct {
	// DefaultLimit applies when Recommend is called with limit <= 0.
	DefaultLimit int
	// MaxLimit caps the limit accepted by Recommend.
	MaxLimit int
	// BatchWorkers bounds concurrent items in LoadCourses. 1 is sequential.
	BatchWorkers int
	// PageSize is the scroll page size of DeleteAllCourses.
	PageSize int
	// Log is optional.
	Log RecommendationLog
	// Metrics is optional.
	Metrics *metrics.Course
}

// DefaultOptions returns the default service options.
func DefaultOptions() Options {
	return Options{
		DefaultLimit: 5,
		MaxLimit:     100,
		BatchWorkers: 1,
		PageSize:     semantic.DefaultPageSize,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = d.DefaultLimit
	}
	if o.MaxLimit <= 0 {
		o.MaxLimit = d.MaxLimit
	}
	if o.DefaultLimit > o.MaxLimit {
		o.DefaultLimit = o.MaxLimit
	}
	if o.BatchWorkers <= 0 {
		o.BatchWorkers = d.BatchWorkers
	}
	if o.PageSize <= 0 {
		o.PageSize = d.PageSize
	}
	return o
}

// Service is the retrieval service.
type Service struct {
	emb    embedding.Embedder
	idx    semantic.Index
	opts   Options
	logger *slog.Logger
}

// New creates a Service. Zero option fields take their defaults.
func New(emb embedding.Embedder, idx semantic.Index, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{emb: emb, idx: idx, opts: opts.withDefaults(), logger: logger}
}

// Options returns the effective options.
func (s *Service) Options() Options { return s.opts }

// Initialize creates the collection with the embedder's dimension if it
// does not exist yet. An existing collection is used as is.
func (s *Service) Initialize(ctx context.Context) error {
	dims := s.emb.Dimensions()
	if err := s.idx.Initialize(ctx, dims); err != nil {
		return domain.Wrap(domain.KindIndexWrite, "initialize", err)
	}
	s.logger.Debug("course: collection ready; existing collections are not checked against the embedder",
		"dimensions", dims)
	return nil
}

// observe wraps one service operation in a span, a metric and an error log.
func observe[T any](ctx context.Context, s *Service, op string, f func(context.Context) (T, error), attrs ...attribute.KeyValue) (T, error) {
	start := time.Now()
	v, err := fn.Traced(ctx, "course."+op, f, attrs...)
	s.opts.Metrics.Observe(op, start, err)
	if err != nil && domain.KindOf(err) != domain.KindValidation {
		s.logger.Error("course: operation failed", "op", op, "kind", domain.KindOf(err).String(), "err", err)
	}
	return v, err
}

// LoadCourse validates, embeds and upserts one course and returns its ID.
// A blank ID is replaced with a random UUID.
func (s *Service) LoadCourse(ctx context.Context, in domain.CourseInput) (string, error) {
	return observe(ctx, s, OpLoadCourse, func(ctx context.Context) (string, error) {
		return s.loadCourse(ctx, OpLoadCourse, in)
	})
}

func (s *Service) loadCourse(ctx context.Context, op string, in domain.CourseInput) (string, error) {
	if err := domain.ValidateCourse(op, in); err != nil {
		return "", err
	}
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		in.ID = uuid.NewString()
	}

	vec, err := s.emb.Embed(ctx, in.Text())
	if err != nil {
		return "", domain.Wrap(domain.KindEmbedding, op, err)
	}
	rec := semantic.Record{ID: in.ID, Vector: vec, Payload: in.Payload()}
	if err := s.idx.Upsert(ctx, rec); err != nil {
		return "", domain.Wrap(domain.KindIndexWrite, op, err)
	}
	return in.ID, nil
}

// ItemError describes one failed item of a batch.
type ItemError struct {
	Index  int         `json:"index"`
	ID     string      `json:"id,omitempty"`
	Kind   domain.Kind `json:"-"`
	Reason string      `json:"error"`
}

// BatchResult is the outcome of LoadCourses.
type BatchResult struct {
	Processed []string
	Errors    []ItemError
}

// Failed returns the number of failed items.
func (b BatchResult) Failed() int { return len(b.Errors) }

// Partial reports whether at least one item failed.
func (b BatchResult) Partial() bool { return len(b.Errors) > 0 }

// LoadCourses loads every item independently. A failing item is recorded
// in Errors and never stops the others. Processed keeps input order.
func (s *Service) LoadCourses(ctx context.Context, batch []domain.CourseInput) BatchResult {
	res, _ := observe(ctx, s, OpLoadCourses, func(ctx context.Context) (BatchResult, error) {
		results := fn.ParMapResult(batch, s.opts.BatchWorkers, func(_ int, in domain.CourseInput) fn.Result[string] {
			if err := ctx.Err(); err != nil {
				return fn.Err[string](domain.Wrap(domain.KindUnknown, OpLoadCourses, err))
			}
			return fn.FromPair(s.loadCourse(ctx, OpLoadCourses, in))
		})

		ids, failed := fn.Partition(results)
		out := BatchResult{Processed: ids, Errors: make([]ItemError, 0, len(failed))}
		if out.Processed == nil {
			out.Processed = []string{}
		}
		for _, i := range failed {
			_, err := results[i].Unwrap()
			out.Errors = append(out.Errors, ItemError{
				Index:  i,
				ID:     strings.TrimSpace(batch[i].ID),
				Kind:   domain.KindOf(err),
				Reason: err.Error(),
			})
			s.logger.Warn("course: batch item failed", "index", i, "id", batch[i].ID, "err", err)
		}
		s.opts.Metrics.BatchItems(len(out.Processed), len(out.Errors))
		return out, nil
	}, attribute.Int("batch.size", len(batch)))
	return res
}

// Recommend returns up to limit courses closest to the vacancy, best
// first. limit <= 0 means DefaultLimit; larger values are capped at
// MaxLimit.
func (s *Service) Recommend(ctx context.Context, v domain.Vacancy, limit int) ([]domain.Match, error) {
	limit = s.limit(limit)
	return observe(ctx, s, OpRecommend, func(ctx context.Context) ([]domain.Match, error) {
		if err := domain.ValidateVacancy(OpRecommend, v); err != nil {
			return nil, err
		}
		vec, err := s.emb.Embed(ctx, v.Text())
		if err != nil {
			return nil, domain.Wrap(domain.KindEmbedding, OpRecommend, err)
		}
		hits, err := s.idx.Search(ctx, vec, limit)
		if err != nil {
			return nil, domain.Wrap(domain.KindIndexRead, OpRecommend, err)
		}

		matches := make([]domain.Match, len(hits))
		for i, h := range hits {
			matches[i] = domain.Match{ID: h.ID, Score: h.Score}
		}
		s.opts.Metrics.Recommended(len(matches))
		if s.opts.Log != nil {
			if err := s.opts.Log.RecordRecommendation(ctx, v, matches); err != nil {
				s.logger.Warn("course: recording recommendation failed", "err", err)
			}
		}
		return matches, nil
	}, attribute.Int("limit", limit))
}

func (s *Service) limit(n int) int {
	if n <= 0 {
		return s.opts.DefaultLimit
	}
	return min(n, s.opts.MaxLimit)
}

// Lookup is the per-ID result of GetCourses.
type Lookup struct {
	ID     string
	Course domain.Course
	Found  bool
}

// GetCourses retrieves each ID. Missing IDs come back with Found false; a
// backend failure fails the whole call.
func (s *Service) GetCourses(ctx context.Context, ids []string) ([]Lookup, error) {
	return observe(ctx, s, OpGetCourses, func(ctx context.Context) ([]Lookup, error) {
		if len(ids) == 0 {
			return nil, domain.NewValidationError(OpGetCourses, "id_courses", domain.ErrEmptyBatch)
		}
		out := make([]Lookup, 0, len(ids))
		for _, id := range ids {
			id = strings.TrimSpace(id)
			if id == "" {
				out = append(out, Lookup{ID: id})
				continue
			}
			rec, ok, err := s.idx.Retrieve(ctx, id)
			if err != nil {
				return nil, domain.Wrap(domain.KindIndexRead, OpGetCourses, err)
			}
			if !ok {
				out = append(out, Lookup{ID: id})
				continue
			}
			out = append(out, Lookup{ID: id, Course: domain.CourseFromPayload(id, rec.Payload), Found: true})
		}
		return out, nil
	}, attribute.Int("ids", len(ids)))
}

// DeleteCourse removes a course. Deleting an unknown ID succeeds.
func (s *Service) DeleteCourse(ctx context.Context, id string) error {
	_, err := observe(ctx, s, OpDeleteCourse, func(ctx context.Context) (struct{}, error) {
		if err := domain.ValidateID(OpDeleteCourse, "point_id", id); err != nil {
			return struct{}{}, err
		}
		id = strings.TrimSpace(id)
		if err := s.idx.Delete(ctx, id); err != nil {
			return struct{}{}, domain.Wrap(domain.KindIndexWrite, OpDeleteCourse, err)
		}
		if s.opts.Log != nil {
			if err := s.opts.Log.ForgetCourse(ctx, id); err != nil {
				s.logger.Warn("course: forgetting course failed", "id", id, "err", err)
			}
		}
		return struct{}{}, nil
	})
	return err
}

// DeleteAllCourses deletes every course page by page and returns how many
// were deleted. It is not atomic: courses written concurrently may
// survive.
func (s *Service) DeleteAllCourses(ctx context.Context) (int, error) {
	return observe(ctx, s, OpDeleteAllCourses, func(ctx context.Context) (int, error) {
		n, err := semantic.DeleteAll(ctx, s.idx, s.opts.PageSize)
		if err != nil {
			kind := domain.KindIndexWrite
			if errors.Is(err, semantic.ErrRead) {
				kind = domain.KindIndexRead
			}
			return n, domain.Wrap(kind, OpDeleteAllCourses, err)
		}
		if s.opts.Log != nil {
			if err := s.opts.Log.ForgetAllCourses(ctx); err != nil {
				s.logger.Warn("course: forgetting all courses failed", "err", err)
			}
		}
		s.logger.Info("course: all courses deleted", "deleted", n)
		return n, nil
	})
}
