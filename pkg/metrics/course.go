package metrics

import "time"

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var recommendationBuckets = []float64{0, 1, 5, 10, 25, 50, 100}

// Course is the metric set of the course recommender. A nil *Course
// records nothing.
type Course struct {
	reg *Registry
}

// NewCourse returns the course metric set backed by reg.
func NewCourse(reg *Registry) *Course {
	return &Course{reg: reg}
}

// Observe records one service operation with its outcome and duration.
func (c *Course) Observe(op string, start time.Time, err error) {
	if c == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	c.reg.Counter(WithLabels("course_operations_total", "op", op, "outcome", outcome),
		"Service operations by name and outcome.").Inc()
	c.reg.Histogram(WithLabels("course_operation_duration_seconds", "op", op),
		"Service operation latency.", nil).Since(start)
}

// BatchItems counts processed and failed batch items.
func (c *Course) BatchItems(ok, failed int) {
	if c == nil {
		return
	}
	const help = "Batch load items by outcome."
	c.reg.Counter(WithLabels("course_batch_items_total", "outcome", OutcomeOK), help).Add(int64(ok))
	c.reg.Counter(WithLabels("course_batch_items_total", "outcome", OutcomeError), help).Add(int64(failed))
}

// Recommended records how many courses one recommendation returned.
func (c *Course) Recommended(n int) {
	if c == nil {
		return
	}
	c.reg.Histogram("course_recommendation_size",
		"Courses returned per recommendation.", recommendationBuckets).Observe(float64(n))
}
