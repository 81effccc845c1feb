package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/LuisaMG01/course-vectorization/engine/domain"
	"github.com/google/uuid"
)

// RecommendationLog writes
// (:Vacancy {key, name})-[:RECOMMENDED {rank, score, at}]->(:Course {id}).
type RecommendationLog struct {
	opener SessionOpener
	now    func() time.Time
}

// NewRecommendationLog creates a log on top of opener.
func NewRecommendationLog(opener SessionOpener) *RecommendationLog {
	return &RecommendationLog{opener: opener, now: time.Now}
}

// VacancyKey identifies a vacancy by its normalised text so repeated
// queries for the same vacancy land on one node.
func VacancyKey(v domain.Vacancy) string {
	text := strings.ToLower(v.Text())
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(text)).String()
}

// run executes one statement and drains its result so server-side
// errors surface here.
func (l *RecommendationLog) run(ctx context.Context, op, cypher string, params map[string]any) error {
	sess := l.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return fmt.Errorf("graph: %s: %w", op, err)
	}
	for res.Next(ctx) {
	}
	if err := res.Err(); err != nil {
		return fmt.Errorf("graph: %s: %w", op, err)
	}
	return nil
}

// EnsureSchema creates the uniqueness constraints used by MERGE.
func (l *RecommendationLog) EnsureSchema(ctx context.Context) error {
	for _, cypher := range []string{
		`CREATE CONSTRAINT vacancy_key IF NOT EXISTS FOR (v:Vacancy) REQUIRE v.key IS UNIQUE`,
		`CREATE CONSTRAINT course_id IF NOT EXISTS FOR (c:Course) REQUIRE c.id IS UNIQUE`,
	} {
		if err := l.run(ctx, "ensure schema", cypher, nil); err != nil {
			return err
		}
	}
	return nil
}

// RecordRecommendation stores one served recommendation list.
func (l *RecommendationLog) RecordRecommendation(ctx context.Context, v domain.Vacancy, matches []domain.Match) error {
	rows := make([]map[string]any, len(matches))
	for i, m := range matches {
		rows[i] = map[string]any{"id": m.ID, "rank": int64(i + 1), "score": float64(m.Score)}
	}
	return l.run(ctx, "record recommendation", `
		MERGE (v:Vacancy {key: $key})
		SET v.name = $name, v.description = $description
		WITH v
		UNWIND $matches AS m
		MERGE (c:Course {id: m.id})
		CREATE (v)-[:RECOMMENDED {rank: m.rank, score: m.score, at: $at}]->(c)`,
		map[string]any{
			"key":         VacancyKey(v),
			"name":        strings.TrimSpace(v.Name),
			"description": strings.TrimSpace(v.Description),
			"matches":     rows,
			"at":          l.now().UTC(),
		})
}

// ForgetCourse removes a course node and its relationships.
func (l *RecommendationLog) ForgetCourse(ctx context.Context, id string) error {
	return l.run(ctx, "forget course",
		`MATCH (c:Course {id: $id}) DETACH DELETE c`,
		map[string]any{"id": id})
}

// ForgetAllCourses removes every course node and its relationships.
// Vacancy nodes are kept.
func (l *RecommendationLog) ForgetAllCourses(ctx context.Context) error {
	return l.run(ctx, "forget all courses", `MATCH (c:Course) DETACH DELETE c`, nil)
}

// CourseCount is how often a course has been recommended.
type CourseCount struct {
	ID    string `json:"id"`
	Count int64  `json:"count"`
}

// MostRecommended returns the courses recommended most often.
func (l *RecommendationLog) MostRecommended(ctx context.Context, limit int) ([]CourseCount, error) {
	if limit <= 0 {
		limit = 10
	}
	sess := l.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, `
		MATCH (:Vacancy)-[r:RECOMMENDED]->(c:Course)
		RETURN c.id AS id, count(r) AS count
		ORDER BY count DESC, id ASC
		LIMIT $limit`,
		map[string]any{"limit": int64(limit)})
	if err != nil {
		return nil, fmt.Errorf("graph: most recommended: %w", err)
	}

	out := []CourseCount{}
	for res.Next(ctx) {
		rec := res.Record()
		id, _ := rec.Get("id")
		cnt, _ := rec.Get("count")
		s, _ := id.(string)
		n, _ := cnt.(int64)
		out = append(out, CourseCount{ID: s, Count: n})
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("graph: most recommended: %w", err)
	}
	return out, nil
}
