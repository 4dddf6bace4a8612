package metamorphic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// QueryFunc answers a question.
type QueryFunc func(ctx context.Context, query string) (string, error)

// Outcome is one relation applied to one question.
type Outcome struct {
	Relation    string
	Description string
	Query       string
	Answer      string
	Valid       bool
	Err         error
}

// Result is a full run over one question.
type Result struct {
	Query    string
	Answer   string
	Outcomes []Outcome
	Passed   []string
	Failed   []string
	// Score is the share of relations that passed.
	Score float64
}

// Failure is a rewrite whose answer broke its relation.
type Failure struct {
	Original    string
	Transformed string
	At          time.Time
}

// RelationReport summarises one relation across every run.
type RelationReport struct {
	Description string
	PassRate    float64
	Threshold   float64
}

// Report aggregates the engine's history.
type Report struct {
	Runs            int
	AverageScore    float64
	Relations       map[string]RelationReport
	Failures        map[string][]Failure
	Recommendations []string
}

// recommendAfter is how many failures of one relation produce a
// recommendation.
const recommendAfter = 3

// Option configures an Engine.
type Option func(*Engine)

// WithRelations replaces the standard relations.
func WithRelations(relations ...Relation) Option {
	return func(e *Engine) {
		e.relations = relations
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine runs relations and remembers their outcomes. It is safe for
// concurrent use.
type Engine struct {
	relations []Relation
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	history  []*Result
	failures map[string][]Failure
}

// NewEngine creates an engine with the standard relations.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		relations: Relations(),
		logger:    slog.Default().With("component", "metamorphic"),
		now:       time.Now,
		failures:  make(map[string][]Failure),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run answers query, then every rewrite of it, and checks each relation.
// A rewrite whose answer fails counts as a failed relation; only a failure
// to answer the original question is returned as an error.
func (e *Engine) Run(ctx context.Context, query string, answer QueryFunc) (*Result, error) {
	original, err := answer(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("answering original query: %w", err)
	}

	result := &Result{Query: query, Answer: original}
	for _, rel := range e.relations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outcome := Outcome{Relation: rel.Name, Description: rel.Description, Query: rel.Transform(query)}
		outcome.Answer, outcome.Err = answer(ctx, outcome.Query)
		if outcome.Err == nil {
			outcome.Valid = rel.Validate(original, outcome.Answer)
		}
		result.Outcomes = append(result.Outcomes, outcome)

		if outcome.Valid {
			result.Passed = append(result.Passed, rel.Name)
			continue
		}
		result.Failed = append(result.Failed, rel.Name)
		if errors.Is(outcome.Err, context.Canceled) {
			return nil, outcome.Err
		}
		e.recordFailure(rel.Name, query, outcome.Query)
	}
	if len(e.relations) > 0 {
		result.Score = float64(len(result.Passed)) / float64(len(e.relations))
	}

	e.mu.Lock()
	e.history = append(e.history, result)
	e.mu.Unlock()
	e.logger.Debug("metamorphic run", "score", result.Score, "failed", result.Failed)
	return result, nil
}

func (e *Engine) recordFailure(relation, original, transformed string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[relation] = append(e.failures[relation], Failure{
		Original:    original,
		Transformed: transformed,
		At:          e.now(),
	})
}

// Report summarises every run so far. Runs is zero before the first run.
func (e *Engine) Report() Report {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := Report{
		Runs:      len(e.history),
		Relations: make(map[string]RelationReport, len(e.relations)),
		Failures:  make(map[string][]Failure, len(e.failures)),
	}
	if report.Runs == 0 {
		return report
	}

	var total float64
	passed := make(map[string]int)
	for _, r := range e.history {
		total += r.Score
		for _, name := range r.Passed {
			passed[name]++
		}
	}
	report.AverageScore = total / float64(report.Runs)

	for _, rel := range e.relations {
		report.Relations[rel.Name] = RelationReport{
			Description: rel.Description,
			PassRate:    float64(passed[rel.Name]) / float64(report.Runs),
			Threshold:   rel.Threshold,
		}
		failures := e.failures[rel.Name]
		if len(failures) == 0 {
			continue
		}
		report.Failures[rel.Name] = append([]Failure(nil), failures...)
		if len(failures) > recommendAfter {
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("High failure rate in %s. Consider improving consistency in this area.", rel.Name))
		}
	}
	if len(report.Recommendations) == 0 {
		report.Recommendations = []string{"System shows good metamorphic consistency across all relations."}
	}
	return report
}
