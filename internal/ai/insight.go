package ai

import (
	"context"
	"errors"

	"github.com/aksharjobs/matchscore/internal/records"
)

// ErrExternalProvider marks failures of the LLM insight provider: call errors,
// timeouts and unparsable responses.
var ErrExternalProvider = errors.New("external insight provider failed")

// JobSeekerInsights is the advice addressed to the candidate.
type JobSeekerInsights struct {
	ImprovementSuggestions []string       `mapstructure:"improvementSuggestions" json:"improvementSuggestions,omitempty" bson:"improvementSuggestions,omitempty"`
	Strengths              []string       `mapstructure:"strengths" json:"strengths,omitempty" bson:"strengths,omitempty"`
	Summary                string         `mapstructure:"summary" json:"summary,omitempty" bson:"summary,omitempty"`
	Extra                  map[string]any `mapstructure:",remain" json:"extra,omitempty" bson:"extra,omitempty"`
}

// RecruiterInsights is the assessment addressed to the recruiter.
type RecruiterInsights struct {
	Summary   string         `mapstructure:"summary" json:"summary,omitempty" bson:"summary,omitempty"`
	Strengths []string       `mapstructure:"strengths" json:"strengths,omitempty" bson:"strengths,omitempty"`
	Concerns  []string       `mapstructure:"concerns" json:"concerns,omitempty" bson:"concerns,omitempty"`
	Extra     map[string]any `mapstructure:",remain" json:"extra,omitempty" bson:"extra,omitempty"`
}

// Insight is the LLM estimate of how well a candidate fits a job. Scores are
// already parsed to numbers in [0,100].
type Insight struct {
	OverallMatch    float64
	SkillsMatch     float64
	ExperienceMatch float64
	EducationMatch  float64
	SkillScoreWhy   string
	JobSeeker       JobSeekerInsights
	Recruiter       RecruiterInsights
	Raw             string
}

// UnknownSimilarity is passed to an InsightProvider when the semantic
// similarity has not been computed yet.
const UnknownSimilarity = -1.0

// InsightProvider asks an external model for a match estimate. A negative
// similarity means it is not available.
type InsightProvider interface {
	Insights(ctx context.Context, resumes []records.Resume, job records.Job, similarity float64) (*Insight, error)
}
