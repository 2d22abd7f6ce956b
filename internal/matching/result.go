package matching

import (
	"fmt"
	"time"

	"github.com/aksharjobs/matchscore/internal/ai"
	"github.com/aksharjobs/matchscore/internal/store"
	"github.com/mitchellh/mapstructure"
)

// Application statuses known to the matching pipeline. Other lifecycle values
// are stored as given.
const (
	StatusViewed  = "viewed"
	StatusPending = "pending"
	StatusApplied = "Applied"
)

// Document keys of a stored match result.
const (
	fieldUserID        = "userId"
	fieldJobID         = "jobId"
	fieldStatus        = "status"
	fieldFinalScore    = "finalScore"
	fieldInterviewDate = "interviewDate"
	fieldInterviewMode = "interviewMode"
	fieldCreatedAt     = "createdAt"
	fieldUpdatedAt     = "updatedAt"
)

// MatchResult is the persisted outcome of scoring one user against one job.
type MatchResult struct {
	ID     string `mapstructure:"_id" json:"applicationId"`
	UserID string `mapstructure:"userId" json:"userId"`
	JobID  string `mapstructure:"jobId" json:"jobId"`
	Status string `mapstructure:"status" json:"status"`

	SimilarityScore    float64  `mapstructure:"similarityScore" json:"similarityScore"`
	TransformedPercent float64  `mapstructure:"transformedPercent" json:"transformedPercent"`
	EducationScore     float64  `mapstructure:"educationScore" json:"educationScore"`
	ExperienceScore    float64  `mapstructure:"experienceScore" json:"experienceScore"`
	SkillScore         float64  `mapstructure:"skillScore" json:"skillScore"`
	MissingSkills      []string `mapstructure:"missingSkills" json:"missingSkills"`

	EducationMatch    float64              `mapstructure:"educationMatch" json:"educationMatch"`
	SkillsMatch       float64              `mapstructure:"skillsMatch" json:"skillsMatch"`
	ExperienceMatch   float64              `mapstructure:"experienceMatch" json:"experienceMatch"`
	OverallMatchScore float64              `mapstructure:"overallMatchScore" json:"overallMatchScore"`
	SkillScoreWhy     string               `mapstructure:"skillScoreWhy" json:"skillScoreWhy,omitempty"`
	JobSeekerInsights ai.JobSeekerInsights `mapstructure:"jobSeekerInsights" json:"jobSeekerInsights"`
	RecruiterInsights ai.RecruiterInsights `mapstructure:"recruiterInsights" json:"recruiterInsights"`

	FinalScore    *float64 `mapstructure:"finalScore" json:"finalScore"`
	AISuggestions []string `mapstructure:"aiSuggestions" json:"aiSuggestions"`

	InterviewDate string    `mapstructure:"interviewDate" json:"interviewDate,omitempty"`
	InterviewMode string    `mapstructure:"interviewMode" json:"interviewMode,omitempty"`
	CreatedAt     time.Time `mapstructure:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time `mapstructure:"updatedAt" json:"updatedAt"`
}

// scoreDocument holds the computed fields, which never change once stored.
func (r *MatchResult) scoreDocument() store.Document {
	doc := store.Document{
		"similarityScore":    r.SimilarityScore,
		"transformedPercent": r.TransformedPercent,
		"educationScore":     r.EducationScore,
		"experienceScore":    r.ExperienceScore,
		"skillScore":         r.SkillScore,
		"missingSkills":      stringsToAny(r.MissingSkills),
		"educationMatch":     r.EducationMatch,
		"skillsMatch":        r.SkillsMatch,
		"experienceMatch":    r.ExperienceMatch,
		"overallMatchScore":  r.OverallMatchScore,
		"skillScoreWhy":      r.SkillScoreWhy,
		"jobSeekerInsights":  jobSeekerDocument(r.JobSeekerInsights),
		"recruiterInsights":  recruiterDocument(r.RecruiterInsights),
		"aiSuggestions":      stringsToAny(r.AISuggestions),
		fieldFinalScore:      nil,
	}
	if r.FinalScore != nil {
		doc[fieldFinalScore] = *r.FinalScore
	}
	return doc
}

func (r *MatchResult) document() store.Document {
	doc := r.scoreDocument()
	doc[store.IDField] = r.ID
	doc[fieldUserID] = r.UserID
	doc[fieldJobID] = r.JobID
	doc[fieldStatus] = r.Status
	doc[fieldCreatedAt] = r.CreatedAt
	doc[fieldUpdatedAt] = r.UpdatedAt
	if r.InterviewDate != "" {
		doc[fieldInterviewDate] = r.InterviewDate
	}
	if r.InterviewMode != "" {
		doc[fieldInterviewMode] = r.InterviewMode
	}
	return doc
}

func decodeResult(doc store.Document) (*MatchResult, error) {
	var result MatchResult
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339),
		WeaklyTypedInput: true,
		Result:           &result,
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(doc); err != nil {
		return nil, fmt.Errorf("decode match result: %w", err)
	}
	return &result, nil
}

func jobSeekerDocument(in ai.JobSeekerInsights) map[string]any {
	doc := make(map[string]any, len(in.Extra)+3)
	for k, v := range in.Extra {
		doc[k] = v
	}
	doc["improvementSuggestions"] = stringsToAny(in.ImprovementSuggestions)
	doc["strengths"] = stringsToAny(in.Strengths)
	doc["summary"] = in.Summary
	return doc
}

func recruiterDocument(in ai.RecruiterInsights) map[string]any {
	doc := make(map[string]any, len(in.Extra)+3)
	for k, v := range in.Extra {
		doc[k] = v
	}
	doc["summary"] = in.Summary
	doc["strengths"] = stringsToAny(in.Strengths)
	doc["concerns"] = stringsToAny(in.Concerns)
	return doc
}

func stringsToAny(values []string) []any {
	result := make([]any, 0, len(values))
	for _, v := range values {
		result = append(result, v)
	}
	return result
}
