package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/aksharjobs/matchscore/internal/ai"
	"github.com/aksharjobs/matchscore/internal/records"
	"github.com/aksharjobs/matchscore/internal/utils"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// InsightProvider asks Gemini to assess a candidate against a job.
type InsightProvider struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

var _ ai.InsightProvider = (*InsightProvider)(nil)

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

func NewInsightProvider(generator contentGenerator, logger *zap.Logger, maxLogLength int) *InsightProvider {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &InsightProvider{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Insights returns the model's assessment. Every failure wraps ai.ErrExternalProvider.
func (p *InsightProvider) Insights(ctx context.Context, resumes []records.Resume, job records.Job, similarity float64) (*ai.Insight, error) {
	if len(resumes) == 0 {
		return nil, fmt.Errorf("%w: at least one resume is required", ai.ErrExternalProvider)
	}

	resumeJSON, err := json.MarshalIndent(resumes, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: marshal resume payload: %v", ai.ErrExternalProvider, err)
	}

	jobJSON, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: marshal job payload: %v", ai.ErrExternalProvider, err)
	}

	prompt := buildPrompt(string(resumeJSON), string(jobJSON), similarity)

	p.logger.Debug("gemini generate content request",
		zap.String("job_id", job.ID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, p.maxLogLen)),
	)

	raw, err := p.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ai.ErrExternalProvider, err)
	}

	p.logger.Debug("gemini generate content response",
		zap.String("job_id", job.ID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, p.maxLogLen)),
	)

	insight, err := p.parseResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ai.ErrExternalProvider, err)
	}

	insight.Raw = raw
	return insight, nil
}

func buildPrompt(resumeJSON, jobJSON string, similarity float64) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Similarity: {{SIMILARITY}}\n\nResumes:\n{{RESUME_JSON}}\n\nJob:\n{{JOB_JSON}}\n\nJSON Response:"
	}
	rendered := "not available"
	if similarity >= 0 {
		rendered = strconv.FormatFloat(similarity, 'f', 4, 64)
	}
	prompt := strings.ReplaceAll(template, "{{SIMILARITY}}", rendered)
	prompt = strings.ReplaceAll(prompt, "{{RESUME_JSON}}", resumeJSON)
	prompt = strings.ReplaceAll(prompt, "{{JOB_JSON}}", jobJSON)
	return prompt
}

func (p *InsightProvider) parseResponse(raw string) (*ai.Insight, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	insight := &ai.Insight{
		OverallMatch:    score(data["overallMatchScore"]),
		SkillsMatch:     score(data["skillsMatch"]),
		ExperienceMatch: score(data["experienceMatch"]),
		EducationMatch:  score(data["educationMatch"]),
		SkillScoreWhy:   coerceString(data["skillScoreWhy"]),
	}

	// Insight blocks are advisory: a malformed block is dropped, the scores are kept.
	if err := decodeBlock(data["jobSeekerInsights"], &insight.JobSeeker); err != nil {
		insight.JobSeeker = ai.JobSeekerInsights{}
		p.logger.Debug("dropping malformed insight block", zap.String("block", "jobSeekerInsights"), zap.Error(err))
	}
	if err := decodeBlock(data["recruiterInsights"], &insight.Recruiter); err != nil {
		insight.Recruiter = ai.RecruiterInsights{}
		p.logger.Debug("dropping malformed insight block", zap.String("block", "recruiterInsights"), zap.Error(err))
	}

	return insight, nil
}

func decodeBlock(input any, out any) error {
	if input == nil {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	raw = strings.TrimSpace(raw)

	// Some responses wrap the object in prose.
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start > 0 && end > start {
		raw = raw[start : end+1]
	}
	return raw
}

// score coerces a string-encoded number to [0,100], defaulting to 0.
func score(v any) float64 {
	f := coerceFloat(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return math.Min(100, math.Max(0, f))
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		trimmed = strings.TrimSuffix(trimmed, "%")
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(trimmed), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
