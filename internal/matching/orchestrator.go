package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aksharjobs/matchscore/internal/ai"
	"github.com/aksharjobs/matchscore/internal/events"
	"github.com/aksharjobs/matchscore/internal/logger"
	"github.com/aksharjobs/matchscore/internal/records"
	"github.com/aksharjobs/matchscore/internal/scoring"
	"go.uber.org/zap"
)

const (
	defaultInsightTimeout = 30 * time.Second
	cachedMessage         = "cached"
	computedMessage       = "computed"
)

// SimilarityEngine scores the semantic similarity of two texts in [0,1].
type SimilarityEngine interface {
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// Deps are the collaborators of an Orchestrator. Insights and Publisher are optional.
type Deps struct {
	Cache      *Cache
	Resumes    ResumeSource
	Jobs       JobSource
	Similarity SimilarityEngine
	Insights   ai.InsightProvider
	Publisher  events.Publisher
	Logger     *zap.Logger

	// InsightTimeout bounds a single insight request.
	InsightTimeout time.Duration
	// SimilarityHint passes the computed similarity to the insight provider.
	// The provider then runs after the similarity instead of alongside it.
	SimilarityHint bool
}

// Orchestrator is the entry point of the matching pipeline.
type Orchestrator struct {
	cache          *Cache
	resumes        ResumeSource
	jobs           JobSource
	similarity     SimilarityEngine
	insights       ai.InsightProvider
	publisher      events.Publisher
	logger         *zap.Logger
	insightTimeout time.Duration
	similarityHint bool
}

// ApplicationOutcome is returned by ProcessApplication.
type ApplicationOutcome struct {
	ApplicationID string   `json:"applicationId"`
	Status        string   `json:"status"`
	FinalScore    *float64 `json:"finalScore"`
	AISuggestions []string `json:"aiSuggestions"`
	Cached        bool     `json:"cached"`
	Message       string   `json:"message"`
}

// MatchScore is returned by GetMatchScore.
type MatchScore struct {
	*MatchResult
	Cached bool `json:"cached"`
}

func NewOrchestrator(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Cache == nil:
		return nil, errors.New("match cache is required")
	case deps.Resumes == nil:
		return nil, errors.New("resume source is required")
	case deps.Jobs == nil:
		return nil, errors.New("job source is required")
	case deps.Similarity == nil:
		return nil, errors.New("similarity engine is required")
	}

	timeout := deps.InsightTimeout
	if timeout <= 0 {
		timeout = defaultInsightTimeout
	}

	return &Orchestrator{
		cache:          deps.Cache,
		resumes:        deps.Resumes,
		jobs:           deps.Jobs,
		similarity:     deps.Similarity,
		insights:       deps.Insights,
		publisher:      deps.Publisher,
		logger:         logger.WithFields(deps.Logger),
		insightTimeout: timeout,
		similarityHint: deps.SimilarityHint,
	}, nil
}

// ProcessApplication scores a formal application with the apply strategy. A
// stored score is reused as is; only its status is moved to the given one.
func (o *Orchestrator) ProcessApplication(ctx context.Context, userID, jobID, status string) (*ApplicationOutcome, error) {
	if status = strings.TrimSpace(status); status == "" {
		status = StatusApplied
	}
	log := logger.WithMatch(o.logger, userID, jobID, scoring.Apply.Name)

	existing, err := o.cache.Get(ctx, userID, jobID)
	if err != nil {
		return nil, fmt.Errorf("%w: read cached result: %w", ErrScoringFailed, err)
	}
	if existing != nil && existing.FinalScore != nil {
		log.Debug("serving cached match", zap.String("status", existing.Status))
		return o.reuseForApplication(ctx, log, existing, status)
	}

	result, err := o.compute(ctx, log, userID, jobID, scoring.Apply)
	if err != nil {
		return nil, err
	}
	result.Status = status

	stored, created, err := o.persist(ctx, existing, result)
	if err != nil {
		return nil, err
	}
	if !created {
		log.Warn("concurrent scoring detected, using the stored result")
		return o.reuseForApplication(ctx, log, stored, status)
	}

	log.Info("application scored",
		zap.String("application_id", stored.ID),
		zap.Float64("final_score", *stored.FinalScore),
	)
	o.publish(ctx, log, scoredEvent(stored))

	return &ApplicationOutcome{
		ApplicationID: stored.ID,
		Status:        stored.Status,
		FinalScore:    stored.FinalScore,
		AISuggestions: stored.AISuggestions,
		Message:       computedMessage,
	}, nil
}

// GetMatchScore scores a job for a browsing user with the browse strategy and
// keeps the result as a viewed record.
func (o *Orchestrator) GetMatchScore(ctx context.Context, userID, jobID string) (*MatchScore, error) {
	log := logger.WithMatch(o.logger, userID, jobID, scoring.Browse.Name)

	existing, err := o.cache.Get(ctx, userID, jobID)
	if err != nil {
		return nil, fmt.Errorf("%w: read cached result: %w", ErrScoringFailed, err)
	}
	if existing != nil && existing.FinalScore != nil {
		log.Debug("serving cached match", zap.String("status", existing.Status))
		return &MatchScore{MatchResult: existing, Cached: true}, nil
	}

	result, err := o.compute(ctx, log, userID, jobID, scoring.Browse)
	if err != nil {
		return nil, err
	}
	result.Status = StatusViewed
	if existing != nil {
		// keep the lifecycle status of a record created elsewhere
		result.Status = ""
	}

	stored, created, err := o.persist(ctx, existing, result)
	if err != nil {
		return nil, err
	}
	if !created {
		log.Warn("concurrent scoring detected, using the stored result")
		return &MatchScore{MatchResult: stored, Cached: true}, nil
	}

	log.Info("match scored",
		zap.String("application_id", stored.ID),
		zap.Float64("final_score", *stored.FinalScore),
	)
	o.publish(ctx, log, scoredEvent(stored))

	return &MatchScore{MatchResult: stored}, nil
}

// UpdateApplicationStatus moves the pair's record to a new status and records
// interview details when given.
func (o *Orchestrator) UpdateApplicationStatus(ctx context.Context, userID, jobID, status, interviewDate, interviewMode string) error {
	status = strings.TrimSpace(status)
	if status == "" {
		return errors.New("status is required")
	}
	log := logger.WithFields(o.logger, logger.MatchFields(userID, jobID)...)

	ok, err := o.cache.UpdateStatus(ctx, userID, jobID, status, interviewDate, interviewMode)
	if err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: user %s, job %s", ErrApplicationNotFound, userID, jobID)
	}

	log.Info("application status updated", zap.String("status", status))
	o.publish(ctx, log, events.Event{
		Type:          events.TypeStatusChanged,
		UserID:        userID,
		JobID:         jobID,
		Status:        status,
		InterviewDate: interviewDate,
		InterviewMode: interviewMode,
	})
	return nil
}

func (o *Orchestrator) reuseForApplication(ctx context.Context, log *zap.Logger, existing *MatchResult, status string) (*ApplicationOutcome, error) {
	if existing.Status != status {
		if _, err := o.cache.UpdateStatus(ctx, existing.UserID, existing.JobID, status, "", ""); err != nil {
			return nil, fmt.Errorf("%w: update cached status: %w", ErrScoringFailed, err)
		}
		log.Info("application status updated",
			zap.String("from", existing.Status),
			zap.String("to", status),
		)
		existing.Status = status
		o.publish(ctx, log, events.Event{
			Type:          events.TypeStatusChanged,
			ApplicationID: existing.ID,
			UserID:        existing.UserID,
			JobID:         existing.JobID,
			Status:        status,
		})
	}

	return &ApplicationOutcome{
		ApplicationID: existing.ID,
		Status:        existing.Status,
		FinalScore:    existing.FinalScore,
		AISuggestions: existing.AISuggestions,
		Cached:        true,
		Message:       cachedMessage,
	}, nil
}

// persist stores a freshly computed result. A record without a score is
// completed in place; otherwise the result is inserted unless another writer
// got there first, in which case the committed result is returned.
func (o *Orchestrator) persist(ctx context.Context, existing, result *MatchResult) (*MatchResult, bool, error) {
	if existing != nil {
		ok, err := o.cache.Complete(ctx, result)
		if err != nil {
			return nil, false, fmt.Errorf("%w: store result: %w", ErrScoringFailed, err)
		}

		stored, err := o.cache.Get(ctx, result.UserID, result.JobID)
		if err != nil {
			return nil, false, fmt.Errorf("%w: read stored result: %w", ErrScoringFailed, err)
		}
		if stored == nil || stored.FinalScore == nil {
			return nil, false, fmt.Errorf("%w: stored result disappeared", ErrScoringFailed)
		}
		return stored, ok, nil
	}

	stored, created, err := o.cache.SaveOrGet(ctx, result)
	if err != nil {
		return nil, false, fmt.Errorf("%w: store result: %w", ErrScoringFailed, err)
	}
	return stored, created, nil
}

// compute resolves the inputs and runs the scoring steps for a cache miss.
func (o *Orchestrator) compute(ctx context.Context, log *zap.Logger, userID, jobID string, strategy scoring.Strategy) (*MatchResult, error) {
	resumes, err := o.resolveResumes(ctx, userID)
	if err != nil {
		return nil, err
	}

	job, err := o.resolveJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	structured := scoring.Score(resumes, *job)

	similarity, insight, err := o.semanticScores(ctx, log, resumes, *job)
	if err != nil {
		return nil, err
	}

	outcome := strategy.Blend(scoring.Inputs{
		Similarity:      similarity,
		ExternalOverall: insight.OverallMatch,
		Structured:      structured,
		HasRequirements: job.HasRequirements(),
	})
	finalScore := outcome.FinalScore

	log.Debug("blended match score",
		zap.Float64("similarity", similarity),
		zap.Float64("transformed", outcome.TransformedPercent),
		zap.Float64("external", insight.OverallMatch),
		zap.Float64("skill", structured.SkillScore),
		zap.Float64("experience", structured.ExperienceScore),
		zap.Float64("education", structured.EducationScore),
		zap.Float64("final", finalScore),
	)

	return &MatchResult{
		UserID:             userID,
		JobID:              jobID,
		SimilarityScore:    similarity,
		TransformedPercent: outcome.TransformedPercent,
		EducationScore:     structured.EducationScore,
		ExperienceScore:    structured.ExperienceScore,
		SkillScore:         structured.SkillScore,
		MissingSkills:      structured.MissingSkills,
		EducationMatch:     insight.EducationMatch,
		SkillsMatch:        insight.SkillsMatch,
		ExperienceMatch:    insight.ExperienceMatch,
		OverallMatchScore:  insight.OverallMatch,
		SkillScoreWhy:      insight.SkillScoreWhy,
		JobSeekerInsights:  insight.JobSeeker,
		RecruiterInsights:  insight.Recruiter,
		FinalScore:         &finalScore,
		AISuggestions:      suggestions(insight, structured.MissingSkills),
	}, nil
}

// semanticScores runs the similarity engine and the insight provider. They run
// concurrently unless the provider needs the similarity. A failing provider
// contributes an empty insight.
func (o *Orchestrator) semanticScores(ctx context.Context, log *zap.Logger, resumes []records.Resume, job records.Job) (float64, *ai.Insight, error) {
	resumeText, jobText := records.ResumesText(resumes), job.Text()

	if o.similarityHint {
		similarity, err := o.similarity.Similarity(ctx, resumeText, jobText)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: similarity: %w", ErrScoringFailed, err)
		}
		return similarity, o.insight(ctx, log, resumes, job, similarity), nil
	}

	var (
		wg         sync.WaitGroup
		similarity float64
		simErr     error
		insight    *ai.Insight
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		similarity, simErr = o.similarity.Similarity(ctx, resumeText, jobText)
	}()
	go func() {
		defer wg.Done()
		insight = o.insight(ctx, log, resumes, job, ai.UnknownSimilarity)
	}()
	wg.Wait()

	if simErr != nil {
		return 0, nil, fmt.Errorf("%w: similarity: %w", ErrScoringFailed, simErr)
	}
	return similarity, insight, nil
}

func (o *Orchestrator) insight(ctx context.Context, log *zap.Logger, resumes []records.Resume, job records.Job, similarity float64) *ai.Insight {
	if o.insights == nil {
		return &ai.Insight{}
	}

	ctx, cancel := context.WithTimeout(ctx, o.insightTimeout)
	defer cancel()

	insight, err := o.insights.Insights(ctx, resumes, job, similarity)
	if err == nil && insight == nil {
		err = errNoInsight
	}
	if err != nil {
		log.Warn("insight provider failed, continuing without external score",
			zap.Duration("timeout", o.insightTimeout),
			zap.Error(err),
		)
		return &ai.Insight{}
	}
	return insight
}

func (o *Orchestrator) resolveResumes(ctx context.Context, userID string) ([]records.Resume, error) {
	modern, err := o.resumes.ModernResume(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: read profile resume: %w", ErrScoringFailed, err)
	}
	if modern != nil {
		return []records.Resume{*modern}, nil
	}

	legacy, err := o.resumes.LegacyResumes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: read legacy resumes: %w", ErrScoringFailed, err)
	}
	if len(legacy) == 0 {
		return nil, fmt.Errorf("%w: user %s", ErrNoResumeFound, userID)
	}
	return legacy, nil
}

func (o *Orchestrator) resolveJob(ctx context.Context, jobID string) (*records.Job, error) {
	job, err := o.jobs.Job(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("%w: read job: %w", ErrScoringFailed, err)
	}
	if job == nil {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job, nil
}

func (o *Orchestrator) publish(ctx context.Context, log *zap.Logger, event events.Event) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, event); err != nil {
		log.Warn("publishing match event", zap.String("type", event.Type), zap.Error(err))
	}
}

func scoredEvent(r *MatchResult) events.Event {
	return events.Event{
		Type:          events.TypeMatchScored,
		ApplicationID: r.ID,
		UserID:        r.UserID,
		JobID:         r.JobID,
		Status:        r.Status,
		FinalScore:    r.FinalScore,
	}
}

// suggestions prefers the provider's improvement suggestions and falls back to
// the missing skills.
func suggestions(insight *ai.Insight, missingSkills []string) []string {
	result := make([]string, 0, len(insight.JobSeeker.ImprovementSuggestions))
	for _, s := range insight.JobSeeker.ImprovementSuggestions {
		if s = strings.TrimSpace(s); s != "" {
			result = append(result, s)
		}
	}
	if len(result) > 0 {
		return result
	}

	for _, skill := range missingSkills {
		result = append(result, "Gain experience with "+skill)
	}
	return result
}
