package matching

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aksharjobs/matchscore/internal/ai"
	"github.com/aksharjobs/matchscore/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func scored(userID, jobID string, score float64) *MatchResult {
	return &MatchResult{
		UserID:        userID,
		JobID:         jobID,
		Status:        StatusViewed,
		SkillScore:    50,
		MissingSkills: []string{"SQL"},
		JobSeekerInsights: ai.JobSeekerInsights{
			Summary: "Good fit",
			Extra:   map[string]any{"tone": "friendly"},
		},
		FinalScore: &score,
	}
}

func TestCacheSaveOrGetReturnsWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, created, err := f.cache.SaveOrGet(ctx, scored("u", "j", 70))
	if err != nil || !created {
		t.Fatalf("expected first save to create, got created=%v err=%v", created, err)
	}

	second, created, err := f.cache.SaveOrGet(ctx, scored("u", "j", 10))
	if err != nil {
		t.Fatalf("save or get: %v", err)
	}
	if created {
		t.Fatalf("expected the second save to lose")
	}
	if second.ID != first.ID || *second.FinalScore != 70 {
		t.Fatalf("expected the committed result, got %+v", second)
	}

	if _, err := f.cache.Save(ctx, scored("u", "j", 5)); !errors.Is(err, ErrCacheWriteConflict) {
		t.Fatalf("expected ErrCacheWriteConflict, got %v", err)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fixed := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	f.cache.now = func() time.Time { return fixed }

	if _, err := f.cache.Save(ctx, scored("u", "j", 70)); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := f.cache.Get(ctx, "u", "j")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.CreatedAt.Equal(fixed) || !got.UpdatedAt.Equal(fixed) {
		t.Fatalf("timestamps did not round-trip: %v %v", got.CreatedAt, got.UpdatedAt)
	}
	if got.JobSeekerInsights.Extra["tone"] != "friendly" {
		t.Fatalf("extra insight fields were lost: %+v", got.JobSeekerInsights)
	}
	if len(got.MissingSkills) != 1 || got.MissingSkills[0] != "SQL" {
		t.Fatalf("unexpected missing skills: %v", got.MissingSkills)
	}

	miss, err := f.cache.Get(ctx, "u", "other")
	if err != nil || miss != nil {
		t.Fatalf("expected a miss, got %+v (%v)", miss, err)
	}
}

func TestCacheCompleteSkipsScoredRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.cache.Save(ctx, scored("u", "j", 70)); err != nil {
		t.Fatalf("save: %v", err)
	}

	ok, err := f.cache.Complete(ctx, scored("u", "j", 10))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if ok {
		t.Fatalf("a scored record must not be completed again")
	}

	got, _ := f.cache.Get(ctx, "u", "j")
	if *got.FinalScore != 70 {
		t.Fatalf("score was overwritten: %v", *got.FinalScore)
	}
}

func TestCacheUpdateStatusKeepsScores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.cache.Save(ctx, scored("u", "j", 70)); err != nil {
		t.Fatalf("save: %v", err)
	}

	ok, err := f.cache.UpdateStatus(ctx, "u", "j", "Interview", "2026-11-02", "")
	if err != nil || !ok {
		t.Fatalf("expected update, got ok=%v err=%v", ok, err)
	}

	got, _ := f.cache.Get(ctx, "u", "j")
	if got.Status != "Interview" || got.InterviewDate != "2026-11-02" || got.InterviewMode != "" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if *got.FinalScore != 70 || got.SkillScore != 50 {
		t.Fatalf("scores changed: %+v", got)
	}

	ok, err = f.cache.UpdateStatus(ctx, "u", "missing", "Interview", "", "")
	if err != nil || ok {
		t.Fatalf("expected no match, got ok=%v err=%v", ok, err)
	}
}

func TestStoreSources(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	sources := NewStoreSources(f.users, f.resumes, f.jobs, zap.New(core))

	f.insert(t, f.users, store.Document{"_id": "empty", "resume": map[string]any{}})
	f.insert(t, f.users, store.Document{"_id": "broken", "resume": map[string]any{
		"skills":       []any{"Go"},
		"personalInfo": "not a document",
	}})
	f.insert(t, f.jobs, store.Document{"_id": "legacy", "job_title": "Legacy Job", "required_skills": "Go, SQL"})

	resume, err := sources.ModernResume(ctx, "empty")
	if err != nil || resume != nil {
		t.Fatalf("expected an empty profile resume to be absent, got %+v (%v)", resume, err)
	}

	resume, err = sources.ModernResume(ctx, "nobody")
	if err != nil || resume != nil {
		t.Fatalf("expected an unknown user to have no resume, got %+v (%v)", resume, err)
	}

	resume, err = sources.ModernResume(ctx, "broken")
	if err != nil || resume == nil {
		t.Fatalf("expected a partial resume, got %+v (%v)", resume, err)
	}
	if len(resume.Skills) != 1 || resume.Skills[0] != "Go" {
		t.Fatalf("valid sections must survive: %+v", resume)
	}
	if logs.FilterMessage("profile resume is partially malformed").Len() != 1 {
		t.Fatalf("expected a warning for the malformed section")
	}

	job, err := sources.Job(ctx, "missing")
	if err != nil || job != nil {
		t.Fatalf("expected a missing job, got %+v (%v)", job, err)
	}

	job, err = sources.Job(ctx, "legacy")
	if err != nil || job == nil {
		t.Fatalf("expected the legacy job, got %+v (%v)", job, err)
	}
	if job.Title != "Legacy Job" || len(job.RequiredSkills) != 2 {
		t.Fatalf("legacy keys were not mapped: %+v", job)
	}
}
