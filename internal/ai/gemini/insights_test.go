package gemini

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/aksharjobs/matchscore/internal/ai"
	"github.com/aksharjobs/matchscore/internal/records"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

var (
	testResumes = []records.Resume{{Summary: "Python developer", Skills: []string{"Python", "React"}}}
	testJob     = records.Job{ID: "job-1", Title: "Backend Engineer", RequiredSkills: []string{"Python", "SQL"}}
)

func TestInsightsParsesStringNumbers(t *testing.T) {
	stub := &stubGenerator{response: "```json\n" + `{
		"overallMatchScore": "72",
		"skillsMatch": "65.5",
		"experienceMatch": "80%",
		"educationMatch": "n/a",
		"skillScoreWhy": "Knows Python, lacks SQL",
		"jobSeekerInsights": {"improvementSuggestions": ["Learn SQL", "Build a data project"], "summary": "Good fit", "tone": "friendly"},
		"recruiterInsights": {"summary": "Solid backend profile", "concerns": "No SQL"}
	}` + "\n```"}
	provider := NewInsightProvider(stub, zap.NewNop(), 0)

	insight, err := provider.Insights(context.Background(), testResumes, testJob, 0.73)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if insight.OverallMatch != 72 || insight.SkillsMatch != 65.5 || insight.ExperienceMatch != 80 {
		t.Fatalf("unexpected scores: %+v", insight)
	}

	if insight.EducationMatch != 0 {
		t.Fatalf("expected unparsable education match to default to 0, got %v", insight.EducationMatch)
	}

	if !reflect.DeepEqual(insight.JobSeeker.ImprovementSuggestions, []string{"Learn SQL", "Build a data project"}) {
		t.Fatalf("unexpected suggestions: %v", insight.JobSeeker.ImprovementSuggestions)
	}

	if insight.JobSeeker.Extra["tone"] != "friendly" {
		t.Fatalf("expected unknown keys to be kept, got %v", insight.JobSeeker.Extra)
	}

	if !reflect.DeepEqual(insight.Recruiter.Concerns, []string{"No SQL"}) {
		t.Fatalf("unexpected concerns: %v", insight.Recruiter.Concerns)
	}

	if insight.Raw == "" {
		t.Fatalf("expected raw response to be kept")
	}

	if !strings.Contains(stub.lastPrompt, "0.7300") {
		t.Fatalf("expected similarity in prompt")
	}

	if !strings.Contains(stub.lastPrompt, `"Backend Engineer"`) {
		t.Fatalf("expected job payload in prompt")
	}
}

func TestInsightsClampsScores(t *testing.T) {
	stub := &stubGenerator{response: `Here you go: {"overallMatchScore": 140, "skillsMatch": "-5"} Thanks`}
	provider := NewInsightProvider(stub, nil, 0)

	insight, err := provider.Insights(context.Background(), testResumes, testJob, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if insight.OverallMatch != 100 || insight.SkillsMatch != 0 {
		t.Fatalf("expected clamped scores, got %+v", insight)
	}
}

func TestInsightsDropsMalformedBlocks(t *testing.T) {
	stub := &stubGenerator{response: `{
		"overallMatchScore": 64,
		"jobSeekerInsights": {"summary": "Keep going", "improvementSuggestions": {"nested": {"deep": true}}},
		"recruiterInsights": "strong candidate"
	}`}
	core, logs := observer.New(zap.DebugLevel)
	provider := NewInsightProvider(stub, zap.New(core), 0)

	insight, err := provider.Insights(context.Background(), testResumes, testJob, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if insight.OverallMatch != 64 {
		t.Fatalf("expected scores to survive malformed blocks, got %+v", insight)
	}
	if !reflect.DeepEqual(insight.JobSeeker, ai.JobSeekerInsights{}) {
		t.Fatalf("expected a partially decoded block to be reset, got %+v", insight.JobSeeker)
	}
	if !reflect.DeepEqual(insight.Recruiter, ai.RecruiterInsights{}) {
		t.Fatalf("expected the recruiter block to be dropped, got %+v", insight.Recruiter)
	}

	dropped := logs.FilterMessage("dropping malformed insight block")
	if dropped.Len() != 2 {
		t.Fatalf("expected two debug entries, got %v", logs.All())
	}
	for _, entry := range dropped.All() {
		if entry.Level != zap.DebugLevel {
			t.Fatalf("expected debug level, got %v", entry.Level)
		}
	}
}

func TestInsightsWrapsProviderErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		stub *stubGenerator
	}{
		{name: "call failure", stub: &stubGenerator{err: errors.New("deadline exceeded")}},
		{name: "unparsable", stub: &stubGenerator{response: "I cannot help with that"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			provider := NewInsightProvider(tt.stub, zap.NewNop(), 50)
			_, err := provider.Insights(context.Background(), testResumes, testJob, 0.5)
			if !errors.Is(err, ai.ErrExternalProvider) {
				t.Fatalf("expected ErrExternalProvider, got %v", err)
			}
		})
	}
}

func TestInsightsRequiresResume(t *testing.T) {
	provider := NewInsightProvider(&stubGenerator{}, zap.NewNop(), 0)

	if _, err := provider.Insights(context.Background(), nil, testJob, 0.5); !errors.Is(err, ai.ErrExternalProvider) {
		t.Fatalf("expected ErrExternalProvider, got %v", err)
	}
}

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{name: "plain", input: `{"a":1}`, expect: `{"a":1}`},
		{name: "fenced", input: "```json\n{\"a\":1}\n```", expect: `{"a":1}`},
		{name: "prose", input: `Result: {"a":1} done`, expect: `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := extractJSON(tt.input); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestBuildPromptUnknownSimilarity(t *testing.T) {
	t.Parallel()

	prompt := buildPrompt(`{"skills":[]}`, `{"title":"x"}`, ai.UnknownSimilarity)
	if !strings.Contains(prompt, "not available") {
		t.Fatalf("expected unknown similarity to be rendered as not available, got %q", prompt)
	}
	if strings.Contains(prompt, "-1.0000") {
		t.Fatalf("negative similarity leaked into prompt: %q", prompt)
	}
}
