package records

import (
	"reflect"
	"strings"
	"testing"
)

func TestDecodeResumeFlattensCategorizedSkills(t *testing.T) {
	doc := map[string]any{
		"personalInfo": map[string]any{"name": "Asha", "email": "asha@example.com"},
		"skills": map[string]any{
			"soft":      []any{"Communication"},
			"technical": []any{"Python", "SQL"},
			"languages": "Hindi, English",
			"tools":     []any{"Docker"},
		},
		"experience": []any{
			map[string]any{"title": "Engineer", "company": "Acme", "years_of_experience": 3},
		},
		"education": map[string]any{"degree": "B.Tech", "institution": "IIT", "year": 2019},
	}

	resume, err := DecodeResume(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"Python", "SQL", "Docker", "Communication", "Hindi", "English"}
	if !reflect.DeepEqual(resume.Skills, expected) {
		t.Fatalf("unexpected skills: %v", resume.Skills)
	}

	if resume.PersonalInfo.Name != "Asha" {
		t.Fatalf("unexpected name: %q", resume.PersonalInfo.Name)
	}

	if len(resume.Experience) != 1 || resume.Experience[0].YearsOfExperience != "3" {
		t.Fatalf("unexpected experience: %+v", resume.Experience)
	}

	if len(resume.Education) != 1 || resume.Education[0].Year != "2019" {
		t.Fatalf("unexpected education: %+v", resume.Education)
	}
}

func TestDecodeResumeKeepsValidSectionsOnMalformedInput(t *testing.T) {
	doc := map[string]any{
		"personalInfo": "not a map",
		"skills":       "Go, Kubernetes",
		"summary":      "Backend developer",
	}

	resume, err := DecodeResume(doc)
	if err == nil {
		t.Fatalf("expected error for malformed personalInfo")
	}

	if !reflect.DeepEqual(resume.Skills, []string{"Go", "Kubernetes"}) {
		t.Fatalf("unexpected skills: %v", resume.Skills)
	}

	if resume.Summary != "Backend developer" {
		t.Fatalf("unexpected summary: %q", resume.Summary)
	}
}

func TestDecodeJobAcceptsLegacyKeys(t *testing.T) {
	doc := map[string]any{
		"_id":                 "job-1",
		"job_title":           "Data Engineer",
		"required_skills":     "Python, SQL , , Docker",
		"experience_required": 2,
		"educationRequired":   "Bachelor's degree",
	}

	job, err := DecodeJob(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if job.ID != "job-1" || job.Title != "Data Engineer" {
		t.Fatalf("unexpected job: %+v", job)
	}

	if !reflect.DeepEqual(job.RequiredSkills, []string{"Python", "SQL", "Docker"}) {
		t.Fatalf("unexpected required skills: %v", job.RequiredSkills)
	}

	if job.ExperienceRequired != "2" {
		t.Fatalf("unexpected experience requirement: %q", job.ExperienceRequired)
	}

	if _, ok := doc["requiredSkills"]; ok {
		t.Fatalf("input document must not be modified")
	}
}

func TestJobHasRequirements(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		job    Job
		expect bool
	}{
		{name: "empty", job: Job{}, expect: false},
		{name: "placeholders", job: Job{RequiredSkills: []string{"N/A"}, ExperienceRequired: "Not specified", EducationRequired: "any"}, expect: false},
		{name: "skills", job: Job{RequiredSkills: []string{"Go"}}, expect: true},
		{name: "experience", job: Job{ExperienceRequired: "3+ years"}, expect: true},
		{name: "education", job: Job{EducationRequired: "Master"}, expect: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.job.HasRequirements(); got != tt.expect {
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
		})
	}
}

func TestSkillsDeduplicatesAcrossResumes(t *testing.T) {
	resumes := []Resume{
		{Skills: []string{"Python", "React"}},
		{Skills: []string{"python", " SQL "}},
	}

	got := Skills(resumes)
	if !reflect.DeepEqual(got, []string{"Python", "React", "SQL"}) {
		t.Fatalf("unexpected skills: %v", got)
	}
}

func TestTextSkipsEmptyParts(t *testing.T) {
	job := Job{Title: "Go Developer", RequiredSkills: []string{"Go"}, ExperienceRequired: "N/A"}
	text := job.Text()
	if strings.Contains(text, "Experience") {
		t.Fatalf("placeholder requirement must not be part of text: %q", text)
	}

	if ResumesText(nil) != "" {
		t.Fatalf("expected empty text for no resumes")
	}
}
