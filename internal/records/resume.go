package records

import (
	"errors"
	"fmt"
	"strings"
)

type PersonalInfo struct {
	Name     string `mapstructure:"name" json:"name,omitempty"`
	Email    string `mapstructure:"email" json:"email,omitempty"`
	Phone    string `mapstructure:"phone" json:"phone,omitempty"`
	Location string `mapstructure:"location" json:"location,omitempty"`
}

type Experience struct {
	Title             string `mapstructure:"title" json:"title,omitempty"`
	Company           string `mapstructure:"company" json:"company,omitempty"`
	Duration          string `mapstructure:"duration" json:"duration,omitempty"`
	Description       string `mapstructure:"description" json:"description,omitempty"`
	YearsOfExperience string `mapstructure:"yearsOfExperience" json:"yearsOfExperience,omitempty"`
}

type Education struct {
	Degree      string `mapstructure:"degree" json:"degree,omitempty"`
	Institution string `mapstructure:"institution" json:"institution,omitempty"`
	Year        string `mapstructure:"year" json:"year,omitempty"`
}

// Resume is one parsed resume of a candidate.
type Resume struct {
	PersonalInfo PersonalInfo `json:"personalInfo"`
	Skills       []string     `json:"skills,omitempty"`
	Experience   []Experience `json:"experience,omitempty"`
	Education    []Education  `json:"education,omitempty"`
	Summary      string       `json:"summary,omitempty"`
}

var resumeAliases = map[string]string{
	"personal_info":        "personalInfo",
	"work_experience":      "experience",
	"professional_summary": "summary",
}

var experienceAliases = map[string]string{
	"years_of_experience": "yearsOfExperience",
	"years":               "yearsOfExperience",
	"position":            "title",
}

// DecodeResume converts a stored resume document into a Resume. Every section is
// decoded on its own: a malformed section is left empty and reported in the
// returned error while the rest of the resume is still usable.
func DecodeResume(doc map[string]any) (Resume, error) {
	var resume Resume
	if doc == nil {
		return resume, nil
	}

	doc = aliasKeys(doc, resumeAliases)

	var errs []error
	section := func(key string, out any) {
		v, ok := doc[key]
		if !ok || v == nil {
			return
		}
		if err := decode(v, out); err != nil {
			errs = append(errs, fmt.Errorf("decode %s: %w", key, err))
		}
	}

	section("personalInfo", &resume.PersonalInfo)
	section("summary", &resume.Summary)

	resume.Skills = stringList(doc["skills"])

	if raw, ok := doc["experience"]; ok && raw != nil {
		for _, entry := range documentList(raw) {
			var exp Experience
			if err := decode(aliasKeys(entry, experienceAliases), &exp); err != nil {
				errs = append(errs, fmt.Errorf("decode experience: %w", err))
				continue
			}
			resume.Experience = append(resume.Experience, exp)
		}
	}

	if raw, ok := doc["education"]; ok && raw != nil {
		for _, entry := range documentList(raw) {
			var edu Education
			if err := decode(entry, &edu); err != nil {
				errs = append(errs, fmt.Errorf("decode education: %w", err))
				continue
			}
			resume.Education = append(resume.Education, edu)
		}
	}

	return resume, errors.Join(errs...)
}

// documentList accepts a single document or a list of documents.
func documentList(v any) []map[string]any {
	switch typed := v.(type) {
	case map[string]any:
		return []map[string]any{typed}
	case []map[string]any:
		return typed
	case []any:
		result := make([]map[string]any, 0, len(typed))
		for _, item := range typed {
			if m, ok := item.(map[string]any); ok {
				result = append(result, m)
			}
		}
		return result
	default:
		return nil
	}
}

// Text joins the free-text parts of the resume used for semantic comparison.
func (r Resume) Text() string {
	parts := make([]string, 0, 4+len(r.Experience)+len(r.Education))
	parts = append(parts, r.Summary)
	if len(r.Skills) > 0 {
		parts = append(parts, "Skills: "+strings.Join(r.Skills, ", "))
	}
	for _, exp := range r.Experience {
		parts = append(parts, strings.TrimSpace(exp.Title+" "+exp.Company+" "+exp.Description))
	}
	for _, edu := range r.Education {
		parts = append(parts, strings.TrimSpace(edu.Degree+" "+edu.Institution))
	}
	return joinNonEmpty(parts, "\n")
}

// ResumesText joins the text of every resume of a candidate.
func ResumesText(resumes []Resume) string {
	parts := make([]string, 0, len(resumes))
	for _, r := range resumes {
		parts = append(parts, r.Text())
	}
	return joinNonEmpty(parts, "\n\n")
}

// Skills flattens the skills of all resumes keeping first-seen order.
func Skills(resumes []Resume) []string {
	seen := make(map[string]bool)
	result := make([]string, 0)
	for _, r := range resumes {
		for _, skill := range r.Skills {
			key := strings.ToLower(strings.TrimSpace(skill))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			result = append(result, strings.TrimSpace(skill))
		}
	}
	return result
}

func joinNonEmpty(parts []string, sep string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, sep)
}
