package records

import (
	"strings"
)

// Job is a job posting as seen by the matching pipeline.
type Job struct {
	ID                 string   `mapstructure:"_id" json:"id"`
	Title              string   `mapstructure:"title" json:"title,omitempty"`
	Company            string   `mapstructure:"company" json:"company,omitempty"`
	Description        string   `mapstructure:"description" json:"description,omitempty"`
	Location           string   `mapstructure:"location" json:"location,omitempty"`
	RequiredSkills     []string `mapstructure:"requiredSkills" json:"requiredSkills,omitempty"`
	ExperienceRequired string   `mapstructure:"experienceRequired" json:"experienceRequired,omitempty"`
	EducationRequired  string   `mapstructure:"educationRequired" json:"educationRequired,omitempty"`
}

var jobAliases = map[string]string{
	"id":                  "_id",
	"job_title":           "title",
	"company_name":        "company",
	"required_skills":     "requiredSkills",
	"experience_required": "experienceRequired",
	"education_required":  "educationRequired",
}

// placeholders are requirement values that carry no actual requirement.
var placeholders = map[string]bool{
	"":              true,
	"n/a":           true,
	"na":            true,
	"none":          true,
	"not specified": true,
	"any":           true,
	"-":             true,
	"0":             true,
}

// DecodeJob converts a stored job document into a Job.
func DecodeJob(doc map[string]any) (Job, error) {
	var job Job
	if doc == nil {
		return job, nil
	}

	doc = aliasKeys(doc, jobAliases)

	skills := doc["requiredSkills"]
	delete(doc, "requiredSkills")

	err := decode(doc, &job)
	job.RequiredSkills = stringList(skills)

	return job, err
}

// HasRequirements reports whether the job states at least one structured
// requirement (skills, experience or education).
func (j Job) HasRequirements() bool {
	for _, skill := range j.RequiredSkills {
		if !IsPlaceholder(skill) {
			return true
		}
	}
	return !IsPlaceholder(j.ExperienceRequired) || !IsPlaceholder(j.EducationRequired)
}

// IsPlaceholder reports whether a requirement value is empty or a filler such as "N/A".
func IsPlaceholder(value string) bool {
	return placeholders[strings.ToLower(strings.TrimSpace(value))]
}

// Text joins the free-text parts of the job used for semantic comparison.
func (j Job) Text() string {
	parts := []string{j.Title, j.Description}
	if len(j.RequiredSkills) > 0 {
		parts = append(parts, "Required skills: "+strings.Join(j.RequiredSkills, ", "))
	}
	if !IsPlaceholder(j.ExperienceRequired) {
		parts = append(parts, "Experience: "+j.ExperienceRequired)
	}
	if !IsPlaceholder(j.EducationRequired) {
		parts = append(parts, "Education: "+j.EducationRequired)
	}
	return joinNonEmpty(parts, "\n")
}
