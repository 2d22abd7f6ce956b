package scoring

import (
	"math"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aksharjobs/matchscore/internal/records"
)

// Structured holds the rule-based sub-scores of a resume against a job.
type Structured struct {
	SkillScore      float64  `json:"skillScore"`
	ExperienceScore float64  `json:"experienceScore"`
	EducationScore  float64  `json:"educationScore"`
	MissingSkills   []string `json:"missingSkills"`
}

// Education levels, ordered.
const (
	LevelNone = iota
	LevelHighSchool
	LevelAssociate
	LevelBachelor
	LevelMaster
	LevelPhD
)

var currentYear = func() int { return time.Now().Year() }

var (
	numberPattern    = regexp.MustCompile(`\d+(?:\.\d+)?`)
	yearRangePattern = regexp.MustCompile(`((?:19|20)\d{2})\s*(?:-|–|to)\s*((?:19|20)\d{2})`)
	openRangePattern = regexp.MustCompile(`(?i)((?:19|20)\d{2})\s*(?:-|–|to)\s*(?:present|current|now|today)`)
	nonWordPattern   = regexp.MustCompile(`[^a-z0-9]+`)
)

// degreeTerms maps normalized words and phrases to an education level. Longer
// phrases are matched first and consumed, so "post graduate" is not read again
// as "graduate" and "high school diploma" is not read as a diploma.
var degreeTerms = byLength(map[int][]string{
	LevelPhD:        {"phd", "doctorate", "doctoral", "doctor of"},
	LevelMaster:     {"master", "masters", "msc", "mtech", "mba", "mca", "postgraduate", "post graduate"},
	LevelBachelor:   {"bachelor", "bachelors", "bsc", "btech", "bca", "bcom", "undergraduate"},
	LevelAssociate:  {"associate", "associates", "diploma"},
	LevelHighSchool: {"high school", "high school diploma", "secondary school", "secondary", "12th", "hsc", "ssc"},
})

// genericTerms name a degree without its level. They count as a bachelor's
// only when nothing more specific is mentioned.
var genericTerms = []string{"degree", "graduate"}

// degreeAbbreviations collide with ordinary words ("must be", "MS Office").
// They count when dotted, as in "B.E.", or when they open the text on their
// own or before "in"/"of", as in "MS in Computer Science".
var degreeAbbreviations = map[string]int{
	"ba": LevelBachelor, "bs": LevelBachelor, "be": LevelBachelor,
	"ma": LevelMaster, "ms": LevelMaster, "me": LevelMaster,
}

var dottedDegreePattern = regexp.MustCompile(`(?:^|[^a-z])([bm])\.\s?([aes])(?:\.|[^a-z]|$)`)

type degreeTerm struct {
	phrase string
	level  int
}

func byLength(levels map[int][]string) []degreeTerm {
	var terms []degreeTerm
	for level, phrases := range levels {
		for _, phrase := range phrases {
			terms = append(terms, degreeTerm{phrase: phrase, level: level})
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i].phrase) != len(terms[j].phrase) {
			return len(terms[i].phrase) > len(terms[j].phrase)
		}
		return terms[i].phrase < terms[j].phrase
	})
	return terms
}

// Score computes the skill, experience and education sub-scores. It never fails:
// missing or malformed data lowers the affected sub-score.
func Score(resumes []records.Resume, job records.Job) Structured {
	skill, missing := SkillScore(records.Skills(resumes), job.RequiredSkills)

	return Structured{
		SkillScore:      skill,
		ExperienceScore: ExperienceScore(TotalYears(resumes), RequiredYears(job.ExperienceRequired)),
		EducationScore:  EducationScore(HighestLevel(resumes), RequiredEducationLevel(job.EducationRequired)),
		MissingSkills:   missing,
	}
}

// SkillScore returns the share of required skills present in the resume skills and
// the required skills that are missing, in the order and casing of the job posting.
func SkillScore(resumeSkills, required []string) (float64, []string) {
	have := make(map[string]bool, len(resumeSkills))
	for _, skill := range resumeSkills {
		have[strings.ToLower(strings.TrimSpace(skill))] = true
	}

	seen := make(map[string]bool, len(required))
	missing := make([]string, 0)
	matched, total := 0, 0
	for _, skill := range required {
		skill = strings.TrimSpace(skill)
		key := strings.ToLower(skill)
		if records.IsPlaceholder(skill) || seen[key] {
			continue
		}
		seen[key] = true
		total++

		if have[key] {
			matched++
			continue
		}
		missing = append(missing, skill)
	}

	return round2(100 * float64(matched) / math.Max(1, float64(total))), missing
}

// ExperienceScore gives full credit when the resume meets the required years and
// proportional credit otherwise. A job without a requirement gives full credit.
func ExperienceScore(resumeYears, requiredYears float64) float64 {
	if requiredYears <= 0 {
		return 100
	}
	if resumeYears <= 0 {
		return 0
	}
	return round2(math.Min(100, 100*resumeYears/requiredYears))
}

// EducationScore gives full credit on meet-or-exceed and proportional credit otherwise.
func EducationScore(resumeLevel, requiredLevel int) float64 {
	if requiredLevel <= LevelNone || resumeLevel >= requiredLevel {
		return 100
	}
	if resumeLevel <= LevelNone {
		return 0
	}
	return round2(100 * float64(resumeLevel) / float64(requiredLevel))
}

// TotalYears sums the years of experience of every entry of every resume.
func TotalYears(resumes []records.Resume) float64 {
	total := 0.0
	for _, r := range resumes {
		for _, exp := range r.Experience {
			total += entryYears(exp)
		}
	}
	return total
}

func entryYears(exp records.Experience) float64 {
	if years := firstNumber(exp.YearsOfExperience); years > 0 {
		return years
	}

	if m := yearRangePattern.FindStringSubmatch(exp.Duration); m != nil {
		from, _ := strconv.Atoi(m[1])
		to, _ := strconv.Atoi(m[2])
		if to > from {
			return float64(to - from)
		}
		return 0
	}

	if m := openRangePattern.FindStringSubmatch(exp.Duration); m != nil {
		from, _ := strconv.Atoi(m[1])
		if to := currentYear(); to > from {
			return float64(to - from)
		}
		return 0
	}

	duration := strings.ToLower(exp.Duration)
	if strings.Contains(duration, "year") || strings.Contains(duration, "yr") {
		return firstNumber(duration)
	}
	if strings.Contains(duration, "month") {
		return firstNumber(duration) / 12
	}
	return 0
}

// RequiredYears extracts the first number from a requirement such as "3+ years".
func RequiredYears(requirement string) float64 {
	if records.IsPlaceholder(requirement) {
		return 0
	}
	return firstNumber(requirement)
}

func firstNumber(s string) float64 {
	match := numberPattern.FindString(s)
	if match == "" {
		return 0
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil || math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

// HighestLevel returns the highest education level across all resumes.
func HighestLevel(resumes []records.Resume) int {
	highest := LevelNone
	for _, r := range resumes {
		for _, edu := range r.Education {
			if level := EducationLevel(edu.Degree); level > highest {
				highest = level
			}
		}
	}
	return highest
}

// EducationLevel maps free text such as "Bachelor's in CS" or "M.Tech" to the
// highest level it mentions. Unknown or empty text is LevelNone.
func EducationLevel(text string) int {
	highest := LevelNone
	for _, level := range mentionedLevels(text) {
		highest = max(highest, level)
	}
	return highest
}

// RequiredEducationLevel reads a job requirement as its minimum acceptable level:
// "Bachelor's degree, Master's preferred" and "Bachelor's or Master's" both
// require a bachelor's.
func RequiredEducationLevel(text string) int {
	levels := mentionedLevels(text)
	if len(levels) == 0 {
		return LevelNone
	}
	return slices.Min(levels)
}

func mentionedLevels(text string) []int {
	if records.IsPlaceholder(text) {
		return nil
	}

	var levels []int
	lowered := strings.ToLower(text)
	for _, m := range dottedDegreePattern.FindAllStringSubmatch(lowered, -1) {
		levels = append(levels, degreeAbbreviations[m[1]+m[2]])
	}

	normalized := strings.NewReplacer(".", "", "'", "", "’", "").Replace(lowered)
	normalized = " " + strings.TrimSpace(nonWordPattern.ReplaceAllString(normalized, " ")) + " "

	if fields := strings.Fields(normalized); len(levels) == 0 && len(fields) > 0 {
		if level, ok := degreeAbbreviations[fields[0]]; ok && (len(fields) == 1 || fields[1] == "in" || fields[1] == "of") {
			levels = append(levels, level)
		}
	}

	for _, term := range degreeTerms {
		needle := " " + term.phrase + " "
		if !strings.Contains(normalized, needle) {
			continue
		}
		levels = append(levels, term.level)
		for strings.Contains(normalized, needle) {
			normalized = strings.Replace(normalized, needle, " ", 1)
		}
	}

	if len(levels) == 0 {
		for _, term := range genericTerms {
			if strings.Contains(normalized, " "+term+" ") {
				return []int{LevelBachelor}
			}
		}
	}
	return levels
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
