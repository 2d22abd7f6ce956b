package scoring

import "math"

// Segment is one linear piece of a transform curve, applied to similarities in
// [From, next segment's From).
type Segment struct {
	From   float64
	Offset float64
	Slope  float64
}

// Weights are the coefficients of the final weighted sum.
type Weights struct {
	Similarity float64
	External   float64
	Skill      float64
	Experience float64
	Education  float64
}

// Sum returns the total of all coefficients.
func (w Weights) Sum() float64 {
	return w.Similarity + w.External + w.Skill + w.Experience + w.Education
}

// Strategy is a named way of turning raw similarity and sub-scores into a final score.
type Strategy struct {
	Name     string
	Segments []Segment
	Weights  Weights
	// Floor returns the minimum final score for a job; nil means no floor.
	Floor func(hasRequirements bool) float64
}

// Inputs are the values combined by Blend.
type Inputs struct {
	Similarity      float64
	ExternalOverall float64
	Structured      Structured
	HasRequirements bool
}

// Outcome is the result of blending.
type Outcome struct {
	TransformedPercent float64
	FinalScore         float64
}

// Apply is used when a candidate submits an application.
var Apply = Strategy{
	Name: "apply",
	Segments: []Segment{
		{From: 0, Offset: 0, Slope: 40},
		{From: 0.6, Offset: 50, Slope: 200},
		{From: 0.7, Offset: 70, Slope: 125},
		{From: 0.82, Offset: 85, Slope: 15 / 0.18},
	},
	Weights: Weights{Similarity: 0.5, External: 0.2, Skill: 0.1, Experience: 0.1, Education: 0.1},
}

// Browse is used when a candidate only views a job listing. It is more generous at
// low similarity and never goes below a floor.
var Browse = Strategy{
	Name: "browse",
	Segments: []Segment{
		{From: 0, Offset: 0, Slope: 150},
		{From: 0.2, Offset: 30, Slope: 150},
		{From: 0.4, Offset: 60, Slope: 100},
		{From: 0.6, Offset: 80, Slope: 50},
	},
	Weights: Weights{Similarity: 0.3, External: 0.3, Skill: 0.2, Experience: 0.1, Education: 0.1},
	Floor: func(hasRequirements bool) float64 {
		if hasRequirements {
			return 20
		}
		return 40
	},
}

// Transform maps a raw similarity to a percentage using the strategy's curve.
func (s Strategy) Transform(similarity float64) float64 {
	if math.IsNaN(similarity) || len(s.Segments) == 0 {
		return 0
	}
	similarity = clamp(similarity, 0, 1)

	segment := s.Segments[0]
	for _, candidate := range s.Segments[1:] {
		if similarity < candidate.From {
			break
		}
		segment = candidate
	}

	return round2(clamp(segment.Offset+(similarity-segment.From)*segment.Slope, 0, 100))
}

// Blend combines the transformed similarity, the external overall score and the
// structured sub-scores into the final score.
func (s Strategy) Blend(in Inputs) Outcome {
	transformed := s.Transform(in.Similarity)
	w := s.Weights

	final := w.Similarity*transformed +
		w.External*finite(in.ExternalOverall) +
		w.Skill*finite(in.Structured.SkillScore) +
		w.Experience*finite(in.Structured.ExperienceScore) +
		w.Education*finite(in.Structured.EducationScore)

	if s.Floor != nil {
		final = math.Max(final, s.Floor(in.HasRequirements))
	}

	return Outcome{
		TransformedPercent: transformed,
		FinalScore:         round2(clamp(final, 0, 100)),
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return clamp(v, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
