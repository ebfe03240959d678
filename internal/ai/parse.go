package ai

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hirewise/api/internal/model"
)

type resumeShape struct {
	Skills            []string                `json:"skills" validate:"required"`
	Experience        []model.ExperienceEntry `json:"experience" validate:"dive"`
	Education         []model.EducationEntry  `json:"education" validate:"dive"`
	Summary           string                  `json:"summary"`
	YearsOfExperience *float64                `json:"yearsOfExperience" validate:"required"`
}

type biasFlagShape struct {
	Category    string   `json:"category" validate:"required,oneof=gender age racial education location name experience language"`
	Severity    string   `json:"severity" validate:"required,oneof=low medium high critical"`
	Confidence  *float64 `json:"confidence" validate:"required"`
	Description string   `json:"description" validate:"required"`
}

type biasShape struct {
	Flags           []biasFlagShape `json:"flags" validate:"required,dive"`
	FairnessScore   *float64        `json:"fairnessScore" validate:"required"`
	Summary         string          `json:"summary"`
	Recommendations []string        `json:"recommendations"`
}

type competencyShape struct {
	Name     string   `json:"name" validate:"required"`
	Score    *float64 `json:"score" validate:"required"`
	Evidence string   `json:"evidence"`
}

type interviewShape struct {
	Competencies   []competencyShape `json:"competencies" validate:"required,min=1,dive"`
	OverallScore   *float64          `json:"overallScore" validate:"required"`
	Strengths      []string          `json:"strengths"`
	Concerns       []string          `json:"concerns"`
	Summary        string            `json:"summary"`
	Recommendation string            `json:"recommendation" validate:"required,oneof=strong_yes yes maybe no"`
}

// extractJSON attempts to extract JSON from a response that may contain extra text
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

// decode parses raw provider output into dst, then runs fix to clamp and
// normalize, then checks the validation tags.
func decode[T any](v *validator.Validate, op, raw string, fix func(*T)) (*T, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, shapeError(op, "empty response")
	}

	var dst T
	if err := json.Unmarshal([]byte(extractJSON(raw)), &dst); err != nil {
		return nil, shapeError(op, "unparseable json: "+err.Error())
	}
	if fix != nil {
		fix(&dst)
	}
	if err := v.Struct(&dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Namespace()+":"+fe.Tag())
			}
			return nil, shapeError(op, strings.Join(fields, ", "))
		}
		return nil, shapeError(op, err.Error())
	}
	return &dst, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampPtr(p *float64, lo, hi float64) {
	if p != nil {
		*p = clamp(*p, lo, hi)
	}
}

// cleanList trims entries, drops empties and duplicates, and never returns nil.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		k := strings.ToLower(s)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}

func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func fixResume(r *resumeShape) {
	if r.Skills != nil {
		r.Skills = cleanList(r.Skills)
	}
	clampPtr(r.YearsOfExperience, 0, 80)
}

func fixBias(r *biasShape) {
	for i := range r.Flags {
		r.Flags[i].Category = normalizeEnum(r.Flags[i].Category)
		r.Flags[i].Severity = normalizeEnum(r.Flags[i].Severity)
		clampPtr(r.Flags[i].Confidence, 0, 1)
	}
	clampPtr(r.FairnessScore, 0, 1)
}

func fixInterview(r *interviewShape) {
	for i := range r.Competencies {
		clampPtr(r.Competencies[i].Score, 1, 5)
	}
	clampPtr(r.OverallScore, 1, 5)
	r.Recommendation = normalizeEnum(r.Recommendation)
}
