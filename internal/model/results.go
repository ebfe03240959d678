package model

// ResumeResult is the structured output of resume processing.
type ResumeResult struct {
	Text              string            `json:"text"`
	Skills            []string          `json:"skills"`
	Experience        []ExperienceEntry `json:"experience"`
	Education         []EducationEntry  `json:"education"`
	Summary           string            `json:"summary"`
	YearsOfExperience float64           `json:"yearsOfExperience"`
}

type ExperienceEntry struct {
	Title       string `json:"title" validate:"required"`
	Company     string `json:"company,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
	Description string `json:"description,omitempty"`
}

type EducationEntry struct {
	Institution    string `json:"institution" validate:"required"`
	Degree         string `json:"degree,omitempty"`
	Field          string `json:"field,omitempty"`
	GraduationYear int    `json:"graduationYear,omitempty"`
}

type EmbeddingResult struct {
	Vector     []float32 `json:"vector"`
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
}

type BiasFlag struct {
	Category    BiasCategory `json:"category"`
	Severity    Severity     `json:"severity"`
	Confidence  float64      `json:"confidence"`
	Description string       `json:"description"`
}

type BiasReport struct {
	Flags           []BiasFlag `json:"flags"`
	FairnessScore   float64    `json:"fairnessScore"`
	Summary         string     `json:"summary"`
	Recommendations []string   `json:"recommendations"`
}

type CompetencyScore struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Evidence string  `json:"evidence,omitempty"`
}

type InterviewAnalysis struct {
	Competencies   []CompetencyScore `json:"competencies"`
	OverallScore   float64           `json:"overallScore"`
	Strengths      []string          `json:"strengths"`
	Concerns       []string          `json:"concerns"`
	Summary        string            `json:"summary"`
	Recommendation Recommendation    `json:"recommendation"`
	Transcript     string            `json:"transcript"`
}
