package model

// Job types
type JobType string

const (
	JobTypeResume        JobType = "resume"
	JobTypeVideoAnalysis JobType = "video-analysis"
	JobTypeEmbedding     JobType = "embedding"
	JobTypeBiasDetection JobType = "bias-detection"
)

var ValidJobTypes = []JobType{
	JobTypeResume, JobTypeVideoAnalysis, JobTypeEmbedding, JobTypeBiasDetection,
}

func (t JobType) Valid() bool {
	for _, v := range ValidJobTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Priority levels. High runs inline, the others go through the queue.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority maps a client hint onto a priority. Anything unknown is medium.
func ParsePriority(s string) Priority {
	switch Priority(s) {
	case PriorityHigh, PriorityLow:
		return Priority(s)
	default:
		return PriorityMedium
	}
}

// Job status
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

var validTransitions = map[JobStatus][]JobStatus{
	JobStatusQueued:     {JobStatusProcessing, JobStatusCancelled},
	JobStatusProcessing: {JobStatusCompleted, JobStatusFailed, JobStatusCancelled},
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Roles
type Role string

const (
	RoleCandidate    Role = "candidate"
	RoleRecruiter    Role = "recruiter"
	RoleCompanyAdmin Role = "company_admin"
	RoleAdmin        Role = "admin"
)

func IsValidRole(r string) bool {
	switch Role(r) {
	case RoleCandidate, RoleRecruiter, RoleCompanyAdmin, RoleAdmin:
		return true
	}
	return false
}

// Bias categories
type BiasCategory string

const (
	BiasGender     BiasCategory = "gender"
	BiasAge        BiasCategory = "age"
	BiasRacial     BiasCategory = "racial"
	BiasEducation  BiasCategory = "education"
	BiasLocation   BiasCategory = "location"
	BiasName       BiasCategory = "name"
	BiasExperience BiasCategory = "experience"
	BiasLanguage   BiasCategory = "language"
)

// Severity of a bias flag
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Hiring recommendation emitted by interview analysis
type Recommendation string

const (
	RecommendStrongYes Recommendation = "strong_yes"
	RecommendYes       Recommendation = "yes"
	RecommendMaybe     Recommendation = "maybe"
	RecommendNo        Recommendation = "no"
)
