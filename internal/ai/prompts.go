package ai

import (
	"fmt"
	"strings"

	"github.com/hirewise/api/internal/model"
)

// maxPromptChars keeps documents inside the model context window.
const maxPromptChars = 24000

const resumeSystemPrompt = `You are a resume parser for a recruiting platform.
Return ONLY a JSON object with this structure:
{
  "skills": ["string"],
  "experience": [{"title": "string", "company": "string", "startDate": "YYYY-MM", "endDate": "YYYY-MM or present", "description": "string"}],
  "education": [{"institution": "string", "degree": "string", "field": "string", "graduationYear": 2020}],
  "summary": "two sentence professional summary",
  "yearsOfExperience": 0
}
Use empty arrays when a section is absent. Do not invent information that is not in the resume.`

const biasSystemPrompt = `You review hiring content for bias.
Categories: gender, age, racial, education, location, name, experience, language.
Severities: low, medium, high, critical.
Return ONLY a JSON object:
{
  "flags": [{"category": "string", "severity": "string", "confidence": 0.0, "description": "quote the problematic wording and explain"}],
  "fairnessScore": 0.0,
  "summary": "string",
  "recommendations": ["string"]
}
confidence and fairnessScore are between 0 and 1; 1 means fully fair. Use an empty flags array when nothing is found.`

const interviewSystemPrompt = `You evaluate recorded job interviews from their transcript.
Score each competency from 1 (poor) to 5 (excellent) and cite evidence from the transcript.
Return ONLY a JSON object:
{
  "competencies": [{"name": "string", "score": 1, "evidence": "string"}],
  "overallScore": 1,
  "strengths": ["string"],
  "concerns": ["string"],
  "summary": "string",
  "recommendation": "strong_yes | yes | maybe | no"
}
Base the evaluation only on what the candidate said.`

func buildResumePrompt(text string) string {
	return fmt.Sprintf("Parse the following resume:\n\n%s", clip(text))
}

func buildBiasPrompt(in model.BiasInput) string {
	kind := in.ContentType
	if kind == "" {
		kind = "job description"
	}
	return fmt.Sprintf("Content type: %s\n\nAnalyze the following content for bias:\n\n%s", kind, clip(in.Content))
}

func buildInterviewPrompt(ctxIn model.InterviewInput, transcript string) string {
	var b strings.Builder
	if ctxIn.Role != "" {
		fmt.Fprintf(&b, "Role: %s\n", ctxIn.Role)
	}
	if len(ctxIn.Questions) > 0 {
		b.WriteString("Questions asked:\n")
		for i, q := range ctxIn.Questions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, q)
		}
	}
	b.WriteString("\nTranscript:\n")
	b.WriteString(clip(transcript))
	return b.String()
}

func clip(s string) string {
	if len(s) <= maxPromptChars {
		return s
	}
	// back off to a rune boundary
	cut := maxPromptChars
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}
