package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// Result is what every scoring call returns, even a failed one. One bad
// email must never abort a batch fetch, so every failure mode here maps to
// a well-defined Result instead of an error.
type Result struct {
	Score   int    `json:"score"`
	Summary string `json:"summary"`
}

// Scorer rates a resume against a job description on a 0-10 scale.
type Scorer interface {
	Score(ctx context.Context, resumeText, jobDescription string) Result
}

const scoringPrompt = `You are an HR professional screening job applications.
Analyze this resume against the job description and respond with valid JSON
only, in this exact format, using double quotes and no markdown code blocks:
{"score": <number between 0 and 10>, "summary": "<brief 2-line summary>"}

Job Description:
%s

Resume Text:
%s
`

const maxResumeChars = 20000

// LLMScorer rates resumes with a Gemini model through langchaingo. A nil
// model degrades to the "scoring unavailable" soft-fail so the pipeline
// still runs without an API key.
type LLMScorer struct {
	model llms.Model
}

func NewLLMScorer(model llms.Model) *LLMScorer {
	return &LLMScorer{model: model}
}

var _ Scorer = (*LLMScorer)(nil)

func (s *LLMScorer) Score(ctx context.Context, resumeText, jobDescription string) Result {
	resumeText = strings.TrimSpace(resumeText)
	jobDescription = strings.TrimSpace(jobDescription)
	if resumeText == "" || jobDescription == "" {
		// Deterministic, and saves model quota.
		return Result{Score: 0, Summary: "insufficient data"}
	}
	if s.model == nil {
		return Result{Score: 0, Summary: "scoring unavailable: model not configured"}
	}

	if len(resumeText) > maxResumeChars {
		resumeText = resumeText[:maxResumeChars]
	}
	prompt := fmt.Sprintf(scoringPrompt, jobDescription, resumeText)

	resp, err := llms.GenerateFromSinglePrompt(ctx, s.model, prompt,
		llms.WithTemperature(0.2),
		llms.WithMaxTokens(200),
	)
	if err != nil {
		log.Printf("Scoring call failed: %v", err)
		return Result{Score: 0, Summary: "scoring unavailable: " + err.Error()}
	}

	result, ok := parseResult(resp)
	if !ok {
		log.Printf("Unparseable scoring response: %q", resp)
		return Result{Score: 5, Summary: "unable to parse AI response"}
	}
	return result
}

// parseResult digs the score/summary JSON out of a model response that may
// be wrapped in markdown fences or prose.
func parseResult(resp string) (Result, bool) {
	resp = strings.ReplaceAll(resp, "```json", "")
	resp = strings.ReplaceAll(resp, "```", "")

	start := strings.Index(resp, "{")
	end := strings.LastIndex(resp, "}")
	if start == -1 || end == -1 || end < start {
		return Result{}, false
	}

	var parsed struct {
		Score   float64 `json:"score"`
		Summary string  `json:"summary"`
	}
	if err := json.Unmarshal([]byte(resp[start:end+1]), &parsed); err != nil {
		return Result{}, false
	}

	score := int(math.Round(parsed.Score))
	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}
	summary := strings.TrimSpace(parsed.Summary)
	if summary == "" {
		summary = "Unable to generate summary"
	}
	return Result{Score: score, Summary: summary}, true
}
