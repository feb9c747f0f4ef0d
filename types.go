package main

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"
)

// AnalyzeTextRequest is the payload for the analyze-text function.
// A missing text decodes to nil.
type AnalyzeTextRequest struct {
	Text *string `json:"text"`
}

// CreateAnalysisRequest is the payload for POST /api/analyses and POST /api/jobs/analyze.
type CreateAnalysisRequest struct {
	Text       string `json:"text"`
	HasConsent bool   `json:"has_consent"`
}

// SentimentAnalysis is the sentiment section of a model reply.
type SentimentAnalysis struct {
	OverallSentiment string   `json:"overall_sentiment"`
	Inconsistencies  []string `json:"inconsistencies"`
	EmotionalShifts  float64  `json:"emotional_shifts"`
}

// LinguisticAnalysis is the linguistic section of a model reply.
type LinguisticAnalysis struct {
	DistancingLanguage float64  `json:"distancing_language"`
	QualifierOveruse   float64  `json:"qualifier_overuse"`
	UnusualPhrasing    []string `json:"unusual_phrasing"`
	ComplexityScore    float64  `json:"complexity_score"`
}

// EmotionalAnalysis is the emotional section of a model reply.
type EmotionalAnalysis struct {
	StatedEmotion    string   `json:"stated_emotion"`
	ImpliedEmotion   string   `json:"implied_emotion"`
	MismatchLevel    string   `json:"mismatch_level"`
	StressIndicators []string `json:"stress_indicators"`
}

// AnalysisResult is the JSON object the model is asked to produce.
// TextScore is a pointer so a reply without a score is detected as unusable.
type AnalysisResult struct {
	TextScore          *float64           `json:"text_score"`
	Confidence         string             `json:"confidence"`
	SentimentAnalysis  SentimentAnalysis  `json:"sentiment_analysis"`
	LinguisticAnalysis LinguisticAnalysis `json:"linguistic_analysis"`
	EmotionalAnalysis  EmotionalAnalysis  `json:"emotional_analysis"`
	KeyFindings        []string           `json:"key_findings"`
	Interpretation     string             `json:"interpretation"`
}

// AnalysisResponse is what the service returns for a completed analysis.
type AnalysisResponse struct {
	TextScore          int                `json:"text_score"`
	FinalScore         int                `json:"final_score"`
	Confidence         string             `json:"confidence"`
	SentimentAnalysis  SentimentAnalysis  `json:"sentiment_analysis"`
	LinguisticAnalysis LinguisticAnalysis `json:"linguistic_analysis"`
	EmotionalAnalysis  EmotionalAnalysis  `json:"emotional_analysis"`
	KeyFindings        []string           `json:"key_findings"`
	Interpretation     string             `json:"interpretation"`
}

// AnalysisSummary is one row of GET /api/analyses.
type AnalysisSummary struct {
	ID                 string             `json:"id"`
	TextContent        string             `json:"text_content"`
	FinalScore         int                `json:"final_score"`
	ScoreBand          string             `json:"score_band"`
	HonestyScore       int                `json:"honesty_score"`
	CreatedAt          time.Time          `json:"created_at"`
	SentimentAnalysis  SentimentAnalysis  `json:"sentiment_analysis"`
	LinguisticAnalysis LinguisticAnalysis `json:"linguistic_analysis"`
	EmotionalAnalysis  EmotionalAnalysis  `json:"emotional_analysis"`
}

// CreateAnalysisResponse is returned by POST /api/analyses.
type CreateAnalysisResponse struct {
	ID       string           `json:"id,omitempty"`
	Saved    bool             `json:"saved"`
	Analysis AnalysisResponse `json:"analysis"`
}

// User is the authenticated caller.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// flexNumber decodes 3 and "3". Anything else decodes as zero.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = 0
	switch t := v.(type) {
	case float64:
		*n = flexNumber(t)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			*n = flexNumber(f)
		}
	}
	return nil
}

// flexString decodes any JSON value as text.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = flexString(jsonText(v))
	return nil
}

// flexStrings decodes a list, or a single value as a one-element list.
// Objects in the list are reduced to their text.
type flexStrings []string

func (l *flexStrings) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*l = nil
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if text := jsonText(item); text != "" {
				out = append(out, text)
			}
		}
		*l = out
	default:
		*l = []string{}
		if text := jsonText(t); text != "" {
			*l = []string{text}
		}
	}
	return nil
}

// findingKeys are the fields models use for the text of a finding object.
var findingKeys = []string{"finding", "text", "description", "summary", "detail", "indicator"}

func jsonText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if text := jsonText(item); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]interface{}:
		for _, key := range findingKeys {
			if text := jsonText(t[key]); text != "" {
				return text
			}
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if text := jsonText(t[k]); text != "" {
				parts = append(parts, k+": "+text)
			}
		}
		return strings.Join(parts, "; ")
	}
	return ""
}
