package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	fencedJSONPattern = regexp.MustCompile("(?s)```json\\n?(.*?)\\n?```")
	bareObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

	errMissingScore = errors.New("model reply has no text_score")
)

var validConfidence = map[string]bool{"low": true, "medium": true, "high": true}

// extractJSON pulls the JSON document out of a model reply. Models often wrap
// the object in a ```json fence or surround it with prose; the fence wins, then
// the widest {...} span, then the reply as-is.
func extractJSON(content string) string {
	if m := fencedJSONPattern.FindStringSubmatch(content); m != nil && strings.TrimSpace(m[1]) != "" {
		return m[1]
	}
	if m := bareObjectPattern.FindString(content); m != "" {
		return m
	}
	return content
}

// analysisReply mirrors AnalysisResult with loosely typed fields.
type analysisReply struct {
	TextScore          json.RawMessage `json:"text_score"`
	Confidence         flexString      `json:"confidence"`
	SentimentAnalysis  json.RawMessage `json:"sentiment_analysis"`
	LinguisticAnalysis json.RawMessage `json:"linguistic_analysis"`
	EmotionalAnalysis  json.RawMessage `json:"emotional_analysis"`
	KeyFindings        flexStrings     `json:"key_findings"`
	Interpretation     flexString      `json:"interpretation"`
}

type sentimentReply struct {
	OverallSentiment flexString  `json:"overall_sentiment"`
	Inconsistencies  flexStrings `json:"inconsistencies"`
	EmotionalShifts  flexNumber  `json:"emotional_shifts"`
}

type linguisticReply struct {
	DistancingLanguage flexNumber  `json:"distancing_language"`
	QualifierOveruse   flexNumber  `json:"qualifier_overuse"`
	UnusualPhrasing    flexStrings `json:"unusual_phrasing"`
	ComplexityScore    flexNumber  `json:"complexity_score"`
}

type emotionalReply struct {
	StatedEmotion    flexString  `json:"stated_emotion"`
	ImpliedEmotion   flexString  `json:"implied_emotion"`
	MismatchLevel    flexString  `json:"mismatch_level"`
	StressIndicators flexStrings `json:"stress_indicators"`
}

// parseAnalysisContent parses the analysis object from a model reply. It only
// fails when the reply is not a JSON object or carries no numeric text_score;
// a section of the wrong shape is left empty.
func parseAnalysisContent(content string) (*AnalysisResult, error) {
	var reply analysisReply
	if err := json.Unmarshal([]byte(extractJSON(content)), &reply); err != nil {
		return nil, fmt.Errorf("failed to parse structured response: %w", err)
	}
	score, ok := parseScore(reply.TextScore)
	if !ok {
		return nil, errMissingScore
	}

	var sentiment sentimentReply
	var linguistic linguisticReply
	var emotional emotionalReply
	decodeSection(reply.SentimentAnalysis, &sentiment)
	decodeSection(reply.LinguisticAnalysis, &linguistic)
	decodeSection(reply.EmotionalAnalysis, &emotional)

	return &AnalysisResult{
		TextScore:  &score,
		Confidence: string(reply.Confidence),
		SentimentAnalysis: SentimentAnalysis{
			OverallSentiment: string(sentiment.OverallSentiment),
			Inconsistencies:  sentiment.Inconsistencies,
			EmotionalShifts:  float64(sentiment.EmotionalShifts),
		},
		LinguisticAnalysis: LinguisticAnalysis{
			DistancingLanguage: float64(linguistic.DistancingLanguage),
			QualifierOveruse:   float64(linguistic.QualifierOveruse),
			UnusualPhrasing:    linguistic.UnusualPhrasing,
			ComplexityScore:    float64(linguistic.ComplexityScore),
		},
		EmotionalAnalysis: EmotionalAnalysis{
			StatedEmotion:    string(emotional.StatedEmotion),
			ImpliedEmotion:   string(emotional.ImpliedEmotion),
			MismatchLevel:    string(emotional.MismatchLevel),
			StressIndicators: emotional.StressIndicators,
		},
		KeyFindings:    reply.KeyFindings,
		Interpretation: string(reply.Interpretation),
	}, nil
}

// parseScore accepts 72, 72.5, "72" and "72%".
func parseScore(raw json.RawMessage) (float64, bool) {
	var v interface{}
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(t), "%"), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// decodeSection fills dst from a section object. Anything that is not an
// object leaves dst zero.
func decodeSection(raw json.RawMessage, dst interface{}) {
	if len(raw) == 0 {
		return
	}
	_ = json.Unmarshal(raw, dst)
}

// fallbackAnalysisResult is served when the model reply cannot be parsed.
func fallbackAnalysisResult() *AnalysisResult {
	score := 50.0
	return &AnalysisResult{
		TextScore:  &score,
		Confidence: "low",
		SentimentAnalysis: SentimentAnalysis{
			OverallSentiment: "neutral",
			Inconsistencies:  []string{},
			EmotionalShifts:  0,
		},
		LinguisticAnalysis: LinguisticAnalysis{
			DistancingLanguage: 0,
			QualifierOveruse:   0,
			UnusualPhrasing:    []string{},
			ComplexityScore:    5,
		},
		EmotionalAnalysis: EmotionalAnalysis{
			StatedEmotion:    "unknown",
			ImpliedEmotion:   "unknown",
			MismatchLevel:    "none",
			StressIndicators: []string{},
		},
		KeyFindings:    []string{"Unable to fully analyze the text. Please try again."},
		Interpretation: "Analysis could not be completed due to a technical issue.",
	}
}

// clampScore rounds a model score and keeps it within 0..100.
func clampScore(score float64) int {
	if math.IsNaN(score) {
		return 50
	}
	return int(math.Round(math.Max(0, math.Min(100, score))))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// buildAnalysisResponse shapes a parsed result into the response object.
// Text is the only input modality, so the final score is the text score.
func buildAnalysisResponse(result *AnalysisResult) AnalysisResponse {
	score := 50
	if result.TextScore != nil {
		score = clampScore(*result.TextScore)
	}

	confidence := strings.ToLower(strings.TrimSpace(result.Confidence))
	if !validConfidence[confidence] {
		confidence = "low"
	}

	sentiment := result.SentimentAnalysis
	sentiment.Inconsistencies = nonNil(sentiment.Inconsistencies)
	linguistic := result.LinguisticAnalysis
	linguistic.UnusualPhrasing = nonNil(linguistic.UnusualPhrasing)
	emotional := result.EmotionalAnalysis
	emotional.StressIndicators = nonNil(emotional.StressIndicators)

	return AnalysisResponse{
		TextScore:          score,
		FinalScore:         score,
		Confidence:         confidence,
		SentimentAnalysis:  sentiment,
		LinguisticAnalysis: linguistic,
		EmotionalAnalysis:  emotional,
		KeyFindings:        nonNil(result.KeyFindings),
		Interpretation:     result.Interpretation,
	}
}
