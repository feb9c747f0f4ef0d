package main

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleAnalysisJSON = `{
  "text_score": 72,
  "confidence": "high",
  "sentiment_analysis": {"overall_sentiment": "negative", "inconsistencies": ["timeline shifts"], "emotional_shifts": 3},
  "linguistic_analysis": {"distancing_language": 4, "qualifier_overuse": 6, "unusual_phrasing": ["to be honest"], "complexity_score": 7},
  "emotional_analysis": {"stated_emotion": "calm", "implied_emotion": "anxious", "mismatch_level": "high", "stress_indicators": ["repetition"]},
  "key_findings": ["Frequent qualifiers"],
  "interpretation": "Several markers of deception."
}`

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "fenced block",
			content: "Here you go:\n```json\n{\"text_score\": 10}\n```\nThanks",
			want:    `{"text_score": 10}`,
		},
		{
			name:    "fence wins over surrounding braces",
			content: "{not json} ```json\n{\"a\":1}\n```",
			want:    `{"a":1}`,
		},
		{
			name:    "bare object in prose",
			content: "Result: {\"text_score\": 10, \"x\": {\"y\": 1}} done",
			want:    `{"text_score": 10, "x": {"y": 1}}`,
		},
		{
			name:    "empty fence falls back to braces",
			content: "```json\n```\n{\"text_score\": 3}",
			want:    `{"text_score": 3}`,
		},
		{
			name:    "nothing to extract",
			content: "I cannot help with that.",
			want:    "I cannot help with that.",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractJSON(tc.content))
		})
	}
}

func TestParseAnalysisContent(t *testing.T) {
	t.Run("fenced reply", func(t *testing.T) {
		result, err := parseAnalysisContent("```json\n" + sampleAnalysisJSON + "\n```")
		require.NoError(t, err)
		require.NotNil(t, result.TextScore)
		assert.Equal(t, 72.0, *result.TextScore)
		assert.Equal(t, "high", result.Confidence)
		assert.Equal(t, []string{"timeline shifts"}, result.SentimentAnalysis.Inconsistencies)
		assert.Equal(t, "anxious", result.EmotionalAnalysis.ImpliedEmotion)
		assert.Equal(t, 7.0, result.LinguisticAnalysis.ComplexityScore)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := parseAnalysisContent("{text_score: seventy}")
		assert.ErrorContains(t, err, "failed to parse structured response")
	})

	t.Run("missing score", func(t *testing.T) {
		_, err := parseAnalysisContent(`{"confidence": "high"}`)
		assert.ErrorIs(t, err, errMissingScore)
	})

	t.Run("non-numeric score", func(t *testing.T) {
		_, err := parseAnalysisContent(`{"text_score": "high", "confidence": "high"}`)
		assert.ErrorIs(t, err, errMissingScore)
	})

	t.Run("json array", func(t *testing.T) {
		_, err := parseAnalysisContent(`[72]`)
		assert.ErrorContains(t, err, "failed to parse structured response")
	})
}

func TestParseAnalysisContent_LooselyTypedFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, result *AnalysisResult)
	}{
		{
			name:    "quoted score",
			content: `{"text_score": "72", "confidence": "high", "key_findings": ["Frequent qualifiers"]}`,
			check: func(t *testing.T, result *AnalysisResult) {
				assert.Equal(t, 72.0, *result.TextScore)
				assert.Equal(t, []string{"Frequent qualifiers"}, result.KeyFindings)
			},
		},
		{
			name:    "percent score",
			content: `{"text_score": "64%"}`,
			check: func(t *testing.T, result *AnalysisResult) {
				assert.Equal(t, 64.0, *result.TextScore)
			},
		},
		{
			name:    "inconsistencies as a string",
			content: `{"text_score": 40, "sentiment_analysis": {"overall_sentiment": "neutral", "inconsistencies": "none", "emotional_shifts": 1}}`,
			check: func(t *testing.T, result *AnalysisResult) {
				assert.Equal(t, 40.0, *result.TextScore)
				assert.Equal(t, []string{"none"}, result.SentimentAnalysis.Inconsistencies)
				assert.Equal(t, "neutral", result.SentimentAnalysis.OverallSentiment)
				assert.Equal(t, 1.0, result.SentimentAnalysis.EmotionalShifts)
			},
		},
		{
			name:    "key findings as objects",
			content: `{"text_score": 81, "key_findings": [{"finding": "Hedging language", "evidence": "to be honest"}, {"severity": "high", "note": "timeline gap"}, "Plain finding"]}`,
			check: func(t *testing.T, result *AnalysisResult) {
				assert.Equal(t, 81.0, *result.TextScore)
				assert.Equal(t, []string{
					"Hedging language",
					"note: timeline gap; severity: high",
					"Plain finding",
				}, result.KeyFindings)
			},
		},
		{
			name:    "emotional shifts as a string",
			content: `{"text_score": 55, "sentiment_analysis": {"overall_sentiment": "mixed", "inconsistencies": [], "emotional_shifts": "2"}, "linguistic_analysis": {"complexity_score": "6.5", "unusual_phrasing": "to be frank"}}`,
			check: func(t *testing.T, result *AnalysisResult) {
				assert.Equal(t, 55.0, *result.TextScore)
				assert.Equal(t, 2.0, result.SentimentAnalysis.EmotionalShifts)
				assert.Equal(t, 6.5, result.LinguisticAnalysis.ComplexityScore)
				assert.Equal(t, []string{"to be frank"}, result.LinguisticAnalysis.UnusualPhrasing)
			},
		},
		{
			name:    "section of the wrong shape is left empty",
			content: `{"text_score": 30, "confidence": "medium", "emotional_analysis": "calm throughout", "interpretation": "Mostly consistent."}`,
			check: func(t *testing.T, result *AnalysisResult) {
				assert.Equal(t, 30.0, *result.TextScore)
				assert.Equal(t, "medium", result.Confidence)
				assert.Equal(t, EmotionalAnalysis{}, result.EmotionalAnalysis)
				assert.Equal(t, "Mostly consistent.", result.Interpretation)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := parseAnalysisContent(tc.content)
			require.NoError(t, err)
			require.NotNil(t, result.TextScore)
			tc.check(t, result)
		})
	}
}

func TestAnalyzeText_KeepsLooselyTypedReply(t *testing.T) {
	llm := &mockLLM{content: `{"text_score": "72", "confidence": "high", "sentiment_analysis": {"inconsistencies": "none", "emotional_shifts": "2"}, "key_findings": [{"finding": "Hedging language"}]}`}
	app := newTestApp(t, llm)

	resp, err := app.analyzeText(context.Background(), "I was at home all evening, to be honest.", testLogger())
	require.NoError(t, err)
	assert.Equal(t, 72, resp.FinalScore)
	assert.Equal(t, "high", resp.Confidence)
	assert.Equal(t, []string{"Hedging language"}, resp.KeyFindings)
	assert.Equal(t, []string{"none"}, resp.SentimentAnalysis.Inconsistencies)
}

func TestBuildAnalysisResponse(t *testing.T) {
	t.Run("final score equals text score", func(t *testing.T) {
		result, err := parseAnalysisContent(sampleAnalysisJSON)
		require.NoError(t, err)

		resp := buildAnalysisResponse(result)
		assert.Equal(t, 72, resp.TextScore)
		assert.Equal(t, resp.TextScore, resp.FinalScore)
		assert.Equal(t, "Several markers of deception.", resp.Interpretation)
	})

	t.Run("normalizes sloppy replies", func(t *testing.T) {
		score := 130.4
		resp := buildAnalysisResponse(&AnalysisResult{TextScore: &score, Confidence: "Very High"})
		assert.Equal(t, 100, resp.FinalScore)
		assert.Equal(t, "low", resp.Confidence)
		assert.NotNil(t, resp.KeyFindings)
		assert.Empty(t, resp.KeyFindings)
		assert.NotNil(t, resp.SentimentAnalysis.Inconsistencies)
		assert.NotNil(t, resp.LinguisticAnalysis.UnusualPhrasing)
		assert.NotNil(t, resp.EmotionalAnalysis.StressIndicators)
	})

	t.Run("fallback", func(t *testing.T) {
		resp := buildAnalysisResponse(fallbackAnalysisResult())
		assert.Equal(t, 50, resp.TextScore)
		assert.Equal(t, 50, resp.FinalScore)
		assert.Equal(t, "low", resp.Confidence)
		assert.Equal(t, "neutral", resp.SentimentAnalysis.OverallSentiment)
		assert.Equal(t, 5.0, resp.LinguisticAnalysis.ComplexityScore)
		assert.Equal(t, "unknown", resp.EmotionalAnalysis.StatedEmotion)
		assert.Equal(t, "none", resp.EmotionalAnalysis.MismatchLevel)
		assert.Equal(t, []string{"Unable to fully analyze the text. Please try again."}, resp.KeyFindings)
		assert.Equal(t, "Analysis could not be completed due to a technical issue.", resp.Interpretation)
	})
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0, clampScore(-5))
	assert.Equal(t, 43, clampScore(42.6))
	assert.Equal(t, 100, clampScore(100))
	assert.Equal(t, 50, clampScore(math.NaN()))
}

func TestScoreBand(t *testing.T) {
	tests := []struct {
		score       int
		wantBand    string
		wantHonesty int
	}{
		{0, "low", 100},
		{29, "low", 71},
		{30, "moderate", 70},
		{59, "moderate", 41},
		{60, "high", 40},
		{100, "high", 0},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.wantBand, scoreBand(tc.score), "score %d", tc.score)
		assert.Equal(t, tc.wantHonesty, honestyScore(tc.score), "score %d", tc.score)
	}
}
