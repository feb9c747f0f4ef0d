package main

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
)

// validateSubmission applies the form rules for a text submitted by a signed-in user.
// Lengths are measured on the trimmed text, in characters.
func validateSubmission(req CreateAnalysisRequest, s Settings) error {
	if s.RequireConsent && !req.HasConsent {
		return errConsentRequired
	}
	length := utf8.RuneCountInString(strings.TrimSpace(req.Text))
	if length == 0 {
		return errTextRequired
	}
	if length < s.MinTextLength {
		return errTextTooShort(s.MinTextLength)
	}
	if length > s.MaxTextLength {
		return errTextTooLong(s.MaxTextLength)
	}
	return nil
}

// analyzeText asks the model for a deception analysis of text and shapes its reply.
// A reply that cannot be parsed yields the fallback result rather than an error.
func (app *App) analyzeText(ctx context.Context, text string, logger *logrus.Entry) (AnalysisResponse, error) {
	start := time.Now()
	logger.Infof("Analyzing text of length: %d", utf8.RuneCountInString(text))

	if cached, ok := app.Cache.Get(text); ok {
		cacheHitsTotal.Inc()
		logger.Debug("Serving analysis from cache")
		observeAnalysis(start, "cached")
		return cached, nil
	}

	if app.LLM == nil {
		return AnalysisResponse{}, errLLMNotConfigured
	}

	system, user, err := renderPrompts(text)
	if err != nil {
		logger.Errorf("Error rendering prompts: %v", err)
		return AnalysisResponse{}, err
	}

	tokens, err := app.checkTokenLimit(system, user)
	promptTokens.Observe(float64(tokens))
	if err != nil {
		logger.Warnf("Prompt rejected: %v", err)
		return AnalysisResponse{}, err
	}
	logger.Debugf("Prompt uses an estimated %d tokens", tokens)

	completion, err := app.LLM.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}, llms.WithTemperature(app.Config.Temperature))
	if err != nil {
		apiErr := classifyLLMError(err)
		logger.Errorf("AI gateway error: %v", err)
		upstreamErrorsTotal.WithLabelValues(strconv.Itoa(apiErr.Status)).Inc()
		observeAnalysis(start, "error")
		return AnalysisResponse{}, apiErr
	}
	if completion == nil || len(completion.Choices) == 0 {
		logger.Error("AI gateway returned no choices")
		upstreamErrorsTotal.WithLabelValues(strconv.Itoa(errAnalysisFailed.Status)).Inc()
		observeAnalysis(start, "error")
		return AnalysisResponse{}, errAnalysisFailed
	}

	content := completion.Choices[0].Content
	logger.Debugf("AI Response: %s", content)

	result, err := parseAnalysisContent(content)
	fallback := err != nil
	if fallback {
		logger.Errorf("Failed to parse AI response: %v", err)
		fallbackParsesTotal.Inc()
		result = fallbackAnalysisResult()
	}

	resp := buildAnalysisResponse(result)
	analysisScores.Observe(float64(resp.FinalScore))
	if fallback {
		observeAnalysis(start, "fallback")
	} else {
		app.Cache.Set(text, resp)
		observeAnalysis(start, "ok")
	}
	return resp, nil
}
