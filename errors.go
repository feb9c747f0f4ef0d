package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
	"google.golang.org/genai"
)

// apiError is an error with the HTTP status and message shown to the caller.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return e.Message
}

var (
	errTextRequired       = &apiError{http.StatusBadRequest, "Text is required for analysis"}
	errConsentRequired    = &apiError{http.StatusBadRequest, "You must confirm that you have consent to analyze this content"}
	errRateLimited        = &apiError{http.StatusTooManyRequests, "Rate limit exceeded. Please try again later."}
	errCreditsExhausted   = &apiError{http.StatusPaymentRequired, "AI service credits exhausted. Please contact support."}
	errAnalysisFailed     = &apiError{http.StatusInternalServerError, "AI analysis failed"}
	errServiceUnavailable = &apiError{http.StatusServiceUnavailable, "AI service temporarily unavailable. Please try again later."}
	errLLMNotConfigured   = &apiError{http.StatusInternalServerError, "LLM client is not configured"}
	errNotFound           = &apiError{http.StatusNotFound, "Analysis not found"}
)

func errTextTooShort(minLen int) *apiError {
	return &apiError{http.StatusBadRequest, fmt.Sprintf("Text must be at least %d characters", minLen)}
}

func errTextTooLong(maxLen int) *apiError {
	return &apiError{http.StatusBadRequest, fmt.Sprintf("Text must be less than %d characters", maxLen)}
}

func errTokenLimit(tokens, limit int) *apiError {
	return &apiError{http.StatusRequestEntityTooLarge, fmt.Sprintf("Text is too long to analyze (%d tokens, limit %d)", tokens, limit)}
}

// classifyLLMError maps a failed model call onto the error shown to the caller.
func classifyLLMError(err error) *apiError {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	if status, ok := upstreamStatus(err); ok {
		switch status {
		case http.StatusTooManyRequests:
			return errRateLimited
		case http.StatusPaymentRequired:
			return errCreditsExhausted
		default:
			return errAnalysisFailed
		}
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errServiceUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errAnalysisFailed
	}

	// Providers without a typed error only surface the status code in the message.
	msg := err.Error()
	switch {
	case rateLimitedPattern.MatchString(msg):
		return errRateLimited
	case paymentRequiredPattern.MatchString(msg):
		return errCreditsExhausted
	}
	return errAnalysisFailed
}

var (
	rateLimitedPattern     = regexp.MustCompile(`\b429\b`)
	paymentRequiredPattern = regexp.MustCompile(`\b402\b`)
)

// upstreamStatus returns the HTTP status carried by a provider error.
func upstreamStatus(err error) (int, bool) {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.StatusCode, true
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return genaiErr.Code, true
	}
	var genaiPtr *genai.APIError
	if errors.As(err, &genaiPtr) && genaiPtr != nil {
		return genaiPtr.Code, true
	}
	return 0, false
}

// respondError writes err as {"error": message} with the matching status.
func respondError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{"error": apiErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
