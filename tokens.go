package main

import (
	"github.com/tmc/langchaingo/llms"
)

// getTokenCount estimates the token count of content for the configured model.
func (app *App) getTokenCount(content string) int {
	return llms.CountTokens(app.Config.LLMModel, content)
}

// checkTokenLimit rejects prompts that would not fit in the model context.
// A limit of 0 or less disables the check.
func (app *App) checkTokenLimit(system, user string) (int, error) {
	tokens := app.getTokenCount(system) + app.getTokenCount(user)
	if app.Config.TokenLimit > 0 && tokens > app.Config.TokenLimit {
		return tokens, errTokenLimit(tokens, app.Config.TokenLimit)
	}
	return tokens, nil
}
