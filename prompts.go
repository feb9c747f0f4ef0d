package main

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

const (
	systemPromptFile = "deception_system_prompt.tmpl"
	userPromptFile   = "deception_user_prompt.tmpl"
)

var (
	// Templates
	systemTemplate *template.Template
	userTemplate   *template.Template
	templateMutex  sync.RWMutex
	promptsDir     = "prompts"

	defaultSystemPrompt = `You are an expert behavioral analyst specializing in text-based communication analysis. Analyze the provided text for indicators of potential deception or emotional inconsistency.

CRITICAL: You are NOT detecting lies with certainty. You are analyzing patterns that MAY indicate deception.

Analyze these aspects:
1. Sentiment inconsistencies (emotional shifts that don't match context)
2. Linguistic anomalies (unusual word choices, overuse of qualifiers, distancing language)
3. Emotional mismatch (stated emotion vs. implied emotion)
4. Hesitation markers (uncertainty language, hedging)
5. Contradiction patterns (logical inconsistencies)

Provide a JSON response with this exact structure:
{
  "text_score": <number 0-100, where higher = more indicators of deception>,
  "confidence": <"low" | "medium" | "high">,
  "sentiment_analysis": {
    "overall_sentiment": <"positive" | "negative" | "neutral" | "mixed">,
    "inconsistencies": [<array of detected inconsistencies>],
    "emotional_shifts": <number of significant shifts>
  },
  "linguistic_analysis": {
    "distancing_language": <number of instances>,
    "qualifier_overuse": <number of instances>,
    "unusual_phrasing": [<array of unusual phrases>],
    "complexity_score": <number 1-10>
  },
  "emotional_analysis": {
    "stated_emotion": <detected stated emotion>,
    "implied_emotion": <detected implied emotion>,
    "mismatch_level": <"none" | "low" | "medium" | "high">,
    "stress_indicators": [<array of stress markers>]
  },
  "key_findings": [<array of 2-4 key observations>],
  "interpretation": <brief explanation of the score>
}`

	defaultUserPrompt = `Analyze this text for deception indicators:

{{.Text}}`
)

var defaultPrompts = map[string]string{
	systemPromptFile: defaultSystemPrompt,
	userPromptFile:   defaultUserPrompt,
}

func parsePromptTemplate(name, content string) (*template.Template, error) {
	return template.New(name).Funcs(sprig.FuncMap()).Parse(content)
}

// loadTemplates loads the prompt templates from promptsDir, writing the
// defaults to disk for any that are missing.
func loadTemplates() error {
	templateMutex.Lock()
	defer templateMutex.Unlock()

	if err := os.MkdirAll(promptsDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create prompts directory: %w", err)
	}

	loaded := make(map[string]*template.Template, len(defaultPrompts))
	for file, def := range defaultPrompts {
		path := filepath.Join(promptsDir, file)
		content, err := os.ReadFile(path)
		if err != nil {
			log.Infof("Could not read %s, using default template: %v", path, err)
			content = []byte(def)
			if err := os.WriteFile(path, content, 0644); err != nil {
				return fmt.Errorf("failed to write default template %s: %w", path, err)
			}
		}
		tmpl, err := parsePromptTemplate(file, string(content))
		if err != nil {
			return fmt.Errorf("failed to parse template %s: %w", path, err)
		}
		loaded[file] = tmpl
	}

	systemTemplate = loaded[systemPromptFile]
	userTemplate = loaded[userPromptFile]
	return nil
}

// renderPrompts produces the system and user messages for text.
func renderPrompts(text string) (string, string, error) {
	templateMutex.RLock()
	defer templateMutex.RUnlock()

	if systemTemplate == nil || userTemplate == nil {
		return "", "", fmt.Errorf("prompt templates are not loaded")
	}

	data := map[string]interface{}{
		"Text": text,
	}

	var system bytes.Buffer
	if err := systemTemplate.Execute(&system, data); err != nil {
		return "", "", fmt.Errorf("error executing system template: %w", err)
	}
	var user bytes.Buffer
	if err := userTemplate.Execute(&user, data); err != nil {
		return "", "", fmt.Errorf("error executing user template: %w", err)
	}
	return system.String(), user.String(), nil
}

// validPromptFilename rejects anything that is not a plain *.tmpl name.
func validPromptFilename(name string) bool {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return false
	}
	return strings.HasSuffix(name, ".tmpl")
}

// readPrompts returns every template in promptsDir keyed by filename.
func readPrompts() (map[string]string, error) {
	templateMutex.RLock()
	defer templateMutex.RUnlock()

	entries, err := os.ReadDir(promptsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts directory: %w", err)
	}

	prompts := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tmpl") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(promptsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		prompts[entry.Name()] = string(content)
	}
	return prompts, nil
}

// writePrompt validates content as a template, stores it and swaps it in when
// it is one of the active prompts.
func writePrompt(name, content string) error {
	tmpl, err := parsePromptTemplate(name, content)
	if err != nil {
		return &apiError{http.StatusBadRequest, fmt.Sprintf("Invalid template: %v", err)}
	}

	templateMutex.Lock()
	defer templateMutex.Unlock()

	if err := os.WriteFile(filepath.Join(promptsDir, name), []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	switch name {
	case systemPromptFile:
		systemTemplate = tmpl
	case userPromptFile:
		userTemplate = tmpl
	}
	return nil
}
