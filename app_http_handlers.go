package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// requestLogger returns a logger tagged with the caller and route.
func requestLogger(c *gin.Context) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"user_id": currentUser(c).ID,
		"route":   c.FullPath(),
	})
}

// analyzeTextFunctionHandler handles POST /functions/v1/analyze-text
func (app *App) analyzeTextFunctionHandler(c *gin.Context) {
	var req AnalyzeTextRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == nil || strings.TrimSpace(*req.Text) == "" {
		respondError(c, errTextRequired)
		return
	}

	resp, err := app.analyzeText(c.Request.Context(), *req.Text, requestLogger(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// createAnalysisHandler handles POST /api/analyses
func (app *App) createAnalysisHandler(c *gin.Context) {
	logger := requestLogger(c)

	var req CreateAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request payload: %v", err)})
		logger.Errorf("Invalid request payload: %v", err)
		return
	}

	if err := validateSubmission(req, currentSettings()); err != nil {
		respondError(c, err)
		return
	}

	resp, err := app.analyzeText(c.Request.Context(), req.Text, logger)
	if err != nil {
		respondError(c, err)
		return
	}

	record := newAnalysisRecord(currentUser(c).ID, req, resp)
	if err := InsertAnalysis(app.Database.WithContext(c.Request.Context()), record); err != nil {
		// Saving is best effort; the caller still gets the analysis.
		logger.Errorf("Save error: %v", err)
		c.JSON(http.StatusCreated, CreateAnalysisResponse{Saved: false, Analysis: resp})
		return
	}

	logger.WithField("analysis_id", record.ID).Info("Analysis completed and saved")
	c.JSON(http.StatusCreated, CreateAnalysisResponse{ID: record.ID, Saved: true, Analysis: resp})
}

// listAnalysesHandler handles GET /api/analyses
func (app *App) listAnalysesHandler(c *gin.Context) {
	records, err := ListAnalyses(app.Database.WithContext(c.Request.Context()), currentUser(c).ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load analysis history"})
		requestLogger(c).Errorf("Error loading history: %v", err)
		return
	}

	summaries := make([]AnalysisSummary, 0, len(records))
	for i := range records {
		summaries = append(summaries, records[i].summary())
	}
	c.JSON(http.StatusOK, summaries)
}

// getAnalysisHandler handles GET /api/analyses/:id
func (app *App) getAnalysisHandler(c *gin.Context) {
	record, err := GetAnalysis(app.Database.WithContext(c.Request.Context()), currentUser(c).ID, c.Param("id"))
	if err != nil {
		if !errors.Is(err, errNotFound) {
			requestLogger(c).Errorf("Error loading analysis: %v", err)
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":            record.ID,
		"text_content":  record.TextContent,
		"created_at":    record.CreatedAt,
		"score_band":    scoreBand(record.FinalScore),
		"honesty_score": honestyScore(record.FinalScore),
		"analysis":      record.historicalResponse(),
	})
}

// deleteAnalysisHandler handles DELETE /api/analyses/:id
func (app *App) deleteAnalysisHandler(c *gin.Context) {
	err := DeleteAnalysis(app.Database.WithContext(c.Request.Context()), currentUser(c).ID, c.Param("id"))
	if err != nil {
		if !errors.Is(err, errNotFound) {
			requestLogger(c).Errorf("Error deleting analysis: %v", err)
		}
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// meHandler handles GET /api/me
func meHandler(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

// submitAnalysisJobHandler handles POST /api/jobs/analyze
func (app *App) submitAnalysisJobHandler(c *gin.Context) {
	var req CreateAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request payload: %v", err)})
		return
	}
	if err := validateSubmission(req, currentSettings()); err != nil {
		respondError(c, err)
		return
	}

	job, err := app.Jobs.enqueue(currentUser(c).ID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID})
}

// getJobStatusHandler handles GET /api/jobs/:job_id
func (app *App) getJobStatusHandler(c *gin.Context) {
	job, exists := app.Jobs.getJob(currentUser(c).ID, c.Param("job_id"))
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// getAllJobsHandler handles GET /api/jobs
func (app *App) getAllJobsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, app.Jobs.jobsForUser(currentUser(c).ID))
}

// getPromptsHandler handles the GET /api/prompts endpoint
func getPromptsHandler(c *gin.Context) {
	prompts, err := readPrompts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		log.Errorf("Error reading prompts: %v", err)
		return
	}
	c.JSON(http.StatusOK, prompts)
}

// updatePromptsHandler handles the POST /api/prompts endpoint
func updatePromptsHandler(c *gin.Context) {
	var req struct {
		Filename string `json:"filename"`
		Content  string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	if !validPromptFilename(req.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filename"})
		return
	}

	if err := writePrompt(req.Filename, req.Content); err != nil {
		log.Errorf("Failed to update prompt %s: %v", req.Filename, err)
		respondError(c, err)
		return
	}

	c.Status(http.StatusOK)
}

// getSettingsHandler handles GET /api/settings
func getSettingsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, currentSettings())
}

// updateSettingsHandler handles PATCH /api/settings
func updateSettingsHandler(c *gin.Context) {
	var upd SettingsUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	updated, err := updateSettings(upd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
