package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Analysis represents the schema of the analyses table
type Analysis struct {
	ID                 string             `gorm:"primaryKey;size:36"`
	UserID             string             `gorm:"size:255;not null;index"`
	TextContent        string             `gorm:"type:text;not null"`
	TextScore          int                `gorm:"not null"`
	FinalScore         int                `gorm:"not null"`
	SentimentAnalysis  SentimentAnalysis  `gorm:"serializer:json;type:text"`
	LinguisticAnalysis LinguisticAnalysis `gorm:"serializer:json;type:text"`
	EmotionalAnalysis  EmotionalAnalysis  `gorm:"serializer:json;type:text"`
	HasConsent         bool               `gorm:"not null;default:false"`
	CreatedAt          time.Time          `gorm:"index"`
}

// BeforeCreate assigns an ID to rows that do not have one yet.
func (a *Analysis) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// InitializeDB opens the database for driver and migrates the schema.
// For sqlite, dsn is a file path whose directory is created if needed.
func InitializeDB(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), os.ModePerm); err != nil {
				return nil, fmt.Errorf("failed to create db directory: %w", err)
			}
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Migrate the schema (create the table if it doesn't exist)
	if err := db.AutoMigrate(&Analysis{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}

	return db, nil
}

// InsertAnalysis inserts a new analysis record into the database
func InsertAnalysis(db *gorm.DB, record *Analysis) error {
	return db.Create(record).Error
}

// ListAnalyses returns the analyses owned by userID, newest first
func ListAnalyses(db *gorm.DB, userID string) ([]Analysis, error) {
	var records []Analysis
	result := db.Where("user_id = ?", userID).Order("created_at desc").Find(&records)
	return records, result.Error
}

// GetAnalysis returns one analysis, or errNotFound if userID does not own it
func GetAnalysis(db *gorm.DB, userID, id string) (*Analysis, error) {
	var record Analysis
	result := db.Where("id = ? AND user_id = ?", id, userID).First(&record)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, errNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &record, nil
}

// DeleteAnalysis removes one analysis owned by userID
func DeleteAnalysis(db *gorm.DB, userID, id string) error {
	result := db.Where("id = ? AND user_id = ?", id, userID).Delete(&Analysis{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errNotFound
	}
	return nil
}

// DeleteAnalysesBefore removes every analysis created before cutoff
func DeleteAnalysesBefore(db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.Where("created_at < ?", cutoff).Delete(&Analysis{})
	return result.RowsAffected, result.Error
}

// newAnalysisRecord builds the row persisted for a completed analysis.
func newAnalysisRecord(userID string, req CreateAnalysisRequest, resp AnalysisResponse) *Analysis {
	return &Analysis{
		UserID:             userID,
		TextContent:        req.Text,
		TextScore:          resp.TextScore,
		FinalScore:         resp.FinalScore,
		SentimentAnalysis:  resp.SentimentAnalysis,
		LinguisticAnalysis: resp.LinguisticAnalysis,
		EmotionalAnalysis:  resp.EmotionalAnalysis,
		HasConsent:         req.HasConsent,
	}
}

// summary is the history-list view of a row.
func (a *Analysis) summary() AnalysisSummary {
	return AnalysisSummary{
		ID:                 a.ID,
		TextContent:        a.TextContent,
		FinalScore:         a.FinalScore,
		ScoreBand:          scoreBand(a.FinalScore),
		HonestyScore:       honestyScore(a.FinalScore),
		CreatedAt:          a.CreatedAt,
		SentimentAnalysis:  a.SentimentAnalysis,
		LinguisticAnalysis: a.LinguisticAnalysis,
		EmotionalAnalysis:  a.EmotionalAnalysis,
	}
}

// historicalResponse rebuilds a result view from a stored row. Confidence, key
// findings and interpretation are not stored, so fixed values stand in.
func (a *Analysis) historicalResponse() AnalysisResponse {
	resp := buildAnalysisResponse(&AnalysisResult{
		SentimentAnalysis:  a.SentimentAnalysis,
		LinguisticAnalysis: a.LinguisticAnalysis,
		EmotionalAnalysis:  a.EmotionalAnalysis,
		KeyFindings:        []string{},
		Interpretation:     "Viewing historical analysis",
		Confidence:         "medium",
	})
	resp.TextScore = a.FinalScore
	resp.FinalScore = a.FinalScore
	return resp
}
