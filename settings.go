package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
)

const settingsFile = "settings.json"

// Settings are the submission rules an operator can change at runtime.
type Settings struct {
	RequireConsent bool `json:"require_consent"`
	MinTextLength  int  `json:"min_text_length"`
	MaxTextLength  int  `json:"max_text_length"`
}

// SettingsUpdate is the body of PATCH /api/settings; omitted fields are kept.
type SettingsUpdate struct {
	RequireConsent *bool `json:"require_consent"`
	MinTextLength  *int  `json:"min_text_length"`
	MaxTextLength  *int  `json:"max_text_length"`
}

var (
	settings      = defaultSettings()
	settingsMutex sync.RWMutex
	configDir     = "config"
)

func defaultSettings() Settings {
	return Settings{
		RequireConsent: true,
		MinTextLength:  10,
		MaxTextLength:  5000,
	}
}

func (s Settings) validate() error {
	if s.MinTextLength < 1 {
		return &apiError{http.StatusBadRequest, "min_text_length must be at least 1"}
	}
	if s.MaxTextLength < s.MinTextLength {
		return &apiError{http.StatusBadRequest, "max_text_length must not be below min_text_length"}
	}
	return nil
}

// currentSettings returns a copy of the active settings.
func currentSettings() Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settings
}

// saveSettingsLocked performs the actual saving without locking the mutex.
// This is to be called from functions that already hold the lock.
func saveSettingsLocked() error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(configDir, settingsFile), data, 0644)
}

// updateSettings applies upd, validates the result and persists it.
func updateSettings(upd SettingsUpdate) (Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	next := settings
	if upd.RequireConsent != nil {
		next.RequireConsent = *upd.RequireConsent
	}
	if upd.MinTextLength != nil {
		next.MinTextLength = *upd.MinTextLength
	}
	if upd.MaxTextLength != nil {
		next.MaxTextLength = *upd.MaxTextLength
	}
	if err := next.validate(); err != nil {
		return settings, err
	}

	previous := settings
	settings = next
	if err := saveSettingsLocked(); err != nil {
		settings = previous
		return settings, fmt.Errorf("failed to save settings: %w", err)
	}
	return settings, nil
}

// loadSettings loads the settings from settings.json, creating it with defaults if it doesn't exist or is corrupt.
func loadSettings() {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settingsPath := filepath.Join(configDir, settingsFile)
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		settings = defaultSettings()
		if os.IsNotExist(err) {
			log.Infof("Settings file not found at %s, creating with default values.", settingsPath)
			if err := saveSettingsLocked(); err != nil {
				log.Errorf("Failed to create default settings file: %v", err)
			}
		} else {
			log.Warnf("Failed to read settings file: %v. Loading default settings.", err)
		}
		return
	}

	loaded := defaultSettings()
	if err := json.Unmarshal(data, &loaded); err != nil {
		log.Warnf("Failed to parse settings file, please check its format. Loading default settings. Error: %v", err)
		settings = defaultSettings()
		return
	}
	if err := loaded.validate(); err != nil {
		log.Warnf("Settings file is invalid (%v). Loading default settings.", err)
		settings = defaultSettings()
		return
	}

	settings = loaded
	log.Info("Successfully loaded settings from settings.json")
}
