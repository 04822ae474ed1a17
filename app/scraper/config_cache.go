package scraper

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// ConfigCache holds the scan profiles loaded from the profiles
// directory, one YAML file per target website.
type ConfigCache struct {
	profilesDir string
	cache       map[string]*Profile
	mu          sync.RWMutex
}

func NewConfigCache(profilesDir string) *ConfigCache {
	return &ConfigCache{
		profilesDir: profilesDir,
		cache:       make(map[string]*Profile),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.profilesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.profilesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		// Derive profile name from filename (remove .yml extension)
		fileName := filepath.Base(file)
		profileName := fileName[:len(fileName)-4]

		profile, err := cc.LoadProfile(profileName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Profile loaded", "profile", profileName, "url", profile.URL, "enabled", profile.Settings.Enabled)
	}

	return nil
}

func (cc *ConfigCache) LoadProfile(profileName string) (*Profile, error) {
	profileFile := filepath.Join(cc.profilesDir, profileName+".yml")
	profile, err := cc.parseProfile(profileFile)
	if err != nil {
		return nil, err
	}

	profile.Name = profileName

	if err := cc.validateProfile(profile); err != nil {
		return nil, fmt.Errorf("invalid profile %s: %w", profileFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[profile.Name] = profile

	return profile, nil
}

func (cc *ConfigCache) GetProfile(profileName string) (*Profile, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	profile, ok := cc.cache[profileName]
	if !ok {
		return nil, fmt.Errorf("scan profile with name '%s' not found", profileName)
	}
	return profile, nil
}

func (cc *ConfigCache) GetProfiles() map[string]*Profile {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	profilesCopy := make(map[string]*Profile, len(cc.cache))
	for k, v := range cc.cache {
		profilesCopy[k] = v
	}
	return profilesCopy
}

func (cc *ConfigCache) GetEnabledProfiles() map[string]*Profile {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	enabled := make(map[string]*Profile)
	for k, v := range cc.cache {
		if v.Settings.Enabled {
			enabled[k] = v
		}
	}
	return enabled
}

func (cc *ConfigCache) GetProfileCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseProfile(profileFile string) (*Profile, error) {
	data, err := os.ReadFile(profileFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if profile.Settings.MaxDepth == 0 {
		profile.Settings.MaxDepth = 3
	}
	if profile.Settings.MaxWorkers == 0 {
		profile.Settings.MaxWorkers = 5
	}
	if profile.Settings.MaxTime == 0 {
		profile.Settings.MaxTime = 300
	}
	if profile.Settings.RescanInterval == 0 {
		profile.Settings.RescanInterval = 86400
	}

	return &profile, nil
}

func (cc *ConfigCache) validateProfile(profile *Profile) error {
	if profile == nil {
		return fmt.Errorf("profile is nil")
	}

	if profile.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	if profile.URL == "" {
		return fmt.Errorf("profile URL is required")
	}

	nonNegativeFields := map[string]int{
		"max depth":       profile.Settings.MaxDepth,
		"max workers":     profile.Settings.MaxWorkers,
		"max time":        profile.Settings.MaxTime,
		"rescan interval": profile.Settings.RescanInterval,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	return nil
}
