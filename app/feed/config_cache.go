package feed

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const DefaultLimit = 1000

// DefaultSources are used when the sources directory holds no YAML files.
func DefaultSources() []*Config {
	return []*Config{
		{
			Name:     "dalle2",
			Reader:   ReaderReddit,
			Tags:     []string{"DALL·E 2", "DALL·E 3"},
			Settings: ConfigSettings{Enabled: true, Order: 1},
		},
		{
			Name:     "midjourney",
			Reader:   ReaderReddit,
			Tags:     []string{"AI Showcase - Midjourney"},
			Settings: ConfigSettings{Enabled: true, Order: 2},
		},
		{
			Name:   "aiArt",
			Reader: ReaderReddit,
			Tags:   []string{"Image - DALL E 3 :a2:", "Image - Midjourney :a2:"},
			Redirect: map[string]string{
				"Image - DALL E 3 :a2:":   "dalle2",
				"Image - Midjourney :a2:": "midjourney",
			},
			Settings: ConfigSettings{Enabled: true, Order: 3},
		},
	}
}

type ConfigCache struct {
	sourcesDir   string
	defaultLimit int
	validate     *validator.Validate
	cache        map[string]*Source
	mu           sync.RWMutex
}

func NewConfigCache(sourcesDir string, defaultLimit int) *ConfigCache {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	return &ConfigCache{
		sourcesDir:   sourcesDir,
		defaultLimit: defaultLimit,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		cache:        make(map[string]*Source),
	}
}

func (cc *ConfigCache) Run() error {
	var files []string
	if cc.sourcesDir != "" {
		if _, err := os.Stat(cc.sourcesDir); err == nil {
			matches, err := filepath.Glob(filepath.Join(cc.sourcesDir, "*.yml"))
			if err != nil {
				return fmt.Errorf("failed to find YML files: %w", err)
			}
			files = matches
		}
	}

	if len(files) == 0 {
		slog.Info("No source configurations found, using built-in sources", "dir", cc.sourcesDir)
		for _, sourceConfig := range DefaultSources() {
			if _, err := cc.register(sourceConfig); err != nil {
				return fmt.Errorf("invalid built-in source %s: %w", sourceConfig.Name, err)
			}
		}
		return nil
	}

	for _, file := range files {
		sourceName := strings.TrimSuffix(filepath.Base(file), ".yml")

		source, err := cc.LoadConfig(sourceName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Configuration loaded", "source", sourceName, "enabled", source.Enabled, "limit", source.Limit)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(sourceName string) (*Source, error) {
	configFile := cc.getConfigFilePath(sourceName)
	sourceConfig, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	sourceConfig.Name = sourceName

	source, err := cc.register(sourceConfig)
	if err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}
	return source, nil
}

func (cc *ConfigCache) GetSource(sourceName string) (*Source, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	source, ok := cc.cache[sourceName]
	if !ok {
		return nil, fmt.Errorf("source config with name '%s' not found", sourceName)
	}
	return source, nil
}

// GetSources returns all sources ordered by settings.order, then name.
func (cc *ConfigCache) GetSources() []*Source {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	sources := make([]*Source, 0, len(cc.cache))
	for _, source := range cc.cache {
		sources = append(sources, source)
	}
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].Order != sources[j].Order {
			return sources[i].Order < sources[j].Order
		}
		return sources[i].Name < sources[j].Name
	})
	return sources
}

func (cc *ConfigCache) GetEnabledSources() []*Source {
	var enabled []*Source
	for _, source := range cc.GetSources() {
		if source.Enabled {
			enabled = append(enabled, source)
		}
	}
	return enabled
}

func (cc *ConfigCache) GetSourceCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) register(sourceConfig *Config) (*Source, error) {
	if sourceConfig.Settings.Limit == 0 {
		sourceConfig.Settings.Limit = cc.defaultLimit
	}

	if err := cc.validateConfig(sourceConfig); err != nil {
		return nil, err
	}

	source := NewSource(sourceConfig)
	if missing := source.unmappedTags(); len(missing) > 0 {
		slog.Warn("Redirect table does not cover every relevant tag", "source", source.Name, "unmapped", missing)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[source.Name] = source

	return source, nil
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// yaml leaves keys missing from the file at their preset value
	sourceConfig := Config{Settings: ConfigSettings{Enabled: true}}
	if err := yaml.Unmarshal(data, &sourceConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if sourceConfig.Reader == "" {
		sourceConfig.Reader = ReaderReddit
	}

	return &sourceConfig, nil
}

func (cc *ConfigCache) validateConfig(sourceConfig *Config) error {
	if sourceConfig == nil {
		return fmt.Errorf("sourceConfig is nil")
	}

	if err := cc.validate.Struct(sourceConfig); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if sourceConfig.Reader == ReaderRSS && sourceConfig.URL == "" {
		return fmt.Errorf("feed URL is required for rss sources")
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(sourceName string) string {
	return filepath.Join(cc.sourcesDir, sourceName+".yml")
}
