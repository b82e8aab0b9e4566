package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	API struct {
		BaseURL    string        `yaml:"base_url"`
		NotesURL   string        `yaml:"notes_url"`
		GenAIURL   string        `yaml:"genai_url"`
		OpenAPIURL string        `yaml:"openapi_url"`
		Timeout    time.Duration `yaml:"timeout"`
		RateLimit  float64       `yaml:"rate_limit"`
	} `yaml:"api"`

	Database struct {
		URL         string `yaml:"url"`
		TableName   string `yaml:"table_name"`
		VectorDim   int    `yaml:"vector_dim"`
		SearchLimit int    `yaml:"search_limit"`
	} `yaml:"database"`

	Embedder struct {
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
	} `yaml:"embedder"`

	Processor struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
	} `yaml:"processor"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	UI struct {
		PageSize int `yaml:"page_size"`
	} `yaml:"ui"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/notesqa/config.yaml"),
			"/etc/notesqa/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() *Config {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config
}

// applyDefaults runs after mergeWithEnv so the per-service URLs can fall back
// to a base URL that came from the environment.
func applyDefaults(config *Config) {
	if config.API.BaseURL == "" {
		config.API.BaseURL = "http://localhost:8000"
	}
	if config.API.NotesURL == "" {
		config.API.NotesURL = config.API.BaseURL
	}
	if config.API.GenAIURL == "" {
		config.API.GenAIURL = config.API.BaseURL
	}
	if config.API.OpenAPIURL == "" {
		config.API.OpenAPIURL = config.API.BaseURL + "/openapi.json"
	}
	if config.API.Timeout == 0 {
		config.API.Timeout = 30 * time.Second
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "query_history"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}
	if config.Database.SearchLimit == 0 {
		config.Database.SearchLimit = 5
	}

	if config.Embedder.BaseURL == "" {
		config.Embedder.BaseURL = "http://localhost:11434"
	}
	if config.Embedder.Model == "" {
		config.Embedder.Model = "nomic-embed-text:latest"
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = 200
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.UI.PageSize == 0 {
		config.UI.PageSize = 10
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("PUBLIC_API_BASE_URL"); baseURL != "" {
		config.API.BaseURL = baseURL
	}
	if notesURL := os.Getenv("PUBLIC_NOTES_API_URL"); notesURL != "" {
		config.API.NotesURL = notesURL
	}
	if genAIURL := os.Getenv("PUBLIC_GENAI_API_URL"); genAIURL != "" {
		config.API.GenAIURL = genAIURL
	}
	if openAPIURL := os.Getenv("PUBLIC_API_OPENAPI_URL"); openAPIURL != "" {
		config.API.OpenAPIURL = openAPIURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if ollamaURL := os.Getenv("OLLAMA_BASE_URL"); ollamaURL != "" {
		config.Embedder.BaseURL = ollamaURL
	}
}
