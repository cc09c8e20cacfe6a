package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// ErrNoPassword is returned when no graph password is configured. There is
// no default: the process must refuse to start rather than guess.
var ErrNoPassword = errors.New("NEO4J_PASSWORD is not set and no password is configured")

//go:embed default.toml
var defaultTOML []byte

type Neo4jConfig struct {
	URI      string `toml:"uri"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

type SPARQLQuery struct {
	Name  string `toml:"name"`
	Query string `toml:"query"`
}

type SPARQLConfig struct {
	Endpoint       string        `toml:"endpoint"`
	TimeoutSeconds int           `toml:"timeout_seconds"`
	Queries        []SPARQLQuery `toml:"queries"`
}

type LLMConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type CuratorConfig struct {
	Email string `toml:"email"`
	Name  string `toml:"name"`
}

type ServerConfig struct {
	Port int `toml:"port"`
}

type Config struct {
	DataDir string        `toml:"data_dir"`
	Neo4j   Neo4jConfig   `toml:"neo4j"`
	SPARQL  SPARQLConfig  `toml:"sparql"`
	LLM     LLMConfig     `toml:"llm"`
	Curator CuratorConfig `toml:"curator"`
	Server  ServerConfig  `toml:"server"`
}

// Load reads the TOML config at path, falling back to the embedded defaults
// when path is empty or the file does not exist, then applies environment
// overrides. Credentials belong in the environment, not the file.
func Load(path string) (*Config, error) {
	data := defaultTOML
	if path != "" {
		b, err := os.ReadFile(path)
		if err == nil {
			data = b
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Neo4j.URI == "" {
		c.Neo4j.URI = "bolt://localhost:7687"
	}
	if c.Neo4j.Username == "" {
		c.Neo4j.Username = "neo4j"
	}
	if c.SPARQL.Endpoint == "" {
		c.SPARQL.Endpoint = "https://query.wikidata.org/sparql"
	}
	if c.SPARQL.TimeoutSeconds == 0 {
		c.SPARQL.TimeoutSeconds = 30
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 90
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("NEO4J_URI"); v != "" {
		c.Neo4j.URI = v
	}
	if v := os.Getenv("NEO4J_USERNAME"); v != "" {
		c.Neo4j.Username = v
	}
	if v := os.Getenv("NEO4J_PASSWORD"); v != "" {
		c.Neo4j.Password = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("FIGURA_CURATOR_EMAIL"); v != "" {
		c.Curator.Email = v
	}
	if v := os.Getenv("FIGURA_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("FIGURA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

// RequireGraphCredentials validates what every graph-touching command needs
// before connecting.
func (c *Config) RequireGraphCredentials() error {
	if c.Neo4j.Password == "" {
		return ErrNoPassword
	}
	return nil
}

// Query looks up a named SPARQL query from the config.
func (c *Config) Query(name string) (SPARQLQuery, bool) {
	for _, q := range c.SPARQL.Queries {
		if q.Name == name {
			return q, true
		}
	}
	return SPARQLQuery{}, false
}
