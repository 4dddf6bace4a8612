// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/poiesic/veritas/ai"
	"github.com/poiesic/veritas/corrective"
	"github.com/poiesic/veritas/generation"
	"github.com/poiesic/veritas/hologram"
	"github.com/poiesic/veritas/ingestion"
	"github.com/poiesic/veritas/pipeline"
	"github.com/poiesic/veritas/reembed"
	"github.com/poiesic/veritas/swarm"
)

// Duration is a time.Duration written as a string such as "90s" or "1m30s".
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration the way time.Duration prints it.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the complete set of file settings.
type Config struct {
	Storage    Storage    `toml:"storage"`
	AI         AI         `toml:"ai"`
	Retrieval  Retrieval  `toml:"retrieval"`
	Generation Generation `toml:"generation"`
	Ingestion  Ingestion  `toml:"ingestion"`
	Reembed    Reembed    `toml:"reembed"`
	Swarm      Swarm      `toml:"swarm"`
	Fusion     Fusion     `toml:"fusion"`
	Web        Web        `toml:"web"`
}

// Storage locates the databases.
type Storage struct {
	// Path is the badger directory. The relation graph lives in graph.db
	// next to that directory unless GraphPath is set.
	Path      string `toml:"path"`
	GraphPath string `toml:"graph_path"`
}

// AI selects the embedding and generation backends.
type AI struct {
	Host           string   `toml:"host"`
	EmbeddingHost  string   `toml:"embedding_host"`
	GenerationHost string   `toml:"generation_host"`
	APIKey         string   `toml:"api_key"`
	EmbeddingModel string   `toml:"embedding_model"`
	PrimaryModel   string   `toml:"primary_model"`
	SecondaryModel string   `toml:"secondary_model"`
	RequestTimeout Duration `toml:"request_timeout"`
}

// Retrieval tunes candidate gathering.
type Retrieval struct {
	MaxResults    int     `toml:"max_results"`
	Fanout        int     `toml:"fanout"`
	Paraphrases   bool    `toml:"paraphrases"`
	VectorWeight  float64 `toml:"vector_weight"`
	LexicalWeight float64 `toml:"lexical_weight"`
	Dimensions    int     `toml:"hologram_dimensions"`
}

// Generation tunes answer generation.
type Generation struct {
	Drafts            int      `toml:"drafts"`
	MinRelevance      float64  `toml:"min_relevance"`
	MinGroundedness   float64  `toml:"min_groundedness"`
	CallTimeout       Duration `toml:"call_timeout"`
	DraftTimeout      Duration `toml:"draft_timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
	Workers           int      `toml:"workers"`
	Temperature       float64  `toml:"temperature"`
	MaxTokens         int      `toml:"max_tokens"`
}

// Ingestion tunes document processing.
type Ingestion struct {
	MinChunk         int     `toml:"min_chunk"`
	MaxChunk         int     `toml:"max_chunk"`
	BatchSize        int     `toml:"batch_size"`
	Workers          int     `toml:"workers"`
	SimilarThreshold float64 `toml:"similar_threshold"`
}

// Reembed tunes re-embedding runs.
type Reembed struct {
	BatchSize      int      `toml:"batch_size"`
	ReportInterval int      `toml:"report_interval"`
	MaxRetries     int      `toml:"max_retries"`
	RetryDelay     Duration `toml:"retry_delay"`
}

// Swarm tunes the population reranker.
type Swarm struct {
	Agents     int    `toml:"agents"`
	Iterations int    `toml:"iterations"`
	Seed       uint64 `toml:"seed"`
}

// Fusion sets the confidence weights.
type Fusion struct {
	Coherence   float64 `toml:"coherence"`
	Strength    float64 `toml:"strength"`
	Compression float64 `toml:"compression"`
	Consensus   float64 `toml:"consensus"`
	Temporal    float64 `toml:"temporal"`
	Generation  float64 `toml:"generation"`
}

// Web configures the SearXNG verification of low-confidence answers. An
// empty SearXNGURL disables it.
type Web struct {
	SearXNGURL        string   `toml:"searxng_url"`
	Categories        string   `toml:"categories"`
	Engines           string   `toml:"engines"`
	Results           int      `toml:"results"`
	Threshold         float64  `toml:"threshold"`
	Timeout           Duration `toml:"timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
}

// DefaultPath returns ~/.veritas/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".veritas", "config.toml"), nil
}

// Default returns the built-in settings.
func Default() *Config {
	aiCfg := ai.DefaultConfig()
	gen := generation.DefaultConfig()
	pl := pipeline.DefaultConfig()
	re := reembed.DefaultConfig()
	sw := swarm.DefaultConfig()
	w := pl.Weights
	web := corrective.DefaultClientConfig("")
	fix := corrective.DefaultConfig()

	return &Config{
		Storage: Storage{Path: filepath.Join("~", ".veritas", "data")},
		AI: AI{
			EmbeddingHost:  aiCfg.EmbeddingHost,
			GenerationHost: aiCfg.GenerationHost,
			APIKey:         aiCfg.APIKey,
			EmbeddingModel: aiCfg.EmbeddingModel,
			PrimaryModel:   aiCfg.PrimaryModel,
			SecondaryModel: aiCfg.SecondaryModel,
			RequestTimeout: Duration(aiCfg.RequestTimeout),
		},
		Retrieval: Retrieval{
			MaxResults:    pl.MaxResults,
			Fanout:        pl.Fanout,
			Paraphrases:   pl.Paraphrases,
			VectorWeight:  0.6,
			LexicalWeight: 0.4,
			Dimensions:    hologram.DefaultDimensions,
		},
		Generation: Generation{
			Drafts:            gen.Drafts,
			MinRelevance:      gen.MinRelevance,
			MinGroundedness:   gen.MinGroundedness,
			CallTimeout:       Duration(gen.CallTimeout),
			DraftTimeout:      Duration(gen.DraftTimeout),
			RequestsPerSecond: gen.RequestsPerSecond,
			Burst:             gen.Burst,
			Workers:           gen.Workers,
			Temperature:       gen.Temperature,
			MaxTokens:         gen.MaxTokens,
		},
		Ingestion: Ingestion{
			MinChunk:         ingestion.DefaultMinChunk,
			MaxChunk:         ingestion.DefaultMaxChunk,
			BatchSize:        ingestion.DefaultBatchSize,
			SimilarThreshold: ingestion.DefaultSimilarThreshold,
		},
		Reembed: Reembed{
			BatchSize:      re.BatchSize,
			ReportInterval: re.ReportInterval,
			MaxRetries:     re.MaxRetries,
			RetryDelay:     Duration(re.RetryDelay),
		},
		Swarm: Swarm{
			Agents:     sw.Agents,
			Iterations: sw.Iterations,
			Seed:       sw.Seed,
		},
		Fusion: Fusion{
			Coherence:   w.Coherence,
			Strength:    w.Strength,
			Compression: w.Compression,
			Consensus:   w.Consensus,
			Temporal:    w.Temporal,
			Generation:  w.Generation,
		},
		Web: Web{
			Categories:        web.Categories,
			Engines:           web.Engines,
			Results:           web.Limit,
			Threshold:         fix.Threshold,
			Timeout:           Duration(fix.Timeout),
			RequestsPerSecond: web.RequestsPerSecond,
		},
	}
}

// Load reads the file at path over the defaults. An empty path loads
// DefaultPath when it exists and the plain defaults otherwise; a path that
// was named explicitly must exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		var err error
		if path, err = DefaultPath(); err != nil {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, cfg.Validate()
		}
		return nil, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as TOML, creating the parent directory.
func Save(path string, cfg *Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Storage.Path) == "":
		return fmt.Errorf("%w: storage.path is required", ErrInvalidConfig)
	case c.Retrieval.MaxResults <= 0:
		return fmt.Errorf("%w: retrieval.max_results must be positive", ErrInvalidConfig)
	case c.Retrieval.Fanout <= 0:
		return fmt.Errorf("%w: retrieval.fanout must be positive", ErrInvalidConfig)
	case c.Retrieval.VectorWeight < 0 || c.Retrieval.LexicalWeight < 0 ||
		c.Retrieval.VectorWeight+c.Retrieval.LexicalWeight == 0:
		return fmt.Errorf("%w: retrieval weights must be non-negative and not both zero", ErrInvalidConfig)
	case c.Ingestion.MinChunk <= 0 || c.Ingestion.MaxChunk < c.Ingestion.MinChunk:
		return fmt.Errorf("%w: ingestion chunk bounds must satisfy 0 < min_chunk <= max_chunk", ErrInvalidConfig)
	case c.Reembed.BatchSize <= 0:
		return fmt.Errorf("%w: reembed.batch_size must be positive", ErrInvalidConfig)
	case c.Reembed.MaxRetries <= 0:
		return fmt.Errorf("%w: reembed.max_retries must be positive", ErrInvalidConfig)
	}
	if err := c.GenerationConfig().Validate(); err != nil {
		return fmt.Errorf("%w: generation: %w", ErrInvalidConfig, err)
	}
	if err := c.AIConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.WebEnabled() {
		if err := c.CorrectiveConfig().Validate(); err != nil {
			return fmt.Errorf("%w: web: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// StoragePath returns the badger directory with a leading ~ expanded.
func (c *Config) StoragePath() string {
	return expandHome(c.Storage.Path)
}

// RelationsPath returns the relation graph database path.
func (c *Config) RelationsPath() string {
	if c.Storage.GraphPath != "" {
		return expandHome(c.Storage.GraphPath)
	}
	return filepath.Join(filepath.Dir(c.StoragePath()), "graph.db")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// AIConfig converts the [ai] table. Host, when set, wins over both
// per-service hosts.
func (c *Config) AIConfig() *ai.Config {
	cfg := ai.NewConfig(
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithGenerationHost(c.AI.GenerationHost),
		ai.WithAPIKey(c.AI.APIKey),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithPrimaryModel(c.AI.PrimaryModel),
		ai.WithSecondaryModel(c.AI.SecondaryModel),
		ai.WithRequestTimeout(time.Duration(c.AI.RequestTimeout)),
	)
	if c.AI.Host != "" {
		ai.WithHost(c.AI.Host)(cfg)
	}
	return cfg
}

// GenerationConfig converts the [generation] table.
func (c *Config) GenerationConfig() generation.Config {
	cfg := generation.DefaultConfig()
	g := c.Generation
	cfg.Drafts = g.Drafts
	cfg.MinRelevance = g.MinRelevance
	cfg.MinGroundedness = g.MinGroundedness
	cfg.CallTimeout = time.Duration(g.CallTimeout)
	cfg.DraftTimeout = time.Duration(g.DraftTimeout)
	cfg.RequestsPerSecond = g.RequestsPerSecond
	cfg.Burst = g.Burst
	cfg.Workers = g.Workers
	cfg.Temperature = g.Temperature
	cfg.MaxTokens = g.MaxTokens
	return cfg
}

// PipelineConfig converts the [retrieval] and [fusion] tables.
func (c *Config) PipelineConfig() pipeline.Config {
	f := c.Fusion
	return pipeline.Config{
		MaxResults:  c.Retrieval.MaxResults,
		Fanout:      c.Retrieval.Fanout,
		Paraphrases: c.Retrieval.Paraphrases,
		Weights: pipeline.Weights{
			Coherence:   f.Coherence,
			Strength:    f.Strength,
			Compression: f.Compression,
			Consensus:   f.Consensus,
			Temporal:    f.Temporal,
			Generation:  f.Generation,
		},
	}
}

// ReembedConfig converts the [reembed] table.
func (c *Config) ReembedConfig() *reembed.Config {
	return &reembed.Config{
		BatchSize:      c.Reembed.BatchSize,
		ReportInterval: c.Reembed.ReportInterval,
		MaxRetries:     c.Reembed.MaxRetries,
		RetryDelay:     time.Duration(c.Reembed.RetryDelay),
	}
}

// SwarmConfig converts the [swarm] table.
func (c *Config) SwarmConfig() swarm.Config {
	cfg := swarm.DefaultConfig()
	cfg.Agents = c.Swarm.Agents
	cfg.Iterations = c.Swarm.Iterations
	cfg.Seed = c.Swarm.Seed
	return cfg
}

// IngestionOptions converts the [ingestion] table.
func (c *Config) IngestionOptions() []ingestion.Option {
	opts := []ingestion.Option{
		ingestion.WithChunkBounds(c.Ingestion.MinChunk, c.Ingestion.MaxChunk),
		ingestion.WithBatchSize(c.Ingestion.BatchSize),
		ingestion.WithSimilarThreshold(c.Ingestion.SimilarThreshold),
	}
	if c.Ingestion.Workers > 0 {
		opts = append(opts, ingestion.WithPoolSize(c.Ingestion.Workers))
	}
	return opts
}

// WebEnabled reports whether a SearXNG instance is configured.
func (c *Config) WebEnabled() bool {
	return strings.TrimSpace(c.Web.SearXNGURL) != ""
}

// SearchConfig converts the connection part of the [web] table.
func (c *Config) SearchConfig() corrective.ClientConfig {
	return corrective.ClientConfig{
		BaseURL:           c.Web.SearXNGURL,
		Categories:        c.Web.Categories,
		Engines:           c.Web.Engines,
		Limit:             c.Web.Results,
		Timeout:           time.Duration(c.Web.Timeout),
		RequestsPerSecond: c.Web.RequestsPerSecond,
	}
}

// CorrectiveConfig converts the answer checking part of the [web] table.
func (c *Config) CorrectiveConfig() corrective.Config {
	cfg := corrective.DefaultConfig()
	cfg.Threshold = c.Web.Threshold
	cfg.Timeout = time.Duration(c.Web.Timeout)
	return cfg
}
