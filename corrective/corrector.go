package corrective

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

// Source says where a corrected answer came from.
type Source string

const (
	SourceDocuments    Source = "documents"
	SourceDocumentsWeb Source = "documents+web"
	SourceFlagged      Source = "documents_flagged"
)

const (
	verificationHeader = "Web Verification:"
	verificationFooter = "Answer verified against current web sources for accuracy."
	lowConfidenceNote  = "Low confidence answer. Consider additional sources."
)

// Searcher looks a query up on the web.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// Config holds the correction tunables.
type Config struct {
	// Answers at or above Threshold are returned unchanged.
	Threshold float64
	// Timeout bounds one web search.
	Timeout time.Duration
	// Snippets is how many results are merged into the answer, each cut
	// to SnippetLength runes.
	Snippets      int
	SnippetLength int
}

// DefaultConfig returns the standard settings.
func DefaultConfig() Config {
	return Config{
		Threshold:     0.7,
		Timeout:       DefaultSearchTimeout,
		Snippets:      3,
		SnippetLength: 200,
	}
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	switch {
	case c.Threshold < 0 || c.Threshold > 1:
		return fmt.Errorf("threshold must be within [0, 1], got %v", c.Threshold)
	case c.Timeout <= 0:
		return errors.New("timeout must be positive")
	case c.Snippets <= 0 || c.SnippetLength <= 0:
		return errors.New("snippets and snippet length must be positive")
	}
	return nil
}

// Correction is the outcome of Correct.
type Correction struct {
	Answer     string
	Corrected  bool
	Source     Source
	WebResults int
}

// Option configures a Corrector.
type Option func(*Corrector) error

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(c *Corrector) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		c.cfg = cfg
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Corrector) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// Corrector verifies low-confidence answers on the web.
type Corrector struct {
	searcher Searcher
	cfg      Config
	logger   *slog.Logger
}

// NewCorrector creates a corrector around searcher.
func NewCorrector(searcher Searcher, opts ...Option) (*Corrector, error) {
	if searcher == nil {
		return nil, errors.New("corrector: searcher is required")
	}
	c := &Corrector{
		searcher: searcher,
		cfg:      DefaultConfig(),
		logger:   slog.Default().With("component", "corrector"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Correct returns answer unchanged when confidence reaches the threshold.
// Otherwise it searches the web for query: hits are appended as a
// verification section, and a failed or empty search flags the answer.
func (c *Corrector) Correct(ctx context.Context, query, answer string, confidence float64) Correction {
	if confidence >= c.cfg.Threshold {
		return Correction{Answer: answer, Source: SourceDocuments}
	}

	sctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	results, err := c.searcher.Search(sctx, query)
	if err != nil {
		c.logger.Warn("web verification unavailable", "err", err)
	}
	if len(results) == 0 {
		return Correction{
			Answer:    answer + "\n\n" + lowConfidenceNote,
			Corrected: true,
			Source:    SourceFlagged,
		}
	}
	return Correction{
		Answer:     c.merge(answer, results),
		Corrected:  true,
		Source:     SourceDocumentsWeb,
		WebResults: len(results),
	}
}

func (c *Corrector) merge(answer string, results []Result) string {
	var b strings.Builder
	b.WriteString(answer)
	b.WriteString("\n\n")
	b.WriteString(verificationHeader)
	for _, r := range results[:min(len(results), c.cfg.Snippets)] {
		fmt.Fprintf(&b, "\n- %s: %s...", r.Title, truncate(r.Content, c.cfg.SnippetLength))
	}
	b.WriteString("\n\n")
	b.WriteString(verificationFooter)
	return b.String()
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
