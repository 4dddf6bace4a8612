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

package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/veritas"
	"github.com/poiesic/veritas/config"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "veritas",
		Usage: "Grounded question answering over your own documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML config file (default ~/.veritas/config.toml)",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to the database directory, overriding the config file",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Add plain-text documents to the corpus",
				ArgsUsage: "FILE...",
				Action:    ingestCommand,
			},
			{
				Name:      "query",
				Aliases:   []string{"ask"},
				Usage:     "Answer a question from the corpus",
				ArgsUsage: "QUESTION",
				Action:    queryCommand,
				Flags: []cli.Flag{
					&cli.Int64SliceFlag{
						Name:    "document",
						Aliases: []string{"D"},
						Usage:   "Restrict the answer to these document ids (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the full response as JSON",
					},
					&cli.BoolFlag{
						Name:  "trace",
						Usage: "Print candidates after every pipeline stage and the sources' associations",
					},
				},
			},
			{
				Name:    "documents",
				Aliases: []string{"ls"},
				Usage:   "List stored documents",
				Action:  documentsCommand,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete documents with their chunks, graph edges and memory",
				ArgsUsage: "ID...",
				Action:    deleteCommand,
			},
			{
				Name:   "stats",
				Usage:  "Show corpus and memory statistics",
				Action: statsCommand,
			},
			{
				Name:      "check",
				Usage:     "Ask rewritten forms of a question and report whether the answers stay consistent",
				ArgsUsage: "QUESTION",
				Action:    checkCommand,
			},
			{
				Name:      "similar",
				Usage:     "Rank documents by their holographic correlation with a query",
				ArgsUsage: "QUERY",
				Action:    similarCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Value:   5,
						Usage:   "Number of documents to list",
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Reembed every chunk and document after an embedding model change",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch (default from config)",
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations (default from config)",
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff (default from config)",
					},
				},
			},
		},
	}
}

// openDatabase loads the config named by --config and opens the database.
// Tests replace it.
var openDatabase = func(c *cli.Context) (*veritas.Database, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	db, err := veritas.NewDatabase(c.Context, "", veritas.WithConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if c.IsSet("db") {
		cfg.Storage.Path = c.String("db")
	}
	if c.IsSet("batch-size") {
		cfg.Reembed.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("max-retries") {
		cfg.Reembed.MaxRetries = c.Int("max-retries")
	}
	if c.IsSet("retry-delay") {
		cfg.Reembed.RetryDelay = config.Duration(c.Duration("retry-delay"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}
