package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/veritas/core"
	"github.com/poiesic/veritas/ingestion"
	"github.com/poiesic/veritas/metamorphic"
	"github.com/poiesic/veritas/pipeline"
)

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one file is required")
	}
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	p, err := db.NewIngestionPipeline()
	if err != nil {
		return fmt.Errorf("failed to create ingestion pipeline: %w", err)
	}
	defer p.Release()

	out := c.App.Writer
	failed := 0
	for _, path := range c.Args().Slice() {
		content, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", path, err)
			failed++
			continue
		}
		doc, err := p.Ingest(c.Context, filepath.Base(path), string(content))
		switch {
		case errors.Is(err, ingestion.ErrDuplicateDocument):
			fmt.Fprintf(out, "%s: already ingested, skipped\n", path)
		case errors.Is(err, ingestion.ErrEmptyDocument):
			fmt.Fprintf(out, "%s: empty, skipped\n", path)
		case err != nil:
			fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", path, err)
			failed++
		default:
			fmt.Fprintf(out, "%s: document %d\n", path, doc.Id)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, c.NArg())
	}
	return nil
}

func queryCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if err := core.ValidateQuery(question); err != nil {
		return err
	}
	var ids []core.ID
	for _, v := range c.Int64Slice("document") {
		if v <= 0 {
			return fmt.Errorf("invalid document id %d", v)
		}
		ids = append(ids, core.ID(v))
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	p, err := db.NewPipeline()
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	var monitor pipeline.Monitor
	if c.Bool("trace") {
		monitor = newTraceMonitor(c.App.ErrWriter)
	}
	resp := p.ProcessQueryWithMonitor(c.Context, question, ids, monitor)

	out := c.App.Writer
	if c.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Fprintln(out, resp.Answer)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "type: %s  confidence: %.2f\n", resp.QueryType, resp.Confidence)
	if len(resp.Sources) > 0 {
		fmt.Fprintln(out, "sources:")
		for i, src := range resp.Sources {
			fmt.Fprintf(out, "  [%d] document %d, chunk %d: %s\n", i+1, src.DocumentID, src.ChunkID, oneLine(src.ContentPreview))
		}
	}
	if c.Bool("trace") {
		for _, src := range resp.Sources {
			for _, a := range db.Associations(src.ChunkID) {
				fmt.Fprintf(c.App.ErrWriter, "chunk %d associated with chunk %d (%.2f)\n", src.ChunkID, a.ChunkID, a.Strength)
			}
		}
	}
	if resp.QueryType == core.QueryTypeError {
		return fmt.Errorf("query failed: %v", resp.Metadata["error"])
	}
	return nil
}

func documentsCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	docs, err := db.Documents(c.Context)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(c.App.Writer, "No documents")
		return nil
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILENAME\tINSERTED\tAUTHORS\tYEAR")
	for _, doc := range docs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", doc.Id, doc.Filename, formatTime(doc.InsertedAt),
			dash(strings.Join(ingestion.Authors(doc.Metadata), ", ")), dash(doc.Metadata[ingestion.MetaYear]))
	}
	return w.Flush()
}

func deleteCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one document id is required")
	}
	ids := make([]core.ID, 0, c.NArg())
	for _, arg := range c.Args().Slice() {
		v, err := strconv.ParseUint(arg, 10, 64)
		if err != nil || v == 0 {
			return fmt.Errorf("invalid document id %q", arg)
		}
		ids = append(ids, core.ID(v))
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	p, err := db.NewIngestionPipeline()
	if err != nil {
		return err
	}
	defer p.Release()

	for _, id := range ids {
		if err := p.Delete(c.Context, id); err != nil {
			return fmt.Errorf("deleting document %d: %w", id, err)
		}
		fmt.Fprintf(c.App.Writer, "deleted document %d\n", id)
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.Stats(c.Context)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "documents:\t%d\n", stats.Documents)
	fmt.Fprintf(w, "chunks:\t%d\n", stats.Chunks)
	fmt.Fprintf(w, "synapse weights:\t%d\n", stats.Synapses.Weights)
	fmt.Fprintf(w, "associations:\t%d\n", stats.Synapses.Associations)
	fmt.Fprintf(w, "synapse strength:\t%.3f\n", stats.Strength)
	fmt.Fprintf(w, "hologram documents:\t%d\n", stats.Encoded)
	fmt.Fprintf(w, "compression ratio:\t%.1f\n", stats.CompressionRatio)
	fmt.Fprintf(w, "reconstruction fidelity:\t%.3f\n", stats.Fidelity)
	fmt.Fprintf(w, "swarm consensus:\t%.2f\n", stats.Consensus)
	return w.Flush()
}

func similarCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if err := core.ValidateQuery(query); err != nil {
		return err
	}
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	matches, err := db.Similar(c.Context, query, c.Int("limit"))
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Fprintln(c.App.Writer, "No documents")
		return nil
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILENAME\tSIMILARITY")
	for _, m := range matches {
		fmt.Fprintf(w, "%d\t%s\t%.4f\n", m.Document.Id, m.Document.Filename, m.Similarity)
	}
	return w.Flush()
}

func checkCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if err := core.ValidateQuery(question); err != nil {
		return err
	}
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	p, err := db.NewPipeline()
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	answer := func(ctx context.Context, query string) (string, error) {
		resp := p.ProcessQuery(ctx, query, nil)
		if resp.QueryType == core.QueryTypeError {
			return "", fmt.Errorf("%v", resp.Metadata["error"])
		}
		return resp.Answer, nil
	}

	engine := metamorphic.NewEngine()
	result, err := engine.Run(c.Context, question, answer)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RELATION\tRESULT\tQUERY")
	for _, o := range result.Outcomes {
		status := "pass"
		switch {
		case o.Err != nil:
			status = "error"
		case !o.Valid:
			status = "fail"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", o.Relation, status, o.Query)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "\nconsistency: %.2f (%d of %d relations held)\n", result.Score, len(result.Passed), len(result.Outcomes))
	for _, rec := range engine.Report().Recommendations {
		fmt.Fprintln(c.App.Writer, rec)
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	cfg := db.Config()
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", cfg.AIConfig().EmbeddingHost)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(c.App.ErrWriter)

	r, err := db.NewReembedder(c.App.ErrWriter)
	if err != nil {
		return err
	}
	if err := r.Run(c.Context); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
