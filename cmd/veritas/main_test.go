package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/veritas"
	"github.com/poiesic/veritas/ai/mock"
	"github.com/poiesic/veritas/core"
)

const glacierReport = `Glacier Retreat Observations
Author: Anna Berg

Field teams measured the terminus of the northern glacier every spring since 2015. By 2020 the ice
front had retreated almost four hundred metres, exposing bedrock that had been covered for centuries.
Meltwater lakes formed behind the moraine and the survey recommended monitoring them for outburst floods.`

const harbourReport = `Harbour Sediment Study
Author: Tomas Reyes

Dredging records from 2018 show that sediment accumulated fastest near the eastern breakwater. Core
samples contained fine silt carried by the river during spring floods, and the port authority agreed
to relocate the disposal site further offshore to protect the seagrass beds near the inner harbour.`

type harness struct {
	t      *testing.T
	dbPath string
	files  string
	out    bytes.Buffer
	errOut bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	original := openDatabase
	openDatabase = func(c *cli.Context) (*veritas.Database, error) {
		cfg, err := loadConfig(c)
		if err != nil {
			return nil, err
		}
		return veritas.NewDatabase(c.Context, "", veritas.WithConfig(cfg), veritas.WithProvider(mock.NewMockProvider()))
	}
	t.Cleanup(func() { openDatabase = original })

	dir := t.TempDir()
	return &harness{t: t, dbPath: filepath.Join(dir, "data"), files: t.TempDir()}
}

func (h *harness) write(name, content string) string {
	h.t.Helper()
	path := filepath.Join(h.files, name)
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func (h *harness) run(args ...string) error {
	h.out.Reset()
	h.errOut.Reset()
	app := newApp()
	app.Writer = &h.out
	app.ErrWriter = &h.errOut
	return app.Run(append([]string{"veritas", "--db", h.dbPath}, args...))
}

var documentLine = regexp.MustCompile(`document (\d+)`)

func TestCommands_EndToEnd(t *testing.T) {
	h := newHarness(t)
	glacier := h.write("glacier.txt", glacierReport)
	harbour := h.write("harbour.txt", harbourReport)

	require.NoError(t, h.run("ingest", glacier, harbour))
	ids := documentLine.FindAllStringSubmatch(h.out.String(), -1)
	require.Len(t, ids, 2)

	require.NoError(t, h.run("ingest", glacier))
	assert.Contains(t, h.out.String(), "already ingested, skipped")

	require.NoError(t, h.run("documents"))
	assert.Contains(t, h.out.String(), "glacier.txt")
	assert.Contains(t, h.out.String(), "harbour.txt")
	assert.Contains(t, h.out.String(), "Anna Berg")

	require.NoError(t, h.run("stats"))
	assert.Regexp(t, `documents:\s+2`, h.out.String())
	assert.Regexp(t, `hologram documents:\s+2`, h.out.String())
	assert.Regexp(t, `reconstruction fidelity:\s+(0\.9\d\d|1\.000)`, h.out.String())

	require.NoError(t, h.run("similar", "-n", "1", "glacier", "terminus", "moraine"))
	assert.Contains(t, h.out.String(), "glacier.txt")
	assert.NotContains(t, h.out.String(), "harbour.txt")

	require.NoError(t, h.run("query", "--json", "how", "far", "did", "the", "glacier", "retreat?"))
	var resp core.Response
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &resp))
	assert.NotEqual(t, core.QueryTypeError, resp.QueryType)
	assert.NotEmpty(t, resp.Metadata["request_id"])

	require.NoError(t, h.run("delete", ids[0][1]))
	assert.Contains(t, h.out.String(), "deleted document "+ids[0][1])

	require.NoError(t, h.run("stats"))
	assert.Regexp(t, `documents:\s+1`, h.out.String())
}

func TestQueryCommand(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("ingest", h.write("glacier.txt", glacierReport)))

	t.Run("empty question", func(t *testing.T) {
		err := h.run("query")
		assert.ErrorIs(t, err, core.ErrEmptyQuery)
	})

	t.Run("invalid document id", func(t *testing.T) {
		err := h.run("query", "--document", "-4", "glacier")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid document id")
	})

	t.Run("unknown selection", func(t *testing.T) {
		require.NoError(t, h.run("query", "-D", "999999", "how far did the glacier retreat?"))
		assert.Contains(t, h.out.String(), string(core.QueryTypeNotInSelectedDocuments))
	})

	t.Run("trace", func(t *testing.T) {
		require.NoError(t, h.run("query", "--trace", "how far did the glacier retreat?"))
		trace := h.errOut.String()
		assert.Contains(t, trace, "request ")
		assert.Contains(t, trace, "retrieval")
		assert.Contains(t, trace, "finished:")
		assert.Contains(t, h.out.String(), "confidence:")
	})
}

func TestIngestCommand_Errors(t *testing.T) {
	h := newHarness(t)

	err := h.run("ingest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one file")

	err = h.run("ingest", filepath.Join(h.files, "missing.txt"), h.write("blank.txt", "   \n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 files failed")
	assert.Contains(t, h.out.String(), "blank.txt: empty, skipped")
}

func TestDeleteCommand_Errors(t *testing.T) {
	h := newHarness(t)

	for _, arg := range []string{"abc", "0", "-1"} {
		err := h.run("delete", "--", arg)
		require.Error(t, err, arg)
		assert.Contains(t, err.Error(), "invalid document id")
	}

	err := h.run("delete", "42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deleting document 42")
}

func TestCheckCommand(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("ingest", h.write("glacier.txt", glacierReport)))

	err := h.run("check")
	assert.ErrorIs(t, err, core.ErrEmptyQuery)

	require.NoError(t, h.run("check", "how far did the glacier retreat?"))
	out := h.out.String()
	for _, name := range []string{"query_paraphrasing", "query_expansion", "negation_consistency", "temporal_consistency", "specificity_hierarchy"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "how not far did the glacier retreat?")
	assert.Regexp(t, `consistency: \d\.\d\d \(\d of 5 relations held\)`, out)
}

func TestSimilarCommand(t *testing.T) {
	h := newHarness(t)

	err := h.run("similar")
	assert.ErrorIs(t, err, core.ErrEmptyQuery)

	require.NoError(t, h.run("similar", "glacier"))
	assert.Equal(t, "No documents\n", h.out.String())
}

func TestDocumentsCommand_Empty(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("documents"))
	assert.Equal(t, "No documents\n", h.out.String())
}

func TestReembedCommand(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("ingest", h.write("harbour.txt", harbourReport)))

	require.NoError(t, h.run("reembed", "--batch-size", "1", "--retry-delay", "10ms"))
	assert.Contains(t, h.errOut.String(), "Embedding model: embeddinggemma")
	assert.Contains(t, h.errOut.String(), "batch size: 1")
	assert.Contains(t, h.errOut.String(), "Reembedding complete")

	err := h.run("reembed", "--max-retries", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_retries")
}

func TestConfigFlag(t *testing.T) {
	h := newHarness(t)

	path := h.write("bad.toml", "[retrieval]\nfanout = 0\n")
	err := h.run("--config", path, "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fanout")

	err = h.run("--config", filepath.Join(h.files, "absent.toml"), "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestSetupLogger(t *testing.T) {
	h := newHarness(t)

	for _, level := range []string{"debug", "INFO", "Warn", "error"} {
		assert.NoError(t, h.run("--log-level", level, "documents"), level)
	}

	err := h.run("-l", "verbose", "documents")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid log level "verbose"`)
}
