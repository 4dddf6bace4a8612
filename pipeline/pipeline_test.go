package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/poiesic/veritas/ai"
	"github.com/poiesic/veritas/ai/mock"
	"github.com/poiesic/veritas/core"
	"github.com/poiesic/veritas/corrective"
	"github.com/poiesic/veritas/generation"
	"github.com/poiesic/veritas/hologram"
	"github.com/poiesic/veritas/phase"
	"github.com/poiesic/veritas/retrieval"
	"github.com/poiesic/veritas/storage/badger"
	"github.com/poiesic/veritas/swarm"
	"github.com/poiesic/veritas/synapse"
	"github.com/poiesic/veritas/temporal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const groundedAnswer = "Photosynthesis converts light energy into chemical energy stored in glucose molecules [Source 1]."

var passages = []string{
	"Photosynthesis converts light energy into chemical energy stored in glucose molecules within plant cells.",
	"Chlorophyll absorbs light energy most strongly in the blue and red parts of the spectrum.",
	"Plants release oxygen as a by-product when photosynthesis splits water molecules.",
}

type stubRetriever struct {
	chunks   []*core.Chunk
	err      error
	restrict bool // Honor the query's selection like the storage scan does
	seen     []core.Selection
}

func (s *stubRetriever) Retrieve(_ context.Context, qc *core.QueryContext, limit int) ([]*core.Chunk, error) {
	s.seen = append(s.seen, qc.Selection)
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*core.Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		if len(out) == limit {
			break
		}
		if s.restrict && !qc.Selection.Allows(c.DocumentId) {
			continue
		}
		out = append(out, c.Clone())
	}
	return out, nil
}

// truncate keeps the first n candidates, the way the phase reranker cuts
// to its result budget.
type truncate int

func (n truncate) Score(_ context.Context, _ *core.QueryContext, candidates []*core.Chunk) ([]*core.Chunk, error) {
	return candidates[:min(int(n), len(candidates))], nil
}

type stubGenerator struct {
	result *generation.Result
	panics bool
	got    []*core.Chunk
}

func (s *stubGenerator) ExpandQuery(context.Context, string) []string {
	return []string{"an alternate phrasing of the query"}
}

func (s *stubGenerator) Generate(_ context.Context, _ *core.QueryContext, chunks []*core.Chunk) *generation.Result {
	if s.panics {
		panic("generator exploded")
	}
	s.got = chunks
	return s.result
}

// recorder is a stage that records fixed diagnostics and passes
// candidates through.
type recorder map[string]float64

func (r recorder) Score(_ context.Context, qc *core.QueryContext, candidates []*core.Chunk) ([]*core.Chunk, error) {
	for name, v := range r {
		qc.Record(name, v)
	}
	return candidates, nil
}

type failingStage struct{}

func (failingStage) Score(context.Context, *core.QueryContext, []*core.Chunk) ([]*core.Chunk, error) {
	return nil, errors.New("stage broke")
}

type traceMonitor struct {
	noopMonitor
	mu     sync.Mutex
	stages []string
	start  *core.QueryContext
	final  *core.Response
}

func (m *traceMonitor) Start(qc *core.QueryContext) { m.start = qc }

func (m *traceMonitor) AfterStage(stage string, _ []*core.Chunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, stage)
}

func (m *traceMonitor) Finish(resp *core.Response) { m.final = resp }

func chunksFor(docs ...core.ID) []*core.Chunk {
	chunks := make([]*core.Chunk, len(passages))
	for i, p := range passages {
		chunks[i] = &core.Chunk{
			Id:         core.ID(10 + i),
			DocumentId: docs[i%len(docs)],
			ChunkIndex: i,
			Content:    p,
			Vector:     mock.WordVector(p, mock.DefaultDimensions),
			Similarity: 0.8,
			Score:      0.8,
		}
	}
	return chunks
}

func answered(confidence float64) *generation.Result {
	return &generation.Result{
		Answer:     groundedAnswer,
		Confidence: confidence,
		Sources:    []core.Source{{ChunkID: 10, DocumentID: 1, ContentPreview: passages[0]}},
		Model:      "primary-model",
		Tier:       generation.TierPrimary,
		Relevance:  0.6,
	}
}

func TestNew(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	gen := &stubGenerator{}
	ret := &stubRetriever{}

	t.Run("missing collaborators", func(t *testing.T) {
		_, err := New(nil, gen, embedder)
		assert.ErrorIs(t, err, ErrRetrieverRequired)
		_, err = New(ret, nil, embedder)
		assert.ErrorIs(t, err, ErrGeneratorRequired)
		_, err = New(ret, gen, nil)
		assert.ErrorIs(t, err, ErrEmbedderRequired)
	})

	t.Run("stage without scorer", func(t *testing.T) {
		_, err := New(ret, gen, embedder, WithRerankers(Stage{Name: "empty"}))
		assert.Error(t, err)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Fanout = 0
		_, err := New(ret, gen, embedder, WithConfig(cfg))
		assert.Error(t, err)
	})
}

func TestProcessQuery_NoResults(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	provider := mock.NewMockProvider()
	hybrid, err := retrieval.NewHybrid(repos.Chunks, provider.Embedder())
	require.NoError(t, err)
	gen, err := generation.NewGenerator(provider)
	require.NoError(t, err)
	defer gen.Close()

	p, err := New(hybrid, gen, provider.Embedder())
	require.NoError(t, err)

	resp := p.ProcessQuery(context.Background(), "anything", nil)
	assert.Equal(t, core.QueryTypeNoResults, resp.QueryType)
	assert.Zero(t, resp.Confidence)
	assert.Empty(t, resp.Sources)
	assert.NotNil(t, resp.Sources)
	assert.Equal(t, "no_documents_found", resp.Metadata["reason"])
	assert.NotEmpty(t, resp.Metadata["request_id"])
}

func TestProcessQuery_NotInSelectedDocuments(t *testing.T) {
	ret := &stubRetriever{chunks: chunksFor(2)}
	gen := &stubGenerator{result: answered(0.9)}
	p, err := New(ret, gen, mock.NewMockEmbedder())
	require.NoError(t, err)

	resp := p.ProcessQuery(context.Background(), "how does photosynthesis work", []core.ID{1})

	assert.Equal(t, core.QueryTypeNotInSelectedDocuments, resp.QueryType)
	assert.Zero(t, resp.Confidence)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, "answer_not_in_selected_documents", resp.Metadata["reason"])
	assert.Equal(t, []core.ID{1}, resp.Metadata["selected_document_ids"])
	assert.Equal(t, len(passages), resp.Metadata["chunks_filtered_out"])
	assert.Nil(t, gen.got, "generation must not run")
	require.NotEmpty(t, ret.seen)
	assert.Equal(t, core.NewSelection(1), ret.seen[0], "retrieval is restricted to the selection")
}

func TestProcessQuery_SelectedDocumentOutrankedByCorpus(t *testing.T) {
	// 25 documents outrank the selected one corpus-wide; it must still be
	// answered from.
	var chunks []*core.Chunk
	for i := range 25 {
		chunks = append(chunks, &core.Chunk{
			Id:         core.ID(100 + i),
			DocumentId: core.ID(i + 1),
			Content:    passages[i%len(passages)],
			Similarity: 0.9,
			Score:      0.9,
		})
	}
	chunks = append(chunks, &core.Chunk{
		Id:         500,
		DocumentId: 50,
		Content:    "Offshore wind turbines stand on monopile foundations driven into the seabed.",
		Similarity: 0.4,
		Score:      0.4,
	})
	ret := &stubRetriever{chunks: chunks, restrict: true}
	gen := &stubGenerator{result: answered(0.9)}
	p, err := New(ret, gen, mock.NewMockEmbedder(), WithRerankers(Stage{Name: StagePhase, Scorer: truncate(15)}))
	require.NoError(t, err)

	resp := p.ProcessQuery(context.Background(), "what do offshore wind turbines stand on", []core.ID{50})

	require.Equal(t, core.QueryTypeSimple, resp.QueryType, resp.Answer)
	require.Len(t, gen.got, 1)
	assert.Equal(t, core.ID(500), gen.got[0].Id)
	assert.Equal(t, 0, resp.Metadata["chunks_filtered_out"])
	assert.Len(t, ret.seen, 1, "no corpus-wide lookup for an answered query")
}

func TestProcessQuery_SelectionOutcomes(t *testing.T) {
	refusal := &generation.Result{
		Answer: "I found some documents, but they don't contain relevant information.",
		Model:  generation.ModelInsufficientRelevance,
		Tier:   generation.TierRefusal,
		Reason: generation.ReasonInsufficientRelevance,
	}
	doc := func(docID core.ID, id core.ID) *core.Chunk {
		return &core.Chunk{Id: id, DocumentId: docID, Content: passages[int(id)%len(passages)], Similarity: 0.5}
	}

	tests := []struct {
		name      string
		chunks    []*core.Chunk
		result    *generation.Result
		selection []core.ID
		want      core.QueryType
	}{
		{
			name:      "unknown selected document",
			chunks:    []*core.Chunk{doc(2, 1), doc(2, 2)},
			result:    answered(0.9),
			selection: []core.ID{99},
			want:      core.QueryTypeNotInSelectedDocuments,
		},
		{
			name:      "empty corpus with a selection",
			result:    answered(0.9),
			selection: []core.ID{1},
			want:      core.QueryTypeNoResults,
		},
		{
			name:      "selected document irrelevant, top matches elsewhere",
			chunks:    []*core.Chunk{doc(2, 1), doc(2, 2), doc(1, 3)},
			result:    refusal,
			selection: []core.ID{1},
			want:      core.QueryTypeNotInSelectedDocuments,
		},
		{
			name:      "selected document among the top matches",
			chunks:    []*core.Chunk{doc(2, 1), doc(1, 2)},
			result:    refusal,
			selection: []core.ID{1},
			want:      core.QueryTypeInsufficientInformation,
		},
		{
			name:   "no selection",
			chunks: []*core.Chunk{doc(2, 1)},
			result: refusal,
			want:   core.QueryTypeInsufficientInformation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ret := &stubRetriever{chunks: tt.chunks, restrict: true}
			p, err := New(ret, &stubGenerator{result: tt.result}, mock.NewMockEmbedder(), WithConfig(Config{MaxResults: 2, Fanout: 2}))
			require.NoError(t, err)

			resp := p.ProcessQuery(context.Background(), "how does photosynthesis work", tt.selection)
			assert.Equal(t, tt.want, resp.QueryType, resp.Answer)
			assert.Zero(t, resp.Confidence)
			assert.Empty(t, resp.Sources)
		})
	}
}

func TestProcessQuery_SelectionReachesGeneration(t *testing.T) {
	ret := &stubRetriever{chunks: chunksFor(1, 2)}
	gen := &stubGenerator{result: answered(0.9)}
	p, err := New(ret, gen, mock.NewMockEmbedder())
	require.NoError(t, err)

	resp := p.ProcessQuery(context.Background(), "how does photosynthesis work", []core.ID{1})

	require.NotEmpty(t, gen.got)
	for _, c := range gen.got {
		assert.Equal(t, core.ID(1), c.DocumentId)
	}
	assert.Equal(t, 1, resp.Metadata["chunks_filtered_out"])
	assert.Equal(t, core.QueryTypeSimple, resp.QueryType)
}

func TestProcessQuery_FusedConfidence(t *testing.T) {
	midpoints := recorder{
		core.SignalCoherence:   0.5,
		core.SignalStrength:    0.5,
		core.SignalCompression: 0.5,
		core.SignalConsensus:   0.5,
		core.SignalTemporal:    0.5,
	}
	chunks := make([]*core.Chunk, 10)
	for i := range chunks {
		chunks[i] = &core.Chunk{Id: core.ID(i + 1), DocumentId: 1, Content: passages[i%len(passages)], Similarity: 0.9, Score: 0.9}
	}
	ret := &stubRetriever{chunks: chunks}
	gen := &stubGenerator{result: answered(0.9)}
	p, err := New(ret, gen, mock.NewMockEmbedder(), WithRerankers(Stage{Name: "diagnostics", Scorer: midpoints}))
	require.NoError(t, err)

	resp := p.ProcessQuery(context.Background(), "how does photosynthesis work", nil)

	want := 0.15*0.5 + 0.15*0.5 + 0.10*0.5 + 0.20*0.5 + 0.15*0.5 + 0.25*0.9
	assert.InDelta(t, want, resp.Confidence, 1e-12)
	assert.Equal(t, 0.5, resp.Metadata["quantum_coherence"])
	assert.Equal(t, 0.5, resp.Metadata["swarm_consensus"])
	assert.Equal(t, 0.6, resp.Metadata["relevance_score"])
	assert.Equal(t, "primary-model", resp.Metadata["model"])
	assert.Len(t, gen.got, 10)
}

type webResults []corrective.Result

func (w webResults) Search(context.Context, string) ([]corrective.Result, error) {
	return w, nil
}

func TestProcessQuery_Correction(t *testing.T) {
	corrector, err := corrective.NewCorrector(webResults{{Title: "Botany", Content: "plants make sugar"}})
	require.NoError(t, err)
	weak := Stage{Name: "diagnostics", Scorer: recorder{
		core.SignalCoherence:   0.2,
		core.SignalStrength:    0.2,
		core.SignalCompression: 0.2,
		core.SignalConsensus:   0.2,
		core.SignalTemporal:    0.2,
	}}

	t.Run("low confidence answers are verified", func(t *testing.T) {
		p, err := New(&stubRetriever{chunks: chunksFor(1)}, &stubGenerator{result: answered(0.5)}, mock.NewMockEmbedder(),
			WithRerankers(weak), WithCorrector(corrector))
		require.NoError(t, err)

		resp := p.ProcessQuery(context.Background(), "how does photosynthesis work", nil)
		require.Less(t, resp.Confidence, 0.7)
		assert.Equal(t, "documents+web", resp.Metadata["correction_source"])
		assert.Equal(t, 1, resp.Metadata["web_results"])
		assert.True(t, strings.HasPrefix(resp.Answer, groundedAnswer))
		assert.Contains(t, resp.Answer, "- Botany: plants make sugar...")
	})

	t.Run("confident answers keep their text", func(t *testing.T) {
		p, err := New(&stubRetriever{chunks: chunksFor(1)}, &stubGenerator{result: answered(0.9)}, mock.NewMockEmbedder(),
			WithCorrector(corrector))
		require.NoError(t, err)

		resp := p.ProcessQuery(context.Background(), "how does photosynthesis work", nil)
		assert.Equal(t, groundedAnswer, resp.Answer)
		assert.Equal(t, "documents", resp.Metadata["correction_source"])
		assert.Equal(t, 0, resp.Metadata["web_results"])
	})

	t.Run("selected documents are never corrected", func(t *testing.T) {
		p, err := New(&stubRetriever{chunks: chunksFor(1)}, &stubGenerator{result: answered(0.5)}, mock.NewMockEmbedder(),
			WithRerankers(weak), WithCorrector(corrector))
		require.NoError(t, err)

		resp := p.ProcessQuery(context.Background(), "how does photosynthesis work", []core.ID{1})
		assert.Equal(t, groundedAnswer, resp.Answer)
		assert.NotContains(t, resp.Metadata, "correction_source")
	})

	t.Run("refusals are not corrected", func(t *testing.T) {
		gen := &stubGenerator{result: &generation.Result{
			Answer: "I found some documents, but they don't contain relevant information.",
			Tier:   generation.TierRefusal,
			Reason: generation.ReasonInsufficientRelevance,
		}}
		p, err := New(&stubRetriever{chunks: chunksFor(1)}, gen, mock.NewMockEmbedder(), WithCorrector(corrector))
		require.NoError(t, err)

		resp := p.ProcessQuery(context.Background(), "what is the capital of mars", nil)
		assert.Equal(t, core.QueryTypeInsufficientInformation, resp.QueryType)
		assert.NotContains(t, resp.Metadata, "correction_source")
	})
}

func TestProcessQuery_InsufficientInformation(t *testing.T) {
	ret := &stubRetriever{chunks: chunksFor(1)}
	gen := &stubGenerator{result: &generation.Result{
		Answer: "I found some documents, but they don't contain relevant information.",
		Model:  generation.ModelInsufficientRelevance,
		Tier:   generation.TierRefusal,
		Reason: generation.ReasonInsufficientRelevance,
	}}
	p, err := New(ret, gen, mock.NewMockEmbedder(), WithRerankers(Stage{Name: "diagnostics", Scorer: recorder{core.SignalCoherence: 1}}))
	require.NoError(t, err)

	resp := p.ProcessQuery(context.Background(), "what is the capital of mars", nil)

	assert.Equal(t, core.QueryTypeInsufficientInformation, resp.QueryType)
	assert.Zero(t, resp.Confidence, "a refusal is never lifted by other signals")
	assert.Equal(t, gen.result.Answer, resp.Answer)
	assert.Equal(t, generation.ReasonInsufficientRelevance, resp.Metadata["reason"])
}

func TestProcessQuery_Errors(t *testing.T) {
	t.Run("retrieval failure", func(t *testing.T) {
		p, err := New(&stubRetriever{err: ai.ErrBackendUnavailable}, &stubGenerator{}, mock.NewMockEmbedder())
		require.NoError(t, err)

		resp := p.ProcessQuery(context.Background(), "query", nil)
		assert.Equal(t, core.QueryTypeError, resp.QueryType)
		assert.Zero(t, resp.Confidence)
		assert.Contains(t, resp.Answer, "model backend unavailable")
	})

	t.Run("query embedding failure", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
			return nil, ai.ErrBackendUnavailable
		}
		p, err := New(&stubRetriever{chunks: chunksFor(1)}, &stubGenerator{result: answered(0.9)}, embedder)
		require.NoError(t, err)

		resp := p.ProcessQuery(context.Background(), "query", nil)
		assert.Equal(t, core.QueryTypeError, resp.QueryType)
	})

	t.Run("paraphrase embedding failure is tolerated", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextFunc = func(_ context.Context, text string) ([]float32, error) {
			if text == "an alternate phrasing of the query" {
				return nil, ai.ErrBackendUnavailable
			}
			return mock.WordVector(text, mock.DefaultDimensions), nil
		}
		p, err := New(&stubRetriever{chunks: chunksFor(1)}, &stubGenerator{result: answered(0.9)}, embedder)
		require.NoError(t, err)

		resp := p.ProcessQuery(context.Background(), "query", nil)
		assert.Equal(t, core.QueryTypeSimple, resp.QueryType)
		assert.Equal(t, 0, resp.Metadata["paraphrases"])
	})

	t.Run("failing stage", func(t *testing.T) {
		p, err := New(&stubRetriever{chunks: chunksFor(1)}, &stubGenerator{result: answered(0.9)}, mock.NewMockEmbedder(),
			WithRerankers(Stage{Name: "broken", Scorer: failingStage{}}))
		require.NoError(t, err)

		resp := p.ProcessQuery(context.Background(), "query", nil)
		assert.Equal(t, core.QueryTypeError, resp.QueryType)
		assert.Contains(t, resp.Metadata["error"], "broken")
	})

	t.Run("panic", func(t *testing.T) {
		monitor := &traceMonitor{}
		p, err := New(&stubRetriever{chunks: chunksFor(1)}, &stubGenerator{panics: true}, mock.NewMockEmbedder())
		require.NoError(t, err)

		resp := p.ProcessQueryWithMonitor(context.Background(), "query", nil, monitor)
		assert.Equal(t, core.QueryTypeError, resp.QueryType)
		assert.Zero(t, resp.Confidence)
		assert.Contains(t, resp.Answer, "generator exploded")
		assert.Same(t, resp, monitor.final)
	})
}

func TestProcessQuery_FullStack(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()
	ctx := context.Background()

	corpus := append(chunksFor(1, 2), &core.Chunk{
		DocumentId: 3,
		Content:    "In 1998 drought caused widespread crop failure, which led to new irrigation policy.",
	})
	for i, c := range corpus {
		c.Id = 0
		c.ChunkIndex = i
		c.Vector = mock.WordVector(c.Content, mock.DefaultDimensions)
	}
	_, err = repos.Chunks.AddChunks(ctx, corpus...)
	require.NoError(t, err)

	primary := mock.NewMockGenerator("primary-model")
	primary.GenerateFunc = func(_ context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
		if opts.JSON {
			return fmt.Sprintf(`{"refined_answer": %q, "confidence": 0.9}`, groundedAnswer), nil
		}
		return groundedAnswer, nil
	}
	provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), primary, mock.NewMockGenerator("secondary-model"))

	hybrid, err := retrieval.NewHybrid(repos.Chunks, provider.Embedder())
	require.NoError(t, err)
	gen, err := generation.NewGenerator(provider)
	require.NoError(t, err)
	defer gen.Close()

	store := hologram.NewStore(mock.DefaultDimensions, nil)
	store.Encode(1, mock.WordVector(passages[0], mock.DefaultDimensions))

	monitor := &traceMonitor{}
	p, err := New(hybrid, gen, provider.Embedder(),
		WithRerankers(
			Stage{Name: StagePhase, Scorer: phase.NewReranker()},
			Stage{Name: StageMemory, Scorer: synapse.NewMemory(repos.Synapses)},
			Stage{Name: StageCompress, Scorer: store},
			Stage{Name: StageSwarm, Scorer: swarm.NewReranker()},
		),
		WithTemporal(temporal.NewEngine(temporal.DefaultConfig(), nil)),
	)
	require.NoError(t, err)

	resp := p.ProcessQueryWithMonitor(ctx, "how does photosynthesis convert light energy", []core.ID{1}, monitor)

	require.Equal(t, core.QueryTypeSimple, resp.QueryType, resp.Answer)
	assert.Equal(t, groundedAnswer, resp.Answer)
	assert.Greater(t, resp.Confidence, 0.0)
	assert.LessOrEqual(t, resp.Confidence, 1.0)
	for _, src := range resp.Sources {
		assert.Equal(t, core.ID(1), src.DocumentID)
	}
	assert.Equal(t, []string{StageRetrieval, StagePhase, StageMemory, StageCompress, StageSwarm, StageSelection, StageTemporal}, monitor.stages)
	assert.Equal(t, monitor.start.RequestID, resp.Metadata["request_id"])
	for _, name := range []string{core.SignalCoherence, core.SignalStrength, core.SignalCompression, core.SignalConsensus, core.SignalTemporal} {
		_, ok := monitor.start.Signal(name)
		assert.True(t, ok, name)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		query string
		want  core.QueryType
	}{
		{"what is photosynthesis", core.QueryTypeSimple},
		{"compare the framework and approach used", core.QueryTypeComplex},
		{"compare the two approaches", core.QueryTypeSimple},
		{"one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen sixteen", core.QueryTypeComplex},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.query))
		})
	}
}

func TestFuse(t *testing.T) {
	w := DefaultWeights()

	t.Run("resting signals", func(t *testing.T) {
		qc := &core.QueryContext{}
		want := 0.15*0.85 + 0.15*0.75 + 0.10*1.0 + 0.20*0.92 + 0.15*0.78 + 0.25*0.5
		assert.InDelta(t, want, Fuse(w, qc, 0.5), 1e-12)
	})

	t.Run("bounded", func(t *testing.T) {
		qc := &core.QueryContext{}
		for _, name := range []string{core.SignalCoherence, core.SignalStrength, core.SignalCompression, core.SignalConsensus, core.SignalTemporal} {
			qc.Record(name, 7)
		}
		assert.InDelta(t, 1.0, Fuse(w, qc, 3), 1e-9)

		for _, name := range []string{core.SignalCoherence, core.SignalStrength, core.SignalCompression, core.SignalConsensus, core.SignalTemporal} {
			qc.Record(name, -2)
		}
		assert.Equal(t, 0.0, Fuse(w, qc, -1))
	})
}
