package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paper-triplets/config"
)

type fakeSource struct {
	docs  map[string]string
	calls []string
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(_ context.Context, id string) ([]byte, error) {
	f.calls = append(f.calls, id)
	raw, ok := f.docs[id]
	if !ok {
		return nil, errors.New("timeout")
	}
	return []byte(raw), nil
}

type fakeIDs struct {
	ids []string
	err error
}

func (f fakeIDs) LoadIDs(context.Context) ([]string, error) { return f.ids, f.err }

type fakeSink struct {
	saved []string
	err   error
}

func (f *fakeSink) SaveDocument(_ context.Context, _ string, doc *ProcessedDocument) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, doc.PMCID)
	return nil
}

func biocDoc(title, text string) string {
	return `[{"documents":[{"passages":[` +
		`{"infons":{"type":"title_1"},"text":"` + title + `"},` +
		`{"infons":{"type":"paragraph"},"text":"` + text + `"}]}]}]`
}

func testConfig() *config.Config {
	return &config.Config{}
}

func TestPipeline_Run(t *testing.T) {
	source := &fakeSource{docs: map[string]string{
		"PMC1": biocDoc("Intro", "one"),
		"PMC3": biocDoc("Methods", "three"),
	}}
	sink := &fakeSink{}
	p := NewPipelineService(testConfig(), zap.NewNop(), source, nil, sink, nil)

	result, err := p.Run(context.Background(), []string{"PMC1", "PMC2", "PMC3"})
	require.NoError(t, err)

	assert.Equal(t, []string{"PMC1", "PMC2", "PMC3"}, source.calls)
	require.Len(t, result.Documents, 2)
	assert.Equal(t, "PMC1", result.Documents[0].PMCID)
	assert.Equal(t, "PMC3", result.Documents[1].PMCID)
	assert.Equal(t, []any{"Methods", "main_content", "three"}, result.Documents[1].Triplets[0].Values())

	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "PMC2", result.Skipped[0].PMCID)
	assert.Equal(t, skipFetch, result.Skipped[0].Reason)

	assert.Equal(t, []string{"PMC1", "PMC3"}, sink.saved)
	assert.Equal(t, 2, result.TripletCount())
	assert.NotEmpty(t, result.RunID)
	assert.False(t, result.FinishedAt.Before(result.StartedAt))
}

func TestPipeline_SkipsMalformedDocuments(t *testing.T) {
	source := &fakeSource{docs: map[string]string{
		"PMC1": `[{"documents":[]}]`,
		"PMC2": biocDoc("Intro", "ok"),
	}}
	p := NewPipelineService(testConfig(), zap.NewNop(), source, nil, nil, nil)

	result, err := p.Run(context.Background(), []string{"PMC1", "PMC2"})
	require.NoError(t, err)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, skipMalformed, result.Skipped[0].Reason)
	assert.ErrorIs(t, result.Skipped[0].Err, ErrMalformedDocument)
	require.Len(t, result.Documents, 1)
	assert.Equal(t, "PMC2", result.Documents[0].PMCID)
}

func TestPipeline_SinkErrorKeepsDocument(t *testing.T) {
	source := &fakeSource{docs: map[string]string{"PMC1": biocDoc("Intro", "one")}}
	sink := &fakeSink{err: errors.New("db down")}
	p := NewPipelineService(testConfig(), zap.NewNop(), source, nil, sink, nil)

	result, err := p.Run(context.Background(), []string{"PMC1"})
	require.NoError(t, err)
	assert.Len(t, result.Documents, 1)
	assert.Equal(t, 1, result.SinkErrors)
}

func TestPipeline_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewPipelineMetrics(reg)
	source := &fakeSource{docs: map[string]string{
		"PMC1": biocDoc("Intro", "one"),
		"PMC3": `not json`,
	}}
	p := NewPipelineService(testConfig(), zap.NewNop(), source, nil, nil, metrics)

	_, err := p.Run(context.Background(), []string{"PMC1", "PMC2", "PMC3"})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Processed))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Triplets))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Skipped.WithLabelValues(skipFetch)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Skipped.WithLabelValues(skipMalformed)))
}

func TestPipeline_CanceledContext(t *testing.T) {
	source := &fakeSource{docs: map[string]string{"PMC1": biocDoc("Intro", "one")}}
	p := NewPipelineService(testConfig(), zap.NewNop(), source, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := p.Run(ctx, []string{"PMC1"})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Empty(t, result.Documents)
	assert.Empty(t, source.calls)
}

func TestPipeline_FetchDelay(t *testing.T) {
	source := &fakeSource{docs: map[string]string{
		"PMC1": biocDoc("A", "a"),
		"PMC2": biocDoc("B", "b"),
		"PMC3": biocDoc("C", "c"),
	}}
	cfg := &config.Config{FetchDelay: 40 * time.Millisecond}
	p := NewPipelineService(cfg, zap.NewNop(), source, nil, nil, nil)

	start := time.Now()
	result, err := p.Run(context.Background(), []string{"PMC1", "PMC2", "PMC3"})
	require.NoError(t, err)
	assert.Len(t, result.Documents, 3)
	// erste Anfrage sofort, danach je eine Pause
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
}

func TestPipeline_RunFromSource(t *testing.T) {
	source := &fakeSource{docs: map[string]string{"PMC9": biocDoc("Intro", "x")}}

	t.Run("loads ids", func(t *testing.T) {
		p := NewPipelineService(testConfig(), zap.NewNop(), source, fakeIDs{ids: []string{"PMC9"}}, nil, nil)
		result, err := p.RunFromSource(context.Background())
		require.NoError(t, err)
		require.Len(t, result.Documents, 1)
		assert.Equal(t, "PMC9", result.Documents[0].PMCID)
	})

	t.Run("id source error", func(t *testing.T) {
		p := NewPipelineService(testConfig(), zap.NewNop(), source, fakeIDs{err: errors.New("csv gone")}, nil, nil)
		result, err := p.RunFromSource(context.Background())
		assert.EqualError(t, err, "csv gone")
		assert.Nil(t, result)
	})

	t.Run("no id source", func(t *testing.T) {
		p := NewPipelineService(testConfig(), zap.NewNop(), source, nil, nil, nil)
		_, err := p.RunFromSource(context.Background())
		assert.Error(t, err)
	})
}
