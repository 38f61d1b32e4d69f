package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"paper-triplets/config"
	"paper-triplets/models"
	"paper-triplets/services"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	repo := NewRepository(db, zap.NewNop())
	require.NoError(t, repo.Migrate())
	return repo
}

func processed(pmcid string, passages ...models.Passage) *services.ProcessedDocument {
	tree := services.BuildHierarchy(passages, services.Normalize)
	return &services.ProcessedDocument{
		PMCID:    pmcid,
		Tree:     tree,
		Triplets: services.FlattenAll(tree.Node()),
	}
}

var (
	intro   = models.Passage{Type: models.PassageTitle1, RawText: "Intro"}
	methods = models.Passage{Type: models.PassageTitle2, RawText: "Methods"}
)

func text(s string) models.Passage {
	return models.Passage{Type: models.PassageParagraph, RawText: s}
}

func TestRepository_SaveAndGet(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	doc := processed("PMC1", intro, text("A"), methods, text("B"))
	require.NoError(t, repo.SaveDocument(ctx, "run-1", doc))

	stored, err := repo.GetDocument(ctx, "PMC1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", stored.RunID)
	assert.Equal(t, 1, stored.SectionCount)
	assert.Equal(t, 2, stored.TripletCount)
	assert.JSONEq(t, `{"Intro":{"main_content":"A","Methods":"B"}}`, string(stored.Tree))

	triplets, err := repo.GetTriplets(ctx, "PMC1")
	require.NoError(t, err)
	require.Len(t, triplets, 2)
	assert.Equal(t, []any{"Intro", "main_content", "A"}, triplets[0].Values())
	assert.Equal(t, []any{"Intro", "Methods", "B"}, triplets[1].Values())
}

func TestRepository_SaveReplacesExisting(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveDocument(ctx, "run-1", processed("PMC1", intro, text("A"), methods, text("B"))))
	require.NoError(t, repo.SaveDocument(ctx, "run-2", processed("PMC1", intro, text("changed"))))

	docs, err := repo.ListDocuments(ctx, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	stored, err := repo.GetDocument(ctx, "PMC1")
	require.NoError(t, err)
	assert.Equal(t, "run-2", stored.RunID)
	assert.Equal(t, 1, stored.TripletCount)

	triplets, err := repo.GetTriplets(ctx, "PMC1")
	require.NoError(t, err)
	require.Len(t, triplets, 1)
	assert.Equal(t, "changed", triplets[0].Leaf)
}

func TestRepository_EmptyTree(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveDocument(ctx, "run-1", processed("PMC9")))
	triplets, err := repo.GetTriplets(ctx, "PMC9")
	require.NoError(t, err)
	assert.Empty(t, triplets)
}

func TestRepository_ListDocuments(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, id := range []string{"PMC1", "PMC2", "PMC3"} {
		require.NoError(t, repo.SaveDocument(ctx, "run", processed(id, intro, text(id))))
	}

	docs, err := repo.ListDocuments(ctx, 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, d := range docs {
		assert.Empty(t, d.Tree)
	}
}

func TestRepository_NotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.GetDocument(context.Background(), "PMC404")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetTriplets(context.Background(), "PMC404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_ImplementsSink(t *testing.T) {
	var _ services.Sink = (*Repository)(nil)

	repo := newTestRepository(t)
	source := sinkSource{"PMC5": `[{"documents":[{"passages":[{"infons":{"type":"title_1"},"text":"Intro"},{"infons":{"type":"paragraph"},"text":"x"}]}]}]`}
	p := services.NewPipelineService(testConfig(), zap.NewNop(), source, nil, repo, nil)

	result, err := p.Run(context.Background(), []string{"PMC5"})
	require.NoError(t, err)
	assert.Zero(t, result.SinkErrors)

	stored, err := repo.GetDocument(context.Background(), "PMC5")
	require.NoError(t, err)
	assert.Equal(t, result.RunID, stored.RunID)

	var tree map[string]any
	require.NoError(t, json.Unmarshal(stored.Tree, &tree))
	assert.Contains(t, tree, "Intro")
}

type sinkSource map[string]string

func (s sinkSource) Name() string { return "static" }

func (s sinkSource) Fetch(_ context.Context, id string) ([]byte, error) {
	raw, ok := s[id]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(raw), nil
}

func testConfig() *config.Config {
	return &config.Config{}
}
