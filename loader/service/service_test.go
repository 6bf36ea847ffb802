package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dms/config"
	"dms/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	bad map[string]bool
}

func (f *fakeExtractor) Extract(_ context.Context, path string) (*types.DocumentContent, error) {
	if f.bad[path] {
		return nil, &types.UnprocessableDocumentError{Path: path}
	}
	return &types.DocumentContent{
		FilePath:   path,
		Text:       "Rechnung Nr. 42\nRechnungsdatum: 01.03.2024\nMwSt. 19%\nGesamt: 100,00 €",
		PageTexts:  []string{"Rechnung Nr. 42\nRechnungsdatum: 01.03.2024", "MwSt. 19%\nGesamt: 100,00 €"},
		PageCount:  2,
		ImportDate: time.Now(),
		Method:     types.ExtractionDirect,
	}, nil
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.1}, f.err
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

type recordingStore struct {
	ops    []string
	docs   []types.DocumentContent
	cats   []types.CategoryResult
	chunks [][]types.TextChunk
}

func (r *recordingStore) SaveDocument(_ context.Context, doc types.DocumentContent, cat types.CategoryResult) error {
	r.ops = append(r.ops, "save:"+doc.FilePath)
	r.docs = append(r.docs, doc)
	r.cats = append(r.cats, cat)
	return nil
}

func (r *recordingStore) SaveChunks(_ context.Context, chunks []types.TextChunk) error {
	r.ops = append(r.ops, "chunks")
	r.chunks = append(r.chunks, chunks)
	return nil
}

func (r *recordingStore) GetDocument(context.Context, string) (*types.DocumentContent, error) {
	return nil, nil
}

func (r *recordingStore) DeleteDocument(_ context.Context, path string) error {
	r.ops = append(r.ops, "delete:"+path)
	return nil
}

func (r *recordingStore) Search(context.Context, []float32, types.SearchFilter, int) ([]types.SearchResult, error) {
	return nil, nil
}

func (r *recordingStore) FetchByKeywords(context.Context, []string, types.SearchFilter, int) ([]types.SearchResult, error) {
	return nil, nil
}

func (r *recordingStore) CategorySummaries(context.Context) ([]types.CategorySummary, error) {
	return nil, nil
}

func testService(t *testing.T, extract DocumentExtractor, embedder *fakeEmbedder) (*Service, *recordingStore, config.Config) {
	t.Helper()
	root := t.TempDir()
	cfg := config.Config{
		Loader: config.LoaderConfig{
			SourceDir:      filepath.Join(root, "source"),
			ArchiveDir:     filepath.Join(root, "archive"),
			BadDir:         filepath.Join(root, "bad"),
			MonitoringTime: time.Millisecond,
		},
		ChunkSize: 100,
		Overlap:   10,
	}
	st := &recordingStore{}
	return New(cfg, st, extract, embedder), st, cfg
}

func writeSourceFile(t *testing.T, cfg config.Config, rel string) string {
	t.Helper()
	path := filepath.Join(cfg.Loader.SourceDir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 test"), 0644))
	return path
}

func TestImportBatch_SkipsUnprocessableAndContinues(t *testing.T) {
	extract := &fakeExtractor{bad: map[string]bool{}}
	svc, st, cfg := testService(t, extract, &fakeEmbedder{})

	good1 := writeSourceFile(t, cfg, "2024/a.pdf")
	bad := writeSourceFile(t, cfg, "2024/broken.pdf")
	good2 := writeSourceFile(t, cfg, "2024/b.pdf")
	extract.bad[bad] = true

	done, err := svc.ImportBatch(context.Background(), []string{good1, bad, good2})
	require.NoError(t, err, "a batch continues past unprocessable documents")
	assert.Equal(t, 2, done)
	assert.EqualValues(t, 2, svc.Imported())
	assert.EqualValues(t, 1, svc.Failed())

	require.Len(t, st.docs, 2)

	// Good files are archived, the broken one lands in the bad dir,
	// nothing remains in source.
	assert.NoFileExists(t, good1)
	assert.NoFileExists(t, bad)
	assert.NoFileExists(t, good2)

	day := time.Now().Format("2006-01-02")
	assert.FileExists(t, filepath.Join(cfg.Loader.ArchiveDir, day, "a.pdf"))
	assert.FileExists(t, filepath.Join(cfg.Loader.ArchiveDir, day, "b.pdf"))
	assert.FileExists(t, filepath.Join(cfg.Loader.BadDir, day, "broken.pdf"))
}

func TestImportFile_DeleteBeforeSaveKeepsReimportsIdempotent(t *testing.T) {
	svc, st, cfg := testService(t, &fakeExtractor{}, &fakeEmbedder{})
	path := writeSourceFile(t, cfg, "doc.pdf")

	require.NoError(t, svc.ImportFile(context.Background(), path))

	require.Len(t, st.ops, 3)
	assert.Equal(t, "delete:doc.pdf", st.ops[0])
	assert.Equal(t, "save:doc.pdf", st.ops[1])
	assert.Equal(t, "chunks", st.ops[2])
}

func TestImportFile_RelabelsToSourceRelativePath(t *testing.T) {
	svc, st, cfg := testService(t, &fakeExtractor{}, &fakeEmbedder{})
	path := writeSourceFile(t, cfg, "2024/03/Rechnungen/r1.pdf")

	require.NoError(t, svc.ImportFile(context.Background(), path))

	require.Len(t, st.docs, 1)
	assert.Equal(t, "2024/03/Rechnungen/r1.pdf", st.docs[0].FilePath)
	assert.Equal(t, "2024/03/Rechnungen", st.docs[0].Directory)

	require.Len(t, st.chunks, 1)
	for _, c := range st.chunks[0] {
		assert.Equal(t, "2024/03/Rechnungen/r1.pdf", c.DocumentID)
		assert.NotEmpty(t, c.Embedding, "chunks are embedded before saving")
	}
}

func TestImportFile_CategorizesDocument(t *testing.T) {
	svc, st, cfg := testService(t, &fakeExtractor{}, &fakeEmbedder{})
	path := writeSourceFile(t, cfg, "r.pdf")

	require.NoError(t, svc.ImportFile(context.Background(), path))

	require.Len(t, st.cats, 1)
	assert.Equal(t, "Rechnung", st.cats[0].PrimaryCategory)
}

func TestImportFile_EmbedFailureLeavesFileInPlace(t *testing.T) {
	svc, st, cfg := testService(t, &fakeExtractor{}, &fakeEmbedder{err: assert.AnError})
	path := writeSourceFile(t, cfg, "doc.pdf")

	err := svc.ImportFile(context.Background(), path)
	require.Error(t, err)

	assert.FileExists(t, path, "transient failures keep the file for a retry")
	assert.Empty(t, st.ops, "nothing is persisted on a failed embed")
	assert.EqualValues(t, 1, svc.Failed())
}

func TestImportBatch_ContextCancellationAborts(t *testing.T) {
	svc, _, cfg := testService(t, &fakeExtractor{}, &fakeEmbedder{})
	path := writeSourceFile(t, cfg, "doc.pdf")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done, err := svc.ImportBatch(ctx, []string{path})
	assert.Error(t, err)
	assert.Zero(t, done)
	assert.FileExists(t, path)
}
