package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dms/pkg/log"
	"dms/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// DBStorer is the narrow contract the pipelines need from storage: one
// place holds both the vector index (chunks) and document metadata.
type DBStorer interface {
	SaveDocument(ctx context.Context, doc types.DocumentContent, cat types.CategoryResult) error
	SaveChunks(ctx context.Context, chunks []types.TextChunk) error
	GetDocument(ctx context.Context, path string) (*types.DocumentContent, error)
	DeleteDocument(ctx context.Context, path string) error
	Search(ctx context.Context, queryVec []float32, filter types.SearchFilter, limit int) ([]types.SearchResult, error)
	FetchByKeywords(ctx context.Context, terms []string, filter types.SearchFilter, limit int) ([]types.SearchResult, error)
	CategorySummaries(ctx context.Context) ([]types.CategorySummary, error)
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Init(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS documents (
		path TEXT PRIMARY KEY,
		directory TEXT NOT NULL DEFAULT '',
		page_count INT NOT NULL,
		file_size BIGINT NOT NULL,
		import_date TIMESTAMP WITH TIME ZONE NOT NULL,
		method TEXT CHECK (method IN ('direct','ocr','hybrid')),
		ocr_used BOOLEAN NOT NULL DEFAULT FALSE,
		processing_ms BIGINT NOT NULL DEFAULT 0,
		category TEXT NOT NULL DEFAULT '',
		category_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		entities JSONB
	);

	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS chunks (
		id UUID PRIMARY KEY,
		document_path TEXT NOT NULL,
		chunk_index INT NOT NULL,
		page_number INT NOT NULL,
		content TEXT NOT NULL,
		embedding vector(768)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON chunks USING ivfflat (embedding vector_cosine_ops)
	WITH (lists = 100);

	CREATE INDEX IF NOT EXISTS idx_chunks_document_path ON chunks(document_path);
	CREATE INDEX IF NOT EXISTS idx_documents_category ON documents(category);
	CREATE INDEX IF NOT EXISTS idx_documents_directory ON documents(directory);
	`
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) SaveDocument(ctx context.Context, doc types.DocumentContent, cat types.CategoryResult) error {
	entities, err := json.Marshal(cat.Entities)
	if err != nil {
		return fmt.Errorf("marshal entities: %w", err)
	}

	query := `INSERT INTO documents
		(path, directory, page_count, file_size, import_date, method, ocr_used, processing_ms, category, category_confidence, entities)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (path) DO UPDATE SET
			directory = EXCLUDED.directory,
			page_count = EXCLUDED.page_count,
			file_size = EXCLUDED.file_size,
			import_date = EXCLUDED.import_date,
			method = EXCLUDED.method,
			ocr_used = EXCLUDED.ocr_used,
			processing_ms = EXCLUDED.processing_ms,
			category = EXCLUDED.category,
			category_confidence = EXCLUDED.category_confidence,
			entities = EXCLUDED.entities
		`
	_, err = p.pool.Exec(ctx, query,
		doc.FilePath,
		doc.Directory,
		doc.PageCount,
		doc.FileSize,
		doc.ImportDate,
		string(doc.Method),
		doc.OCRUsed,
		doc.ProcessingTime.Milliseconds(),
		cat.PrimaryCategory,
		cat.Confidence,
		entities,
	)
	return err
}

func (p *PostgresStore) SaveChunks(ctx context.Context, chunks []types.TextChunk) error {
	query := `
	INSERT INTO chunks (id, document_path, chunk_index, page_number, content, embedding)
	VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, c := range chunks {
		var emb any
		if len(c.Embedding) > 0 {
			emb = pgvector.NewVector(c.Embedding)
		}
		if _, err := p.pool.Exec(ctx, query,
			c.ID, c.DocumentID, c.ChunkIndex, c.PageNumber, c.Content, emb,
		); err != nil {
			return fmt.Errorf("save chunk %d of %s: %w", c.ChunkIndex, c.DocumentID, err)
		}
	}
	return nil
}

func (p *PostgresStore) GetDocument(ctx context.Context, path string) (*types.DocumentContent, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT path, directory, page_count, file_size, import_date, method, ocr_used, processing_ms
		 FROM documents WHERE path = $1`, path)

	doc := &types.DocumentContent{}
	var method string
	var processingMS int64
	if err := row.Scan(
		&doc.FilePath,
		&doc.Directory,
		&doc.PageCount,
		&doc.FileSize,
		&doc.ImportDate,
		&method,
		&doc.OCRUsed,
		&processingMS,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, err
	}
	doc.Method = types.ExtractionMethod(method)
	doc.ProcessingTime = time.Duration(processingMS) * time.Millisecond
	return doc, nil
}

// DeleteDocument removes a document and all of its chunks. Re-importing
// a path goes through here first, so imports stay idempotent.
func (p *PostgresStore) DeleteDocument(ctx context.Context, path string) error {
	if _, err := p.pool.Exec(ctx, "DELETE FROM chunks WHERE document_path = $1", path); err != nil {
		return err
	}
	_, err := p.pool.Exec(ctx, "DELETE FROM documents WHERE path = $1", path)
	return err
}

// Search runs a cosine similarity query over the chunk embeddings,
// constrained by the metadata filter. Errors are wrapped with
// types.ErrStoreUnavailable so the aggregator can degrade.
func (p *PostgresStore) Search(ctx context.Context, queryVec []float32, filter types.SearchFilter, limit int) ([]types.SearchResult, error) {
	if len(queryVec) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", types.ErrStoreUnavailable)
	}

	where, args := buildFilter(filter, 2)
	query := fmt.Sprintf(`
		SELECT c.id, c.document_path, c.chunk_index, c.page_number, c.content,
		       1 - (c.embedding <=> $1) AS score, d.directory
		FROM chunks c
		JOIN documents d ON d.path = c.document_path
		WHERE c.embedding IS NOT NULL%s
		ORDER BY c.embedding <=> $1
		LIMIT %d`, where, limit)

	allArgs := append([]any{pgvector.NewVector(queryVec)}, args...)
	rows, err := p.pool.Query(ctx, query, allArgs...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// FetchByKeywords returns chunks whose text contains any of the given
// terms, under the same metadata filter. Scoring is left to the caller.
func (p *PostgresStore) FetchByKeywords(ctx context.Context, terms []string, filter types.SearchFilter, limit int) ([]types.SearchResult, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(terms))
	likeClauses := ""
	for i, t := range terms {
		if i > 0 {
			likeClauses += " OR "
		}
		likeClauses += fmt.Sprintf("c.content ILIKE '%%' || $%d || '%%'", i+1)
		args = append(args, t)
	}

	where, filterArgs := buildFilter(filter, len(args)+1)
	args = append(args, filterArgs...)

	query := fmt.Sprintf(`
		SELECT c.id, c.document_path, c.chunk_index, c.page_number, c.content,
		       0::float8 AS score, d.directory
		FROM chunks c
		JOIN documents d ON d.path = c.document_path
		WHERE (%s)%s
		LIMIT %d`, likeClauses, where, limit)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanResults(rows)
}

func (p *PostgresStore) CategorySummaries(ctx context.Context) ([]types.CategorySummary, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT category, COUNT(*), AVG(category_confidence)
		 FROM documents GROUP BY category ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.CategorySummary
	for rows.Next() {
		var s types.CategorySummary
		if err := rows.Scan(&s.Category, &s.DocumentCount, &s.AvgConfidence); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanResults(rows pgx.Rows) ([]types.SearchResult, error) {
	var results []types.SearchResult
	for rows.Next() {
		var r types.SearchResult
		if err := rows.Scan(
			&r.Chunk.ID,
			&r.Chunk.DocumentID,
			&r.Chunk.ChunkIndex,
			&r.Chunk.PageNumber,
			&r.Chunk.Content,
			&r.Score,
			&r.Directory,
		); err != nil {
			return nil, err
		}
		r.DocumentPath = r.Chunk.DocumentID
		r.PageNumber = r.Chunk.PageNumber
		results = append(results, r)
	}
	return results, rows.Err()
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		log.Info("postgres connection pool closed")
	}
	return nil
}
