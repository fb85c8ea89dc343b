package memory

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"openmoose/internal/embedding"
	"openmoose/internal/logging"
)

// SQLiteStore persists facts in a local SQLite database with their
// embeddings stored as little-endian float32 blobs.
type SQLiteStore struct {
	db     *sql.DB
	engine embedding.Engine
	mu     sync.RWMutex
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string, engine embedding.Engine) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create memory directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}

	s := &SQLiteStore{db: db, engine: engine}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		embedding BLOB,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_memories_content ON memories(content);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize memory schema: %w", err)
	}
	return nil
}

// Store persists one fact. An embedding failure degrades to storing
// the text alone; recall then falls back to keyword matching.
func (s *SQLiteStore) Store(ctx context.Context, text string) error {
	var blob []byte
	if vec, err := s.engine.Embed(ctx, text); err != nil {
		logging.Memory("embedding unavailable, storing fact without vector: %v", err)
	} else {
		blob = encodeVector(vec)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (id, content, embedding) VALUES (?, ?, ?)`,
		uuid.NewString(), text, blob)
	if err != nil {
		return fmt.Errorf("failed to store memory: %w", err)
	}
	logging.Memory("stored fact (%d chars)", len(text))
	return nil
}

// Recall returns the limit most similar facts to the query.
func (s *SQLiteStore) Recall(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 5
	}

	queryVec, err := s.engine.Embed(ctx, query)
	if err != nil {
		logging.Memory("embedding unavailable, falling back to keyword recall: %v", err)
		return s.recallKeyword(ctx, query, limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT content, embedding FROM memories`)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	type scored struct {
		content    string
		similarity float64
	}
	var candidates []scored

	for rows.Next() {
		var content string
		var blob []byte
		if err := rows.Scan(&content, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan memory row: %w", err)
		}
		if len(blob) == 0 {
			continue
		}
		sim, err := embedding.CosineSimilarity(queryVec, decodeVector(blob))
		if err != nil {
			continue // dimension mismatch from an older engine
		}
		candidates = append(candidates, scored{content, sim})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].similarity > candidates[j].similarity
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.content
	}
	return out, nil
}

// recallKeyword is the degraded path when no embedding is available.
func (s *SQLiteStore) recallKeyword(ctx context.Context, query string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT content FROM memories WHERE content LIKE ? ORDER BY created_at DESC LIMIT ?`,
		"%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, err
		}
		out = append(out, content)
	}
	return out, rows.Err()
}

// Count returns the number of stored facts.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// encodeVector packs a float32 vector as little-endian bytes.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector unpacks a little-endian float32 blob.
func decodeVector(blob []byte) []float32 {
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}
