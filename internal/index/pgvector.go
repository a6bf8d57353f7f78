package index

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/pgmiso/sc-landingai/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type pgConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type pgIndex struct {
	db        *sqlx.DB
	dimension int
}

func init() {
	Register("pgvector", createPgvectorIndex)
}

func createPgvectorIndex(dimension int, args interface{}) (Service, error) {
	cfg := &pgConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	dsn := cfg.DSN
	if dsn == "" {
		sslmode := cfg.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslmode)
	}
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	idx := &pgIndex{db: db, dimension: dimension}
	if err := idx.applyMigrations(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (p *pgIndex) applyMigrations() error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	for _, file := range files {
		content, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			return err
		}
		script := strings.ReplaceAll(string(content), "{{dimension}}", fmt.Sprintf("%d", p.dimension))
		for _, q := range strings.Split(script, ";") {
			q = strings.TrimSpace(q)
			if q == "" {
				continue
			}
			if _, err := p.db.Exec(q); err != nil {
				if strings.Contains(err.Error(), "already exists") {
					continue
				}
				return fmt.Errorf("execute query in %s: %w", file, err)
			}
		}
	}
	return nil
}

func (p *pgIndex) Name() string {
	return "pgvector"
}

func (p *pgIndex) Upsert(ctx context.Context, records []model.ChunkRecord, vectors [][]float32) error {
	if len(records) != len(vectors) {
		return fmt.Errorf("record and vector count mismatch: %d != %d", len(records), len(vectors))
	}
	const query = `
		INSERT INTO chunk_index (chunk_id, domain, document, generation, chunk_type, page, excerpt, embedding, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (chunk_id) DO UPDATE SET
			excerpt = EXCLUDED.excerpt,
			embedding = EXCLUDED.embedding,
			mtime = EXCLUDED.mtime
	`
	now := time.Now().Unix()
	for i, rec := range records {
		if len(vectors[i]) != p.dimension {
			return fmt.Errorf("chunk %s: vector dimension %d, want %d", rec.ChunkID, len(vectors[i]), p.dimension)
		}
		if _, err := p.db.ExecContext(ctx, query,
			rec.ChunkID,
			rec.Domain,
			rec.Document,
			rec.Generation,
			string(rec.ChunkType),
			rec.Page,
			excerptOf(rec.Text),
			pgvector.NewVector(vectors[i]),
			now,
		); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", rec.ChunkID, err)
		}
	}
	return nil
}

func (p *pgIndex) Search(ctx context.Context, vector []float32, topK int) ([]model.SearchHit, error) {
	if topK <= 0 {
		topK = 10
	}
	const query = `
		SELECT chunk_id, excerpt, 1 - (embedding <=> $1) AS score
		FROM chunk_index
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := p.db.QueryContext(ctx, query, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var hits []model.SearchHit
	for rows.Next() {
		var hit model.SearchHit
		if err := rows.Scan(&hit.ChunkID, &hit.Excerpt, &hit.Score); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (p *pgIndex) HasMany(ctx context.Context, chunkIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(chunkIDs))
	if len(chunkIDs) == 0 {
		return out, nil
	}
	for _, id := range chunkIDs {
		out[id] = false
	}
	query, args, err := sqlx.In(`SELECT chunk_id FROM chunk_index WHERE chunk_id IN (?)`, chunkIDs)
	if err != nil {
		return nil, err
	}
	query = p.db.Rebind(query)
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

func (p *pgIndex) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	where := map[string]interface{}{
		"chunk_id in": chunkIDs,
	}
	query, args, err := builder.BuildDelete("chunk_index", where)
	if err != nil {
		return err
	}
	query = p.db.Rebind(query)
	_, err = p.db.ExecContext(ctx, query, args...)
	return err
}
