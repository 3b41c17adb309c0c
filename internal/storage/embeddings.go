package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
)

// EmbeddingRow is one stored vector with the text it was computed from.
type EmbeddingRow struct {
	ID       string
	Document string
	Metadata map[string]any
	Vector   []float32
}

func (d *DB) UpsertEmbedding(ctx context.Context, row EmbeddingRow) error {
	metadataJSON, err := json.Marshal(row.Metadata)
	if err != nil {
		return err
	}
	_, err = d.conn.ExecContext(ctx, `
INSERT INTO embeddings (id, document, metadataJson, vector, dimension, updatedAt)
VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
  document=excluded.document,
  metadataJson=excluded.metadataJson,
  vector=excluded.vector,
  dimension=excluded.dimension,
  updatedAt=CURRENT_TIMESTAMP
`, row.ID, row.Document, string(metadataJSON), serializeVector(row.Vector), len(row.Vector))
	return err
}

func (d *DB) ListEmbeddings(ctx context.Context) ([]EmbeddingRow, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT id, document, metadataJson, vector FROM embeddings ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EmbeddingRow
	for rows.Next() {
		var row EmbeddingRow
		var metadataJSON string
		var blob []byte
		if err := rows.Scan(&row.ID, &row.Document, &metadataJSON, &blob); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(metadataJSON), &row.Metadata)
		row.Vector = deserializeVector(blob)
		out = append(out, row)
	}
	return out, rows.Err()
}

// Vectors are stored as little-endian float32.
func serializeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func deserializeVector(blob []byte) []float32 {
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}
