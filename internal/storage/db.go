package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"nutridoc/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS foods (
  id INTEGER PRIMARY KEY,
  syncUid TEXT,
  name TEXT NOT NULL,
  foodGroup TEXT,
  aliases TEXT,
  per100g TEXT NOT NULL,
  updatedAt TEXT,
  raw_json TEXT NOT NULL,
  lastSeenAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_foods_name ON foods(name);
CREATE INDEX IF NOT EXISTS idx_foods_syncUid ON foods(syncUid);

CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  inputDir TEXT NOT NULL,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS documents (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  path TEXT NOT NULL,
  fileType TEXT NOT NULL,
  status TEXT NOT NULL,
  recordsProcessed INTEGER NOT NULL,
  error TEXT,
  processingTime REAL NOT NULL,
  fileSize INTEGER NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(runId, path),
  FOREIGN KEY(runId) REFERENCES runs(id)
);

CREATE TABLE IF NOT EXISTS recipes (
  id TEXT PRIMARY KEY,
  runId TEXT NOT NULL,
  name TEXT NOT NULL,
  category TEXT NOT NULL,
  subcategory TEXT,
  sourceFile TEXT NOT NULL,
  data TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_recipes_category ON recipes(category);

CREATE TABLE IF NOT EXISTS equivalencies (
  id TEXT PRIMARY KEY,
  runId TEXT NOT NULL,
  foodName TEXT NOT NULL,
  foodGroup TEXT NOT NULL,
  sourceFile TEXT NOT NULL,
  data TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_equivalencies_group ON equivalencies(foodGroup);

CREATE TABLE IF NOT EXISTS embeddings (
  id TEXT PRIMARY KEY,
  document TEXT NOT NULL,
  metadataJson TEXT NOT NULL,
  vector BLOB NOT NULL,
  dimension INTEGER NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertFoods(foods []internal.FoodRecord) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO foods (id, syncUid, name, foodGroup, aliases, per100g, updatedAt, raw_json, lastSeenAt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
  syncUid=excluded.syncUid,
  name=excluded.name,
  foodGroup=excluded.foodGroup,
  aliases=excluded.aliases,
  per100g=excluded.per100g,
  updatedAt=excluded.updatedAt,
  raw_json=excluded.raw_json,
  lastSeenAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range foods {
		aliasesJSON, _ := json.Marshal(f.Aliases)
		per100gJSON, _ := json.Marshal(f.Per100g)
		if _, err := stmt.Exec(
			f.ID, f.SyncUID, f.Name, f.FoodGroup, string(aliasesJSON), string(per100gJSON), f.UpdatedAt, f.RawJSON,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListFoods() ([]internal.FoodRecord, error) {
	rows, err := d.conn.Query(`
SELECT id, syncUid, name, foodGroup, aliases, per100g, updatedAt, raw_json
FROM foods ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.FoodRecord
	for rows.Next() {
		var f internal.FoodRecord
		var aliasesJSON, per100gJSON string
		if err := rows.Scan(&f.ID, &f.SyncUID, &f.Name, &f.FoodGroup, &aliasesJSON, &per100gJSON, &f.UpdatedAt, &f.RawJSON); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(aliasesJSON), &f.Aliases)
		_ = json.Unmarshal([]byte(per100gJSON), &f.Per100g)
		out = append(out, f)
	}

	return out, rows.Err()
}

func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.EmailRow{}, err
	}

	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, errors.New("failed to upsert email")
	}
	return *row, nil
}

func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	var row internal.EmailRow
	err := d.conn.QueryRow(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM emails WHERE provider = ? AND messageId = ?
`, provider, messageID).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) InsertRun(ctx context.Context, runID, inputDir string, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO runs (id, inputDir, timingsJson, countsJson) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET timingsJson = excluded.timingsJson, countsJson = excluded.countsJson
`, runID, inputDir, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) InsertDocument(ctx context.Context, runID string, res internal.ProcessingResult) error {
	var errText *string
	if res.Error != "" {
		errText = &res.Error
	}
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO documents (runId, path, fileType, status, recordsProcessed, error, processingTime, fileSize)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(runId, path) DO UPDATE SET
  fileType=excluded.fileType,
  status=excluded.status,
  recordsProcessed=excluded.recordsProcessed,
  error=excluded.error,
  processingTime=excluded.processingTime,
  fileSize=excluded.fileSize
`, runID, res.FilePath, string(res.FileType), string(res.Status), res.RecordsProcessed, errText, res.ProcessingTime, res.Metadata.FileSize)
	return err
}

// ListDocuments returns the per-file outcomes recorded for a run, by path.
func (d *DB) ListDocuments(ctx context.Context, runID string) ([]internal.ProcessingResult, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT path, fileType, status, recordsProcessed, error, processingTime, fileSize
FROM documents WHERE runId = ? ORDER BY path`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ProcessingResult
	for rows.Next() {
		var res internal.ProcessingResult
		var fileType, status string
		var errText sql.NullString
		if err := rows.Scan(&res.FilePath, &fileType, &status, &res.RecordsProcessed, &errText, &res.ProcessingTime, &res.Metadata.FileSize); err != nil {
			return nil, err
		}
		res.FileType = internal.DocumentKind(fileType)
		res.Status = internal.ProcessingStatus(status)
		res.Error = errText.String
		out = append(out, res)
	}
	return out, rows.Err()
}

func (d *DB) UpsertRecipes(ctx context.Context, runID string, recipes []internal.Recipe) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO recipes (id, runId, name, category, subcategory, sourceFile, data, updatedAt)
VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
  runId=excluded.runId,
  name=excluded.name,
  category=excluded.category,
  subcategory=excluded.subcategory,
  sourceFile=excluded.sourceFile,
  data=excluded.data,
  updatedAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range recipes {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode recipe %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, runID, r.Name, r.Category, r.Subcategory, r.SourceFile, string(data)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListRecipes returns stored recipes, optionally restricted to one category.
func (d *DB) ListRecipes(ctx context.Context, category string) ([]internal.Recipe, error) {
	query := `SELECT data FROM recipes`
	var args []any
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY name`

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Recipe
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r internal.Recipe
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) UpsertEquivalencies(ctx context.Context, runID string, items []internal.Equivalency) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO equivalencies (id, runId, foodName, foodGroup, sourceFile, data, updatedAt)
VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
  runId=excluded.runId,
  foodName=excluded.foodName,
  foodGroup=excluded.foodGroup,
  sourceFile=excluded.sourceFile,
  data=excluded.data,
  updatedAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range items {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode equivalency %s: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, e.ID, runID, e.FoodName, e.FoodGroup, e.SourceFile, string(data)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) CountEquivalenciesByGroup(ctx context.Context) (map[string]int, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT foodGroup, COUNT(*) FROM equivalencies GROUP BY foodGroup`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var group string
		var n int
		if err := rows.Scan(&group, &n); err != nil {
			return nil, err
		}
		out[group] = n
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
