// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package pgstore exports and imports embeddings datasets to a PostgreSQL database with the
// pgvector extension, so they can be queried by similarity outside of Go.
//
// Each sample is stored as one row of the `embeddings` table, keyed by the dataset name and the
// sample index.
package pgstore

import (
	"context"
	"strconv"
	"strings"

	"github.com/gomlx/diffae/pkg/embeddings"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Store manages the PostgreSQL connection.
type Store struct {
	conn *pgx.Conn
}

// Connect to the database and create the schema, if needed.
func Connect(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to database")
	}
	if err := initSchema(ctx, conn); err != nil {
		_ = conn.Close(ctx)
		return nil, errors.WithMessage(err, "failed to initialize database schema")
	}
	return &Store{conn: conn}, nil
}

func initSchema(ctx context.Context, conn *pgx.Conn) error {
	_, err := conn.Exec(ctx, `
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS embeddings (
			dataset TEXT NOT NULL,
			idx INT NOT NULL,
			feature VECTOR NOT NULL,
			label REAL[] NOT NULL,
			PRIMARY KEY (dataset, idx)
		);
	`)
	return errors.Wrap(err, "creating embeddings table")
}

// Close the database connection.
func (s *Store) Close(ctx context.Context) {
	_ = s.conn.Close(ctx)
}

// Export replaces the rows of the dataset stored under name with the contents of ds, in one transaction.
func (s *Store) Export(ctx context.Context, name string, ds *embeddings.Dataset) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "DELETE FROM embeddings WHERE dataset = $1", name); err != nil {
		return errors.Wrapf(err, "deleting previous embeddings of %q", name)
	}
	batch := &pgx.Batch{}
	for i := range ds.Len() {
		feature, label, err := ds.Item(i)
		if err != nil {
			return err
		}
		batch.Queue(`INSERT INTO embeddings (dataset, idx, feature, label) VALUES ($1, $2, $3::vector, $4)`,
			name, i, vecToString(feature), label)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrapf(err, "inserting embeddings of %q", name)
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "committing embeddings")
	}
	klog.V(1).Infof("exported %d embeddings of %q", ds.Len(), name)
	return nil
}

// Import reads the dataset stored under name, ordered by sample index.
func (s *Store) Import(ctx context.Context, name string) (*embeddings.Dataset, error) {
	rows, err := s.conn.Query(ctx, `SELECT feature::text, label FROM embeddings WHERE dataset = $1 ORDER BY idx`, name)
	if err != nil {
		return nil, errors.Wrapf(err, "querying embeddings of %q", name)
	}
	defer rows.Close()
	var features, labels [][]float32
	for rows.Next() {
		var text string
		var label []float32
		if err := rows.Scan(&text, &label); err != nil {
			return nil, errors.Wrap(err, "scanning embedding")
		}
		feature, err := parseVec(text)
		if err != nil {
			return nil, err
		}
		features = append(features, feature)
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading embeddings of %q", name)
	}
	if len(features) == 0 {
		return nil, errors.Errorf("no embeddings stored for %q", name)
	}
	return embeddings.FromData(name, features, labels)
}

// vecToString formats the vector in pgvector's text representation.
func vecToString(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// parseVec parses pgvector's text representation.
func parseVec(text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if len(text) < 2 || text[0] != '[' || text[len(text)-1] != ']' {
		return nil, errors.Errorf("invalid vector %q", text)
	}
	text = text[1 : len(text)-1]
	if text == "" {
		return nil, nil
	}
	parts := strings.Split(text, ",")
	vec := make([]float32, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid vector element #%d", i)
		}
		vec[i] = float32(v)
	}
	return vec, nil
}
