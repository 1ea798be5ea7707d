// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package pgstore

import (
	"context"
	"os"
	"testing"

	"github.com/gomlx/diffae/pkg/embeddings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVecText(t *testing.T) {
	assert.Equal(t, "[1,-0.5,3e-07]", vecToString([]float32{1, -0.5, 3e-7}))
	assert.Equal(t, "[]", vecToString(nil))

	vec, err := parseVec(" [1, -0.5,3e-07] ")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, -0.5, 3e-7}, vec)

	for _, invalid := range []string{"", "1,2", "[1,x]"} {
		_, err = parseVec(invalid)
		assert.Errorf(t, err, "parseVec(%q)", invalid)
	}
}

// TestExportImport requires a PostgreSQL server with pgvector, given by DIFFAE_TEST_DATABASE_URL.
func TestExportImport(t *testing.T) {
	connString := os.Getenv("DIFFAE_TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("DIFFAE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := Connect(ctx, connString)
	require.NoError(t, err)
	defer store.Close(ctx)

	ds, err := embeddings.FromData("pgstore-test",
		[][]float32{{1, 2, 3}, {4, 5, 6}},
		[][]float32{{0, 1}, {1, 0}})
	require.NoError(t, err)
	require.NoError(t, store.Export(ctx, "pgstore-test", ds))
	// Exporting again replaces the rows.
	require.NoError(t, store.Export(ctx, "pgstore-test", ds))

	got, err := store.Import(ctx, "pgstore-test")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
	feature, label, err := got.Item(1)
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 5, 6}, feature)
	assert.Equal(t, []float32{1, 0}, label)
}
