package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-funnel/internal/coupon/ingest"
)

func writeBase(t *testing.T, path string, codes ...string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	gz := pgzip.NewWriter(f)
	for _, code := range codes {
		_, err = io.WriteString(gz, code+"\n")
		require.NoError(t, err)
	}
	require.NoError(t, gz.Close())
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	writeBase(t, filepath.Join(dir, "couponbase1.gz"), "OVER9000", "HAPPYHRS", "LONELY123")
	writeBase(t, filepath.Join(dir, "couponbase2.gz"), "OVER9000", "HAPPYHRS", "SHAREDCODE")
	writeBase(t, filepath.Join(dir, "couponbase3.gz"), "SHAREDCODE")

	var buf bytes.Buffer
	err := run(context.Background(), &buf, filepath.Join(dir, "couponbase*.gz"), ingest.Options{MinBases: 2, Capacity: 100})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "HAPPYHRS")
	assert.Contains(t, out, "18% off")
	assert.Contains(t, out, "9.00 off")
	assert.Contains(t, out, "SHAREDCODE")
	assert.NotContains(t, out, "LONELY123")
}

func TestRun_NoBases(t *testing.T) {
	err := run(context.Background(), io.Discard, filepath.Join(t.TempDir(), "*.gz"), ingest.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no code bases match")
}
