package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pjson "github.com/ajitpratap0/packscan/pkg/json"
	"github.com/ajitpratap0/packscan/pkg/manifest"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	return out.String()
}

func generate(t *testing.T) (dir, manifestPath string) {
	t.Helper()
	dir = t.TempDir()
	manifestPath = filepath.Join(dir, "scan.yaml")
	run(t, "--root", dir, "generate",
		"--segments", "2", "--rows", "10", "--pack-rows", "4", "--drift",
		"--manifest", manifestPath)
	return dir, manifestPath
}

func TestVersion(t *testing.T) {
	assert.Contains(t, run(t, "version"), "packscan v"+version)
}

func TestGenerateAndInspect(t *testing.T) {
	dir, manifestPath := generate(t)

	m, err := manifest.Load(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, "orders", m.Table)
	assert.Equal(t, []string{"seg-0000", "seg-0001"}, m.Segments)
	assert.Len(t, m.Units, 6)

	out := run(t, "--root", dir, "inspect", "seg-0000", "seg-0001")
	assert.Contains(t, out, "segment seg-0000: codec=zstd rows=10 packs=3")
	assert.Contains(t, out, "column 0: sku:string")
}

func TestScanJSONL(t *testing.T) {
	dir, manifestPath := generate(t)

	out := run(t, "--root", dir, "scan", "-m", manifestPath, "--format", "jsonl", "--fragments", "2")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 20)

	ids := make([]int, 0, len(lines))
	for _, line := range lines {
		var row map[string]interface{}
		require.NoError(t, pjson.Unmarshal([]byte(line), &row))
		assert.Len(t, row, 5)
		assert.True(t, strings.HasPrefix(row["sku"].(string), "SKU-"))
		ids = append(ids, int(row["id"].(float64)))
	}
	sort.Ints(ids)
	for i, id := range ids {
		assert.Equal(t, i, id)
	}
}

func TestScanArrow(t *testing.T) {
	dir, manifestPath := generate(t)
	outPath := filepath.Join(dir, "out.arrow")

	run(t, "--root", dir, "scan", "-m", manifestPath, "--format", "arrow", "-o", outPath, "--pre-open")

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()
	r, err := ipc.NewReader(f)
	require.NoError(t, err)
	defer r.Release()

	var rows int64
	for r.Next() {
		rows += r.Record().NumRows()
	}
	require.NoError(t, r.Err())
	assert.Equal(t, int64(20), rows)
	assert.Equal(t, 5, r.Schema().NumFields())
}

func TestCost(t *testing.T) {
	dir, manifestPath := generate(t)

	out := run(t, "--root", dir, "cost", "-m", manifestPath, "--columns", "orders.id,SKU")
	assert.Contains(t, out, "rows=20 row_cost=108.0 scan_cost=2160")

	out = run(t, "--root", dir, "cost", "-m", manifestPath, "--rows", "10", "--uncompressed")
	assert.Contains(t, out, "row_cost=83.4")
}

func TestPlanDiscover(t *testing.T) {
	dir, manifestPath := generate(t)

	m, err := manifest.Load(manifestPath)
	require.NoError(t, err)
	m.Segments, m.Units = nil, nil
	require.NoError(t, m.Save(manifestPath))

	run(t, "--root", dir, "plan", "-m", manifestPath, "--discover")

	m, err = manifest.Load(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"seg-0000", "seg-0001"}, m.Segments)
	require.Len(t, m.Units, 6)
	assert.Equal(t, int64(10), m.Units[3].PrecedingRowCount)
}

func TestScanUnknownFormat(t *testing.T) {
	dir, manifestPath := generate(t)
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--root", dir, "scan", "-m", manifestPath, "--format", "csv"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}
