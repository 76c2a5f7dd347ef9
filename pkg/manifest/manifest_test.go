package manifest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/packscan/pkg/blobstore"
	"github.com/ajitpratap0/packscan/pkg/scanerrors"
	"github.com/ajitpratap0/packscan/pkg/segment"
	"github.com/ajitpratap0/packscan/pkg/segment/packfile"
)

const yamlManifest = `
table: orders
schema:
  - name: id
    type: int64
  - name: note
    type: varchar
projection:
  - path: orders.ID
  - path: note
    type: string
units:
  - segment: seg-0
    pack: 0
    preceding_rows: 0
  - segment: seg-0
    pack: 1
    preceding_rows: 65536
`

func TestDecodeYAML(t *testing.T) {
	m, err := Decode([]byte(yamlManifest), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "orders", m.Table)
	assert.Equal(t, segment.Catalog{{Name: "id", Type: segment.Int64}, {Name: "note", Type: segment.String}}, m.Schema)
	assert.Equal(t, []string{"orders.ID", "note"}, m.Paths())
	require.Len(t, m.Units, 2)
	assert.Equal(t, int64(65536), m.Units[1].PrecedingRowCount)

	typed, err := m.TypedProjection()
	require.NoError(t, err)
	assert.Equal(t, segment.Int64, typed[0].Type)
	assert.Equal(t, segment.String, typed[1].Type)
}

func TestJSONRoundTrip(t *testing.T) {
	m, err := Decode([]byte(yamlManifest), FormatYAML)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "scan.json")
	require.NoError(t, m.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, m, loaded)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte(`{"table":"t","schema":[{"name":"a","type":"blob"}]}`), FormatJSON)
	assert.Error(t, err)

	_, err = Decode([]byte(`{"table":"t","bogus":1}`), FormatJSON)
	assert.True(t, scanerrors.IsType(err, scanerrors.ErrorTypeConfig))

	_, err = Decode([]byte(`{"table":"t","units":[{"segment":"","pack":0}]}`), FormatJSON)
	assert.True(t, scanerrors.IsType(err, scanerrors.ErrorTypeValidation))

	_, err = FormatOf("scan.toml")
	assert.True(t, scanerrors.IsType(err, scanerrors.ErrorTypeConfig))
}

func TestTypedProjectionMissingColumn(t *testing.T) {
	m := &Manifest{
		Table:      "t",
		Schema:     segment.Catalog{{Name: "a", Type: segment.Int32}},
		Projection: []Column{{Path: "*"}, {Path: "zz"}},
	}
	_, err := m.TypedProjection()
	assert.True(t, scanerrors.IsType(err, scanerrors.ErrorTypeColumnNotFound))
}

func TestPlanAccumulatesRows(t *testing.T) {
	catalog := segment.Catalog{{Name: "a", Type: segment.Int32}}
	s0, err := segment.NewMemorySegment(catalog, 2, []int32{1, 2, 3})
	require.NoError(t, err)
	s1, err := segment.NewMemorySegment(catalog, 2, []int32{4, 5})
	require.NoError(t, err)

	opener := segment.NewMemoryOpener()
	opener.Add("s0", s0)
	opener.Add("s1", s1)

	units, err := Plan(context.Background(), opener, []string{"s0", "s1"})
	require.NoError(t, err)
	assert.Equal(t, []segment.WorkUnit{
		{SegmentID: "s0", PackID: 0, PrecedingRowCount: 0},
		{SegmentID: "s0", PackID: 1, PrecedingRowCount: 2},
		{SegmentID: "s1", PackID: 0, PrecedingRowCount: 3},
	}, units)
	assert.Zero(t, opener.Live())

	_, err = Plan(context.Background(), opener, []string{"missing"})
	assert.True(t, scanerrors.IsType(err, scanerrors.ErrorTypeSegmentOpen))
}

func TestPlanFromPackFiles(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	catalog := segment.Catalog{{Name: "a", Type: segment.Int64}}
	require.NoError(t, packfile.WriteSegment(ctx, store, "t/seg-1.pks", catalog, 3, nil, []int64{1, 2, 3, 4}))
	require.NoError(t, packfile.WriteSegment(ctx, store, "t/seg-0.pks", catalog, 3, nil, []int64{9}))
	store.Put("t/readme.txt", []byte("not a segment"))

	ids, err := DiscoverSegments(ctx, store, "t/")
	require.NoError(t, err)
	assert.Equal(t, []string{"t/seg-0", "t/seg-1"}, ids)

	units, err := Plan(ctx, packfile.NewOpener(store, nil), ids)
	require.NoError(t, err)
	assert.Equal(t, []segment.WorkUnit{
		{SegmentID: "t/seg-0", PackID: 0, PrecedingRowCount: 0},
		{SegmentID: "t/seg-1", PackID: 0, PrecedingRowCount: 1},
		{SegmentID: "t/seg-1", PackID: 1, PrecedingRowCount: 4},
	}, units)
}

func TestSplit(t *testing.T) {
	units := make([]segment.WorkUnit, 5)
	for i := range units {
		units[i] = segment.WorkUnit{SegmentID: "s", PackID: i}
	}

	parts := Split(units, 2)
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], 2)
	assert.Len(t, parts[1], 3)

	assert.Len(t, Split(units, 10), 5)
	assert.Len(t, Split(units, 0), 1)
	assert.Empty(t, Split(nil, 3))
}
