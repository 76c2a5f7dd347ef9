package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/packscan/pkg/scanerrors"
	"github.com/ajitpratap0/packscan/pkg/segment"
)

var testCatalog = segment.Catalog{
	{Name: "id", Type: segment.Int64},
	{Name: "Name", Type: segment.String},
	{Name: "price", Type: segment.Float64},
}

func TestStripTablePrefix(t *testing.T) {
	assert.Equal(t, "price", StripTablePrefix("Orders.Price", "orders"))
	assert.Equal(t, "price", StripTablePrefix("price", "orders"))
	assert.Equal(t, "other.price", StripTablePrefix("other.price", "orders"))
	assert.Equal(t, "price", StripTablePrefix("PRICE", ""))
}

func TestResolveIsCaseInsensitive(t *testing.T) {
	upper, upperIdx, err := Resolve(testCatalog, "Name")
	require.NoError(t, err)
	lower, lowerIdx, err := Resolve(testCatalog, "name")
	require.NoError(t, err)

	assert.Equal(t, upper, lower)
	assert.Equal(t, upperIdx, lowerIdx)
	assert.Equal(t, 1, lowerIdx)
}

func TestResolveFirstMatchWins(t *testing.T) {
	catalog := segment.Catalog{
		{Name: "a", Type: segment.Int32},
		{Name: "A", Type: segment.Int64},
	}
	desc, idx, err := Resolve(catalog, "a")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, segment.Int32, desc.Type)
}

func TestResolveMissing(t *testing.T) {
	_, idx, err := Resolve(testCatalog, "quantity")
	assert.Equal(t, -1, idx)
	assert.True(t, scanerrors.IsType(err, scanerrors.ErrorTypeColumnNotFound))
}

func TestResolvePath(t *testing.T) {
	desc, idx, err := ResolvePath("orders", testCatalog, "ORDERS.price")
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	assert.Equal(t, segment.Float64, desc.Type)

	_, _, err = ResolvePath("orders", testCatalog, "customers.price")
	assert.True(t, scanerrors.IsType(err, scanerrors.ErrorTypeColumnNotFound))
}

func TestResolveAcrossSchemas(t *testing.T) {
	drifted := segment.Catalog{
		{Name: "PRICE", Type: segment.Float64},
		{Name: "id", Type: segment.Int32},
	}

	idx, ok := ResolveAcrossSchemas(segment.ColumnDescriptor{Name: "price", Type: segment.Float64}, drifted)
	assert.True(t, ok)
	assert.Equal(t, 0, idx)

	// same name, different type
	_, ok = ResolveAcrossSchemas(segment.ColumnDescriptor{Name: "id", Type: segment.Int64}, drifted)
	assert.False(t, ok)

	_, ok = ResolveAcrossSchemas(segment.ColumnDescriptor{Name: "name", Type: segment.String}, drifted)
	assert.False(t, ok)
}

func TestResolverMemoizes(t *testing.T) {
	r := NewResolver()
	desc := segment.ColumnDescriptor{Name: "price", Type: segment.Float64}

	for i := 0; i < 3; i++ {
		idx, ok := r.Lookup("s1", testCatalog, desc)
		assert.True(t, ok)
		assert.Equal(t, 2, idx)
	}
	hits, misses := r.Stats()
	assert.Equal(t, 2, hits)
	assert.Equal(t, 1, misses)

	_, ok := r.Lookup("s2", segment.Catalog{{Name: "x", Type: segment.Int32}}, desc)
	assert.False(t, ok)

	r.Reset()
	hits, misses = r.Stats()
	assert.Zero(t, hits)
	assert.Zero(t, misses)
}

func TestIsStar(t *testing.T) {
	assert.True(t, IsStar([]string{"*"}))
	assert.True(t, IsStar([]string{"a", " ** "}))
	assert.False(t, IsStar([]string{"a", "b"}))
	assert.False(t, IsStar(nil))
}
