package scanerrors_test

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ajitpratap0/packscan/pkg/scanerrors"
)

// Example demonstrates basic error creation with details.
func Example() {
	err := scanerrors.New(scanerrors.ErrorTypeColumnNotFound, "column not found").
		WithDetail("column", "price").
		WithDetail("segment", "seg-0001")

	fmt.Println(err.Error())

	// Output:
	// column_not_found: column not found
}

// ExampleWrap shows how an opener failure is wrapped.
func ExampleWrap() {
	err := scanerrors.Wrap(io.ErrUnexpectedEOF, scanerrors.ErrorTypeSegmentOpen, "failed to open segment").
		WithDetail("segment", "seg-0001")

	if scanerrors.IsType(err, scanerrors.ErrorTypeSegmentOpen) {
		fmt.Println("segment open failure")
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("caused by unexpected EOF")
	}

	// Output:
	// segment open failure
	// caused by unexpected EOF
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, scanerrors.Wrap(nil, scanerrors.ErrorTypeData, "ignored"))
}

func TestWrapKeepsStack(t *testing.T) {
	inner := scanerrors.New(scanerrors.ErrorTypeData, "bad pack")
	outer := scanerrors.Wrap(inner, scanerrors.ErrorTypeSegmentOpen, "open failed")

	assert.Equal(t, inner.Stack, outer.Stack)
	assert.Equal(t, "segment_open: open failed: data: bad pack", outer.Error())
}

func TestHasTypeLooksThroughLayers(t *testing.T) {
	inner := scanerrors.New(scanerrors.ErrorTypeColumnNotFound, "missing")
	outer := scanerrors.Wrap(inner, scanerrors.ErrorTypeValidation, "setup failed")

	assert.False(t, scanerrors.IsType(outer, scanerrors.ErrorTypeColumnNotFound))
	assert.True(t, scanerrors.HasType(outer, scanerrors.ErrorTypeColumnNotFound))
	assert.False(t, scanerrors.HasType(io.EOF, scanerrors.ErrorTypeColumnNotFound))
}

func TestIsFatal(t *testing.T) {
	assert.False(t, scanerrors.IsFatal(nil))
	assert.False(t, scanerrors.IsFatal(scanerrors.New(scanerrors.ErrorTypeSegmentClose, "close failed")))
	assert.True(t, scanerrors.IsFatal(scanerrors.New(scanerrors.ErrorTypeUnsupportedType, "bad type")))
	assert.True(t, scanerrors.IsFatal(io.EOF))
}
