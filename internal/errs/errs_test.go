package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionAccumulates(t *testing.T) {
	c := New()
	assert.False(t, c.HasAnyErrors())
	assert.Equal(t, Reason(""), c.Worst())

	c.AddError("name", "required")
	c.AddErrorMessage("something broke")
	c.AddReason(ReasonNotFound)
	c.AddReason(ReasonForbidden)

	assert.True(t, c.HasAnyErrors())
	assert.Equal(t, map[string]string{"name": "required"}, c.Errors())
	assert.Equal(t, []string{"something broke"}, c.ErrorMessages())
	assert.Equal(t, []Reason{ReasonForbidden, ReasonNotFound}, c.Reasons())
	assert.Equal(t, ReasonForbidden, c.Worst())
	assert.Equal(t, "something broke; name: required", c.Error())
}

func TestReasonOnlyIsNotAnError(t *testing.T) {
	c := New()
	c.AddReason(ReasonConflict)
	assert.False(t, c.HasAnyErrors())
	assert.NoError(t, c.Err())
}

func TestWorstDefaultsToValidationFailed(t *testing.T) {
	var c Collection
	c.AddError("url", "bad")
	assert.Equal(t, ReasonValidationFailed, c.Worst())
}

func TestAddCollectionMerges(t *testing.T) {
	a := New()
	a.AddError("a", "one")
	b := New()
	b.AddErrorWithReason("b", "two", ReasonConflict)
	b.AddErrorMessage("three")

	a.AddCollection(b)
	a.AddCollection(nil)

	assert.Len(t, a.Errors(), 2)
	assert.Equal(t, []string{"three"}, a.ErrorMessages())
	assert.True(t, a.HasReason(ReasonConflict))
}

func TestFromUnwrapsChain(t *testing.T) {
	c := New()
	c.AddErrorMessage("nope")
	wrapped := fmt.Errorf("creating version: %w", c.Err())

	got, ok := From(wrapped)
	require.True(t, ok)
	assert.Same(t, c, got)

	_, ok = From(errors.New("plain"))
	assert.False(t, ok)
}
