package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_GetMissing(t *testing.T) {
	r := New()
	_, ok := r.Get("does-not-exist")
	assert.False(t, ok)
}

func TestRegistry_LoadRejectsNonDirectory(t *testing.T) {
	r := New()
	err := r.Load("/definitely/not/a/real/path", "mobilenet", ImageNetKind{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestRegistry_NamesEmpty(t *testing.T) {
	r := New()
	assert.Empty(t, r.Names())
}
