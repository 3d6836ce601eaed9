package session

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/lowc/compiler/ast"
	"github.com/slowlang/lowc/compiler/config"
)

func TestNew(t *testing.T) {
	cfg := config.Default()
	cfg.Bits = 32

	s, err := New(cfg)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.Equal(t, "sysv", s.Conv.Name())
	assert.Equal(t, 32, s.Types.PtrBits)
	assert.Equal(t, 32, s.Types.BytePtr.Bits)
}

func TestNewBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Convention = "ms"

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestWarn(t *testing.T) {
	s, err := New(config.Default())
	require.NoError(t, err)

	s.File = "a.yaml"
	s.Warn(context.Background(), ast.Base{Line: 3, Col: 5}, "function %v did not return", "f")

	require.Len(t, s.Diags, 1)
	assert.Equal(t, "a.yaml:3:5: warning: function f did not return", s.Diags[0].String())
}
