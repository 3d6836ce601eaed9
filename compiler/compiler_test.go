package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/lowc/compiler/config"
)

func TestCompileGolden(t *testing.T) {
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))

	for _, name := range []string{"return", "max"} {
		name := name

		t.Run(name, func(t *testing.T) {
			src, err := os.ReadFile(filepath.Join("testdata", name+".yaml"))
			require.NoError(t, err)

			cfg := config.Default()
			cfg.Debug = true
			cfg.IRFile = filepath.Join(t.TempDir(), name+".ir")

			obj, err := Compile(context.Background(), cfg, name+".yaml", src)
			require.NoError(t, err)

			g.Assert(t, name+"_asm", obj)

			dump, err := os.ReadFile(cfg.IRFile)
			require.NoError(t, err)

			g.Assert(t, name+"_ir", dump)
		})
	}
}

func TestCompileNoDump(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "a.yaml")

	err := os.WriteFile(name, []byte("- func: main\n  ret: int\n  body:\n    - return: 0\n"), 0o644)
	require.NoError(t, err)

	obj, err := CompileFile(context.Background(), config.Default(), name)
	require.NoError(t, err)
	assert.Contains(t, string(obj), "\nmain:\n")

	_, err = os.Stat(name + ".ir")
	assert.True(t, os.IsNotExist(err))
}

func TestCompileErrors(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	cfg.Bits = 16

	_, err := Compile(ctx, cfg, "a.yaml", nil)
	assert.ErrorContains(t, err, "unsupported target bits")

	_, err = Compile(ctx, config.Default(), "a.yaml", []byte("- func: main\n  ret: int\n  body:\n    - return: x\n"))
	assert.ErrorContains(t, err, "undefined: x")

	_, err = CompileFile(ctx, config.Default(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
