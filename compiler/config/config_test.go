package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, 64, c.Bits)
	assert.Equal(t, "sysv", c.Convention)
	assert.Equal(t, "asm", c.Backend)
	assert.Equal(t, "main", c.Entry)
	assert.NoError(t, c.Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	name := filepath.Join(t.TempDir(), "lowc.yaml")

	err := os.WriteFile(name, []byte("bits: 32\nfat_strings: true\nentry: start\n"), 0o644)
	require.NoError(t, err)

	t.Setenv("LOWC_ENTRY", "_start")
	t.Setenv("LOWC_DEBUG", "true")

	c, err := Load(name)
	require.NoError(t, err)

	assert.Equal(t, 32, c.Bits)
	assert.True(t, c.FatStrings)
	assert.True(t, c.Debug)
	assert.Equal(t, "_start", c.Entry)
	assert.Equal(t, "sysv", c.Convention)
}

func TestEnvBits(t *testing.T) {
	t.Setenv("LOWC_BITS", "32")

	c := Default()
	c.FromEnv()

	assert.Equal(t, 32, c.Bits)
}

func TestEnvReread(t *testing.T) {
	t.Setenv("LOWC_ENTRY", "first")

	c := Default()
	c.FromEnv()
	assert.Equal(t, "first", c.Entry)

	t.Setenv("LOWC_ENTRY", "second")
	t.Setenv("LOWC_FAT_STRINGS", "true")

	c = Default()
	c.FromEnv()
	assert.Equal(t, "second", c.Entry)
	assert.True(t, c.FatStrings)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	for _, c := range []Config{
		{Bits: 16, Convention: "sysv", Backend: "asm", Entry: "main"},
		{Bits: 64, Convention: "win64", Backend: "asm", Entry: "main"},
		{Bits: 64, Convention: "sysv", Backend: "llvm", Entry: "main"},
		{Bits: 64, Convention: "sysv", Backend: "asm"},
	} {
		assert.Error(t, c.Validate(), "%+v", c)
	}
}

func TestIRPath(t *testing.T) {
	c := Default()
	assert.Equal(t, "a.yaml.ir", c.IRPath("a.yaml"))

	c.IRFile = "out.ir"
	assert.Equal(t, "out.ir", c.IRPath("a.yaml"))
}
