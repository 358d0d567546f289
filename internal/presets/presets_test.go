package presets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lorenzotomasdiez/chatbot-clinic/internal/clinic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinPresets(t *testing.T) {
	r := NewRegistry()
	names := r.Names()
	assert.Contains(t, names, "simple-1")
	assert.IsIncreasing(t, names)

	p, err := r.Get("simple-1")
	require.NoError(t, err)
	assert.Equal(t, 0.7, p.Parameters["temperature"])
}

func TestGetReturnsCopy(t *testing.T) {
	r := NewRegistry()
	p, _ := r.Get("simple-1")
	p.Parameters["temperature"] = 2.0

	again, _ := r.Get("simple-1")
	assert.Equal(t, 0.7, again.Parameters["temperature"])
}

func TestGetUnknown(t *testing.T) {
	_, err := NewRegistry().Get("nope")
	assert.True(t, errors.Is(err, ErrUnknownPreset))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Spicy.yaml"), []byte("temperature: 1.5\ntop_k: 100\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "simple-1.yml"), []byte("temperature: 0.2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	r := NewRegistry()
	n, err := r.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	spicy, err := r.Get("Spicy")
	require.NoError(t, err)
	assert.Equal(t, 1.5, spicy.Parameters["temperature"])
	assert.Equal(t, 100, spicy.Parameters["top_k"])

	simple, _ := r.Get("simple-1")
	assert.Equal(t, 0.2, simple.Parameters["temperature"], "files override built-ins")
}

func TestLoadDirBadYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("- a\n- b\n"), 0o644))

	_, err := NewRegistry().LoadDir(dir)
	assert.Error(t, err)
}

func TestLoadDirMissing(t *testing.T) {
	_, err := NewRegistry().LoadDir(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestApplyBotParametersWin(t *testing.T) {
	r := NewRegistry()
	b := clinic.Bot{Name: "A", Preset: "simple-1", Parameters: map[string]any{"temperature": 0.1}}

	require.NoError(t, r.Apply(&b))
	assert.Equal(t, 0.1, b.Parameters["temperature"])
	assert.Equal(t, 0.9, b.Parameters["top_p"])
}

func TestApplyUnknownPreset(t *testing.T) {
	b := clinic.Bot{Name: "A", Preset: "nope"}
	err := NewRegistry().Apply(&b)
	var ve *clinic.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestApplyWithoutPreset(t *testing.T) {
	b := clinic.Bot{Name: "A"}
	require.NoError(t, NewRegistry().Apply(&b))
	assert.Nil(t, b.Parameters)
}
