package model

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWhisperCPPConfigIsValid(t *testing.T) {
	t.Run("empty model file", func(t *testing.T) {
		require.Error(t, WhisperCPPConfig{}.IsValid())
	})

	t.Run("missing file", func(t *testing.T) {
		cfg := WhisperCPPConfig{ModelFile: "/does/not/exist.bin"}
		require.Error(t, cfg.IsValid())
	})

	t.Run("valid", func(t *testing.T) {
		f, err := os.CreateTemp(t.TempDir(), "model-*.bin")
		require.NoError(t, err)
		defer f.Close()

		cfg := WhisperCPPConfig{ModelFile: f.Name(), NumThreads: 1}
		require.NoError(t, cfg.IsValid())
	})

	t.Run("too many threads", func(t *testing.T) {
		f, err := os.CreateTemp(t.TempDir(), "model-*.bin")
		require.NoError(t, err)
		defer f.Close()

		cfg := WhisperCPPConfig{ModelFile: f.Name(), NumThreads: 1 << 20}
		require.Error(t, cfg.IsValid())
	})
}

func TestAzureConfigIsValid(t *testing.T) {
	t.Run("missing fields", func(t *testing.T) {
		require.Error(t, AzureConfig{}.IsValid())
		require.Error(t, AzureConfig{SpeechKey: "k"}.IsValid())
		require.Error(t, AzureConfig{SpeechKey: "k", SpeechRegion: "r"}.IsValid())
	})

	t.Run("valid", func(t *testing.T) {
		cfg := AzureConfig{SpeechKey: "k", SpeechRegion: "r", DataDir: "/tmp"}
		require.NoError(t, cfg.IsValid())
	})
}
