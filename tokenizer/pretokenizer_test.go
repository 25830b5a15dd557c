package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectPresetKnownPattern(t *testing.T) {
	require.Equal(t, "qwen", DetectPreset(gpt2Split))
}

func TestDetectPresetUnknownPatternFallsBackToDefault(t *testing.T) {
	require.Equal(t, "default", DetectPreset(`[a-z]+`))
}

func TestDetectPresetEmptyIsDefault(t *testing.T) {
	require.Equal(t, "default", DetectPreset(""))
}

func TestCompilePresetQwenSplitsWhitespaceAttachedToFollowingWord(t *testing.T) {
	re, err := compilePreset("qwen")
	require.NoError(t, err)

	chunks := re.split("hello world")
	require.Equal(t, []string{"hello", " world"}, chunks)
}

func TestCompilePresetDefaultReturnsNilRegex(t *testing.T) {
	re, err := compilePreset("default")
	require.NoError(t, err)
	require.Nil(t, re)
}

func TestNilPresetRegexSplitIsIdentity(t *testing.T) {
	var re *presetRegex
	require.Equal(t, []string{"abc"}, re.split("abc"))
}
