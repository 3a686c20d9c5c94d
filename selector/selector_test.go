package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watthouse/agent/models"
)

func name(kind Kind, plugin, element string) Name {
	return Name{Kind: kind, Plugin: models.PluginName(plugin), Element: models.ElementName(element)}
}

func TestParseExactTriple(t *testing.T) {
	p, err := Parse("source/cpu/probe")
	require.NoError(t, err)
	assert.True(t, p.Match(name(KindSource, "cpu", "probe")))
	assert.False(t, p.Match(name(KindSource, "cpu", "probe2")))
	assert.False(t, p.Match(name(KindTransform, "cpu", "probe")))
}

func TestParseKindOnly(t *testing.T) {
	p, err := Parse("src")
	require.NoError(t, err)
	assert.True(t, p.Match(name(KindSource, "anything", "goes")))
	assert.False(t, p.Match(name(KindOutput, "anything", "goes")))
}

func TestParseWildcardTriple(t *testing.T) {
	p, err := Parse("out/*/*")
	require.NoError(t, err)
	assert.True(t, p.Match(name(KindOutput, "a", "b")))
	assert.False(t, p.Match(name(KindSource, "a", "b")))
}

func TestParseEmptyKindMatchesAny(t *testing.T) {
	p, err := Parse("/cpu/probe")
	require.NoError(t, err)
	assert.False(t, p.HasKind())
	assert.True(t, p.Match(name(KindSource, "cpu", "probe")))
	assert.True(t, p.Match(name(KindOutput, "cpu", "probe")))
	assert.False(t, p.Match(name(KindOutput, "cpu", "other")))
}

func TestParseRejectsTooManyComponents(t *testing.T) {
	_, err := Parse("a/b/c/d")
	assert.Error(t, err)
}

func TestParseRejectsUnknownKind(t *testing.T) {
	_, err := Parse("bogus/cpu/probe")
	assert.Error(t, err)
}
