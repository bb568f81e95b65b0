package accounts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/portalwatch/internal/outcome"
)

func TestParseList_WellFormed(t *testing.T) {
	rep, err := ParseList("a@x.com-p1&b@y.com-p2-with-dash")
	require.NoError(t, err)

	assert.Equal(t, []Credential{
		{Identifier: "a@x.com", Secret: "p1"},
		{Identifier: "b@y.com", Secret: "p2-with-dash"}, // split on first separator only
	}, rep.Credentials)
	assert.Empty(t, rep.Discarded)
}

func TestParseList_DiscardsMalformedSegments(t *testing.T) {
	rep, err := ParseList("a@x.com-p1&b@y.com-p2-with-dash&bad")
	require.NoError(t, err)

	assert.Len(t, rep.Credentials, 2)
	require.Len(t, rep.Discarded, 1)
	assert.Contains(t, rep.Discarded[0], "bad")
	assert.Contains(t, rep.Discarded[0], "no separator")
}

func TestParseList_TrimsWhitespace(t *testing.T) {
	rep, err := ParseList(" a@x.com - p1 ")
	require.NoError(t, err)

	require.Len(t, rep.Credentials, 1)
	assert.Equal(t, "a@x.com", rep.Credentials[0].Identifier)
	assert.Equal(t, "p1", rep.Credentials[0].Secret)
}

func TestParseList_DiscardsEmptySides(t *testing.T) {
	rep, err := ParseList("a@x.com-p1&x-& -y")
	require.NoError(t, err)

	assert.Len(t, rep.Credentials, 1)
	assert.Len(t, rep.Discarded, 2)
}

func TestParseList_EmptyInputIsConfigurationError(t *testing.T) {
	for _, raw := range []string{"", "   "} {
		_, err := ParseList(raw)
		var ce *outcome.ConfigurationError
		assert.ErrorAs(t, err, &ce, "input %q", raw)
	}
}

func TestParseList_AllMalformedIsConfigurationError(t *testing.T) {
	rep, err := ParseList("bad&worse")
	var ce *outcome.ConfigurationError
	assert.ErrorAs(t, err, &ce)
	assert.Len(t, rep.Discarded, 2)
}

func TestParseList_DiscardReportTruncatesSecrets(t *testing.T) {
	rep, err := ParseList("ok@x.com-p1&thisisaverylongsegmentwithnoseparator")
	require.NoError(t, err)
	require.Len(t, rep.Discarded, 1)
	assert.NotContains(t, rep.Discarded[0], "thisisaverylongsegmentwithnoseparator")
}
