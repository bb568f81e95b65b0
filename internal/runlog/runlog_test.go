package runlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLog_PreservesAppendOrder(t *testing.T) {
	l := New()
	l.Append("first")
	l.Appendf("second %d", 2)
	l.Append("third")

	assert.Equal(t, []string{"first", "second 2", "third"}, l.Lines())
	assert.Equal(t, "first\nsecond 2\nthird", l.String())
	assert.Equal(t, 3, l.Len())
}

func TestLog_LinesReturnsCopy(t *testing.T) {
	l := New()
	l.Append("only")

	lines := l.Lines()
	lines[0] = "mutated"

	assert.Equal(t, []string{"only"}, l.Lines())
}

func TestLog_EmptyString(t *testing.T) {
	assert.Equal(t, "", New().String())
}
