package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	// Test output is never a terminal, so only max applies.
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly-10", truncate("exactly-10", 10))
	assert.Equal(t, "this is...", truncate("this is far too long", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "1234", shortID("1234"))
	assert.Equal(t, "0a1b2c3d", shortID("0a1b2c3d-4e5f-6789-abcd-ef0123456789"))
}
