package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("loud"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
}
