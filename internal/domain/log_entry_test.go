package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogEntryPrecedes(t *testing.T) {
	early := LogEntry{BlockNumber: 4, LogIndex: 9}
	later := LogEntry{BlockNumber: 5, LogIndex: 0}
	sibling := LogEntry{BlockNumber: 5, LogIndex: 1}

	assert.True(t, early.Precedes(later))
	assert.False(t, later.Precedes(early))
	assert.True(t, later.Precedes(sibling))
	assert.False(t, sibling.Precedes(sibling))
}
