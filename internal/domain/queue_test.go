package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueRecordTerminal(t *testing.T) {
	assert.False(t, QueueRecord{Status: StatusPending}.Terminal())
	assert.False(t, QueueRecord{Status: StatusPosting}.Terminal())
	assert.True(t, QueueRecord{Status: StatusPosted}.Terminal())
	assert.True(t, QueueRecord{Status: StatusFailed}.Terminal())
}
