package main

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogStoppedReportsAbnormalExitsOnly(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	logStopped("watcher", nil)
	logStopped("watcher", context.Canceled)
	assert.Empty(t, buf.String())

	logStopped("watcher", errors.New("event channel closed"))
	assert.Contains(t, buf.String(), "watcher stopped: event channel closed")
}
