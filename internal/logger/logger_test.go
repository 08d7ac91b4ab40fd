package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfoCtxIncludesContextFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json", false)

	lc := NewLogContext("upload").WithPath("root/a.txt").WithUser(7)
	ctx := WithContext(context.Background(), lc)

	InfoCtx(ctx, "finalized upload", "size", 5)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "upload", decoded[KeyOperation])
	assert.Equal(t, "root/a.txt", decoded[KeyPath])
	assert.EqualValues(t, 7, decoded[KeyUserID])
	assert.EqualValues(t, 5, decoded["size"])
}

func TestSetLevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "text", false)

	Info("should be dropped")
	assert.Empty(t, buf.String())

	Warn("should appear")
	assert.True(t, strings.Contains(buf.String(), "should appear"))
}

func TestTextHandlerQualifiesGroupedKeys(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	With().WithGroup("upload").Info("stored blob", "hash", "AB12")
	assert.Contains(t, buf.String(), "upload.hash=AB12")
}

func TestLogContextClone(t *testing.T) {
	lc := NewLogContext("move").WithPath("root/a").WithUser(3)
	clone := lc.WithHash("abc")

	assert.Equal(t, "root/a", clone.Path)
	assert.Equal(t, int64(3), clone.UserID)
	assert.Equal(t, "abc", clone.Hash)
	assert.Empty(t, lc.Hash, "original LogContext must not be mutated")
}
