package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldsString(t *testing.T) {
	f := Fields{"remote": "127.0.0.1:9000", "conn": 3}.WithPrefix("admission")
	assert.Equal(t, "[admission] conn=3 remote=127.0.0.1:9000", f.String())
}

func TestMergeFieldsKeepsOriginal(t *testing.T) {
	base := Fields{"a": 1}
	merged := base.With("b", 2)
	assert.Len(t, base, 1)
	assert.Equal(t, 2, merged["b"])
	assert.Equal(t, "", base.Prefix())
}

func TestOutTypeAlias(t *testing.T) {
	assert.Equal(t, ConsoleOut, OutTypeAlias(""))
	assert.Equal(t, ConsoleOut|NormalOut, OutTypeAlias("Console | file"))
}

func TestChangeLogLevel(t *testing.T) {
	ChangeLogLevel(LevelWarn)
	assert.False(t, IsDebugEnabled())
	ChangeLogLevel(LevelDebug)
	assert.True(t, IsDebugEnabled())
}
