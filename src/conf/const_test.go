package conf

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFullVersion(t *testing.T) {
	t.Parallel()
	version := FullVersion()
	assert.Equal(t, fmt.Sprintf("%v (%v layout) Copyright (C) %v", LUAPEEKVERSION, LUAVERSION, time.Now().Year()), version)
}

func TestPseudoIndexes(t *testing.T) {
	t.Parallel()
	assert.True(t, IsPseudo(LUAREGISTRYINDEX))
	assert.False(t, IsUpvalueIndex(LUAREGISTRYINDEX))
	assert.True(t, IsUpvalueIndex(LuaUpvalueIndex(1)))
	assert.Equal(t, 2, LUAREGISTRYINDEX-LuaUpvalueIndex(2))
	assert.False(t, IsPseudo(-1))
	assert.False(t, IsPseudo(3))
}
