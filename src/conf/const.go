// Package conf contains the constants that are used across packages for describing
// the inspected interpreter and bounding walks over its memory.
package conf

import (
	"fmt"
	"time"
)

const (
	// LUAPEEKVERSION is the version of the luapeek application.
	LUAPEEKVERSION = "luapeek 0.1.0"
	// LUAVERSION is the interpreter release whose memory layout is understood by default.
	LUAVERSION = "Lua 5.4.6"
	// LUAIDSIZE is the maximum width of a shortened source description.
	LUAIDSIZE = 60
	// MAXIWTHABS is the maximum number of instructions between two absolute line checkpoints.
	MAXIWTHABS = 128
	// ABSLINEINFO marks a lineinfo delta whose line is stored in abslineinfo instead.
	ABSLINEINFO = -0x80
	// LIMLINEDIFF is the smallest line difference that cannot be stored as a delta.
	LIMLINEDIFF = 0x80
	// LUAIMAXSTACK is the largest stack a lua_State may grow to.
	LUAIMAXSTACK = 1_000_000
	// LUAREGISTRYINDEX is the pseudo-index addressing the registry.
	LUAREGISTRYINDEX = -LUAIMAXSTACK - 1000
	// MAXCALLS bounds a call info walk. Every frame owns at least one stack slot so a
	// longer chain can only come from a corrupted snapshot.
	MAXCALLS = LUAIMAXSTACK
	// MAXGCOBJECTS bounds a walk over the allgc list.
	MAXGCOBJECTS = 1 << 26
	// MAXSTRINGLEN is the largest string luapeek will copy out of the target.
	MAXSTRINGLEN = 1 << 20
	// TIMEFORMAT is the default strftime layout used in report headers.
	TIMEFORMAT = "%Y-%m-%d %H:%M:%S"
)

// FullVersion returns the version and the understood interpreter release.
func FullVersion() string {
	return fmt.Sprintf("%v (%v layout) Copyright (C) %v", LUAPEEKVERSION, LUAVERSION, time.Now().Year())
}

// LuaUpvalueIndex returns the pseudo-index of the i-th upvalue of a running C function.
func LuaUpvalueIndex(i int) int {
	return LUAREGISTRYINDEX - i
}

// IsPseudo reports whether idx is the registry or an upvalue pseudo-index.
func IsPseudo(idx int) bool {
	return idx <= LUAREGISTRYINDEX
}

// IsUpvalueIndex reports whether idx addresses a C closure upvalue.
func IsUpvalueIndex(idx int) bool {
	return idx < LUAREGISTRYINDEX
}
