package ldebug

import (
	"strings"

	"github.com/tanema/luapeek/src/conf"
)

const (
	chunkRets = "..."
	chunkPre  = `[string "`
	chunkPos  = `"]`
)

// ChunkID shortens a source descriptor to at most conf.LUAIDSIZE characters.
// "=name" is shown as is and cut at the bound, "@path" keeps the end of the
// path behind an ellipsis, anything else is source text shown up to its first
// newline as [string "text..."].
func ChunkID(source string) string {
	bufflen := conf.LUAIDSIZE
	switch {
	case strings.HasPrefix(source, "="):
		if len(source)-1 <= bufflen {
			return source[1:]
		}
		return source[1 : 1+bufflen]
	case strings.HasPrefix(source, "@"):
		if len(source)-1 <= bufflen {
			return source[1:]
		}
		bufflen -= len(chunkRets)
		return chunkRets + source[len(source)-bufflen:]
	default:
		bufflen -= len(chunkPre) + len(chunkRets) + len(chunkPos)
		nl := strings.IndexByte(source, '\n')
		if nl < 0 && len(source) <= bufflen {
			return chunkPre + source + chunkPos
		}
		if nl >= 0 {
			source = source[:nl]
		}
		if len(source) > bufflen {
			source = source[:bufflen]
		}
		return chunkPre + source + chunkRets + chunkPos
	}
}
