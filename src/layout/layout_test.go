package layout

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanema/luapeek/src/lerrors"
)

func TestDefault(t *testing.T) {
	lay := Default()
	assert.Equal(t, "lua-5.4.6-lp64", lay.Name)
	assert.Equal(t, int64(8), lay.PointerSize)
	assert.Equal(t, binary.LittleEndian, lay.ByteOrder())
	assert.Equal(t, int64(16), lay.TValue.Size)
	assert.Equal(t, int64(8), lay.TValue.Tag)
	assert.Equal(t, int64(24), lay.TString.Contents)
	assert.Equal(t, int64(62), lay.CallInfo.CallStatus)
	assert.Equal(t, int64(44), lay.CallInfo.NExtraArgs)
	assert.Equal(t, int64(96), lay.State.BaseCI)
	assert.Equal(t, int64(112), lay.Proto.Source)
	assert.Equal(t, int64(112), lay.Global.AllGC)
}

func TestLoad(t *testing.T) {
	src := strings.Replace(string(defaultLayout), "big_endian = false", "big_endian = true", 1)
	path := filepath.Join(t.TempDir(), "layout.toml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
	lay, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, binary.BigEndian, lay.ByteOrder())

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name    string
		replace [2]string
	}{
		{"bad pointer size", [2]string{"pointer_size = 8", "pointer_size = 6"}},
		{"zero size", [2]string{"[call_info]\nsize = 64", "[call_info]\nsize = 0"}},
		{"negative offset", [2]string{"callstatus = 62", "callstatus = -2"}},
		{"unknown key", [2]string{"callstatus = 62", "callstatus = 62\nbogus = 1"}},
		{"bad syntax", [2]string{"[state]", "[state"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := strings.Replace(string(defaultLayout), tc.replace[0], tc.replace[1], 1)
			require.NotEqual(t, string(defaultLayout), src)
			_, err := Parse([]byte(src))
			assert.True(t, lerrors.Is(err, lerrors.LayoutErr), "%v", err)
		})
	}
}
