package target

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanema/luapeek/src/lerrors"
)

type countingMemory struct {
	Memory
	reads int
}

func (c *countingMemory) ReadAt(p []byte, addr Address) error {
	c.reads++
	return c.Memory.ReadAt(p, addr)
}

func TestImageReader(t *testing.T) {
	img := NewImage(binary.LittleEndian)
	addr := img.Alloc(32)
	img.PutU8(addr, 0xfe)
	img.PutU16(addr.Add(2), 0xbeef)
	img.PutI32(addr.Add(4), -7)
	img.PutI64(addr.Add(8), math.MinInt64)
	img.PutF64(addr.Add(16), 2.5)
	img.PutPtr(addr.Add(24), Address(0xdeadbeef))

	r := NewReader(img, binary.LittleEndian, 8)
	u8, err := r.U8(addr)
	require.NoError(t, err)
	assert.Equal(t, uint8(0xfe), u8)
	i8, err := r.I8(addr)
	require.NoError(t, err)
	assert.Equal(t, int8(-2), i8)
	u16, err := r.U16(addr.Add(2))
	require.NoError(t, err)
	assert.Equal(t, uint16(0xbeef), u16)
	i32, err := r.I32(addr.Add(4))
	require.NoError(t, err)
	assert.Equal(t, int32(-7), i32)
	i64, err := r.I64(addr.Add(8))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), i64)
	f64, err := r.F64(addr.Add(16))
	require.NoError(t, err)
	assert.InDelta(t, 2.5, f64, 0)
	ptr, err := r.Ptr(addr.Add(24))
	require.NoError(t, err)
	assert.Equal(t, Address(0xdeadbeef), ptr)
}

func TestImageUnmapped(t *testing.T) {
	img := NewImage(binary.LittleEndian)
	a := img.Alloc(8)
	b := img.Alloc(8)
	assert.Greater(t, b.Sub(a), int64(8), "allocations keep a guard gap")

	r := NewReader(img, binary.LittleEndian, 8)
	_, err := r.U64(a.Add(4))
	assert.True(t, lerrors.Is(err, lerrors.ReadFailure))
	_, err = r.U8(0)
	assert.True(t, lerrors.Is(err, lerrors.ReadFailure))
	assert.PanicsWithError(t, "image: write of 1 bytes to unmapped memory at 0x0", func() { img.PutU8(0, 1) })
}

func TestReader32BitPointers(t *testing.T) {
	img := NewImage(binary.BigEndian)
	addr := img.Alloc(8)
	img.PutU32(addr, 0x1234)
	r := NewReader(img, binary.BigEndian, 4)
	ptr, err := r.Ptr(addr)
	require.NoError(t, err)
	assert.Equal(t, Address(0x1234), ptr)
	word, err := r.Word(addr)
	require.NoError(t, err)
	assert.Equal(t, int64(0x1234), word)
}

func TestCached(t *testing.T) {
	img := NewImage(binary.LittleEndian)
	img.Map(0x40000, 2*PageSize)
	img.PutU64(0x40000+PageSize-4, 0x1122334455667788)
	under := &countingMemory{Memory: img}
	cached, err := NewCached(under, 8)
	require.NoError(t, err)

	r := NewReader(cached, binary.LittleEndian, 8)
	v, err := r.U64(0x40000 + PageSize - 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1122334455667788), v)
	assert.Equal(t, 2, under.reads, "read straddles two pages")
	assert.Equal(t, 2, cached.Len())

	_, err = r.U32(0x40000 + 8)
	require.NoError(t, err)
	assert.Equal(t, 2, under.reads)

	cached.Purge()
	assert.Equal(t, 0, cached.Len())
}

func TestCachedFallsThroughOnUnmappedPage(t *testing.T) {
	img := NewImage(binary.LittleEndian)
	img.Map(0x80010, 16)
	cached, err := NewCached(img, 4)
	require.NoError(t, err)
	buf := make([]byte, 8)
	require.NoError(t, cached.ReadAt(buf, 0x80010))
	assert.Error(t, cached.ReadAt(buf, 0x90000))
}

func TestInstrumented(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	img := NewImage(binary.LittleEndian)
	addr := img.Alloc(8)
	mem := NewInstrumented(img, metrics)

	buf := make([]byte, 8)
	require.NoError(t, mem.ReadAt(buf, addr))
	require.Error(t, mem.ReadAt(buf, 0))
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.Reads), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ReadErrors), 0)
	assert.InDelta(t, 16, testutil.ToFloat64(metrics.ReadBytes), 0)
}

// writeCore writes an ELF64 little endian core with one PT_LOAD segment whose
// memory size is larger than its file size.
func writeCore(t *testing.T, vaddr uint64, data []byte, memsz uint64) string {
	t.Helper()
	const ehsize, phsize = 64, 56
	buf := make([]byte, ehsize+phsize)
	copy(buf, []byte{0x7f, 'E', 'L', 'F', 2, 1, 1})
	le := binary.LittleEndian
	le.PutUint16(buf[16:], 4)  // ET_CORE
	le.PutUint16(buf[18:], 62) // EM_X86_64
	le.PutUint32(buf[20:], 1)
	le.PutUint64(buf[32:], ehsize) // phoff
	le.PutUint16(buf[52:], ehsize)
	le.PutUint16(buf[54:], phsize)
	le.PutUint16(buf[56:], 1)
	ph := buf[ehsize:]
	le.PutUint32(ph[0:], 1) // PT_LOAD
	le.PutUint32(ph[4:], 4)
	le.PutUint64(ph[8:], ehsize+phsize)
	le.PutUint64(ph[16:], vaddr)
	le.PutUint64(ph[32:], uint64(len(data)))
	le.PutUint64(ph[40:], memsz)
	buf = append(buf, data...)
	path := filepath.Join(t.TempDir(), "core")
	require.NoError(t, os.WriteFile(path, buf, 0o600))
	return path
}

func TestCore(t *testing.T) {
	path := writeCore(t, 0x7000, []byte{1, 2, 3, 4, 5, 6, 7, 8}, 16)
	c, err := OpenCore(path)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	assert.True(t, c.LittleEndian())

	buf := make([]byte, 12)
	require.NoError(t, c.ReadAt(buf, 0x7004))
	assert.Equal(t, []byte{5, 6, 7, 8, 0, 0, 0, 0, 0, 0, 0, 0}, buf)

	err = c.ReadAt(buf, 0x7008)
	assert.True(t, lerrors.Is(err, lerrors.ReadFailure))
	err = c.ReadAt(buf[:1], 0x6fff)
	assert.True(t, lerrors.Is(err, lerrors.ReadFailure))
}

func TestOpenCoreRejectsNonCore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk")
	require.NoError(t, os.WriteFile(path, []byte("not an elf"), 0o600))
	_, err := OpenCore(path)
	assert.Error(t, err)
}
