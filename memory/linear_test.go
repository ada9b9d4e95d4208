package memory

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"testing"

	wasmhost "github.com/wippyai/wasm-host"
	werrors "github.com/wippyai/wasm-host/errors"
)

func newLinear(t *testing.T, size int) *Linear {
	t.Helper()
	return &Linear{data: make([]byte, size), maxPages: wasmhost.MaxPages}
}

func isKind(err error, kind werrors.Kind) bool {
	var e *werrors.Error
	return errors.As(err, &e) && e.Kind == kind
}

func TestLinear_BoundsSafety(t *testing.T) {
	sizes := []int{0, 1, 7, 8, 9, 16, 100, wasmhost.PageSize}
	for _, size := range sizes {
		mem := newLinear(t, size)
		ptrs := []uint32{0, 1, 7, 8, 9, 92, 93, math.MaxUint32 - 8, math.MaxUint32 - 7, math.MaxUint32}
		if size >= 8 {
			ptrs = append(ptrs, uint32(size-8), uint32(size-7))
		}
		for _, ptr := range ptrs {
			want := uint64(ptr)+8 <= uint64(size)

			_, err := mem.ReadU64(ptr)
			if (err == nil) != want {
				t.Errorf("size=%d ptr=%d: ReadU64 err=%v, want success=%v", size, ptr, err, want)
			}
			if err != nil && !isKind(err, werrors.KindOutOfBounds) {
				t.Errorf("size=%d ptr=%d: want out_of_bounds, got %v", size, ptr, err)
			}

			before := append([]byte(nil), mem.data...)
			err = mem.WriteU64(ptr, 0xdeadbeefcafebabe)
			if (err == nil) != want {
				t.Errorf("size=%d ptr=%d: WriteU64 err=%v, want success=%v", size, ptr, err, want)
			}
			if err != nil && !bytes.Equal(before, mem.data) {
				t.Errorf("size=%d ptr=%d: failed write modified memory", size, ptr)
			}
		}
	}
}

func TestLinear_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	mem := newLinear(t, 256)
	for i := 0; i < 1000; i++ {
		ptr := uint32(rng.Intn(256 - 8 + 1))
		v := rng.Uint64()
		if err := mem.WriteU64(ptr, v); err != nil {
			t.Fatalf("WriteU64(%d): %v", ptr, err)
		}
		got, err := mem.ReadU64(ptr)
		if err != nil {
			t.Fatalf("ReadU64(%d): %v", ptr, err)
		}
		if got != v {
			t.Fatalf("ReadU64(%d) = %#x, want %#x", ptr, got, v)
		}
	}
	for _, v := range []uint64{0, 1, math.MaxUint64, 1 << 63} {
		if err := mem.WriteU64(248, v); err != nil {
			t.Fatal(err)
		}
		if got, _ := mem.ReadU64(248); got != v {
			t.Errorf("edge value %#x round-tripped to %#x", v, got)
		}
	}
}

func TestLinear_LittleEndian(t *testing.T) {
	mem := newLinear(t, 8)
	if err := mem.WriteU64(0, 0x0102030405060708); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(mem.Bytes(), want) {
		t.Errorf("bytes = % x, want % x", mem.Bytes(), want)
	}
}

func TestLinear_OverflowGuard(t *testing.T) {
	for _, size := range []int{8, wasmhost.PageSize} {
		mem := newLinear(t, size)
		if _, err := mem.ReadU64(math.MaxUint32); !isKind(err, werrors.KindOutOfBounds) {
			t.Errorf("size=%d: ReadU64(0xFFFFFFFF) err = %v, want out_of_bounds", size, err)
		}
		if err := mem.WriteU64(math.MaxUint32, 1); !isKind(err, werrors.KindOutOfBounds) {
			t.Errorf("size=%d: WriteU64(0xFFFFFFFF) err = %v, want out_of_bounds", size, err)
		}
	}
}

func TestLinear_SmallWidths(t *testing.T) {
	mem := newLinear(t, 8)
	if err := mem.WriteU32(4, 0xa1b2c3d4); err != nil {
		t.Fatal(err)
	}
	if err := mem.WriteU16(0, 0x1122); err != nil {
		t.Fatal(err)
	}
	if err := mem.WriteU8(2, 0x33); err != nil {
		t.Fatal(err)
	}
	if v, _ := mem.ReadU32(4); v != 0xa1b2c3d4 {
		t.Errorf("ReadU32 = %#x", v)
	}
	if v, _ := mem.ReadU16(0); v != 0x1122 {
		t.Errorf("ReadU16 = %#x", v)
	}
	if v, _ := mem.ReadU8(2); v != 0x33 {
		t.Errorf("ReadU8 = %#x", v)
	}
	if _, err := mem.ReadU32(5); err == nil {
		t.Error("ReadU32(5) on 8 bytes should fail")
	}
	if err := mem.WriteU16(7, 1); err == nil {
		t.Error("WriteU16(7) on 8 bytes should fail")
	}
	if _, err := mem.ReadU8(8); err == nil {
		t.Error("ReadU8(8) on 8 bytes should fail")
	}
}

func TestLinear_ReadWriteBytes(t *testing.T) {
	mem := newLinear(t, 16)
	if err := mem.Write(10, []byte("hello!")); err != nil {
		t.Fatal(err)
	}
	got, err := mem.Read(10, 6)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello!" {
		t.Errorf("Read = %q", got)
	}
	got[0] = 'X'
	if mem.data[10] != 'h' {
		t.Error("Read must return a copy")
	}
	if err := mem.Write(11, []byte("hello!")); err == nil {
		t.Error("Write past the end should fail")
	}
	if mem.data[15] != '!' {
		t.Error("failed Write modified memory")
	}
}

func TestNewLinear(t *testing.T) {
	two := uint32(2)
	mem, err := NewLinear(1, &two)
	if err != nil {
		t.Fatal(err)
	}
	if mem.Size() != wasmhost.PageSize {
		t.Errorf("Size = %d, want %d", mem.Size(), wasmhost.PageSize)
	}

	prev, err := mem.Grow(1)
	if err != nil || prev != 1 {
		t.Fatalf("Grow(1) = %d, %v", prev, err)
	}
	if mem.Size() != 2*wasmhost.PageSize {
		t.Errorf("Size after grow = %d", mem.Size())
	}
	if _, err := mem.Grow(1); !isKind(err, werrors.KindRequestedAllocationTooLarge) {
		t.Errorf("Grow past max err = %v", err)
	}
	if mem.Size() != 2*wasmhost.PageSize {
		t.Error("failed Grow changed size")
	}

	one := uint32(1)
	if _, err := NewLinear(2, &one); !isKind(err, werrors.KindOther) {
		t.Errorf("min > max err = %v", err)
	}
	tooBig := uint32(wasmhost.MaxPages + 1)
	if _, err := NewLinear(0, &tooBig); !isKind(err, werrors.KindRequestedAllocationTooLarge) {
		t.Errorf("max too large err = %v", err)
	}

	unbounded, err := NewLinear(0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if unbounded.MaxPages() != wasmhost.MaxPages {
		t.Errorf("MaxPages = %d", unbounded.MaxPages())
	}
}
