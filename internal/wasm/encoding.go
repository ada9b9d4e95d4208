package wasm

import (
	"github.com/tetratelabs/wazero/api"
)

const (
	sectionType     byte = 0x01
	sectionImport   byte = 0x02
	sectionFunction byte = 0x03
	sectionMemory   byte = 0x05
	sectionGlobal   byte = 0x06
	sectionExport   byte = 0x07
	sectionCode     byte = 0x0a

	externFunc   byte = 0x00
	externMemory byte = 0x02
	externGlobal byte = 0x03

	funcType byte = 0x60
)

var header = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// EncodeULEB128 encodes an unsigned value in LEB128 format.
func EncodeULEB128(v uint32) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		result = append(result, b)
		if v == 0 {
			break
		}
	}
	return result
}

// EncodeSLEB128 encodes a signed value in LEB128 format.
func EncodeSLEB128[T int32 | int64](v T) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			result = append(result, b)
			break
		}
		result = append(result, b|0x80)
	}
	return result
}

// ValType returns the binary encoding of a wazero value type.
func ValType(t api.ValueType) byte {
	switch t {
	case api.ValueTypeI64:
		return 0x7e
	case api.ValueTypeF32:
		return 0x7d
	case api.ValueTypeF64:
		return 0x7c
	default:
		return 0x7f
	}
}

// Limits describes a memory type in pages.
type Limits struct {
	Max    *uint32
	Min    uint32
	Shared bool
}

func appendLimits(dst []byte, l Limits) []byte {
	switch {
	case l.Shared:
		dst = append(dst, 0x03)
	case l.Max != nil:
		dst = append(dst, 0x01)
	default:
		dst = append(dst, 0x00)
	}
	dst = append(dst, EncodeULEB128(l.Min)...)
	if l.Max != nil {
		dst = append(dst, EncodeULEB128(*l.Max)...)
	}
	return dst
}

func appendName(dst []byte, name string) []byte {
	dst = append(dst, EncodeULEB128(uint32(len(name)))...)
	return append(dst, name...)
}

func appendFuncType(dst []byte, params, results []api.ValueType) []byte {
	dst = append(dst, funcType)
	dst = append(dst, EncodeULEB128(uint32(len(params)))...)
	for _, t := range params {
		dst = append(dst, ValType(t))
	}
	dst = append(dst, EncodeULEB128(uint32(len(results)))...)
	for _, t := range results {
		dst = append(dst, ValType(t))
	}
	return dst
}

func appendSection(dst []byte, id byte, count int, payload []byte) []byte {
	if count == 0 {
		return dst
	}
	body := append(EncodeULEB128(uint32(count)), payload...)
	dst = append(dst, id)
	dst = append(dst, EncodeULEB128(uint32(len(body)))...)
	return append(dst, body...)
}
