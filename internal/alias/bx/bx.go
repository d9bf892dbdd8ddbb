// stand for bytes helper
package bx

import (
	"encoding/binary"
	"math"
)

var (
	LE = binary.LittleEndian
	BE = binary.BigEndian
)

// --- LE: page-internal headers ---
func U16(b []byte) uint16       { return LE.Uint16(b) }
func U32(b []byte) uint32       { return LE.Uint32(b) }
func PutU16(b []byte, v uint16) { LE.PutUint16(b, v) }
func PutU32(b []byte, v uint32) { LE.PutUint32(b, v) }

// --- BE: record wire format and index values ---
func U16BE(b []byte) uint16       { return BE.Uint16(b) }
func U32BE(b []byte) uint32       { return BE.Uint32(b) }
func I32BE(b []byte) int32        { return int32(BE.Uint32(b)) }
func F32BE(b []byte) float32      { return math.Float32frombits(BE.Uint32(b)) }
func PutU16BE(b []byte, v uint16) { BE.PutUint16(b, v) }
func PutU32BE(b []byte, v uint32) { BE.PutUint32(b, v) }
func PutI32BE(b []byte, v int32)  { BE.PutUint32(b, uint32(v)) }
func PutF32BE(b []byte, v float32) {
	BE.PutUint32(b, math.Float32bits(v))
}

// AppendU16BE appends v as 2 big-endian bytes.
func AppendU16BE(dst []byte, v uint16) []byte { return BE.AppendUint16(dst, v) }
