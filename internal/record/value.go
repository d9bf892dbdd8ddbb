package record

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tuannm99/rowstore/internal/alias/bx"
	"github.com/tuannm99/rowstore/internal/errs"
)

// Sub-record layout:
//
//	[tag: 1][length: u16 BE][payload: length bytes]
//
// INTEGER and DECIMAL payloads are always 4 bytes. A null INTEGER is
// tag 0xAA with a single 0xAA payload byte.
const subHeaderSize = 3

// AppendValue encodes text as a sub-record of type t and appends it to dst.
func AppendValue(dst []byte, t Type, text string) ([]byte, error) {
	switch t {
	case TypeInteger:
		if text == Null {
			return appendSub(dst, TagNull, []byte{TagNull}), nil
		}
		n, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an INTEGER", errs.ErrInvalidValue, text)
		}
		var b [4]byte
		bx.PutI32BE(b[:], int32(n))
		return appendSub(dst, byte(t), b[:]), nil

	case TypeDecimal:
		f, err := parseDecimal(text)
		if err != nil {
			return nil, err
		}
		var b [4]byte
		bx.PutF32BE(b[:], f)
		return appendSub(dst, byte(t), b[:]), nil

	case TypeChar, TypeVarchar, TypeDatetime:
		if len(text) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: %d bytes", errs.ErrValueTooLong, len(text))
		}
		return appendSub(dst, byte(t), []byte(text)), nil

	default:
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidSchema, t)
	}
}

// EncodeValue returns the sub-record for a single value.
func EncodeValue(t Type, text string) ([]byte, error) {
	return AppendValue(nil, t, text)
}

func appendSub(dst []byte, tag byte, payload []byte) []byte {
	dst = append(dst, tag)
	dst = bx.AppendU16BE(dst, uint16(len(payload)))
	return append(dst, payload...)
}

// DecodeValue decodes the sub-record starting at off and returns its text
// and the offset of the next sub-record.
//
// Numeric payloads are read from the fixed 4-byte span after the header;
// the length field only advances the cursor. Files written by the original
// engine depend on this.
func DecodeValue(buf []byte, off int) (string, int, error) {
	if off < 0 || off+subHeaderSize > len(buf) {
		return "", 0, fmt.Errorf("%w: truncated sub-record header at %d", errs.ErrCorrupted, off)
	}
	tag := buf[off]
	length := int(bx.U16BE(buf[off+1:]))
	start := off + subHeaderSize
	next := start + length
	if next > len(buf) {
		return "", 0, fmt.Errorf("%w: sub-record at %d overruns record (%d > %d)", errs.ErrCorrupted, off, next, len(buf))
	}

	switch tag {
	case TagNull:
		return Null, next, nil
	case byte(TypeInteger), byte(TypeDecimal):
		if start+4 > len(buf) {
			return "", 0, fmt.Errorf("%w: numeric sub-record at %d is short", errs.ErrCorrupted, off)
		}
		if tag == byte(TypeInteger) {
			return strconv.FormatInt(int64(bx.I32BE(buf[start:])), 10), next, nil
		}
		return formatDecimal(bx.F32BE(buf[start:])), next, nil
	case byte(TypeChar), byte(TypeVarchar), byte(TypeDatetime):
		return string(buf[start:next]), next, nil
	default:
		return "", 0, fmt.Errorf("%w: unknown type tag 0x%02x at %d", errs.ErrCorrupted, tag, off)
	}
}

func parseDecimal(text string) (float32, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 32)
	if err != nil {
		// out of range saturates to ±Inf, like the original parser
		if errors.Is(err, strconv.ErrRange) {
			return float32(f), nil
		}
		return 0, fmt.Errorf("%w: %q is not a DECIMAL", errs.ErrInvalidValue, text)
	}
	return float32(f), nil
}

// formatDecimal renders f the way existing data expects: shortest float32
// digits, always a fractional part, and E notation outside [1e-3, 1e7).
func formatDecimal(f float32) string {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case v == 0:
		if math.Signbit(v) {
			return "-0.0"
		}
		return "0.0"
	}

	abs := math.Abs(v)
	if abs >= 1e-3 && abs < 1e7 {
		s := strconv.FormatFloat(v, 'f', -1, 32)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}

	// "1.5E+10" -> "1.5E10", "1E-05" -> "1.0E-5"
	mant, exp, _ := strings.Cut(strconv.FormatFloat(v, 'E', -1, 32), "E")
	if !strings.Contains(mant, ".") {
		mant += ".0"
	}
	sign := ""
	if strings.HasPrefix(exp, "-") {
		sign = "-"
	}
	exp = strings.TrimLeft(strings.TrimLeft(exp, "+-"), "0")
	return mant + "E" + sign + exp
}
