package storage

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tuannm99/rowstore/internal/alias/bx"
)

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Fprintf(format string, a ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, a...)
}

func slotFlagName(f uint16) string {
	switch f {
	case SlotFlagNormal:
		return "NORMAL"
	case SlotFlagDeleted:
		return "DELETED"
	default:
		return fmt.Sprintf("UNKNOWN(0x%04x)", f)
	}
}

// preview renders printable runes as-is and everything else as '.'.
func preview(b []byte) string {
	var sb strings.Builder
	if utf8.Valid(b) {
		for _, r := range string(b) {
			if unicode.IsPrint(r) {
				sb.WriteRune(r)
			} else {
				sb.WriteByte('.')
			}
		}
		return sb.String()
	}
	for _, c := range b {
		if c < utf8.RuneSelf && unicode.IsPrint(rune(c)) {
			sb.WriteByte(c)
		} else {
			sb.WriteByte('.')
		}
	}
	return sb.String()
}

const maxPreview = 32

// Dump writes a human readable description of the page to w.
func (p *Page) Dump(w io.Writer) error {
	ew := &errWriter{w: w}

	switch p.Kind() {
	case KindOverflow:
		ew.Fprintf("page %d kind=%s next=%d used=%d\n",
			p.PageID(), p.Kind(), bx.U32(p.Buf[offOvfNext:]), bx.U16(p.Buf[offOvfUsed:]))
		return ew.err
	case KindSlotted:
	default:
		ew.Fprintf("page %d kind=%s\n", p.PageID(), p.Kind())
		return ew.err
	}

	ew.Fprintf("page %d kind=%s lower=%d upper=%d free=%d slots=%d\n",
		p.PageID(), p.Kind(), p.lower(), p.upper(), p.FreeSpace(), p.NumSlots())
	for i := 0; i < p.NumSlots() && ew.err == nil; i++ {
		s, err := p.getSlot(i)
		if err != nil {
			ew.Fprintf("  [%d] <error: %v>\n", i, err)
			continue
		}
		ew.Fprintf("  [%d] %s off=%d len=%d", i, slotFlagName(s.Flags), s.Offset, s.Length)
		data, err := p.ReadTuple(i)
		if err != nil {
			ew.Fprintf("\n")
			continue
		}
		if len(data) > maxPreview {
			data = data[:maxPreview]
		}
		ew.Fprintf(" hex=%s text=%q\n", hex.EncodeToString(data), preview(data))
	}
	return ew.err
}
