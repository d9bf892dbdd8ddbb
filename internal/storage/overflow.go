package storage

import (
	"fmt"
	"log/slog"

	"github.com/tuannm99/rowstore/internal/alias/bx"
)

// OverflowRef points to an overflow chain inside the block file.
// - FirstPageID: the first page of the chain
// - Length:      total logical bytes stored across the chain
type OverflowRef struct {
	FirstPageID uint32
	Length      uint32
}

// OverflowManager stores values too large for a slotted page as a linked
// list of overflow pages. Pages come from the same allocator as the heap,
// so both live in one file.
type OverflowManager struct {
	sm    *StorageManager
	fs    FileSet
	alloc func() uint32
}

func NewOverflowManager(sm *StorageManager, fs FileSet, alloc func() uint32) *OverflowManager {
	return &OverflowManager{sm: sm, fs: fs, alloc: alloc}
}

// Overflow page layout (PageSize bytes total):
//
//	[2]      kind = KindOverflow
//	[4..7]   uint32 pageID
//	[8..11]  uint32 nextPageID   // 0 => end of chain
//	[12..13] uint16 used         // number of payload bytes used
//	[14..]   payload bytes
const (
	offOvfNext          = 8
	offOvfUsed          = 12
	overflowHeaderSize  = 14
	overflowPayloadSize = PageSize - overflowHeaderSize
)

// Write stores data as a chain of freshly allocated pages. Each page is
// written once, after its successor is known.
func (ovf *OverflowManager) Write(data []byte) (OverflowRef, error) {
	if len(data) == 0 {
		return OverflowRef{}, fmt.Errorf("overflow: empty data")
	}

	n := (len(data) + overflowPayloadSize - 1) / overflowPayloadSize
	ids := make([]uint32, n)
	for i := range ids {
		ids[i] = ovf.alloc()
	}

	buf := make([]byte, PageSize)
	for i, pageID := range ids {
		chunk := data[i*overflowPayloadSize:]
		if len(chunk) > overflowPayloadSize {
			chunk = chunk[:overflowPayloadSize]
		}
		var next uint32
		if i+1 < n {
			next = ids[i+1]
		}

		clear(buf)
		buf[offKind] = byte(KindOverflow)
		bx.PutU32(buf[offPageID:], pageID)
		bx.PutU32(buf[offOvfNext:], next)
		bx.PutU16(buf[offOvfUsed:], uint16(len(chunk)))
		copy(buf[overflowHeaderSize:], chunk)

		if err := ovf.sm.WritePage(ovf.fs, pageID, buf); err != nil {
			return OverflowRef{}, err
		}
	}

	ref := OverflowRef{FirstPageID: ids[0], Length: uint32(len(data))}
	slog.Debug("overflow.write", "firstPageID", ref.FirstPageID, "length", ref.Length, "pages", n)
	return ref, nil
}

// Read loads the full logical byte slice from an overflow chain.
func (ovf *OverflowManager) Read(ref OverflowRef) ([]byte, error) {
	if ref.Length == 0 {
		return nil, fmt.Errorf("overflow: zero-length ref")
	}

	out := make([]byte, 0, ref.Length)
	remaining := int(ref.Length)
	pageID := ref.FirstPageID
	buf := make([]byte, PageSize)

	for remaining > 0 {
		if err := ovf.sm.ReadPage(ovf.fs, pageID, buf); err != nil {
			return nil, err
		}
		if PageKind(buf[offKind]) != KindOverflow || bx.U32(buf[offPageID:]) != pageID {
			return nil, fmt.Errorf("overflow: page %d: %w", pageID, ErrWrongKind)
		}

		next := bx.U32(buf[offOvfNext:])
		used := int(bx.U16(buf[offOvfUsed:]))
		if used > overflowPayloadSize || used > remaining {
			return nil, fmt.Errorf("overflow: page %d used=%d remaining=%d: %w", pageID, used, remaining, ErrCorruption)
		}

		out = append(out, buf[overflowHeaderSize:overflowHeaderSize+used]...)
		remaining -= used

		if remaining > 0 {
			if next == 0 {
				return nil, fmt.Errorf("overflow: truncated chain, remaining=%d", remaining)
			}
			pageID = next
		}
	}
	return out, nil
}
