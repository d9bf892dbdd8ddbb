package heap

import (
	"errors"
	"io"
	"log/slog"

	"github.com/tuannm99/rowstore/internal/bufferpool"
	"github.com/tuannm99/rowstore/internal/storage"
)

// Table is a heap file of opaque values. Slotted pages and overflow pages
// share one page space; PageCount is the next unallocated page and
// InsertPage the page new tuples go to first.
type Table struct {
	Name       string
	BP         bufferpool.Manager
	Overflow   *storage.OverflowManager
	PageCount  uint32
	InsertPage uint32
}

func NewTable(
	name string,
	sm *storage.StorageManager,
	fs storage.FileSet,
	bp bufferpool.Manager,
	pageCount uint32,
	insertPage uint32,
) *Table {
	t := &Table{
		Name:       name,
		BP:         bp,
		PageCount:  pageCount,
		InsertPage: insertPage,
	}
	t.Overflow = storage.NewOverflowManager(sm, fs, t.alloc)
	return t
}

func (t *Table) alloc() uint32 {
	id := t.PageCount
	t.PageCount++
	return id
}

// Insert stores data and returns its TID. Values over InlineLimit go to an
// overflow chain and the slot keeps only the reference.
func (t *Table) Insert(data []byte) (TID, error) {
	tup := inlineTuple(data)
	if len(data) > InlineLimit {
		ref, err := t.Overflow.Write(data)
		if err != nil {
			return TID{}, err
		}
		tup = overflowTuple(ref)
	}

	if t.PageCount > 0 {
		p, err := t.BP.GetPage(t.InsertPage)
		if err != nil {
			return TID{}, err
		}
		slot, err := p.InsertTuple(tup)
		if err == nil {
			if err := t.BP.Unpin(p, true); err != nil {
				return TID{}, err
			}
			return TID{PageID: t.InsertPage, Slot: uint16(slot)}, nil
		}
		_ = t.BP.Unpin(p, false)
		if !errors.Is(err, storage.ErrNoSpace) && !errors.Is(err, storage.ErrWrongKind) {
			return TID{}, err
		}
	}

	// Current page is full (or there is none yet): start a fresh one.
	pageID := t.alloc()
	p, err := t.BP.NewPage(pageID)
	if err != nil {
		return TID{}, err
	}
	slot, err := p.InsertTuple(tup)
	if err != nil {
		_ = t.BP.Unpin(p, true)
		return TID{}, err
	}
	if err := t.BP.Unpin(p, true); err != nil {
		return TID{}, err
	}
	t.InsertPage = pageID
	slog.Debug("heap.new_page", "table", t.Name, "pageID", pageID)
	return TID{PageID: pageID, Slot: uint16(slot)}, nil
}

// Get returns a copy of the value stored at id.
func (t *Table) Get(id TID) ([]byte, error) {
	p, err := t.BP.GetPage(id.PageID)
	if err != nil {
		return nil, err
	}
	tup, err := p.ReadTuple(int(id.Slot))
	if err != nil {
		_ = t.BP.Unpin(p, false)
		return nil, err
	}
	data, ref, err := parseTuple(tup)
	if err == nil && ref == nil {
		data = append([]byte(nil), data...)
	}
	// Read-only: dirty = false
	_ = t.BP.Unpin(p, false)
	if err != nil {
		return nil, err
	}
	if ref != nil {
		return t.Overflow.Read(*ref)
	}
	return data, nil
}

// Delete marks the tuple at id as deleted. Overflow pages of the value are
// not reclaimed.
func (t *Table) Delete(id TID) error {
	p, err := t.BP.GetPage(id.PageID)
	if err != nil {
		return err
	}
	err = p.DeleteTuple(int(id.Slot))
	_ = t.BP.Unpin(p, err == nil)
	return err
}

// Scan visits every live tuple in page order. Overflow pages are skipped.
func (t *Table) Scan(fn func(id TID, size int) error) error {
	for pageID := uint32(0); pageID < t.PageCount; pageID++ {
		p, err := t.BP.GetPage(pageID)
		if err != nil {
			return err
		}
		if p.Kind() != storage.KindSlotted {
			_ = t.BP.Unpin(p, false)
			continue
		}

		for slot := 0; slot < p.NumSlots(); slot++ {
			live, err := p.IsLiveSlot(slot)
			if err != nil {
				_ = t.BP.Unpin(p, false)
				return err
			}
			if !live {
				continue
			}
			tup, err := p.ReadTuple(slot)
			if err != nil {
				_ = t.BP.Unpin(p, false)
				return err
			}
			data, ref, err := parseTuple(tup)
			if err != nil {
				_ = t.BP.Unpin(p, false)
				return err
			}
			size := len(data)
			if ref != nil {
				size = int(ref.Length)
			}
			if err := fn(TID{PageID: pageID, Slot: uint16(slot)}, size); err != nil {
				_ = t.BP.Unpin(p, false)
				return err
			}
		}

		_ = t.BP.Unpin(p, false)
	}
	return nil
}

// Dump writes every allocated page to w.
func (t *Table) Dump(w io.Writer) error {
	for pageID := uint32(0); pageID < t.PageCount; pageID++ {
		p, err := t.BP.GetPage(pageID)
		if err != nil {
			return err
		}
		err = p.Dump(w)
		_ = t.BP.Unpin(p, false)
		if err != nil {
			return err
		}
	}
	return nil
}
