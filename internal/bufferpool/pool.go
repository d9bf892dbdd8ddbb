package bufferpool

import (
	"errors"
	"sync"

	"github.com/tuannm99/rowstore/internal/storage"
)

var (
	DefaultCapacity = 128

	ErrNoFreeFrame = errors.New("bufferpool: no free frame available (all pinned)")
	ErrPagePinned  = errors.New("bufferpool: page is pinned")
)

type Replacer interface {
	RecordAccess(frameID int)
	SetEvictable(frameID int, evictable bool)
	Evict() (frameID int, ok bool)
	Remove(frameID int)
	Size() int
}

type Manager interface {
	GetPage(pageID uint32) (*storage.Page, error)
	NewPage(pageID uint32) (*storage.Page, error)
	Unpin(page *storage.Page, dirty bool) error
	FlushAll() error
	Discard() error
}

type Frame struct {
	PageID uint32
	Page   *storage.Page
	Dirty  bool
	Pin    int32
}

var _ Manager = (*Pool)(nil)

// Pool caches the pages of a single FileSet.
type Pool struct {
	sm *storage.StorageManager
	fs storage.FileSet

	mu        sync.Mutex
	frames    []*Frame       // len == capacity, nil == free slot
	pageTable map[uint32]int // PageID -> frame index

	replacementPolicy Replacer
}

func NewPool(sm *storage.StorageManager, fs storage.FileSet, capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pool{
		sm:                sm,
		fs:                fs,
		frames:            make([]*Frame, capacity),
		pageTable:         make(map[uint32]int),
		replacementPolicy: newClock(capacity),
	}
}

// GetPage pins the page, loading it from disk on a miss.
func (p *Pool) GetPage(pageID uint32) (*storage.Page, error) {
	return p.pin(pageID, false)
}

// NewPage pins a page that is reset to an empty slotted page and marked
// dirty, whatever the file holds at that position.
func (p *Pool) NewPage(pageID uint32) (*storage.Page, error) {
	return p.pin(pageID, true)
}

func (p *Pool) pin(pageID uint32, fresh bool) (*storage.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// 1) HIT
	if idx, ok := p.pageTable[pageID]; ok {
		if f := p.frames[idx]; f != nil {
			if f.Pin == 0 {
				p.replacementPolicy.SetEvictable(idx, false)
			}
			f.Pin++
			p.replacementPolicy.RecordAccess(idx)
			if fresh {
				f.Page.Reset(pageID)
				f.Dirty = true
			}
			return f.Page, nil
		}
		// Inconsistent: mapping exists but frame is nil -> cleanup
		delete(p.pageTable, pageID)
	}

	// 2) Find a frame: free slot first, otherwise evict
	idx, err := p.frameFor()
	if err != nil {
		return nil, err
	}

	var page *storage.Page
	if fresh {
		page, err = storage.NewPage(make([]byte, storage.PageSize), pageID)
	} else {
		page, err = p.sm.LoadPage(p.fs, pageID)
	}
	if err != nil {
		return nil, err
	}

	p.frames[idx] = &Frame{PageID: pageID, Page: page, Dirty: fresh, Pin: 1}
	p.pageTable[pageID] = idx
	p.replacementPolicy.RecordAccess(idx)
	p.replacementPolicy.SetEvictable(idx, false)
	return page, nil
}

// frameFor returns an empty frame index, evicting (and flushing) a victim
// when all frames are taken. Caller holds p.mu.
func (p *Pool) frameFor() (int, error) {
	for i, f := range p.frames {
		if f == nil {
			return i, nil
		}
	}

	victimIdx, ok := p.replacementPolicy.Evict()
	if !ok {
		return -1, ErrNoFreeFrame
	}
	victim := p.frames[victimIdx]
	if victim == nil {
		return victimIdx, nil
	}
	if victim.Pin != 0 {
		return -1, ErrNoFreeFrame
	}
	if victim.Dirty {
		if err := p.sm.SavePage(p.fs, victim.PageID, victim.Page); err != nil {
			// Put victim back as evictable
			p.replacementPolicy.RecordAccess(victimIdx)
			p.replacementPolicy.SetEvictable(victimIdx, true)
			return -1, err
		}
	}
	delete(p.pageTable, victim.PageID)
	p.frames[victimIdx] = nil
	return victimIdx, nil
}

func (p *Pool) Unpin(page *storage.Page, dirty bool) error {
	if page == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[page.PageID()]
	if !ok {
		return nil
	}
	f := p.frames[idx]
	if f == nil {
		return nil
	}

	if dirty {
		f.Dirty = true
	}
	if f.Pin > 0 {
		f.Pin--
		if f.Pin == 0 {
			p.replacementPolicy.SetEvictable(idx, true)
		}
	}
	return nil
}

func (p *Pool) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, f := range p.frames {
		if f == nil || !f.Dirty {
			continue
		}
		if err := p.sm.SavePage(p.fs, f.PageID, f.Page); err != nil {
			return err
		}
		f.Dirty = false
	}
	return nil
}

// Discard drops every cached page without writing it back.
func (p *Pool) Discard() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, f := range p.frames {
		if f == nil {
			continue
		}
		if f.Pin != 0 {
			return ErrPagePinned
		}
		p.frames[i] = nil
		p.replacementPolicy.Remove(i)
	}
	clear(p.pageTable)
	return nil
}
