package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// FileSet hands out the segment files of one relation.
type FileSet interface {
	OpenSegment(segNo int32) (*os.File, error)
	Sync() error
	Close() error
}

var _ FileSet = (*LocalFileSet)(nil)

// LocalFileSet is a directory + base file name whose segments are stored
// as: Base, Base.1, Base.2, ... Opened segments stay open until Close.
type LocalFileSet struct {
	Dir  string
	Base string

	mu    sync.Mutex
	files map[int32]*os.File
}

func NewLocalFileSet(dir, base string) *LocalFileSet {
	return &LocalFileSet{Dir: dir, Base: base, files: make(map[int32]*os.File)}
}

// SegFileName returns segment file name:
//   - seg 0: base
//   - seg N>0: base.N
func SegFileName(base string, segNo int32) string {
	if segNo <= 0 {
		return base
	}
	return fmt.Sprintf("%s.%d", base, segNo)
}

func (lfs *LocalFileSet) OpenSegment(segNo int32) (*os.File, error) {
	lfs.mu.Lock()
	defer lfs.mu.Unlock()

	if lfs.files == nil {
		lfs.files = make(map[int32]*os.File)
	}
	if f, ok := lfs.files[segNo]; ok {
		return f, nil
	}
	path := filepath.Join(lfs.Dir, SegFileName(lfs.Base, segNo))
	// RDWR | CREATE (no truncate)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, FileMode0644)
	if err != nil {
		return nil, err
	}
	lfs.files[segNo] = f
	return f, nil
}

func (lfs *LocalFileSet) Sync() error {
	lfs.mu.Lock()
	defer lfs.mu.Unlock()

	for _, f := range lfs.files {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("sync %s: %w", f.Name(), err)
		}
	}
	return nil
}

func (lfs *LocalFileSet) Close() error {
	lfs.mu.Lock()
	defer lfs.mu.Unlock()

	var errs []error
	for segNo, f := range lfs.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(lfs.files, segNo)
	}
	return errors.Join(errs...)
}

// StorageManager maps a logical pageID -> (segment, offset).
type StorageManager struct{}

func NewStorageManager() *StorageManager {
	return &StorageManager{}
}

func (sm *StorageManager) locate(pageID uint32) (segNo int32, offset int64) {
	segNo = int32(pageID / MaxPagePerSegment)
	offset = int64(pageID%MaxPagePerSegment) * PageSize
	return segNo, offset
}

// ReadPage reads exactly one page (PageSize bytes) into dst.
// If the underlying file is smaller than the requested offset+PageSize,
// the remainder is zero-filled. This allows "sparse" pages that are
// lazily initialized by higher layers.
func (sm *StorageManager) ReadPage(fs FileSet, pageID uint32, dst []byte) error {
	if len(dst) != PageSize {
		return fmt.Errorf("dst must be exactly %d bytes", PageSize)
	}
	segNo, off := sm.locate(pageID)
	f, err := fs.OpenSegment(segNo)
	if err != nil {
		return err
	}

	n, err := f.ReadAt(dst, off)
	if err != nil && err != io.EOF {
		return err
	}
	clear(dst[n:])
	return nil
}

// WritePage writes exactly one page (PageSize bytes) from src to disk
// at the location computed from pageID.
func (sm *StorageManager) WritePage(fs FileSet, pageID uint32, src []byte) error {
	if len(src) != PageSize {
		return fmt.Errorf("src must be exactly %d bytes", PageSize)
	}
	segNo, off := sm.locate(pageID)
	f, err := fs.OpenSegment(segNo)
	if err != nil {
		return err
	}

	n, err := f.WriteAt(src, off)
	if err != nil {
		return err
	}
	if n != PageSize {
		return io.ErrShortWrite
	}
	return nil
}

// LoadPage reads a page into memory and returns a Page wrapper.
// If the on-disk bytes are all zero, the page is treated as uninitialized
// and is initialized as an empty slotted page with the given pageID.
func (sm *StorageManager) LoadPage(fs FileSet, pageID uint32) (*Page, error) {
	buf := make([]byte, PageSize)
	if err := sm.ReadPage(fs, pageID, buf); err != nil {
		return nil, err
	}
	p := &Page{Buf: buf}
	if p.IsUninitialized() {
		p.Reset(pageID)
	}
	return p, nil
}

// SavePage writes the in-memory Page back to disk.
func (sm *StorageManager) SavePage(fs FileSet, pageID uint32, p *Page) error {
	return sm.WritePage(fs, pageID, p.Buf)
}

// CountPages computes total pages for a FileSet by scanning segments on
// disk until one is missing.
func (sm *StorageManager) CountPages(dir, base string) (uint32, error) {
	var total uint32
	for segNo := int32(0); ; segNo++ {
		info, err := os.Stat(filepath.Join(dir, SegFileName(base, segNo)))
		if errors.Is(err, os.ErrNotExist) {
			return total, nil
		}
		if err != nil {
			return 0, err
		}
		total += uint32(info.Size() / PageSize)
	}
}
