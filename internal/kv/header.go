package kv

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/tuannm99/rowstore/internal/errs"
)

const headerVersion = 1

var (
	bucketKeys = []byte("keys")
	bucketMeta = []byte("meta")
	metaStore  = []byte("store")
)

// header is persisted in the meta bucket and committed together with the
// index, so the block file allocation state always matches the keys.
type header struct {
	Version    int       `msgpack:"version"`
	Order      int       `msgpack:"order"`
	NextPage   uint32    `msgpack:"next_page"`
	InsertPage uint32    `msgpack:"insert_page"`
	CreatedAt  time.Time `msgpack:"created_at"`
}

func (h *header) encode() ([]byte, error) {
	return msgpack.Marshal(h)
}

func decodeHeader(buf []byte) (header, error) {
	var h header
	if err := msgpack.Unmarshal(buf, &h); err != nil {
		return header{}, fmt.Errorf("kv: header: %v: %w", err, errs.ErrCorrupted)
	}
	if h.Version != headerVersion {
		return header{}, fmt.Errorf("kv: header version %d: %w", h.Version, errs.ErrCorrupted)
	}
	if h.NextPage > 0 && h.InsertPage >= h.NextPage {
		return header{}, fmt.Errorf("kv: insert page %d beyond %d: %w", h.InsertPage, h.NextPage, errs.ErrCorrupted)
	}
	return h, nil
}
