// Package pagewriter accumulates text in a chain of fixed-size pages rented
// from a pool, so output can grow without reallocating or copying what has
// already been written.
package pagewriter

import (
	"io"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/pthm/ssr/lib/pool"
)

// PageSize is the length requested from the pool for every page.
const PageSize = 1024

// ErrClosed is returned (or, from methods without an error result, raised
// as a panic) when a Writer is used after Close.
var ErrClosed = errors.New("pagewriter: writer is closed")

// Writer is a sequential byte sink backed by pooled pages. All pages except
// the last are full. A Writer is not safe for concurrent use.
type Writer struct {
	alloc  pool.Allocator[byte]
	pages  [][]byte
	cur    []byte
	off    int
	closed bool
}

// New returns an empty Writer renting pages from alloc. No page is rented
// until the first write.
func New(alloc pool.Allocator[byte]) *Writer {
	return &Writer{alloc: alloc}
}

// page returns the current page, renting a new one when it is full.
func (w *Writer) page() []byte {
	if w.cur == nil || w.off == len(w.cur) {
		w.cur = w.alloc.Rent(PageSize)
		w.pages = append(w.pages, w.cur)
		w.off = 0
	}
	return w.cur
}

// Write appends p, spanning as many pages as needed.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}
	n := len(p)
	for len(p) > 0 {
		page := w.page()
		c := copy(page[w.off:], p)
		w.off += c
		p = p[c:]
	}
	return n, nil
}

// WriteString appends s without converting it to a byte slice first.
func (w *Writer) WriteString(s string) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}
	n := len(s)
	for len(s) > 0 {
		page := w.page()
		c := copy(page[w.off:], s)
		w.off += c
		s = s[c:]
	}
	return n, nil
}

// WriteByte appends a single byte.
func (w *Writer) WriteByte(c byte) error {
	if w.closed {
		return ErrClosed
	}
	page := w.page()
	page[w.off] = c
	w.off++
	return nil
}

// WriteRune appends the UTF-8 encoding of r.
func (w *Writer) WriteRune(r rune) (int, error) {
	if r < utf8.RuneSelf {
		return 1, w.WriteByte(byte(r))
	}
	var buf [utf8.UTFMax]byte
	n := utf8.EncodeRune(buf[:], r)
	return w.Write(buf[:n])
}

// Len is the number of bytes written since the last Reset. It walks the
// page list once; only the current page can be partially filled.
func (w *Writer) Len() int {
	if w.closed {
		panic(ErrClosed)
	}
	n := w.off
	for i := 0; i < len(w.pages)-1; i++ {
		n += len(w.pages[i])
	}
	return n
}

// String returns the accumulated text. It leaves the Writer unchanged, so
// further writes keep appending.
func (w *Writer) String() string {
	n := w.Len()
	if n == 0 {
		return ""
	}
	if len(w.pages) == 1 {
		return string(w.pages[0][:n])
	}

	tmp := w.alloc.Rent(n)
	defer w.alloc.Return(tmp)

	idx := 0
	for _, page := range w.pages {
		c := min(n-idx, len(page))
		copy(tmp[idx:], page[:c])
		idx += c
		if idx == n {
			break
		}
	}
	return string(tmp[:n])
}

// WriteTo streams every page's written prefix to dst without materializing
// the whole text.
func (w *Writer) WriteTo(dst io.Writer) (int64, error) {
	if w.closed {
		return 0, ErrClosed
	}
	remaining := w.Len()
	var total int64
	for _, page := range w.pages {
		if remaining == 0 {
			break
		}
		c := min(remaining, len(page))
		n, err := dst.Write(page[:c])
		total += int64(n)
		if err != nil {
			return total, err
		}
		remaining -= c
	}
	return total, nil
}

// Reset discards the written text. Every page but the first goes back to
// the pool; the first is kept for the next write. Reset panics with
// ErrClosed after Close.
func (w *Writer) Reset() {
	if w.closed {
		panic(ErrClosed)
	}
	if len(w.pages) == 0 {
		return
	}
	for i := len(w.pages) - 1; i > 0; i-- {
		page := w.pages[i]
		w.pages[i] = nil
		w.pages = w.pages[:i]
		w.alloc.Return(page)
	}
	w.cur = w.pages[0]
	w.off = 0
}

// Close returns every page to the pool. The Writer must not be used
// afterwards; closing twice is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	pages := w.pages
	w.pages, w.cur, w.off = nil, nil, 0
	for _, page := range pages {
		w.alloc.Return(page)
	}
	return nil
}

var (
	_ io.Writer       = (*Writer)(nil)
	_ io.StringWriter = (*Writer)(nil)
	_ io.ByteWriter   = (*Writer)(nil)
	_ io.WriterTo     = (*Writer)(nil)
	_ io.Closer       = (*Writer)(nil)
)
