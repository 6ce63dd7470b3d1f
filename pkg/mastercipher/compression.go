// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package mastercipher

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the algorithm applied to plaintext before
// encryption. The identifier is stored in the authenticated header.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionSnappy
	CompressionLZ4
)

var compressionNames = map[Compression]string{
	CompressionNone:   "none",
	CompressionGzip:   "gzip",
	CompressionSnappy: "snappy",
	CompressionLZ4:    "lz4",
}

func (c Compression) String() string {
	if name, ok := compressionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// ParseCompression maps a name such as "snappy" to its Compression.
// The empty string selects CompressionNone.
func ParseCompression(name string) (Compression, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return CompressionNone, nil
	}
	for c, n := range compressionNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedCompression, name)
}

// adapter wraps streams with a compression stage.
type adapter interface {
	wrapWriter(io.Writer) io.WriteCloser
	wrapReader(io.Reader) (io.ReadCloser, error)
}

var adapters = map[Compression]adapter{
	CompressionGzip:   newGzipAdapter(gzip.BestSpeed),
	CompressionSnappy: newSnappyAdapter(),
	CompressionLZ4:    newLZ4Adapter(),
}

func adapterFor(c Compression) (adapter, error) {
	if c == CompressionNone {
		return nil, nil
	}
	a, ok := adapters[c]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, c)
	}
	return a, nil
}

// compress returns data run through c. With CompressionNone the input is
// returned as is.
func compress(c Compression, data []byte) ([]byte, error) {
	a, err := adapterFor(c)
	if err != nil || a == nil {
		return data, err
	}
	var out bytes.Buffer
	w := a.wrapWriter(&out)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// decompress reverses compress, refusing to produce more than limit bytes.
func decompress(c Compression, data []byte, limit int64) ([]byte, error) {
	a, err := adapterFor(c)
	if err != nil || a == nil {
		return data, err
	}
	r, err := a.wrapReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedCiphertext, c, err)
	}
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedCiphertext, c, err)
	}
	if int64(len(out)) > limit {
		return nil, ErrPlaintextTooLarge
	}
	return out, nil
}

type gzipAdapter struct {
	writerPool sync.Pool
}

func newGzipAdapter(level int) *gzipAdapter {
	a := &gzipAdapter{}
	a.writerPool.New = func() any {
		w, err := gzip.NewWriterLevel(io.Discard, level)
		if err != nil {
			panic(err)
		}
		return w
	}
	return a
}

func (a *gzipAdapter) wrapWriter(w io.Writer) io.WriteCloser {
	gw := a.writerPool.Get().(*gzip.Writer)
	gw.Reset(w)
	return &pooledGzipWriter{Writer: gw, pool: &a.writerPool}
}

func (a *gzipAdapter) wrapReader(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

type pooledGzipWriter struct {
	*gzip.Writer
	pool *sync.Pool
}

func (w *pooledGzipWriter) Close() error {
	err := w.Writer.Close()
	w.Writer.Reset(io.Discard)
	w.pool.Put(w.Writer)
	return err
}

type snappyAdapter struct {
	writerPool sync.Pool
	readerPool sync.Pool
}

func newSnappyAdapter() *snappyAdapter {
	a := &snappyAdapter{}
	a.writerPool.New = func() any {
		return snappy.NewBufferedWriter(io.Discard)
	}
	a.readerPool.New = func() any {
		return snappy.NewReader(bytes.NewReader(nil))
	}
	return a
}

func (a *snappyAdapter) wrapWriter(w io.Writer) io.WriteCloser {
	sw := a.writerPool.Get().(*snappy.Writer)
	sw.Reset(w)
	return &snappyWriteCloser{Writer: sw, pool: &a.writerPool}
}

func (a *snappyAdapter) wrapReader(r io.Reader) (io.ReadCloser, error) {
	sr := a.readerPool.Get().(*snappy.Reader)
	sr.Reset(r)
	return &snappyReadCloser{reader: sr, pool: &a.readerPool}, nil
}

type snappyWriteCloser struct {
	*snappy.Writer
	pool *sync.Pool
}

func (w *snappyWriteCloser) Close() error {
	err := w.Writer.Close()
	w.Writer.Reset(io.Discard)
	w.pool.Put(w.Writer)
	return err
}

type snappyReadCloser struct {
	reader *snappy.Reader
	pool   *sync.Pool
}

func (r *snappyReadCloser) Read(p []byte) (int, error) {
	return r.reader.Read(p)
}

func (r *snappyReadCloser) Close() error {
	r.reader.Reset(bytes.NewReader(nil))
	r.pool.Put(r.reader)
	return nil
}

type lz4Adapter struct {
	writerPool sync.Pool
	readerPool sync.Pool
}

func newLZ4Adapter() *lz4Adapter {
	a := &lz4Adapter{}
	a.writerPool.New = func() any {
		return lz4.NewWriter(io.Discard)
	}
	a.readerPool.New = func() any {
		return lz4.NewReader(bytes.NewReader(nil))
	}
	return a
}

func (a *lz4Adapter) wrapWriter(w io.Writer) io.WriteCloser {
	lw := a.writerPool.Get().(*lz4.Writer)
	lw.Reset(w)
	return &lz4WriteCloser{Writer: lw, pool: &a.writerPool}
}

func (a *lz4Adapter) wrapReader(r io.Reader) (io.ReadCloser, error) {
	lr := a.readerPool.Get().(*lz4.Reader)
	lr.Reset(r)
	return &lz4ReadCloser{reader: lr, pool: &a.readerPool}, nil
}

type lz4WriteCloser struct {
	*lz4.Writer
	pool *sync.Pool
}

func (w *lz4WriteCloser) Close() error {
	err := w.Writer.Close()
	w.Writer.Reset(io.Discard)
	w.pool.Put(w.Writer)
	return err
}

type lz4ReadCloser struct {
	reader *lz4.Reader
	pool   *sync.Pool
}

func (r *lz4ReadCloser) Read(p []byte) (int, error) {
	return r.reader.Read(p)
}

func (r *lz4ReadCloser) Close() error {
	r.reader.Reset(bytes.NewReader(nil))
	r.pool.Put(r.reader)
	return nil
}
