// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package disk

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Codec is the compression applied to a stored disk image.
type Codec uint8

const (
	CodecNone Codec = iota
	CodecZstd
	CodecSnappy
)

func (c Codec) String() string {
	switch c {
	case CodecZstd:
		return "zstd"
	case CodecSnappy:
		return "snappy"
	default:
		return "none"
	}
}

// CodecForPath picks a codec from a file extension: ".zst" selects zstd,
// ".sz" selects snappy, anything else is stored raw.
func CodecForPath(path string) Codec {
	switch filepath.Ext(path) {
	case ".zst":
		return CodecZstd
	case ".sz":
		return CodecSnappy
	default:
		return CodecNone
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter returns a writer that compresses into w with codec c. Closing the
// returned writer flushes it but does not close w.
func NewWriter(w io.Writer, c Codec) (io.WriteCloser, error) {
	switch c {
	case CodecNone:
		return nopWriteCloser{w}, nil
	case CodecZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, errors.Wrap(err, "disk: zstd encoder")
		}
		return enc, nil
	case CodecSnappy:
		return snappy.NewBufferedWriter(w), nil
	default:
		return nil, errors.AssertionFailedf("disk: unknown codec %d", c)
	}
}

// NewReader returns a reader that decompresses r with codec c.
func NewReader(r io.Reader, c Codec) (io.ReadCloser, error) {
	switch c {
	case CodecNone:
		return io.NopCloser(r), nil
	case CodecZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "disk: zstd decoder")
		}
		return dec.IOReadCloser(), nil
	case CodecSnappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	default:
		return nil, errors.AssertionFailedf("disk: unknown codec %d", c)
	}
}

// ReadImage reads a whole disk image from path, decompressing it according
// to its extension.
func ReadImage(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "disk: opening image %s", path)
	}
	defer f.Close()
	r, err := NewReader(f, CodecForPath(path))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	img, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "disk: reading image %s", path)
	}
	return img, nil
}

// WriteImage writes img to path, compressing it according to the path's
// extension.
func WriteImage(path string, img []byte) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "disk: creating image %s", path)
	}
	defer func() {
		err = errors.CombineErrors(err, f.Close())
	}()
	w, err := NewWriter(f, CodecForPath(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, bytes.NewReader(img)); err != nil {
		return errors.Wrapf(err, "disk: writing image %s", path)
	}
	return w.Close()
}

// LoadImage replaces the contents of dev on m with the image stored at path.
func (m *Mem) LoadImage(dev uint32, path string) error {
	img, err := ReadImage(path)
	if err != nil {
		return err
	}
	m.SetImage(dev, img)
	return nil
}

// SaveImage stores the contents of dev on m at path.
func (m *Mem) SaveImage(dev uint32, path string) error {
	return WriteImage(path, m.Image(dev))
}
