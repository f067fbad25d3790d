// Package tablefile reads and writes generated magic tables.
//
// Binary layout (little endian):
//
//	header, 24 bytes
//	  magic    [4]byte "MGBB"
//	  version  uint8
//	  slider   uint8   0 = rook, 1 = bishop
//	  flags    uint8   bit 0: payload is zstd compressed
//	  reserved uint8
//	  count    uint32  number of square records
//	  length   uint32  stored payload length
//	  checksum uint64  xxhash64 of the uncompressed payload
//	payload, one record per square in ascending order
//	  mask u64, magic u64, bits u32, n u32, table [n]u64
package tablefile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/hailam/magicgen/internal/board"
	"github.com/hailam/magicgen/internal/magic"
)

// File format constants
const (
	FileMagic   = "MGBB"   // Magic bitboard tables
	Version     = uint8(1) // Format version
	HeaderSize  = 24
	recordFixed = 8 + 8 + 4 + 4 // mask + magic + bits + n

	flagZstd = 1 << 0
)

var (
	ErrBadHeader = errors.New("tablefile: bad header")
	ErrVersion   = errors.New("tablefile: unsupported version")
	ErrChecksum  = errors.New("tablefile: checksum mismatch")
	ErrCorrupt   = errors.New("tablefile: corrupt payload")
)

// Options controls how a set is written.
type Options struct {
	Compress bool // zstd-compress the payload
}

// maxPayload bounds the uncompressed payload of a slider's file: 64
// records, each with a full-size table.
func maxPayload(s board.Slider) int64 {
	return 64 * int64(recordFixed+8*s.TableSize())
}

type header struct {
	Magic    [4]byte
	Version  uint8
	Slider   uint8
	Flags    uint8
	Reserved uint8
	Count    uint32
	Length   uint32
	Checksum uint64
}

// Write encodes set to w.
func Write(w io.Writer, set *magic.Set, opts Options) (int64, error) {
	payload, err := encodePayload(set)
	if err != nil {
		return 0, err
	}

	h := header{
		Version:  Version,
		Slider:   uint8(set.Slider),
		Count:    uint32(len(set.Entries)),
		Checksum: xxhash.Sum64(payload),
	}
	copy(h.Magic[:], FileMagic)

	if opts.Compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		if err != nil {
			return 0, fmt.Errorf("create zstd encoder: %w", err)
		}
		payload = enc.EncodeAll(payload, nil)
		enc.Close()
		h.Flags |= flagZstd
	}
	h.Length = uint32(len(payload))

	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return 0, err
	}
	n, err := w.Write(payload)
	return int64(HeaderSize + n), err
}

func encodePayload(set *magic.Set) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(set.Entries) * (recordFixed + 8*set.Slider.TableSize()))

	var rec [recordFixed]byte
	var word [8]byte
	for sq, e := range set.Entries {
		if e == nil {
			return nil, fmt.Errorf("encode %v: missing entry for %v", set.Slider, board.Square(sq))
		}
		binary.LittleEndian.PutUint64(rec[0:8], uint64(e.Mask))
		binary.LittleEndian.PutUint64(rec[8:16], e.Magic)
		binary.LittleEndian.PutUint32(rec[16:20], uint32(e.Bits))
		binary.LittleEndian.PutUint32(rec[20:24], uint32(len(e.Table)))
		buf.Write(rec[:])
		for _, bb := range e.Table {
			binary.LittleEndian.PutUint64(word[:], uint64(bb))
			buf.Write(word[:])
		}
	}
	return buf.Bytes(), nil
}

// Read decodes a set written by Write.
func Read(r io.Reader) (*magic.Set, error) {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if string(h.Magic[:]) != FileMagic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadHeader, h.Magic[:])
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	s := board.Slider(h.Slider)
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: slider %d", ErrBadHeader, h.Slider)
	}
	if h.Count != 64 {
		return nil, fmt.Errorf("%w: %d records", ErrBadHeader, h.Count)
	}

	limit := maxPayload(s)
	if int64(h.Length) > limit {
		return nil, fmt.Errorf("%w: payload length %d exceeds %d", ErrBadHeader, h.Length, limit)
	}

	payload := make([]byte, h.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: short payload: %v", ErrCorrupt, err)
	}
	if h.Flags&flagZstd != 0 {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(limit)))
		if err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		defer dec.Close()
		payload, err = dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
	}
	if xxhash.Sum64(payload) != h.Checksum {
		return nil, ErrChecksum
	}

	return decodePayload(s, payload)
}

func decodePayload(s board.Slider, payload []byte) (*magic.Set, error) {
	set := &magic.Set{Slider: s}
	for sq := board.A1; sq <= board.H8; sq++ {
		if len(payload) < recordFixed {
			return nil, fmt.Errorf("%w: record %v truncated", ErrCorrupt, sq)
		}
		e := &magic.Entry{
			Square: sq,
			Slider: s,
			Mask:   board.Bitboard(binary.LittleEndian.Uint64(payload[0:8])),
			Magic:  binary.LittleEndian.Uint64(payload[8:16]),
		}
		bits := binary.LittleEndian.Uint32(payload[16:20])
		n := binary.LittleEndian.Uint32(payload[20:24])
		payload = payload[recordFixed:]

		if bits == 0 || bits > uint32(s.MaxBits()) {
			return nil, fmt.Errorf("%w: %v has %d relevant bits", ErrCorrupt, sq, bits)
		}
		if int(n) != s.TableSize() || len(payload) < 8*int(n) {
			return nil, fmt.Errorf("%w: %v table length %d", ErrCorrupt, sq, n)
		}
		e.Bits = uint8(bits)
		e.Table = make([]board.Bitboard, n)
		for i := range e.Table {
			e.Table[i] = board.Bitboard(binary.LittleEndian.Uint64(payload[8*i:]))
		}
		payload = payload[8*n:]
		set.Entries[sq] = e
	}
	if len(payload) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(payload))
	}
	return set, nil
}

// WriteFile writes set to path. The data goes to a temporary file in the
// same directory first, so path is either fully written or untouched.
func WriteFile(path string, set *magic.Set, opts Options) (int64, error) {
	return writeAtomic(path, func(w io.Writer) (int64, error) {
		return Write(w, set, opts)
	})
}

// ReadFile reads a set from path.
func ReadFile(path string) (*magic.Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Read(f)
}

// FileName returns the default table file name for a slider.
func FileName(s board.Slider, ext string) string {
	return s.String() + "_magics." + ext
}

func writeAtomic(path string, write func(io.Writer) (int64, error)) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	n, err := write(tmp)
	if err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, err
	}
	return n, nil
}
