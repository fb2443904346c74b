package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	version   byte = 1
	kindEntry byte = 1
	kindTable byte = 2
)

// MaxKeyLen is the longest key a table can hold.
const MaxKeyLen = 0xFFFF

var (
	ErrCorrupt   = errors.New("cachette: corrupt entry")
	ErrKeyLength = errors.New("cachette: invalid key length")
	magic4     = [...]byte{'C', 'H', 'T', 'E'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entry: magic(4) | ver(1) | kind(1=entry) | expiresAt(i64 be) | vlen(u32 be) | payload(vlen)
func EncodeEntry(e Envelope) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 8 + 4 + len(e.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], uint64(e.ExpiresAt))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])

	buf.Write(e.Payload)
	return buf.Bytes()
}

// DecodeEntry returns a payload slice aliasing b.
func DecodeEntry(b []byte) (Envelope, error) {
	const hdr = 4 + 1 + 1 + 8 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return Envelope{}, ErrCorrupt
	}

	off := 6
	exp := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // strict: no trailing bytes
		return Envelope{}, ErrCorrupt
	}

	return Envelope{ExpiresAt: exp, Payload: b[off : off+vlen]}, nil
}

// Record is one keyed envelope inside a table blob.
type Record struct {
	Key string
	Envelope
}

// Table:
//
//	magic(4) | ver(1) | kind(2=table) | n(u32 be)
//	keyLen(u16 be) | key(keyLen) | expiresAt(i64 be) | vlen(u32 be) | payload(vlen) * n
func EncodeTable(recs []Record) ([]byte, error) {
	total := 4 + 1 + 1 + 4
	for _, r := range recs {
		total += 2 + len(r.Key) + 8 + 4 + len(r.Payload)
	}

	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindTable)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint32(u4[:], uint32(len(recs)))
	buf.Write(u4[:])

	for _, r := range recs {
		if l := len(r.Key); l == 0 || l > MaxKeyLen {
			return nil, fmt.Errorf("%w %d in table", ErrKeyLength, l)
		}
		binary.BigEndian.PutUint16(u2[:], uint16(len(r.Key)))
		buf.Write(u2[:])
		buf.WriteString(r.Key)

		binary.BigEndian.PutUint64(u8[:], uint64(r.ExpiresAt))
		buf.Write(u8[:])

		binary.BigEndian.PutUint32(u4[:], uint32(len(r.Payload)))
		buf.Write(u4[:])
		buf.Write(r.Payload)
	}

	return buf.Bytes(), nil
}

func DecodeTable(b []byte) ([]Record, error) {
	const hdr = 4 + 1 + 1 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindTable {
		return nil, ErrCorrupt
	}

	off := 6
	n := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4

	// each record needs at least 2+1+8+4 bytes; don't trust n for preallocation
	const minRec = 2 + 1 + 8 + 4
	if n < 0 || n > (len(b)-off)/minRec {
		return nil, ErrCorrupt
	}

	recs := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		if off+2 > len(b) {
			return nil, ErrCorrupt
		}
		klen := int(binary.BigEndian.Uint16(b[off : off+2]))
		off += 2
		if klen <= 0 || klen > len(b)-off {
			return nil, ErrCorrupt
		}
		key := string(b[off : off+klen])
		off += klen

		if off+8 > len(b) {
			return nil, ErrCorrupt
		}
		exp := int64(binary.BigEndian.Uint64(b[off : off+8]))
		off += 8

		if off+4 > len(b) {
			return nil, ErrCorrupt
		}
		vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
		off += 4
		if vlen < 0 || vlen > len(b)-off {
			return nil, ErrCorrupt
		}

		payload := make([]byte, vlen)
		copy(payload, b[off:off+vlen])
		off += vlen

		recs = append(recs, Record{Key: key, Envelope: Envelope{ExpiresAt: exp, Payload: payload}})
	}
	if off != len(b) {
		return nil, ErrCorrupt
	}

	return recs, nil
}
