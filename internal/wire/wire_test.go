package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func mustDecodeEntry(t *testing.T, b []byte) Envelope {
	t.Helper()
	e, err := DecodeEntry(b)
	if err != nil {
		t.Fatalf("DecodeEntry error: %v", err)
	}
	return e
}

func mustDecodeTable(t *testing.T, b []byte) []Record {
	t.Helper()
	recs, err := DecodeTable(b)
	if err != nil {
		t.Fatalf("DecodeTable error: %v", err)
	}
	return recs
}

func TestEntryRTEmptyAndNonEmpty(t *testing.T) {
	cases := []Envelope{
		{ExpiresAt: 0, Payload: nil},
		{ExpiresAt: 42, Payload: []byte("hello")},
		{ExpiresAt: math.MaxInt64, Payload: []byte{0, 1, 2, 3, 4}},
		{ExpiresAt: -5, Payload: []byte("negative expiry survives")},
	}
	for _, tc := range cases {
		got := mustDecodeEntry(t, EncodeEntry(tc))
		if got.ExpiresAt != tc.ExpiresAt {
			t.Fatalf("expiresAt mismatch: got %d want %d", got.ExpiresAt, tc.ExpiresAt)
		}
		if !bytes.Equal(got.Payload, tc.Payload) {
			t.Fatalf("payload mismatch: got %x want %x", got.Payload, tc.Payload)
		}
	}
}

func TestEntryRejectsTrailingBytes(t *testing.T) {
	enc := EncodeEntry(Envelope{ExpiresAt: 7, Payload: []byte("x")})
	enc = append(enc, 0xDE, 0xAD)
	if _, err := DecodeEntry(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestEntryCorruptHeadersAndLengths(t *testing.T) {
	enc := EncodeEntry(Envelope{ExpiresAt: 1, Payload: []byte("abc")})

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, err := DecodeEntry(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, err := DecodeEntry(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	badKind := append([]byte(nil), enc...)
	badKind[5] = kindTable
	if _, err := DecodeEntry(badKind); err == nil {
		t.Fatalf("expected error on bad kind")
	}

	// vlen is at offset 14..17 (4 magic +1 ver +1 kind +8 expiresAt)
	tooLong := append([]byte(nil), enc...)
	binary.BigEndian.PutUint32(tooLong[14:18], uint32(len("abc")+1))
	if _, err := DecodeEntry(tooLong); err == nil {
		t.Fatalf("expected error on vlen beyond buffer")
	}

	if _, err := DecodeEntry(enc[:len(enc)-1]); err == nil {
		t.Fatalf("expected error on truncated buffer")
	}

	if _, err := DecodeEntry([]byte("cachable")); err != ErrCorrupt {
		t.Fatalf("plain bytes should be ErrCorrupt, got %v", err)
	}
}

func TestTableRoundTrip(t *testing.T) {
	cases := [][]Record{
		nil,
		{{Key: "a", Envelope: Envelope{ExpiresAt: 1, Payload: []byte("x")}}},
		{
			{Key: "a", Envelope: Envelope{ExpiresAt: 1, Payload: []byte("x")}},
			{Key: "b", Envelope: Envelope{ExpiresAt: 2}},
			{Key: "c", Envelope: Envelope{ExpiresAt: 3, Payload: []byte{9, 8, 7}}},
		},
	}
	for _, recs := range cases {
		enc, err := EncodeTable(recs)
		if err != nil {
			t.Fatalf("EncodeTable error: %v", err)
		}
		got := mustDecodeTable(t, enc)
		if len(got) != len(recs) {
			t.Fatalf("len mismatch: got %d want %d", len(got), len(recs))
		}
		for i := range recs {
			if got[i].Key != recs[i].Key || got[i].ExpiresAt != recs[i].ExpiresAt || !bytes.Equal(got[i].Payload, recs[i].Payload) {
				t.Fatalf("record %d mismatch: got=%+v want=%+v", i, got[i], recs[i])
			}
		}
	}
}

func TestTableRejectsTrailingBytes(t *testing.T) {
	enc, err := EncodeTable([]Record{{Key: "k", Envelope: Envelope{ExpiresAt: 1, Payload: []byte("v")}}})
	if err != nil {
		t.Fatalf("EncodeTable: %v", err)
	}
	enc = append(enc, 0xBE, 0xEF)
	if _, err := DecodeTable(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestTableBogusCountAndTruncation(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindTable)
	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], ^uint32(0))
	buf.Write(u4[:])
	if _, err := DecodeTable(buf.Bytes()); err == nil {
		t.Fatalf("expected error on bogus n with insufficient bytes")
	}

	buf.Reset()
	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindTable)
	binary.BigEndian.PutUint32(u4[:], 1)
	buf.Write(u4[:])
	if _, err := DecodeTable(buf.Bytes()); err == nil {
		t.Fatalf("expected error on truncated record list")
	}
}

func TestTableKeyLengthValidation(t *testing.T) {
	if _, err := EncodeTable([]Record{{Key: ""}}); !errors.Is(err, ErrKeyLength) {
		t.Fatalf("want ErrKeyLength on empty key, got %v", err)
	}
	if _, err := EncodeTable([]Record{{Key: strings.Repeat("a", 0x10000)}}); err == nil {
		t.Fatalf("expected error on key length > 0xFFFF")
	}
	if _, err := EncodeTable([]Record{{Key: strings.Repeat("b", 0xFFFF)}}); err != nil {
		t.Fatalf("boundary key length should succeed: %v", err)
	}
}

func TestTableCorruptLengths(t *testing.T) {
	enc, err := EncodeTable([]Record{{Key: "k", Envelope: Envelope{ExpiresAt: 9, Payload: []byte("xyz")}}})
	if err != nil {
		t.Fatalf("EncodeTable: %v", err)
	}

	badKind := append([]byte(nil), enc...)
	badKind[5] = kindEntry
	if _, err := DecodeTable(badKind); err == nil {
		t.Fatalf("expected error on bad kind")
	}

	// header 10 bytes; record: 2 klen + 1 key + 8 expiresAt => vlen at 21
	badVlen := append([]byte(nil), enc...)
	binary.BigEndian.PutUint32(badVlen[21:25], uint32(len("xyz")+1))
	if _, err := DecodeTable(badVlen); err == nil {
		t.Fatalf("expected error on vlen beyond buffer")
	}

	badKlen := append([]byte(nil), enc...)
	binary.BigEndian.PutUint16(badKlen[10:12], uint16(5))
	if _, err := DecodeTable(badKlen); err == nil {
		t.Fatalf("expected error on klen beyond buffer")
	}
}

func TestTablePayloadsAreCopied(t *testing.T) {
	enc, err := EncodeTable([]Record{{Key: "a", Envelope: Envelope{ExpiresAt: 1, Payload: []byte("X")}}})
	if err != nil {
		t.Fatalf("EncodeTable: %v", err)
	}
	got := mustDecodeTable(t, enc)
	got[0].Payload[0] = 'Q'
	if again := mustDecodeTable(t, enc); again[0].Payload[0] != 'X' {
		t.Fatalf("decoded payload should not alias the source buffer")
	}
}

func TestEnvelopeLivenessIsStrict(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	e := Envelope{ExpiresAt: ExpiresAt(now, 2*time.Second)}

	if !e.Live(now) || e.Remaining(now) != 2 {
		t.Fatalf("fresh envelope: live=%v remaining=%d", e.Live(now), e.Remaining(now))
	}
	if got := e.Remaining(now.Add(1500 * time.Millisecond)); got != 1 {
		t.Fatalf("remaining should round up to 1, got %d", got)
	}
	at := now.Add(2 * time.Second)
	if e.Live(at) || e.Remaining(at) != 0 {
		t.Fatalf("now == expiresAt must be expired")
	}
	if e.Live(at.Add(time.Nanosecond)) {
		t.Fatalf("past expiry must not be live")
	}
}

func TestSeconds(t *testing.T) {
	cases := map[time.Duration]int{
		-time.Second:                   0,
		0:                              0,
		time.Nanosecond:                1,
		time.Second:                    1,
		time.Second + time.Millisecond: 2,
		time.Hour:                      3600,
	}
	for d, want := range cases {
		if got := Seconds(d); got != want {
			t.Fatalf("Seconds(%v) = %d, want %d", d, got, want)
		}
	}
}
