package xlsxparser

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"
)

// BIFF8 record types read by the legacy decoder.
const (
	recFormula    = 0x0006
	recEOF        = 0x000A
	recDateMode   = 0x0022
	recFilePass   = 0x002F
	recContinue   = 0x003C
	recBoundSheet = 0x0085
	recMulRK      = 0x00BD
	recRString    = 0x00D6
	recSST        = 0x00FC
	recLabelSST   = 0x00FD
	recNumber     = 0x0203
	recLabel      = 0x0204
	recBoolErr    = 0x0205
	recString     = 0x0207
	recRK         = 0x027E
	recBOF        = 0x0809
)

const biff8Version = 0x0600

// Special formula results, flagged by 0xFFFF in the top bytes of the value.
const (
	formulaString = 0x00
	formulaBool   = 0x01
	formulaError  = 0x02
)

var le = binary.LittleEndian

var errSSTOverflow = errors.New("shared string table is truncated")

type record struct {
	typ  uint16
	data []byte
}

// recordReader walks the records of a workbook stream.
type recordReader struct {
	buf []byte
	pos int
}

// next returns the following record, or io.EOF at the end of the stream.
func (r *recordReader) next() (record, error) {
	if r.pos+4 > len(r.buf) {
		return record{}, io.EOF
	}
	typ := le.Uint16(r.buf[r.pos:])
	size := int(le.Uint16(r.buf[r.pos+2:]))
	start := r.pos + 4
	if start+size > len(r.buf) {
		return record{}, fmt.Errorf("record 0x%04X at offset %d: %w", typ, r.pos, errTruncated)
	}
	r.pos = start + size
	return record{typ: typ, data: r.buf[start:r.pos]}, nil
}

// decodeChars decodes n characters stored one byte each (Latin-1) or two
// bytes each (UTF-16LE). It returns the text and the bytes consumed.
func decodeChars(b []byte, n int, wide bool) (string, int, error) {
	if wide {
		if len(b) < 2*n {
			return "", 0, errTruncated
		}
		units := make([]uint16, n)
		for i := range units {
			units[i] = le.Uint16(b[2*i:])
		}
		return string(utf16.Decode(units)), 2 * n, nil
	}

	if len(b) < n {
		return "", 0, errTruncated
	}
	runes := make([]rune, n)
	for i, c := range b[:n] {
		runes[i] = rune(c)
	}
	return string(runes), n, nil
}

// =============================================================================
// SHARED STRING TABLE
// =============================================================================

// sstReader reads the shared string table across its SST and CONTINUE
// record bodies.
type sstReader struct {
	segs [][]byte
	seg  int
	pos  int
}

func readSST(segs [][]byte) ([]string, error) {
	s := &sstReader{segs: segs}

	head, err := s.take(8)
	if err != nil {
		return nil, err
	}
	unique := int(le.Uint32(head[4:8]))

	out := make([]string, 0, min(unique, 1<<16))
	for i := 0; i < unique; i++ {
		str, err := s.readString()
		if err != nil {
			return nil, fmt.Errorf("reading shared string %d: %w", i, err)
		}
		out = append(out, str)
	}
	return out, nil
}

// readString reads one unicode string. When its characters run past the
// end of a record, the next CONTINUE body starts with a fresh option byte
// that may switch between one- and two-byte characters.
func (s *sstReader) readString() (string, error) {
	head, err := s.take(3)
	if err != nil {
		return "", err
	}
	remaining := int(le.Uint16(head[0:2]))
	flags := head[2]

	var runs, ext int
	if flags&0x08 != 0 {
		b, err := s.take(2)
		if err != nil {
			return "", err
		}
		runs = int(le.Uint16(b))
	}
	if flags&0x04 != 0 {
		b, err := s.take(4)
		if err != nil {
			return "", err
		}
		ext = int(le.Uint32(b))
	}

	wide := flags&0x01 != 0
	var sb strings.Builder
	for remaining > 0 {
		if s.seg >= len(s.segs) {
			return "", errSSTOverflow
		}
		if s.pos >= len(s.segs[s.seg]) {
			s.seg++
			if s.seg >= len(s.segs) || len(s.segs[s.seg]) == 0 {
				return "", errSSTOverflow
			}
			wide = s.segs[s.seg][0]&0x01 != 0
			s.pos = 1
		}

		avail := s.segs[s.seg][s.pos:]
		width := 1
		if wide {
			width = 2
		}
		n := min(remaining, len(avail)/width)
		if n == 0 {
			return "", errSSTOverflow
		}

		text, used, err := decodeChars(avail, n, wide)
		if err != nil {
			return "", err
		}
		sb.WriteString(text)
		s.pos += used
		remaining -= n
	}

	// Rich-text runs and phonetic data are not needed.
	if err := s.skip(4*runs + ext); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// take returns the next n bytes, crossing record boundaries.
func (s *sstReader) take(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	err := s.advance(n, func(b []byte) { out = append(out, b...) })
	return out, err
}

// skip discards the next n bytes, crossing record boundaries.
func (s *sstReader) skip(n int) error {
	return s.advance(n, func([]byte) {})
}

func (s *sstReader) advance(n int, emit func([]byte)) error {
	for n > 0 {
		for s.seg < len(s.segs) && s.pos >= len(s.segs[s.seg]) {
			s.seg++
			s.pos = 0
		}
		if s.seg >= len(s.segs) {
			return errSSTOverflow
		}
		seg := s.segs[s.seg]
		k := min(n, len(seg)-s.pos)
		emit(seg[s.pos : s.pos+k])
		s.pos += k
		n -= k
	}
	return nil
}
