package marc

import (
	"bytes"
	"strings"
)

// Decode parses one ISO 2709 record.
//
// A directory entry pointing past the end of the buffer only drops that
// field (its tag is appended to Record.Dropped); the rest of the record is
// still decoded. Malformed leaders, base addresses and directory entries fail
// the whole record with a *FrameError.
func Decode(buf []byte) (*Record, error) {
	if len(buf) < LeaderLen {
		return nil, frameErr(0, "buffer of %d bytes is shorter than the %d byte leader", len(buf), LeaderLen)
	}

	base, ok := parseDigits(buf[12:17])
	if !ok {
		return nil, frameErr(12, "base address %q is not numeric", buf[12:17])
	}
	if base <= LeaderLen || base > len(buf) {
		return nil, frameErr(12, "base address %d outside record of %d bytes", base, len(buf))
	}

	rec := &Record{
		Leader:  string(buf[:LeaderLen]),
		Control: make(map[string]string),
	}

	dir := buf[LeaderLen : base-1]
	for pos := 0; pos+directoryEntry <= len(dir); pos += directoryEntry {
		entry := dir[pos : pos+directoryEntry]
		tag := string(entry[0:3])

		length, ok := parseDigits(entry[3:7])
		if !ok {
			return nil, frameErr(LeaderLen+pos+3, "directory entry %q has a non-numeric length", tag)
		}
		start, ok := parseDigits(entry[7:12])
		if !ok {
			return nil, frameErr(LeaderLen+pos+7, "directory entry %q has a non-numeric start", tag)
		}

		fieldStart := base + start
		fieldEnd := fieldStart + length - 1
		if length == 0 || fieldEnd > len(buf) {
			rec.Dropped = append(rec.Dropped, tag)
			continue
		}
		payload := buf[fieldStart:fieldEnd]

		if strings.HasPrefix(tag, controlPrefix) {
			rec.Control[tag] = decodeText(payload)
			continue
		}

		field, ok := decodeDataField(tag, payload)
		if !ok {
			rec.Dropped = append(rec.Dropped, tag)
			continue
		}
		rec.Fields = append(rec.Fields, field)
	}

	return rec, nil
}

func decodeDataField(tag string, payload []byte) (DataField, bool) {
	if len(payload) < 2 {
		return DataField{}, false
	}
	f := DataField{Tag: tag, Ind1: payload[0], Ind2: payload[1]}

	// parts[0] is whatever precedes the first delimiter and carries no code.
	parts := bytes.Split(payload[2:], []byte{SubfieldDelimiter})
	for _, part := range parts[1:] {
		if len(part) == 0 {
			continue
		}
		f.Subfields = append(f.Subfields, Subfield{Code: part[0], Value: decodeText(part[1:])})
	}
	return f, true
}

// Split cuts a concatenated stream of records on the record terminator.
// Whitespace between records is ignored.
func Split(stream []byte) [][]byte {
	var out [][]byte
	for len(stream) > 0 {
		stream = bytes.TrimLeft(stream, " \r\n\t")
		if len(stream) == 0 {
			break
		}
		i := bytes.IndexByte(stream, RecordTerminator)
		if i < 0 {
			out = append(out, stream)
			break
		}
		out = append(out, stream[:i+1])
		stream = stream[i+1:]
	}
	return out
}

func parseDigits(b []byte) (int, bool) {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
