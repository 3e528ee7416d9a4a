package marc

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

const (
	maxFieldLen  = 9999
	maxFieldPos  = 99999
	maxRecordLen = 99999
)

// Encode writes r as an ISO 2709 record. Control fields are written in tag
// order ahead of the data fields, which keep their order. The leader's
// length, base address and entry map are recomputed.
func Encode(r *Record) ([]byte, error) {
	if len(r.Leader) != LeaderLen {
		return nil, frameErr(0, "leader must be %d bytes, got %d", LeaderLen, len(r.Leader))
	}

	var dir, data bytes.Buffer
	add := func(tag string, payload []byte) error {
		if len(tag) != 3 {
			return frameErr(0, "tag %q must be 3 characters", tag)
		}
		length := len(payload) + 1
		start := data.Len()
		if length > maxFieldLen {
			return frameErr(0, "field %s is %d bytes, limit is %d", tag, length, maxFieldLen)
		}
		if start > maxFieldPos {
			return frameErr(0, "field %s starts at %d, limit is %d", tag, start, maxFieldPos)
		}
		fmt.Fprintf(&dir, "%s%04d%05d", tag, length, start)
		data.Write(payload)
		data.WriteByte(FieldTerminator)
		return nil
	}

	tags := make([]string, 0, len(r.Control))
	for tag := range r.Control {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	for _, tag := range tags {
		if !strings.HasPrefix(tag, controlPrefix) {
			return nil, frameErr(0, "control field tag %q must start with %q", tag, controlPrefix)
		}
		value := r.Control[tag]
		if containsFraming(value) {
			return nil, frameErr(0, "control field %s contains framing bytes", tag)
		}
		if err := add(tag, []byte(value)); err != nil {
			return nil, err
		}
	}

	for _, f := range r.Fields {
		if strings.HasPrefix(f.Tag, controlPrefix) {
			return nil, frameErr(0, "data field tag %q collides with control fields", f.Tag)
		}
		payload := []byte{f.Ind1, f.Ind2}
		for _, sf := range f.Subfields {
			if containsFraming(sf.Value) || isFraming(sf.Code) {
				return nil, frameErr(0, "field %s subfield %q contains framing bytes", f.Tag, sf.Code)
			}
			payload = append(payload, SubfieldDelimiter, sf.Code)
			payload = append(payload, sf.Value...)
		}
		if err := add(f.Tag, payload); err != nil {
			return nil, err
		}
	}
	dir.WriteByte(FieldTerminator)

	base := LeaderLen + dir.Len()
	total := base + data.Len() + 1
	if base > maxFieldPos || total > maxRecordLen {
		return nil, frameErr(0, "record of %d bytes exceeds the %d byte limit", total, maxRecordLen)
	}

	leader := []byte(r.Leader)
	copy(leader[0:5], fmt.Sprintf("%05d", total))
	leader[10], leader[11] = '2', '2'
	copy(leader[12:17], fmt.Sprintf("%05d", base))
	copy(leader[20:24], "4500")

	out := make([]byte, 0, total)
	out = append(out, leader...)
	out = append(out, dir.Bytes()...)
	out = append(out, data.Bytes()...)
	out = append(out, RecordTerminator)
	return out, nil
}

func isFraming(b byte) bool {
	return b == FieldTerminator || b == RecordTerminator || b == SubfieldDelimiter
}

func containsFraming(s string) bool {
	return strings.ContainsAny(s, "\x1d\x1e\x1f")
}
