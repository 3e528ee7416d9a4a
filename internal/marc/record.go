// Package marc reads and writes ISO 2709 framed bibliographic records.
package marc

const (
	LeaderLen         = 24
	FieldTerminator   = 0x1E
	RecordTerminator  = 0x1D
	SubfieldDelimiter = 0x1F

	directoryEntry = 12
	controlPrefix  = "00"
)

// Record is a decoded ISO 2709 record.
type Record struct {
	Leader  string
	Control map[string]string
	Fields  []DataField

	// Dropped lists tags whose payload could not be located in the buffer.
	// It is informational and never encoded.
	Dropped []string
}

type DataField struct {
	Tag       string
	Ind1      byte
	Ind2      byte
	Subfields []Subfield
}

type Subfield struct {
	Code  byte
	Value string
}

// RecordType returns leader position 06, or 0 when the leader is short.
func (r *Record) RecordType() byte {
	if len(r.Leader) < LeaderLen {
		return 0
	}
	return r.Leader[6]
}

// ControlField returns the value of a 00X field.
func (r *Record) ControlField(tag string) (string, bool) {
	v, ok := r.Control[tag]
	return v, ok
}

func (r *Record) FieldsByTag(tag string) []DataField {
	var out []DataField
	for _, f := range r.Fields {
		if f.Tag == tag {
			out = append(out, f)
		}
	}
	return out
}

// Subfield returns the first value of tag$code across all fields.
func (r *Record) Subfield(tag string, code byte) string {
	for _, f := range r.Fields {
		if f.Tag != tag {
			continue
		}
		if v, ok := f.Get(code); ok {
			return v
		}
	}
	return ""
}

func (r *Record) Subfields(tag string, code byte) []string {
	var out []string
	for _, f := range r.Fields {
		if f.Tag == tag {
			out = append(out, f.All(code)...)
		}
	}
	return out
}

func (f DataField) Get(code byte) (string, bool) {
	for _, sf := range f.Subfields {
		if sf.Code == code {
			return sf.Value, true
		}
	}
	return "", false
}

func (f DataField) All(code byte) []string {
	var out []string
	for _, sf := range f.Subfields {
		if sf.Code == code {
			out = append(out, sf.Value)
		}
	}
	return out
}

// Has reports whether the field carries a non-empty code subfield.
func (f DataField) Has(code byte) bool {
	v, ok := f.Get(code)
	return ok && v != ""
}
