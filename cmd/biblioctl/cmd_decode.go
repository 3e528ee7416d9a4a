package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"bibliobridge/internal/dialect"
	"bibliobridge/internal/entity"
	"bibliobridge/internal/marc"
)

var decodeFlags struct {
	dialect string
	output  string
	raw     bool
}

var decodeCmd = &cobra.Command{
	Use:   "decode FILE",
	Short: "Decode an ISO 2709 file into bibliographic drafts",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecode,
}

func init() {
	f := decodeCmd.Flags()
	f.StringVar(&decodeFlags.dialect, "dialect", "marc21", "Record dialect: marc21 or unimarc")
	f.StringVarP(&decodeFlags.output, "output", "o", "yaml", "Output format: yaml or json")
	f.BoolVar(&decodeFlags.raw, "raw", false, "Print decoded fields instead of translated drafts")
}

type decodedRecord struct {
	Position int           `json:"position" yaml:"position"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
	Dropped  []string      `json:"dropped,omitempty" yaml:"dropped,omitempty"`
	Draft    *entity.Draft `json:"draft,omitempty" yaml:"draft,omitempty"`
	Record   *rawRecord    `json:"record,omitempty" yaml:"record,omitempty"`
}

type rawRecord struct {
	Leader  string            `json:"leader" yaml:"leader"`
	Control map[string]string `json:"control,omitempty" yaml:"control,omitempty"`
	Fields  []string          `json:"fields" yaml:"fields"`
}

// newRawRecord renders data fields the way cataloguers read them:
// "245 10 $aTitle $bSubtitle".
func newRawRecord(rec *marc.Record) *rawRecord {
	out := &rawRecord{Leader: rec.Leader, Control: rec.Control}
	for _, f := range rec.Fields {
		var b strings.Builder
		b.WriteString(f.Tag)
		b.WriteByte(' ')
		b.WriteByte(f.Ind1)
		b.WriteByte(f.Ind2)
		for _, sf := range f.Subfields {
			b.WriteString(" $")
			b.WriteByte(sf.Code)
			b.WriteString(sf.Value)
		}
		out.Fields = append(out.Fields, b.String())
	}
	return out
}

func runDecode(cmd *cobra.Command, args []string) error {
	d, err := dialect.Parse(decodeFlags.dialect)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read records: %w", err)
	}

	var out []decodedRecord
	for i, raw := range marc.Split(data) {
		dr := decodedRecord{Position: i + 1}
		rec, err := marc.Decode(raw)
		if err != nil {
			dr.Error = err.Error()
			out = append(out, dr)
			continue
		}
		dr.Dropped = rec.Dropped
		if decodeFlags.raw {
			dr.Record = newRawRecord(rec)
		} else {
			draft := dialect.Translate(rec, d)
			dr.Draft = &draft
		}
		out = append(out, dr)
	}
	if len(out) == 0 {
		return fmt.Errorf("no records in %s", args[0])
	}
	return writeOutput(cmd.OutOrStdout(), decodeFlags.output, out)
}
