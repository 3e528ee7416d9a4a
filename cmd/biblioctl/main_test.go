package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"bibliobridge/internal/search"
	"bibliobridge/internal/testutil"
)

func writeRecords(t *testing.T, titles ...string) string {
	t.Helper()
	var buf []byte
	for _, title := range titles {
		f245 := testutil.Field("245", "a"+title)
		f245.Ind1, f245.Ind2 = '1', '0'
		buf = append(buf, testutil.EncodeBook(t, testutil.Field("020", "a978-2-07-040850-4"), f245)...)
	}
	p := filepath.Join(t.TempDir(), "records.mrc")
	require.NoError(t, os.WriteFile(p, buf, 0o600))
	return p
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestDecode_YAML(t *testing.T) {
	path := writeRecords(t, "L'étranger", "La peste")

	out, err := execute(t, "decode", path, "--raw=false", "-o", "yaml")
	require.NoError(t, err)

	var got []decodedRecord
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[1].Position)
	assert.Equal(t, "La peste", got[1].Draft.Title)
	assert.Equal(t, "9782070408504", got[0].Draft.ISBN)
}

func TestDecode_RawJSON(t *testing.T) {
	path := writeRecords(t, "L'étranger")

	out, err := execute(t, "decode", path, "--raw", "-o", "json")
	require.NoError(t, err)

	var got []decodedRecord
	require.NoError(t, jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Record)
	assert.Contains(t, got[0].Record.Fields, "245 10 $aL'étranger")
	assert.Nil(t, got[0].Draft)
}

func TestDecode_Errors(t *testing.T) {
	_, err := execute(t, "decode", filepath.Join(t.TempDir(), "missing.mrc"), "--raw=false")
	assert.Error(t, err)

	path := writeRecords(t, "x")
	_, err = execute(t, "decode", path, "--dialect", "dc")
	assert.Error(t, err)

	_, err = execute(t, "decode", path, "--dialect", "marc21", "-o", "xml")
	assert.Error(t, err)
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	err := writeTable(&buf, &search.Result{
		Items:         []search.ShortEntry{{Handle: 4, ISBN: "9782070408504", Title: "L'étranger", Source: "BnF"}},
		Total:         1,
		Source:        "BnF",
		FailedServers: []string{"LoC"},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "HANDLE")
	assert.Contains(t, buf.String(), "L'étranger")
	assert.Contains(t, buf.String(), "1 result(s) from BnF")
	assert.Contains(t, buf.String(), "failed: [LoC]")
}
