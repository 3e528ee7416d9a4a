package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bibliobridge/internal/dialect"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "servers.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileRegistry(t *testing.T) {
	path := writeFile(t, `
[[server]]
name = "BnF"
host = "z3950.bnf.fr"
port = 2211
databases = ["TOUT-UTF8"]
syntax = "unimarc"
login = "Z3950"
password = "Z3950_BNF"

[[server]]
name = "Library of Congress"
host = "lx2.loc.gov"
databases = ["LCDB"]
syntax = "usmarc"

[[server]]
id = 40
name = "Offline"
host = "offline.example.org"
disabled = true
`)

	reg, err := LoadFileRegistry(path)
	require.NoError(t, err)
	assert.Len(t, reg.All(), 3)

	active, err := reg.Active(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 2)

	assert.Equal(t, int64(1), active[0].ID)
	assert.Equal(t, "BnF", active[0].Name)
	assert.Equal(t, dialect.UNIMARC, active[0].Syntax)
	assert.Equal(t, "Z3950_BNF", active[0].Password)

	assert.Equal(t, int64(2), active[1].ID)
	assert.Equal(t, dialect.MARC21, active[1].Syntax)
	assert.Equal(t, "lx2.loc.gov:210", active[1].Target().Address)

	assert.Equal(t, int64(40), reg.All()[2].ID)
}

func TestLoadFileRegistry_Errors(t *testing.T) {
	cases := map[string]string{
		"unknown key": "[[server]]\nname = \"a\"\nhost = \"h\"\nhots = \"typo\"\n",
		"no host":     "[[server]]\nname = \"a\"\n",
		"duplicate":   "[[server]]\nname = \"a\"\nhost = \"h\"\n[[server]]\nname = \"a\"\nhost = \"h2\"\n",
		"bad syntax":  "[[server]]\nname = \"a\"\nhost = \"h\"\nsyntax = \"dc\"\n",
		"not toml":    "[[server",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFileRegistry(writeFile(t, body))
			assert.Error(t, err)
		})
	}

	_, err := LoadFileRegistry(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
