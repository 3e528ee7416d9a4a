package search

import (
	"context"
	"fmt"

	"github.com/BurntSushi/toml"
)

// FileRegistry serves servers listed in a TOML file:
//
//	[[server]]
//	name = "BnF"
//	host = "z3950.bnf.fr"
//	port = 2211
//	databases = ["TOUT-UTF8"]
//	syntax = "unimarc"
type FileRegistry struct {
	servers []Server
}

type serverFile struct {
	Servers []Server `toml:"server"`
}

func LoadFileRegistry(path string) (*FileRegistry, error) {
	var f serverFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("read servers file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("servers file %s: unknown keys %v", path, undecoded)
	}
	return NewFileRegistry(f.Servers)
}

// NewFileRegistry validates servers and numbers those without an id by file
// position.
func NewFileRegistry(servers []Server) (*FileRegistry, error) {
	seen := make(map[string]bool, len(servers))
	for i := range servers {
		s := &servers[i]
		if err := s.validate(); err != nil {
			return nil, fmt.Errorf("server #%d: %w", i+1, err)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("server #%d: duplicate name %q", i+1, s.Name)
		}
		seen[s.Name] = true
		if s.ID == 0 {
			s.ID = int64(i + 1)
		}
	}
	return &FileRegistry{servers: servers}, nil
}

// All returns every server in the file, disabled ones included.
func (r *FileRegistry) All() []Server {
	return append([]Server(nil), r.servers...)
}

func (r *FileRegistry) Active(ctx context.Context) ([]Server, error) {
	var out []Server
	for _, s := range r.servers {
		if !s.Disabled {
			out = append(out, s)
		}
	}
	return out, nil
}
