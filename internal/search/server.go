package search

import (
	"context"
	"errors"
	"net"
	"strconv"

	"bibliobridge/internal/dialect"
	"bibliobridge/internal/z3950"
)

// Server is one configured remote catalog.
type Server struct {
	ID        int64           `json:"id" toml:"id"`
	Name      string          `json:"name" toml:"name"`
	Host      string          `json:"host" toml:"host"`
	Port      int             `json:"port" toml:"port"`
	Databases []string        `json:"databases" toml:"databases"`
	Syntax    dialect.Dialect `json:"syntax" toml:"syntax"`
	Login     string          `json:"-" toml:"login"`
	Password  string          `json:"-" toml:"password"`
	Disabled  bool            `json:"-" toml:"disabled"`
}

func (s Server) Target() z3950.Target {
	t := z3950.Target{
		Name:      s.Name,
		Address:   net.JoinHostPort(s.Host, strconv.Itoa(s.port())),
		Databases: s.Databases,
		Syntax:    s.Syntax,
	}
	if s.Login != "" {
		t.Credentials = &z3950.Credentials{User: s.Login, Password: s.Password}
	}
	return t
}

func (s Server) port() int {
	if s.Port == 0 {
		return 210
	}
	return s.Port
}

// Registry lists the servers a search fans out to, in search order.
type Registry interface {
	Active(ctx context.Context) ([]Server, error)
}

// ConfigurationError reports a deployment that cannot serve searches.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return "search: " + e.Reason }

var ErrNoActiveServers = &ConfigurationError{Reason: "no active Z39.50 server configured"}

var errInvalidServer = errors.New("server needs a name and a host")

func (s Server) validate() error {
	if s.Name == "" || s.Host == "" {
		return errInvalidServer
	}
	return nil
}
