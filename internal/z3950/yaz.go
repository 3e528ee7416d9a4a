package z3950

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"bibliobridge/internal/marc"
)

// YazDialer drives the YAZ toolkit's yaz-client. Every protocol operation is
// one yaz-client run fed a short command script on stdin; Present captures
// raw ISO 2709 through -m.
type YazDialer struct {
	// Path of the yaz-client binary. Empty means "yaz-client" on $PATH.
	Path string
	// WorkDir holds temporary record captures. Empty means os.TempDir.
	WorkDir string
	Logger  zerolog.Logger
}

var (
	hitsPattern = regexp.MustCompile(`Number of hits:\s*(\d+)`)

	failureMarkers = []string{
		"Connecting...error",
		"Connection rejected",
		"Connection timed out",
		"Init rejected",
		"Authentication failed",
	}

	errNoHitCount = errors.New("no hit count in yaz-client output")
)

type runFunc func(ctx context.Context, script string, args ...string) ([]byte, error)

func (d *YazDialer) Dial(ctx context.Context, t Target) (Conn, error) {
	if t.Address == "" {
		return nil, errors.New("empty address")
	}
	path := d.Path
	if path == "" {
		path = "yaz-client"
	}
	bin, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("locate yaz-client: %w", err)
	}

	c := &yazConn{
		target:  t,
		workDir: d.WorkDir,
		log:     d.Logger.With().Str("server", t.Name).Logger(),
		run:     execRunner(bin),
	}
	if err := c.probe(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func execRunner(bin string) runFunc {
	return func(ctx context.Context, script string, args ...string) ([]byte, error) {
		cmd := exec.CommandContext(ctx, bin, args...)
		cmd.Stdin = strings.NewReader(script)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		out, err := cmd.Output()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}
		if err != nil {
			return out, fmt.Errorf("yaz-client: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return out, nil
	}
}

type yazConn struct {
	target  Target
	workDir string
	log     zerolog.Logger
	run     runFunc

	databases []string
	query     string
}

func (c *yazConn) probe(ctx context.Context) error {
	out, err := c.run(ctx, "quit\n", c.args()...)
	if err != nil {
		return err
	}
	return checkFailure(out)
}

func (c *yazConn) Search(ctx context.Context, databases []string, query string) (int, error) {
	c.databases = databases
	c.query = strings.NewReplacer("\r", " ", "\n", " ").Replace(query)

	out, err := c.run(ctx, c.script()+"quit\n", c.args()...)
	if err != nil {
		return 0, err
	}
	if err := checkFailure(out); err != nil {
		return 0, err
	}
	return parseHits(out)
}

func (c *yazConn) Present(ctx context.Context, start, count int) ([][]byte, error) {
	f, err := os.CreateTemp(c.workDir, "yaz-*.mrc")
	if err != nil {
		return nil, fmt.Errorf("create capture file: %w", err)
	}
	capture := f.Name()
	f.Close()
	defer os.Remove(capture)

	script := c.script() + fmt.Sprintf("show %d+%d\nquit\n", start, count)
	out, err := c.run(ctx, script, append(c.args(), "-m", capture)...)
	if err != nil {
		return nil, err
	}
	if err := checkFailure(out); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(capture)
	if err != nil {
		return nil, fmt.Errorf("read capture file: %w", err)
	}
	c.log.Debug().Int("bytes", len(raw)).Int("start", start).Int("count", count).Msg("yaz-client present")
	return marc.Split(raw), nil
}

func (c *yazConn) Close() error { return nil }

// args builds the command line: the connect URL first, then credentials.
func (c *yazConn) args() []string {
	dbs := c.databases
	if len(dbs) == 0 {
		dbs = c.target.Databases
	}
	url := c.target.Address
	if len(dbs) > 0 {
		encoded := make([]string, len(dbs))
		for i, db := range dbs {
			encoded[i] = encodeDatabase(db)
		}
		url += "/" + strings.Join(encoded, "+")
	}

	args := []string{url}
	if cr := c.target.Credentials; cr != nil && cr.User != "" {
		args = append(args, "-u", cr.User+"/"+cr.Password)
	}
	return args
}

// script re-issues the last search; yaz-client keeps no state between runs.
func (c *yazConn) script() string {
	return "format " + c.target.Syntax.Syntax() + "\nfind " + c.query + "\n"
}

func parseHits(out []byte) (int, error) {
	m := hitsPattern.FindSubmatch(out)
	if m == nil {
		return 0, errNoHitCount
	}
	return strconv.Atoi(string(m[1]))
}

func checkFailure(out []byte) error {
	for _, marker := range failureMarkers {
		if bytes.Contains(out, []byte(marker)) {
			return errors.New(marker)
		}
	}
	return nil
}

// encodeDatabase percent-encodes everything but unreserved URL characters.
func encodeDatabase(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
