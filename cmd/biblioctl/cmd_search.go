package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bibliobridge/internal/search"
	"bibliobridge/internal/z3950"
)

var searchFlags struct {
	query   z3950.Query
	pqf     string
	server  int64
	limit   int
	servers string
	output  string
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the configured Z39.50 servers and stage the results",
	Long: "search runs the same fan-out as the API. Results are staged in Redis,\n" +
		"so the printed handles can be passed to 'biblioctl import'.",
	RunE: runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.StringVar(&searchFlags.query.ISBN, "isbn", "", "ISBN")
	f.StringVar(&searchFlags.query.ISSN, "issn", "", "ISSN")
	f.StringVar(&searchFlags.query.Title, "title", "", "Title words")
	f.StringVar(&searchFlags.query.Author, "author", "", "Author")
	f.StringVar(&searchFlags.query.Keywords, "keywords", "", "Subject keywords")
	f.StringVar(&searchFlags.pqf, "pqf", "", "Raw PQF query, overrides the other terms")
	f.Int64Var(&searchFlags.server, "server", 0, "Search only the server with this id")
	f.IntVar(&searchFlags.limit, "limit", 0, "Maximum results (default from Z3950_MAX_RESULTS)")
	f.StringVar(&searchFlags.servers, "servers", "", "TOML servers file (default: Z3950_SERVERS_FILE, then the database)")
	f.StringVarP(&searchFlags.output, "output", "o", "table", "Output format: table, yaml or json")
}

func runSearch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	registry, err := e.registry(cmd, searchFlags.servers)
	if err != nil {
		return err
	}
	cache, err := e.cache(ctx)
	if err != nil {
		return err
	}

	z := e.cfg.Z3950
	dialer := &z3950.YazDialer{Path: z.YazClient, WorkDir: z.WorkDir, Logger: e.log}
	svc := search.NewService(registry, dialer, cache, search.Config{
		Concurrency:   z.Concurrency,
		MaxResults:    z.MaxResults,
		MaxResultsCap: z.MaxResultsCap,
		ServerRPS:     z.ServerRPS,
		ServerBurst:   z.ServerBurst,
		Deadline:      z.SearchDeadline,
		Session:       z3950.Options{Timeout: z.Timeout, MaxPresent: z.MaxPresent},
	}, nil, e.log)

	res, err := svc.Search(ctx, search.Request{
		Query:      searchFlags.query,
		PQF:        searchFlags.pqf,
		ServerID:   searchFlags.server,
		MaxResults: searchFlags.limit,
	})
	if err != nil {
		return err
	}

	if searchFlags.output == "table" {
		return writeTable(cmd.OutOrStdout(), res)
	}
	return writeOutput(cmd.OutOrStdout(), searchFlags.output, res)
}

func (e *env) registry(cmd *cobra.Command, file string) (search.Registry, error) {
	if file == "" {
		file = e.cfg.Z3950.ServersFile
	}
	if file != "" {
		return search.LoadFileRegistry(file)
	}
	db, err := e.openDB(cmd.Context())
	if err != nil {
		return nil, err
	}
	return search.NewPostgresRegistry(db), nil
}

func writeTable(w io.Writer, res *search.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HANDLE\tISBN\tTITLE\tAUTHOR\tDATE\tSOURCE")
	for _, it := range res.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", it.Handle, it.ISBN, it.Title, it.Author, it.Date, it.Source)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d result(s) from %s\n", res.Total, res.Source)
	if len(res.FailedServers) > 0 {
		fmt.Fprintf(w, "failed: %v\n", res.FailedServers)
	}
	return nil
}
