package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/tuannm99/rowstore/internal"
	"github.com/tuannm99/rowstore/internal/catalog"
	"github.com/tuannm99/rowstore/internal/kv"
	"github.com/tuannm99/rowstore/internal/logging"
	"github.com/tuannm99/rowstore/internal/record"
	"github.com/tuannm99/rowstore/internal/tablestore"
)

const usage = `usage: rowstore-inspect [-config file] [-root dir] [-db name] <command> [args]

commands:
  databases            list databases
  tables               list tables of the current database
  schema <table>       print column names, types and the primary key
  scan <table>         print every row
  get <table> <key>    print one row
  stats <table>        print storage figures
  pages <table>        dump the block file page by page
  verify               check every table of the current database
`

func main() {
	configPath := flag.String("config", "", "yaml config file")
	root := flag.String("root", "", "databases root directory (overrides config)")
	db := flag.String("db", "", "database to use (overrides config)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, *configPath, *root, *db, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "rowstore-inspect:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, configPath, root, db string, args []string) error {
	cfg, err := internal.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if root != "" {
		cfg.Storage.Root = root
	}
	if err := logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}

	cat, err := catalog.New(cfg.Storage.Root)
	if err != nil {
		return err
	}
	session := catalog.NewSession(cat, cfg.Storage.DefaultDatabase)
	if db != "" {
		if err := session.Use(db); err != nil {
			return err
		}
	}
	store := tablestore.New(cat, tablestore.Options{
		TreeOrder: cfg.Storage.TreeOrder,
		KV: kv.Options{
			CachePages:  cfg.Storage.CachePages,
			LockTimeout: cfg.Storage.LockTimeout,
			NoSync:      cfg.Storage.NoSync,
		},
	})

	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", usage)
	}
	cmd, args := args[0], args[1:]
	need := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s: want %d argument(s), got %d", cmd, n, len(args))
		}
		return nil
	}
	cur := session.Current()

	switch cmd {
	case "databases":
		names, err := cat.ListDatabases()
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(out, n)
		}
	case "tables":
		names, err := cat.ListTables(cur)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(out, n)
		}
	case "schema":
		if err := need(1); err != nil {
			return err
		}
		schema, err := store.Schema(ctx, cur, args[0])
		if err != nil {
			return err
		}
		for i, c := range schema.Cols {
			pk := ""
			if i == schema.PK {
				pk = " PRIMARY KEY"
			}
			fmt.Fprintf(out, "%s %s%s\n", c.Name, c.Type, pk)
		}
	case "scan":
		if err := need(1); err != nil {
			return err
		}
		return store.ScanFunc(ctx, cur, args[0], func(_ string, row record.Row) error {
			_, err := fmt.Fprintln(out, record.FormatRow(row))
			return err
		})
	case "get":
		if err := need(2); err != nil {
			return err
		}
		row, err := store.Get(ctx, cur, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, record.FormatRow(row))
	case "stats":
		if err := need(1); err != nil {
			return err
		}
		st, err := store.Stats(ctx, cur, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "order=%d keys=%d pages=%d tuples=%d bytes=%d created=%s\n",
			st.Order, st.Keys, st.Pages, st.Tuples, st.TupleSize, st.CreatedAt.Format("2006-01-02T15:04:05Z"))
	case "pages":
		if err := need(1); err != nil {
			return err
		}
		return store.DumpPages(ctx, cur, args[0], out)
	case "verify":
		reports, err := store.Verify(ctx, cur)
		if err != nil {
			return err
		}
		failed := 0
		for _, r := range reports {
			if r.OK() {
				fmt.Fprintf(out, "ok   %s rows=%d pages=%d\n", r.Table, r.Rows, r.Stats.Pages)
				continue
			}
			failed++
			fmt.Fprintf(out, "FAIL %s: %v\n", r.Table, r.Err)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d tables failed verification", failed, len(reports))
		}
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	return nil
}
