package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"media-catalog/internal/catalog"
	"media-catalog/internal/config"
	"media-catalog/internal/database"
	"media-catalog/internal/fixtures"
	"media-catalog/internal/importer"
	"media-catalog/internal/library"
)

type commands struct {
	logger *log.Logger
}

func newApp(logger *log.Logger) *cli.App {
	c := &commands{logger: logger}
	return &cli.App{
		Name:  "media-catalog",
		Usage: "manage the music and podcast catalog",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "create or update the catalog tables",
				Action: c.migrate,
			},
			{
				Name:  "import",
				Usage: "import the audio files below the media directory",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "prune", Usage: "remove songs whose file no longer exists"},
				},
				Action: c.importMedia,
			},
			{
				Name:   "watch",
				Usage:  "import the media directory and keep it in sync until interrupted",
				Action: c.watch,
			},
			{
				Name:   "check",
				Usage:  "report records that break the catalog constraints",
				Action: c.check,
			},
			{
				Name:  "dumpdata",
				Usage: "write every record as a fixture document",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Value: string(fixtures.FormatYAML), Usage: "yaml or json"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write to `FILE` instead of stdout"},
				},
				Action: c.dumpData,
			},
			{
				Name:      "loaddata",
				Usage:     "insert the records of one or more fixture files",
				ArgsUsage: "FILE...",
				Action:    c.loadData,
			},
			{
				Name:   "stats",
				Usage:  "print the number of records per table",
				Action: c.stats,
			},
		},
	}
}

// openStore connects to the configured database and migrates it.
func (c *commands) openStore(ctx context.Context) (*catalog.Store, func(), error) {
	settings, err := config.ResolveDatabase()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve database: %w", err)
	}

	db, err := database.Open(database.Config{
		Driver:       settings.Driver,
		DSN:          settings.DSN,
		MaxOpenConns: settings.MaxOpenConns,
		MaxIdleConns: settings.MaxIdleConns,
		LogSQL:       settings.LogSQL,
	}, c.logger)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := database.Close(db); err != nil {
			c.logger.Printf("error closing database: %v", err)
		}
	}

	store := catalog.New(db, c.logger)
	if err := store.Migrate(ctx); err != nil {
		closeDB()
		return nil, nil, err
	}
	return store, closeDB, nil
}

func (c *commands) newImporter(store *catalog.Store) (*importer.Importer, error) {
	root, err := config.ResolveMediaRoot()
	if err != nil {
		return nil, fmt.Errorf("resolve media root: %w", err)
	}
	return importer.New(root, config.AllowedExtensions(), store, c.logger), nil
}

func (c *commands) migrate(cCtx *cli.Context) error {
	_, closeDB, err := c.openStore(cCtx.Context)
	if err != nil {
		return err
	}
	defer closeDB()

	c.logger.Println("catalog tables are up to date")
	return nil
}

func (c *commands) importMedia(cCtx *cli.Context) error {
	ctx := cCtx.Context
	store, closeDB, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	im, err := c.newImporter(store)
	if err != nil {
		return err
	}

	result, err := im.ImportAll(ctx)
	if err != nil {
		return err
	}

	pruned := 0
	if cCtx.Bool("prune") {
		if pruned, err = im.Prune(ctx); err != nil {
			return err
		}
	}

	fmt.Fprintf(cCtx.App.Writer, "imported %d, skipped %d, pruned %d\n", result.Imported, result.Skipped, pruned)
	return nil
}

func (c *commands) watch(cCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(cCtx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeDB, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	im, err := c.newImporter(store)
	if err != nil {
		return err
	}

	lib, err := library.NewLibrary(im.Root(), config.AllowedExtensions(), config.RefreshDebounce(), im, c.logger)
	if err != nil {
		return fmt.Errorf("initialise library: %w", err)
	}

	c.logger.Printf("watching %s", lib.Root())
	<-ctx.Done()

	if err := lib.Close(); err != nil {
		c.logger.Printf("error closing library: %v", err)
	}
	c.logger.Println("shutdown complete")
	return nil
}

func (c *commands) check(cCtx *cli.Context) error {
	store, closeDB, err := c.openStore(cCtx.Context)
	if err != nil {
		return err
	}
	defer closeDB()

	report, err := store.Verify(cCtx.Context)
	if err != nil {
		return err
	}

	out := cCtx.App.Writer
	for _, v := range report.Violations {
		fmt.Fprintln(out, v)
	}
	if !report.OK() {
		return cli.Exit(fmt.Sprintf("%d problem(s) found", len(report.Violations)), 1)
	}

	checked := report.Checked
	total := checked.Artists + checked.Albums + checked.Songs + checked.Publishers + checked.Episodes
	fmt.Fprintf(out, "%d record(s) checked, no problems found\n", total)
	return nil
}

func (c *commands) dumpData(cCtx *cli.Context) error {
	output := cCtx.String("output")

	format, err := fixtures.ParseFormat(cCtx.String("format"))
	if err != nil {
		return err
	}
	if output != "" && !cCtx.IsSet("format") {
		if format, err = fixtures.FormatFromPath(output); err != nil {
			return err
		}
	}

	store, closeDB, err := c.openStore(cCtx.Context)
	if err != nil {
		return err
	}
	defer closeDB()

	if output == "" {
		return fixtures.Dump(cCtx.Context, store, cCtx.App.Writer, format)
	}

	file, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := fixtures.Dump(cCtx.Context, store, file, format); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func (c *commands) loadData(cCtx *cli.Context) error {
	paths := cCtx.Args().Slice()
	if len(paths) == 0 {
		return cli.Exit("loaddata needs at least one fixture file", 2)
	}

	docs := make([]fixtures.Document, 0, len(paths))
	for _, path := range paths {
		doc, err := readFixture(path)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		docs = append(docs, doc)
	}
	doc := fixtures.Merge(docs...)

	store, closeDB, err := c.openStore(cCtx.Context)
	if err != nil {
		return err
	}
	defer closeDB()

	// One transaction for every file: nothing is written when any record fails.
	if err := fixtures.Install(cCtx.Context, store, doc); err != nil {
		return fmt.Errorf("load fixtures: %w", err)
	}

	counts := doc.Counts()
	installed := counts.Artists + counts.Albums + counts.Songs + counts.Publishers + counts.Episodes
	fmt.Fprintf(cCtx.App.Writer, "installed %d object(s) from %d fixture(s)\n", installed, len(paths))
	return nil
}

func readFixture(path string) (fixtures.Document, error) {
	format, err := fixtures.FormatFromPath(path)
	if err != nil {
		return fixtures.Document{}, err
	}
	file, err := os.Open(path)
	if err != nil {
		return fixtures.Document{}, err
	}
	defer file.Close()
	return fixtures.Decode(file, format)
}

func (c *commands) stats(cCtx *cli.Context) error {
	store, closeDB, err := c.openStore(cCtx.Context)
	if err != nil {
		return err
	}
	defer closeDB()

	counts, err := store.Counts(cCtx.Context)
	if err != nil {
		return err
	}
	return writeCounts(cCtx.App.Writer, counts)
}

func writeCounts(w io.Writer, counts catalog.Counts) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := []struct {
		table string
		n     int64
	}{
		{"artists", counts.Artists},
		{"albums", counts.Albums},
		{"songs", counts.Songs},
		{"publishers", counts.Publishers},
		{"episodes", counts.Episodes},
	}
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%d\n", row.table, row.n)
	}
	return tw.Flush()
}
