// sitemapctl is the offline companion to sitemapd. Each command reads the
// same configuration as the server (environment or CONFIG_FILE).
//
// Commands:
//
//	sitemapctl export -o DIR
//	sitemapctl snapshot [-o FILE]
//	sitemapctl audit [-u URL]
//
// Examples:
//
//	CATALOG_SOURCE=snapshot SNAPSHOT_PATH=catalog.db sitemapctl export -o public/
//	sitemapctl snapshot -o catalog.db
//	sitemapctl audit -u https://shop.example.com/sitemap.xml
package main

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"storefront-sitemap/internal/audit"
	"storefront-sitemap/internal/config"
	"storefront-sitemap/internal/provider"
	"storefront-sitemap/internal/sitemap"
	"storefront-sitemap/internal/snapshot"
	"storefront-sitemap/internal/transport"
)

type options struct {
	Quiet   bool `short:"q" long:"quiet" description:"Only print errors and results"`
	NoColor bool `long:"no-color" description:"Disable colored output"`
	Verbose bool `short:"v" long:"verbose" description:"Log provider activity to stderr"`

	Export   exportCommand   `command:"export" description:"Write every locale's sitemap tree to a directory"`
	Snapshot snapshotCommand `command:"snapshot" description:"Copy the live store catalog into a SQLite snapshot"`
	Audit    auditCommand    `command:"audit" description:"Compare a deployed sitemap tree with a fresh build"`
}

var opts options

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow, colorGray = "", "", "", "", ""
}

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if opts.NoColor {
			disableColors()
		}
		return cmd.Execute(args)
	}

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
}

// =============================================================================
// EXPORT
// =============================================================================

type exportCommand struct {
	Output string `short:"o" long:"output" required:"true" description:"Directory to write documents to"`
}

func (c *exportCommand) Execute(args []string) error {
	ctx, stop := signalContext()
	defer stop()

	builder, closeProvider, err := openBuilder(ctx)
	if err != nil {
		return err
	}
	defer closeProvider()

	written, err := exportTree(ctx, builder, c.Output)
	if err != nil {
		return err
	}
	printSuccess("wrote %d documents to %s", written, c.Output)
	return nil
}

// exportTree writes each locale's tree under dir, mirroring the served URL
// layout: the default locale at the root, others in a locale subdirectory.
func exportTree(ctx context.Context, builder *sitemap.Builder, dir string) (int, error) {
	site := builder.Site()
	written := 0
	for _, locale := range site.Locales {
		localeDir := dir
		if locale != site.DefaultLocale {
			localeDir = filepath.Join(dir, locale)
		}
		if err := os.MkdirAll(localeDir, 0o755); err != nil {
			return written, err
		}

		err := builder.Walk(ctx, locale, func(nd sitemap.NamedDocument) error {
			body, err := sitemap.RenderXML(nd.Doc)
			if err != nil {
				return fmt.Errorf("rendering %s/%s: %w", nd.Locale, nd.Name, err)
			}
			path := filepath.Join(localeDir, nd.Name)
			if err := os.WriteFile(path, body, 0o644); err != nil {
				return err
			}
			written++
			printInfo("%s (%d entries)", path, nd.Doc.Len())
			return nil
		})
		if err != nil {
			return written, fmt.Errorf("exporting locale %s: %w", locale, err)
		}
	}
	return written, nil
}

// =============================================================================
// SNAPSHOT
// =============================================================================

type snapshotCommand struct {
	Output string `short:"o" long:"output" description:"Snapshot file (default: SNAPSHOT_PATH)"`
}

func (c *snapshotCommand) Execute(args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.CatalogSource != config.SourceWooCommerce {
		return fmt.Errorf("snapshot copies the live store; set CATALOG_SOURCE=%s", config.SourceWooCommerce)
	}
	path := cmp.Or(c.Output, cfg.SnapshotPath)
	if path == "" {
		return fmt.Errorf("no snapshot file: pass -o or set SNAPSHOT_PATH")
	}

	site, err := cfg.BuildSite()
	if err != nil {
		return err
	}

	client, err := provider.WooCommerce(ctx, cfg, newLogger())
	if err != nil {
		return err
	}

	store, err := snapshot.Open(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()

	start := time.Now()
	results, err := store.Sync(ctx, client, sourceCollections(&site))
	if err != nil {
		return err
	}
	for _, r := range results {
		printInfo("%s: %d items", r.Collection, r.Items)
	}
	printSuccess("snapshot %s written in %s", path, time.Since(start).Round(time.Millisecond))
	return nil
}

// sourceCollections lists the provider collections a site reads, once each.
func sourceCollections(site *sitemap.Site) []string {
	var sources []string
	for _, c := range site.Collections {
		src := cmp.Or(c.Source, c.ID)
		if !slices.Contains(sources, src) {
			sources = append(sources, src)
		}
	}
	return sources
}

// =============================================================================
// AUDIT
// =============================================================================

type auditCommand struct {
	URL         string        `short:"u" long:"url" description:"Root sitemap to audit (default: the configured site's index)"`
	Timeout     time.Duration `long:"timeout" default:"30s" description:"Per-request timeout for the live tree"`
	Fingerprint bool          `long:"fingerprint" description:"Present a browser TLS fingerprint to the live site"`
}

func (c *auditCommand) Execute(args []string) error {
	ctx, stop := signalContext()
	defer stop()

	builder, closeProvider, err := openBuilder(ctx)
	if err != nil {
		return err
	}
	defer closeProvider()

	site := builder.Site()
	root := cmp.Or(c.URL, site.DocumentURL(site.DefaultLocale, sitemap.IndexName))

	printInfo("fetching %s", root)
	fetcher := audit.NewFetcher(&http.Client{
		Timeout:   c.Timeout,
		Transport: transport.New(transport.Options{Timeout: c.Timeout, Fingerprint: c.Fingerprint}),
	})
	live, err := fetcher.Fetch(ctx, root)
	if err != nil {
		return fmt.Errorf("fetching live tree: %w", err)
	}

	built, err := builtEntries(ctx, builder)
	if err != nil {
		return err
	}

	report, err := auditTree(live, built, site.BaseURL)
	if err != nil {
		return err
	}
	if !report.print(os.Stdout) {
		return fmt.Errorf("audit found problems")
	}
	printSuccess("live tree matches (%d documents)", len(live))
	return nil
}

// builtEntries builds every urlset of every locale and concatenates their entries.
func builtEntries(ctx context.Context, builder *sitemap.Builder) ([]sitemap.Entry, error) {
	var entries []sitemap.Entry
	for _, locale := range builder.Site().Locales {
		err := builder.Walk(ctx, locale, func(nd sitemap.NamedDocument) error {
			if doc, ok := nd.Doc.(*sitemap.Document); ok {
				entries = append(entries, doc.Entries...)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("building locale %s: %w", locale, err)
		}
	}
	return entries, nil
}

type auditReport struct {
	findings map[string][]audit.Finding
	urls     []string
	diff     *audit.Diff
}

func auditTree(live []audit.FetchedDocument, built []sitemap.Entry, origin string) (*auditReport, error) {
	report := &auditReport{findings: make(map[string][]audit.Finding)}
	var liveEntries []sitemap.Entry
	for _, fd := range live {
		findings, err := audit.Check(fd.Doc, origin)
		if err != nil {
			return nil, err
		}
		if len(findings) > 0 {
			report.urls = append(report.urls, fd.URL)
			report.findings[fd.URL] = findings
		}
		liveEntries = append(liveEntries, fd.Doc.Entries...)
	}
	report.diff = audit.DiffEntries(liveEntries, built)
	return report, nil
}

// print writes the report and reports whether it is clean.
func (r *auditReport) print(w io.Writer) bool {
	for _, u := range r.urls {
		fmt.Fprintf(w, "%s%s%s\n", colorYellow, u, colorReset)
		for _, f := range r.findings[u] {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
	for _, e := range r.diff.Added {
		fmt.Fprintf(w, "%s+ %s%s\n", colorGreen, e.Location, colorReset)
	}
	for _, e := range r.diff.Removed {
		fmt.Fprintf(w, "%s- %s%s\n", colorRed, e.Location, colorReset)
	}
	for _, ch := range r.diff.Changed {
		fmt.Fprintf(w, "%s~ %s%s %v\n", colorYellow, ch.Location, colorReset, ch.Fields)
	}
	return len(r.urls) == 0 && r.diff.IsEmpty()
}

// =============================================================================
// HELPERS
// =============================================================================

func openBuilder(ctx context.Context) (*sitemap.Builder, func() error, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	site, err := cfg.BuildSite()
	if err != nil {
		return nil, nil, err
	}

	logger := newLogger()
	p, closeProvider, err := provider.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening catalog: %w", err)
	}
	builder, err := sitemap.New(site, p, sitemap.WithLogger(logger))
	if err != nil {
		closeProvider()
		return nil, nil, err
	}
	return builder, closeProvider, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newLogger discards provider logs unless -v is set.
func newLogger() *slog.Logger {
	if !opts.Verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func printSuccess(format string, args ...any) {
	if !opts.Quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func printInfo(format string, args ...any) {
	if !opts.Quiet {
		fmt.Printf("%s→ %s%s\n", colorGray, fmt.Sprintf(format, args...), colorReset)
	}
}
