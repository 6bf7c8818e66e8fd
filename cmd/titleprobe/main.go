package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/use-agent/rankscope/engine"
	"github.com/use-agent/rankscope/eventlog"
	"github.com/use-agent/rankscope/locale"
	"github.com/use-agent/rankscope/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct{}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{}
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	BaseOrigin     string        `env:"BASE_ORIGIN" help:"Origin serving /proxy-fetch and /render-title (e.g. http://localhost:8080)"`
	ReaderBase     string        `env:"RANKSCOPE_READER_BASE" default:"https://r.jina.ai" help:"Reader service base URL"`
	ReaderAttempts int           `default:"3" help:"Reader attempts before giving up"`
	CategoryAPI    string        `env:"RANKSCOPE_CATEGORY_API" default:"https://api.mercadolibre.com" help:"Category lookup API base URL"`
	AcceptLanguage string        `short:"l" help:"Accept-Language override (default: derived from the URL host)"`
	SkipDirect     bool          `help:"Do not fetch the target directly; only use the base origin and the reader"`
	NoReader       bool          `help:"Skip the reader service"`
	Markdown       bool          `help:"Print the reader service's markdown rendition instead of running the pipeline"`
	Timeout        time.Duration `short:"t" default:"2m" help:"Overall probe deadline"`
	URL            string        `arg:"" required:"" help:"Best-seller or category page URL"`
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("titleprobe"),
		kong.Description("Print each stage of the title pipeline for one URL"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no arguments provided")
	}
	if len(args) == 1 && (args[0] == "--help" || args[0] == "-h" || args[0] == "help") {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	if _, err := parser.Parse(args); err != nil {
		return err
	}

	if cli.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cli.Timeout)
		defer cancel()
	}

	sink := &stageSink{w: stdout}
	if cli.Markdown {
		return printMarkdown(ctx, cli, sink, stdout)
	}

	o := newOrchestrator(cli, sink)
	fmt.Fprintf(stdout, "[Probe] URL: %s\n", cli.URL)
	_, err = o.Run(ctx, cli.URL, cli.AcceptLanguage)
	return err
}

func newOrchestrator(cli *CLI, sink eventlog.Sink) *pipeline.Orchestrator {
	origin := strings.TrimRight(cli.BaseOrigin, "/")

	var primary []engine.Engine
	if !cli.SkipDirect {
		primary = append(primary, engine.NewHTTPEngine())
	}
	opts := []pipeline.Option{pipeline.WithSink(sink)}
	if origin != "" {
		primary = append(primary, engine.NewProxyEngine(origin, nil))
		opts = append(opts, pipeline.WithRenderer(engine.NewRemoteRenderer(origin, nil)))
	}
	opts = append(opts, pipeline.WithPrimary(primary...))
	if !cli.NoReader && cli.ReaderBase != "" {
		opts = append(opts, pipeline.WithReader(engine.NewReaderEngine(cli.ReaderBase, cli.ReaderAttempts, engine.WithReaderSink(sink))))
	}
	if cli.CategoryAPI != "" {
		opts = append(opts, pipeline.WithCategory(engine.NewCategoryClient(cli.CategoryAPI, nil)))
	}
	return pipeline.New(opts...)
}

func printMarkdown(ctx context.Context, cli *CLI, sink eventlog.Sink, stdout io.Writer) error {
	al := cli.AcceptLanguage
	if al == "" {
		al = locale.AcceptLanguage(cli.URL)
	}
	r := engine.NewReaderEngine(cli.ReaderBase, cli.ReaderAttempts, engine.WithReaderSink(sink))
	res, err := r.FetchMarkdown(ctx, &engine.FetchRequest{URL: cli.URL, AcceptLanguage: al})
	if err != nil {
		return fmt.Errorf("reader markdown: %w", err)
	}
	fmt.Fprintln(stdout, res.Body)
	return nil
}

// stageSink prints pipeline events as one line per stage.
type stageSink struct {
	w io.Writer
}

func (s *stageSink) Record(event string, fields map[string]any) {
	switch event {
	case "pipeline:acquired":
		fmt.Fprintf(s.w, "[%s] ok. len=%v. tags=%v\n", fields["engine"], fields["len"], fields["tags"])
	case "pipeline:empty":
		fmt.Fprintf(s.w, "[%s] failed or empty (%vms).\n", fields["engine"], fields["elapsed_ms"])
	case "pipeline:rule":
		fmt.Fprintf(s.w, "[Rule] %s matched on %s\n", fields["rule"], fields["stage"])
	case "pipeline:hold":
		fmt.Fprintf(s.w, "[Hold] %s: %q\n", fields["method"], fields["title"])
	case "pipeline:category":
		fmt.Fprintf(s.w, "[Category] %s -> %q\n", fields["code"], fields["name"])
	case "pipeline:category-error", "pipeline:render-error", "pipeline:abort":
		fmt.Fprintf(s.w, "[%s] %v\n", strings.TrimPrefix(event, "pipeline:"), fields["error"])
	case "pipeline:result":
		fmt.Fprintf(s.w, "[Result] method=%s, title=%q\n", fields["method"], fields["title"])
	case "reader:rate-limit", "reader:retry", "reader:network-retry":
		fmt.Fprintf(s.w, "[reader] %s after attempt %v, waiting %vms\n", strings.TrimPrefix(event, "reader:"), fields["attempt"], fields["backoff_ms"])
	case "reader:error":
		fmt.Fprintf(s.w, "[reader] gave up: %v\n", fields["error"])
	}
}
