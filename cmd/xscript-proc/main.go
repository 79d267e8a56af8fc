// Command xscript-proc is an offline renderer: given a URL and a docroot,
// it runs the same block-invocation pipeline as xscriptd against a single
// script file and writes the result to stdout, without a listening socket
// (spec.md §6 CLI surface).
package main

import (
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sambeau/xscriptd/config"
	"github.com/sambeau/xscriptd/xscript"
)

type headerFlags []string

func (h *headerFlags) String() string { return strings.Join(*h, ",") }
func (h *headerFlags) Set(v string) error {
	*h = append(*h, v)
	return nil
}

// optionalFlag accepts both a bare "--flag" and a "--flag=value" form,
// matching spec.md §6's "--dont-apply-stylesheet[=all]" CLI surface.
type optionalFlag struct {
	set   bool
	value string
}

func (o *optionalFlag) String() string  { return o.value }
func (o *optionalFlag) IsBoolFlag() bool { return true }
func (o *optionalFlag) Set(v string) error {
	o.set = true
	o.value = v
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("xscript-proc", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var headers headerFlags
	flags.Var(&headers, "header", "Extra request header, NAME:VALUE (repeatable)")
	configPath := flags.String("config", "", "Path to config file")
	rootDir := flags.String("root-dir", ".", "Docroot to resolve the script path against")
	var dontApplyStylesheet optionalFlag
	flags.Var(&dontApplyStylesheet, "dont-apply-stylesheet", "Skip stylesheet application; optionally \"=all\"")
	dontUseRemoteCall := flags.Bool("dont-use-remote-call", false, "Skip outbound HTTP calls from http blocks")
	stylesheetOverride := flags.String("stylesheet", "", "Override the script's declared stylesheet path")
	profile := flags.String("profile", "", "Emit profiling output: \"text\" or \"xml\"")

	if err := flags.Parse(args); err != nil {
		return 2
	}
	rest := flags.Args()
	if len(rest) < 1 {
		fmt.Fprintln(stderr, "usage: xscript-proc [options] URL")
		return 2
	}
	rawURL := rest[0]

	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.Load(*configPath, os.Getenv)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		cfg = loaded
	} else {
		cfg = config.Defaults()
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		fmt.Fprintf(stderr, "error: invalid URL: %v\n", err)
		return 1
	}

	scriptPath := filepath.Join(*rootDir, filepath.Clean("/"+u.Path))
	if info, statErr := os.Stat(scriptPath); statErr == nil && info.IsDir() {
		scriptPath = filepath.Join(scriptPath, "index.xml")
	}

	registry := xscript.NewRegistry()
	registry.RegisterCoreBlocks(xscript.HttpPolicy{
		AllowFileScheme: cfg.HTTPBlock.AllowFileScheme,
		RealIPHeader:    cfg.HTTPBlock.RealIPHeader,
		AppendRealIP:    cfg.HTTPBlock.AppendRealIP,
	})
	registry.RegisterCoreValidators()
	cache := xscript.NewDocCache(cfg.Cache.LocalMaxEntries, cfg.Cache.PrefetchRatio, nil)

	script, err := xscript.LoadScript(scriptPath, registry, cache)
	if err != nil {
		fmt.Fprintf(stderr, "error loading script: %v\n", err)
		return 1
	}
	if *stylesheetOverride != "" {
		script.XSLT = &xscript.Stylesheet{Path: *stylesheetOverride}
	}

	env := map[string]string{
		"REQUEST_METHOD": "GET",
		"SCRIPT_NAME":    "",
		"PATH_INFO":      u.Path,
		"QUERY_STRING":   u.RawQuery,
		"REMOTE_ADDR":    "127.0.0.1",
		"SERVER_NAME":    u.Hostname(),
	}
	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			continue
		}
		key := "HTTP_" + strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
		env[key] = strings.TrimSpace(value)
	}

	req, err := xscript.ParseRequest(env, xscript.ParserOptions{})
	if err != nil {
		fmt.Fprintf(stderr, "error parsing request: %v\n", err)
		return 1
	}

	budget := time.Duration(cfg.RequestBudgetMs) * time.Millisecond
	ctx := xscript.NewContext(script, req, budget)
	if *dontUseRemoteCall {
		ctx.SetParam("dont-use-remote-call", true)
	}
	if dontApplyStylesheet.set {
		ctx.SetParam("dont-apply-stylesheet", true)
	}

	start := time.Now()
	doc, err := script.Invoke(ctx)
	elapsed := time.Since(start)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	stdout.Write(doc.Serialize())
	io.WriteString(stdout, "\n")

	if *profile != "" {
		writeProfile(stderr, *profile, elapsed, ctx)
	}
	return 0
}

func writeProfile(w io.Writer, format string, elapsed time.Duration, ctx *xscript.Context) {
	counters := ctx.Script.CacheCounters()
	if format == "xml" {
		fmt.Fprintf(w, "<profile elapsed-ms=%q cache-hits=%q cache-misses=%q/>\n",
			strconv.FormatInt(elapsed.Milliseconds(), 10),
			strconv.FormatInt(counters.Hits, 10),
			strconv.FormatInt(counters.Misses, 10))
		return
	}
	fmt.Fprintf(w, "elapsed: %s\ncache hits: %d\ncache misses: %d\n", elapsed, counters.Hits, counters.Misses)
}
