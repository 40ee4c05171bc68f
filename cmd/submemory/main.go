package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-submemory/host"
	"github.com/wippyai/wasm-submemory/submemory"
)

type options struct {
	input       string
	output      string
	policy      string
	size        uint64
	reset       bool
	boundedGrow bool
	inspect     bool
}

func main() {
	var (
		opts        options
		verbose     = flag.Bool("v", false, "Verbose logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.StringVar(&opts.output, "o", "", "Output path (default <input>.submemory.wasm)")
	flag.Uint64Var(&opts.size, "size", submemory.DefaultSubmemorySize, "Submemory size in bytes (power of two)")
	flag.StringVar(&opts.policy, "policy", submemory.PolicySelect.String(), "Addressing policy: select, select-index, external-base")
	flag.BoolVar(&opts.reset, "reset", false, "Export reset_submemory")
	flag.BoolVar(&opts.boundedGrow, "bounded-grow", false, "Fail memory.grow past the submemory size")
	flag.BoolVar(&opts.inspect, "inspect", false, "Print the layout of a rewritten module and exit")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: submemory [flags] <input.wasm>")
		fmt.Fprintln(os.Stderr, "       submemory -inspect <rewritten.wasm>")
		fmt.Fprintln(os.Stderr, "       submemory -i <input.wasm>  (interactive mode)")
		flag.PrintDefaults()
		os.Exit(1)
	}
	opts.input = flag.Arg(0)

	if *verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer log.Sync()
		submemory.SetLogger(log.Named("submemory"))
		host.SetLogger(log.Named("host"))
	}

	var err error
	switch {
	case *interactive:
		err = runInteractive(opts)
	case opts.inspect:
		err = inspect(os.Stdout, opts.input)
	default:
		err = run(os.Stdout, opts)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (o options) config() (submemory.Config, error) {
	policy, err := submemory.ParsePolicy(o.policy)
	if err != nil {
		return submemory.Config{}, err
	}
	return submemory.Config{
		SubmemorySize: o.size,
		Policy:        policy,
		ResetExport:   o.reset,
		BoundedGrow:   o.boundedGrow,
	}, nil
}

func (o options) outputPath() string {
	if o.output != "" {
		return o.output
	}
	return strings.TrimSuffix(o.input, ".wasm") + ".submemory.wasm"
}

// load returns the input as a rewritten module, rewriting it first when it
// carries no layout record.
func load(o options) ([]byte, error) {
	data, err := os.ReadFile(o.input)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if submemory.IsRewritten(data) {
		return data, nil
	}
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	out, err := submemory.Transform(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("transform %s: %w", o.input, err)
	}
	return out, nil
}

func run(w io.Writer, o options) error {
	data, err := os.ReadFile(o.input)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	cfg, err := o.config()
	if err != nil {
		return err
	}

	out, err := submemory.Transform(data, cfg)
	if err != nil {
		return fmt.Errorf("transform %s: %w", o.input, err)
	}

	path := o.outputPath()
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	fmt.Fprintf(w, "Input:  %s (%d bytes)\n", o.input, len(data))
	fmt.Fprintf(w, "Output: %s (%d bytes)\n", path, len(out))
	layout, err := submemory.ReadLayout(out)
	if err != nil {
		return err
	}
	printLayout(w, layout)
	fmt.Fprintf(w, "Exports added:   %s\n", strings.Join(layout.Policy.Exports(cfg.ResetExport), ", "))
	return nil
}

func inspect(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	layout, err := submemory.ReadLayout(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Module: %s\n", path)
	printLayout(w, layout)

	funcs, err := exportedFuncs(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nExported functions:\n")
	for _, f := range funcs {
		fmt.Fprintf(w, "  %s\n", f)
	}
	return nil
}

func printLayout(w io.Writer, l submemory.Layout) {
	fmt.Fprintf(w, "Policy:          %s\n", l.Policy)
	fmt.Fprintf(w, "Submemory size:  %d bytes (%d pages)\n", l.SubmemorySize, l.SubmemoryPages())
	fmt.Fprintf(w, "Initial image:   %#x..%#x (%d pages)\n", l.ImageBase(), l.FirstBase(), l.InitialPages)
	fmt.Fprintf(w, "First submemory: %#x\n", l.FirstBase())
}
