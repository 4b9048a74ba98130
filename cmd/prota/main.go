// Prota CLI - runs, disassembles and stores Prota object streams
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/chazu/prota/manifest"
	"github.com/chazu/prota/store"
	"github.com/chazu/prota/vm"
	"github.com/chazu/prota/vm/stream"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

type options struct {
	verbose   bool
	dis       bool
	profile   bool
	storePath string
	save      string
	fromStore string
	list      bool
	remove    string
	logFile   string
}

func main() {
	var opts options
	flag.BoolVar(&opts.verbose, "v", false, "Verbose output")
	flag.BoolVar(&opts.dis, "dis", false, "Disassemble the stream's function instead of running it")
	flag.BoolVar(&opts.profile, "profile", false, "Print instruction counts after running")
	flag.StringVar(&opts.storePath, "store", "", "Package store path (default from prota.toml)")
	flag.StringVar(&opts.save, "save", "", "Import the stream file into the store under this name")
	flag.StringVar(&opts.fromStore, "run", "", "Run the package stored under this name")
	flag.BoolVar(&opts.list, "list", false, "List stored packages")
	flag.StringVar(&opts.remove, "delete", "", "Delete the package stored under this name")
	flag.StringVar(&opts.logFile, "log", "", "Log file (default from prota.toml, else stderr)")
	verbosity := flag.Int("log-verbosity", -1, "Log verbosity, overriding prota.toml")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: prota [options] [file] [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Reads an object stream (native or legacy format). A function is called\n")
		fmt.Fprintf(os.Stderr, "with the remaining arguments and its result printed; any other value is\n")
		fmt.Fprintf(os.Stderr, "printed as is.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  prota fib.stream 20          # Run fib with argument 20\n")
		fmt.Fprintf(os.Stderr, "  prota -dis fib.stream        # Disassemble fib\n")
		fmt.Fprintf(os.Stderr, "  prota -save fib fib.stream   # Import into the package store\n")
		fmt.Fprintf(os.Stderr, "  prota -run fib 20            # Run the stored package\n")
		fmt.Fprintf(os.Stderr, "  prota -list                  # List stored packages\n")
	}
	flag.Parse()

	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if m == nil {
		m = manifest.Default()
	}
	configureLog(m, opts, *verbosity)

	if err := run(m, opts, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func configureLog(m *manifest.Manifest, opts options, verbosity int) {
	v := m.Log.Verbosity
	if opts.verbose {
		v = 3
	}
	if verbosity >= 0 {
		v = verbosity
	}
	path := m.LogPath()
	if opts.logFile != "" {
		path = opts.logFile
	}
	if path == "" {
		commonlog.Configure(v, nil)
	} else {
		commonlog.Configure(v, &path)
	}
}

func run(m *manifest.Manifest, opts options, args []string) error {
	storePath := m.StorePath()
	if opts.storePath != "" {
		storePath = opts.storePath
	}

	if opts.list || opts.remove != "" || opts.save != "" || opts.fromStore != "" {
		s, err := store.Open(storePath)
		if err != nil {
			return err
		}
		defer s.Close()

		switch {
		case opts.list:
			return listPackages(s)
		case opts.remove != "":
			return s.Delete(opts.remove)
		case opts.save != "":
			return savePackage(s, opts, args)
		}
		machine := vm.New(m.VMConfig())
		root, err := s.Load(machine.Heap, opts.fromStore)
		if err != nil {
			return err
		}
		return execute(os.Stdout, machine, root, opts, args)
	}

	if len(args) == 0 {
		flag.Usage()
		return errors.New("no stream file given")
	}
	machine := vm.New(m.VMConfig())
	root, err := stream.ReadFile(machine.Heap, args[0])
	if err != nil {
		return err
	}
	return execute(os.Stdout, machine, root, opts, args[1:])
}

func savePackage(s *store.Store, opts options, args []string) error {
	if len(args) != 1 {
		return errors.New("-save needs exactly one stream file")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	e, err := s.Put(opts.save, data)
	if err != nil {
		return err
	}
	if opts.verbose {
		fmt.Printf("Stored %s as %s (%s, %d bytes)\n", args[0], e.Name, e.Format, e.Size)
	}
	return nil
}

func listPackages(s *store.Store) error {
	entries, err := s.List()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tFORMAT\tSIZE\tSTORED\tCREATED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", e.Name, e.Format, e.Size, e.Stored, e.Created.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

// execute disassembles, calls or prints root, writing to out. With
// -profile the instruction counts are written even when the call fails.
func execute(out io.Writer, machine *vm.VM, root vm.Value, opts options, args []string) error {
	h := machine.Heap
	h.Pin(root)
	defer h.Unpin(root)

	if opts.dis {
		listing, err := machine.Disassemble(root)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, listing)
		return nil
	}

	if !h.IsFunction(root) {
		fmt.Fprintln(out, machine.Sprint(root))
		return nil
	}

	callArgs := make([]vm.Value, len(args))
	for i, a := range args {
		callArgs[i] = argValue(h, a)
	}
	result, err := machine.Call(root, callArgs...)
	if err == nil {
		fmt.Fprintln(out, machine.Sprint(result))
	}
	if opts.profile {
		counts := machine.InstructionCounts()
		fmt.Fprint(out, counts.String())
	}
	return err
}

// argValue converts a command line argument: integers become integers,
// anything else a string.
func argValue(h *vm.Heap, arg string) vm.Value {
	if n, err := strconv.ParseInt(arg, 10, 64); err == nil {
		if v, err := vm.CheckedInt(n); err == nil {
			return v
		}
	}
	return h.NewString(arg)
}
