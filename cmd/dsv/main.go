// Command dsv turns files into state vectors and back, either through a
// registered CAS backend or as standalone envelope files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"
	"github.com/sirupsen/logrus"

	"xdao.co/dsv/envelope"
	"xdao.co/dsv/metadata"
	"xdao.co/dsv/statevector"
	"xdao.co/dsv/storage"
	"xdao.co/dsv/storage/casregistry"
	"xdao.co/dsv/vectorstore"

	_ "xdao.co/dsv/storage/localfs"
	_ "xdao.co/dsv/storage/memory"
	_ "xdao.co/dsv/vectorrpc"
)

// Exit codes.
const (
	exitOK        = 0
	exitErr       = 1
	exitUsage     = 2
	exitCorrupted = 3
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return exitUsage
	}

	switch args[0] {
	case "put":
		return cmdPut(args[1:], out, errOut)
	case "get":
		return cmdGet(args[1:], out, errOut)
	case "inspect":
		return cmdInspect(args[1:], out, errOut)
	case "verify":
		return cmdVerify(args[1:], out, errOut)
	case "patrol":
		return cmdPatrol(args[1:], out, errOut)
	case "pack":
		return cmdPack(args[1:], out, errOut)
	case "unpack":
		return cmdUnpack(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return exitOK
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return exitUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "dsv: data-state vector tool")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  dsv put     [common flags] [-data-type <label>] <file>")
	fmt.Fprintln(w, "  dsv get     [common flags] -cid <cid> [-out <file>]")
	fmt.Fprintln(w, "  dsv inspect [common flags] -cid <cid>")
	fmt.Fprintln(w, "  dsv verify  [common flags] -cid <cid> <file>")
	fmt.Fprintln(w, "  dsv patrol  [common flags] [-concurrency <n>]")
	fmt.Fprintln(w, "  dsv pack    [-data-type <label>] -out <envelope> <file>")
	fmt.Fprintln(w, "  dsv unpack  [-out <file>] <envelope>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Common flags:")
	fmt.Fprintln(w, "  -backend localfs -localfs-dir <dir>")
	fmt.Fprintln(w, "  -backend grpc -grpc-target <host:port>")
	fmt.Fprintln(w, "  -list-backends")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Exit status is 3 when a stored vector fails decompression or verification.")
}

type commonFlags struct {
	backend      string
	listBackends bool
	verbose      bool
}

func (c *commonFlags) add(fs *flag.FlagSet) {
	fs.StringVar(&c.backend, "backend", "localfs", "CAS backend name")
	fs.BoolVar(&c.listBackends, "list-backends", false, "List supported backends and exit")
	fs.BoolVar(&c.verbose, "v", false, "Log patrol findings to stderr")
	casregistry.RegisterFlags(fs, casregistry.UsageCLI)
}

func (c *commonFlags) openStore(errOut io.Writer, opts ...vectorstore.Option) (*vectorstore.Store, func() error, error) {
	cas, closeFn, err := casregistry.Open(c.backend, casregistry.UsageCLI)
	if err != nil {
		return nil, nil, err
	}
	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	if c.verbose {
		logger := logrus.New()
		logger.SetOutput(errOut)
		opts = append(opts, vectorstore.WithLogger(logger))
	}
	return vectorstore.New(cas, opts...), closeFn, nil
}

func printBackends(w io.Writer) {
	for _, b := range casregistry.List(casregistry.UsageCLI) {
		if b.Description == "" {
			_, _ = fmt.Fprintf(w, "%s\n", b.Name)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", b.Name, b.Description)
	}
}

func vectorizeOptions(dataType string) []statevector.Option {
	if dataType == "" {
		return nil
	}
	return []statevector.Option{statevector.WithClassifier(func([]byte) string { return dataType })}
}

// failure prints err and picks the exit code for it.
func failure(errOut io.Writer, err error) int {
	fmt.Fprintln(errOut, err)
	if vectorstore.IsCorruption(err) {
		return exitCorrupted
	}
	return exitErr
}

func parseCID(errOut io.Writer, s string) (cid.Cid, bool) {
	if s == "" {
		fmt.Fprintln(errOut, "missing -cid")
		return cid.Undef, false
	}
	id, err := cid.Decode(s)
	if err != nil {
		fmt.Fprintln(errOut, storage.ErrInvalidCID)
		return cid.Undef, false
	}
	return id, true
}

func writeOutput(out io.Writer, path string, b []byte) error {
	if path == "" {
		_, err := out.Write(b)
		return err
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func cmdPut(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("put", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	var dataType string
	fs.StringVar(&dataType, "data-type", "", "Data type label (default "+metadata.DefaultDataType+")")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if common.listBackends {
		printBackends(out)
		return exitOK
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: dsv put [common flags] [-data-type <label>] <file>")
		return exitUsage
	}

	p := fs.Arg(0)
	b, err := os.ReadFile(p)
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(p), err)
		return exitErr
	}

	store, closeFn, err := common.openStore(errOut, vectorstore.WithVectorizeOptions(vectorizeOptions(dataType)...))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return exitErr
	}
	defer closeFn()

	id, err := store.Write(b)
	if err != nil {
		return failure(errOut, err)
	}
	_, _ = fmt.Fprintln(out, id.String())
	return exitOK
}

func cmdGet(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	var cidStr, outPath string
	fs.StringVar(&cidStr, "cid", "", "CID of the stored vector")
	fs.StringVar(&outPath, "out", "", "Output file (optional; default stdout)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if common.listBackends {
		printBackends(out)
		return exitOK
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(errOut, "usage: dsv get [common flags] -cid <cid> [-out <file>]")
		return exitUsage
	}
	id, ok := parseCID(errOut, cidStr)
	if !ok {
		return exitUsage
	}

	store, closeFn, err := common.openStore(errOut)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return exitErr
	}
	defer closeFn()

	b, err := store.Read(id)
	if err != nil {
		return failure(errOut, err)
	}
	if err := writeOutput(out, outPath, b); err != nil {
		fmt.Fprintln(errOut, err)
		return exitErr
	}
	return exitOK
}

func cmdInspect(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	var cidStr string
	fs.StringVar(&cidStr, "cid", "", "CID of the stored vector")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if common.listBackends {
		printBackends(out)
		return exitOK
	}
	id, ok := parseCID(errOut, cidStr)
	if !ok {
		return exitUsage
	}

	store, closeFn, err := common.openStore(errOut)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return exitErr
	}
	defer closeFn()

	v, err := store.Get(id)
	if err != nil {
		return failure(errOut, err)
	}
	md := v.Metadata()
	_, _ = fmt.Fprintf(out, "cid\t%s\n", id)
	_, _ = fmt.Fprintf(out, "fingerprint\t%s\n", v.Fingerprint())
	_, _ = fmt.Fprintf(out, "original_size\t%d\n", md.OriginalSize)
	_, _ = fmt.Fprintf(out, "payload_size\t%d\n", v.PayloadSize())
	_, _ = fmt.Fprintf(out, "data_type\t%s\n", md.DataType)
	return exitOK
}

func cmdVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	var cidStr string
	fs.StringVar(&cidStr, "cid", "", "CID of the stored vector")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if common.listBackends {
		printBackends(out)
		return exitOK
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: dsv verify [common flags] -cid <cid> <file>")
		return exitUsage
	}
	id, ok := parseCID(errOut, cidStr)
	if !ok {
		return exitUsage
	}
	candidate, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(fs.Arg(0)), err)
		return exitErr
	}

	store, closeFn, err := common.openStore(errOut)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return exitErr
	}
	defer closeFn()

	v, err := store.Get(id)
	if err != nil {
		return failure(errOut, err)
	}
	if !statevector.Verify(v, candidate) {
		_, _ = fmt.Fprintln(out, "mismatch")
		return exitCorrupted
	}
	_, _ = fmt.Fprintln(out, "ok")
	return exitOK
}

func cmdPatrol(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("patrol", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	var concurrency int
	fs.IntVar(&concurrency, "concurrency", 4, "Vectors checked in parallel")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if common.listBackends {
		printBackends(out)
		return exitOK
	}

	store, closeFn, err := common.openStore(errOut, vectorstore.WithConcurrency(concurrency))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return exitErr
	}
	defer closeFn()

	report, err := store.Patrol(context.Background())
	if err != nil {
		fmt.Fprintln(errOut, err)
		if errors.Is(err, storage.ErrNotListable) {
			return exitUsage
		}
		return exitErr
	}
	for _, f := range report.Findings {
		_, _ = fmt.Fprintf(out, "%s\t%s\t%v\n", f.ID, f.Status, f.Err)
	}
	_, _ = fmt.Fprintf(errOut, "checked %d, corrupted %d\n", report.Checked, len(report.Findings))
	if !report.OK() {
		return exitCorrupted
	}
	return exitOK
}

func cmdPack(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("pack", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var outPath, dataType string
	fs.StringVar(&outPath, "out", "", "Envelope output file (optional; default stdout)")
	fs.StringVar(&dataType, "data-type", "", "Data type label (default "+metadata.DefaultDataType+")")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: dsv pack [-data-type <label>] [-out <envelope>] <file>")
		return exitUsage
	}
	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(fs.Arg(0)), err)
		return exitErr
	}
	v, err := statevector.Vectorize(b, vectorizeOptions(dataType)...)
	if err != nil {
		return failure(errOut, err)
	}
	enc, err := envelope.Marshal(v)
	if err != nil {
		return failure(errOut, err)
	}
	if err := writeOutput(out, outPath, enc); err != nil {
		fmt.Fprintln(errOut, err)
		return exitErr
	}
	return exitOK
}

func cmdUnpack(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("unpack", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var outPath string
	fs.StringVar(&outPath, "out", "", "Output file (optional; default stdout)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: dsv unpack [-out <file>] <envelope>")
		return exitUsage
	}
	enc, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(fs.Arg(0)), err)
		return exitErr
	}
	v, err := envelope.Unmarshal(enc)
	if err != nil {
		return failure(errOut, err)
	}
	b, err := statevector.ReconstituteBounded(v)
	if err != nil {
		return failure(errOut, err)
	}
	if err := writeOutput(out, outPath, b); err != nil {
		fmt.Fprintln(errOut, err)
		return exitErr
	}
	return exitOK
}
