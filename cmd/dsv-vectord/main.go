// Command dsv-vectord serves state vector envelopes over gRPC from a
// configured CAS backend and optionally patrols the stored vectors for
// corruption.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"xdao.co/dsv/storage"
	"xdao.co/dsv/storage/casconfig"
	"xdao.co/dsv/storage/casregistry"
	"xdao.co/dsv/vectorrpc"
	"xdao.co/dsv/vectorstore"

	_ "xdao.co/dsv/storage/localfs"
	_ "xdao.co/dsv/storage/memory"
)

type options struct {
	listen         string
	backend        string
	backendSet     bool
	config         string
	listBackends   bool
	patrolInterval time.Duration
	maxOriginal    uint64
	logLevel       string
	logFormat      string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("dsv-vectord", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.listen, "listen", "127.0.0.1:7777", "listen address")
	fs.StringVar(&o.backend, "backend", "localfs", "CAS backend name (with -config: preferred backend id)")
	fs.StringVar(&o.config, "config", "", "JSON backend config file (overrides backend flags)")
	fs.BoolVar(&o.listBackends, "list-backends", false, "List supported backends and exit")
	fs.DurationVar(&o.patrolInterval, "patrol-interval", 0, "Integrity patrol interval; 0 disables")
	fs.Uint64Var(&o.maxOriginal, "max-original-size", vectorrpc.DefaultMaxOriginalSize, "Largest original size, in bytes, a stored vector may claim")
	fs.StringVar(&o.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&o.logFormat, "log-format", "text", "Log format (text or json)")

	casregistry.RegisterFlags(fs, casregistry.UsageDaemon)

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "backend" {
			o.backendSet = true
		}
	})
	if o.patrolInterval < 0 {
		return o, fmt.Errorf("-patrol-interval must not be negative")
	}
	return o, nil
}

func newLogger(o options, out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(o.logLevel)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	switch o.logFormat {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown -log-format %q", o.logFormat)
	}
	return logger, nil
}

func openBackend(o options) (storage.CAS, func() error, error) {
	if o.config == "" {
		return casregistry.Open(o.backend, casregistry.UsageDaemon)
	}
	cfg, err := casconfig.LoadFile(o.config)
	if err != nil {
		return nil, nil, err
	}
	preferred := ""
	if o.backendSet {
		preferred = o.backend
	}
	return cfg.Open(casregistry.UsageDaemon, preferred)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if o.listBackends {
		for _, b := range casregistry.List(casregistry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(stdout, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(stdout, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	logger, err := newLogger(o, stderr)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 2
	}

	cas, closeFn, err := openBackend(o)
	if err != nil {
		logger.WithError(err).Error("open backend")
		return 2
	}
	if closeFn != nil {
		defer func() {
			if err := closeFn(); err != nil {
				logger.WithError(err).Warn("close backend")
			}
		}()
	}

	lis, err := net.Listen("tcp", o.listen)
	if err != nil {
		logger.WithError(err).Error("listen")
		return 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := grpc.NewServer()
	vectorrpc.RegisterVectorsServer(s, &vectorrpc.Server{CAS: cas, MaxOriginalSize: o.maxOriginal, Logger: logger})

	store := vectorstore.New(cas, vectorstore.WithLogger(logger))
	patrolDone := make(chan struct{})
	go func() {
		defer close(patrolDone)
		patrol(ctx, store, o.patrolInterval, logger)
	}()

	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	logger.WithFields(logrus.Fields{
		"addr":    lis.Addr().String(),
		"backend": o.backend,
		"config":  o.config,
	}).Info("dsv-vectord listening")
	err = s.Serve(lis)
	cancel()
	<-patrolDone
	if err != nil {
		logger.WithError(err).Error("serve")
		return 1
	}
	logger.Info("dsv-vectord stopped")
	return 0
}

// patrol runs store.Patrol every interval until ctx is done. It returns
// immediately when interval is zero or the backend cannot list its contents.
func patrol(ctx context.Context, store *vectorstore.Store, interval time.Duration, logger logrus.FieldLogger) {
	if interval <= 0 {
		return
	}
	if _, ok := store.CAS().(storage.Lister); !ok {
		logger.Warn("backend cannot list objects; integrity patrol disabled")
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := store.Patrol(ctx); err != nil && ctx.Err() == nil {
				logger.WithError(err).Error("integrity patrol failed")
			}
		}
	}
}
