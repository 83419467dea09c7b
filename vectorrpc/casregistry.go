package vectorrpc

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"xdao.co/dsv/storage"
	"xdao.co/dsv/storage/casregistry"
)

var (
	flagTarget      string
	flagDialTimeout time.Duration
	flagTimeout     time.Duration
	flagMaxMsgBytes int
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "grpc",
		Description: "Vectors gRPC client (talks to dsv-vectord)",
		Usage:       casregistry.UsageCLI,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagTarget, "grpc-target", "", "gRPC target host:port (for -backend=grpc)")
			fs.DurationVar(&flagDialTimeout, "grpc-dial-timeout", 5*time.Second, "Dial timeout (for -backend=grpc)")
			fs.DurationVar(&flagTimeout, "grpc-timeout", 0, "Per-RPC timeout (for -backend=grpc)")
			fs.IntVar(&flagMaxMsgBytes, "grpc-max-msg-bytes", 0, "Max gRPC message size in bytes (send+recv); 0 uses grpc defaults")
		},
		Open: func() (storage.CAS, func() error, error) {
			return open(flagTarget, flagDialTimeout, flagTimeout, flagMaxMsgBytes)
		},
		OpenConfig: openConfig,
	})
}

func openConfig(cfg map[string]string) (storage.CAS, func() error, error) {
	dialTimeout := 5 * time.Second
	var timeout time.Duration
	var maxMsg int
	var err error
	if v := cfg["grpc-dial-timeout"]; v != "" {
		if dialTimeout, err = time.ParseDuration(v); err != nil {
			return nil, nil, fmt.Errorf("vectorrpc: grpc-dial-timeout: %w", err)
		}
	}
	if v := cfg["grpc-timeout"]; v != "" {
		if timeout, err = time.ParseDuration(v); err != nil {
			return nil, nil, fmt.Errorf("vectorrpc: grpc-timeout: %w", err)
		}
	}
	if v := cfg["grpc-max-msg-bytes"]; v != "" {
		if maxMsg, err = strconv.Atoi(v); err != nil {
			return nil, nil, fmt.Errorf("vectorrpc: grpc-max-msg-bytes: %w", err)
		}
	}
	return open(cfg["grpc-target"], dialTimeout, timeout, maxMsg)
}

func open(target string, dialTimeout, timeout time.Duration, maxMsg int) (storage.CAS, func() error, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, nil, fmt.Errorf("missing -grpc-target")
	}
	client, err := Dial(target, DialOptions{Timeout: dialTimeout, MaxMsgBytes: maxMsg})
	if err != nil {
		return nil, nil, err
	}
	client.Timeout = timeout
	return client, client.Close, nil
}
