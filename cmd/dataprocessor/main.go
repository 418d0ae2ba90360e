// Package main implements the dataprocessor command: it fetches resources
// over HTTP, WebSocket, NATS object stores, S3, Redis or the local disk and
// decodes them with a named processor.
package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
)

// Build information
const (
	Version = "0.1.0"
	appName = "dataprocessor"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPaths     []string
	logLevel        string
	logFormat       string
	metricsAddr     string
	shutdownTimeout time.Duration
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   appName,
		Short: "Fetch and decode resources through the data processor pipeline",
		Long: `dataprocessor fetches a resource, decodes it with a named processor and
prints the result.

Sources:
  https://host/path          HTTP GET
  ws://host/path             first WebSocket message
  nats://bucket/object       NATS JetStream object store
  s3://bucket/key            S3 object
  redis://key                Redis string value
  file:///path or /path      local file

Examples:
  dataprocessor fetch https://api.example.com/items --format json
  dataprocessor fetch s3://reports/daily.yaml --format yaml --cache-file /tmp/daily.yaml
  dataprocessor batch sources.txt --format raw
  dataprocessor check`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringArrayVarP(&flags.configPaths, "config", "c", envList("DATAPROCESSOR_CONFIG"),
		"Configuration file (JSON or YAML); repeat to layer (env: DATAPROCESSOR_CONFIG)")
	pf.StringVar(&flags.logLevel, "log-level", getEnv("DATAPROCESSOR_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: DATAPROCESSOR_LOG_LEVEL)")
	pf.StringVar(&flags.logFormat, "log-format", getEnv("DATAPROCESSOR_LOG_FORMAT", "text"),
		"Log format: json, text (env: DATAPROCESSOR_LOG_FORMAT)")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "",
		"Serve Prometheus metrics on this address while the command runs")
	pf.DurationVar(&flags.shutdownTimeout, "shutdown-timeout", 10*time.Second,
		"How long to wait for in-flight requests on exit")

	root.AddCommand(
		newFetchCmd(flags),
		newBatchCmd(flags),
		newCheckCmd(flags),
		newPutCmd(flags),
	)
	return root
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envList(key string) []string {
	if v := getEnv(key, ""); v != "" {
		return []string{v}
	}
	return nil
}
