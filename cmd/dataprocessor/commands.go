package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360/dataprocessor/dataprocessor"
	"github.com/c360/dataprocessor/health"
	"github.com/c360/dataprocessor/processor"
	"github.com/c360/dataprocessor/request"
	"github.com/c360/dataprocessor/resultcache"
)

type fetchFlags struct {
	format    string
	cacheFile string
	rewrite   bool
	message   string
	output    string
}

func (f *fetchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.format, "format", "f", "raw", "Processor: raw, string, json, yaml")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Write the result to this file instead of stdout")
	cmd.Flags().StringVar(&f.message, "message", "", "Message sent after a WebSocket handshake")
}

func (f *fetchFlags) requestOptions() []request.Option {
	switch {
	case f.cacheFile == "":
		return nil
	case f.rewrite:
		return []request.Option{request.WithRewriteCacheFile(f.cacheFile)}
	default:
		return []request.Option{request.WithCacheFile(f.cacheFile)}
	}
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func newFetchCmd(global *globalFlags) *cobra.Command {
	flags := &fetchFlags{}
	cmd := &cobra.Command{
		Use:   "fetch <source>",
		Short: "Fetch one resource and print the decoded result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(global)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()
			return a.run(ctx, func(ctx context.Context) error {
				return a.fetch(ctx, args[0], flags, cmd.OutOrStdout())
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&flags.cacheFile, "cache-file", "", "Save the body to this file and reuse it on later runs")
	cmd.Flags().BoolVar(&flags.rewrite, "rewrite", false, "Replace an existing cache file")
	return cmd
}

func (a *app) fetch(ctx context.Context, raw string, flags *fetchFlags, stdout io.Writer) error {
	desc, err := a.formats.Lookup(flags.format)
	if err != nil {
		return err
	}
	src, err := parseSource(raw, a.cfg)
	if err != nil {
		return err
	}
	req, err := a.request(ctx, src, []byte(flags.message), flags.requestOptions()...)
	if err != nil {
		return err
	}

	result, err := dataprocessor.Execute(ctx, a.dp, req, desc)
	if err != nil {
		return err
	}
	if !request.IsSuccess(req.StatusCode()) {
		return fmt.Errorf("fetch %s: status %d %s", raw, req.StatusCode(), req.StatusMessage())
	}

	out := stdout
	if flags.output != "" {
		file, err := os.Create(flags.output)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}
	return render(out, result, flags.format)
}

// batchResult is one line of batch output.
type batchResult struct {
	Source  string `json:"source"`
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
	Bytes   int    `json:"bytes"`
}

func newBatchCmd(global *globalFlags) *cobra.Command {
	var format string
	var force bool
	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Fetch every source listed in a file concurrently",
		Long: `batch reads one source per line ("-" reads stdin) and fetches them through
the worker pool and result cache. Repeated lines are fetched once and the
stored result is redelivered. One JSON line per source is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := readLines(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			a, err := newApp(global)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()
			return a.run(ctx, func(ctx context.Context) error {
				return a.batch(ctx, lines, format, force, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "raw", "Processor: raw, string, json, yaml")
	cmd.Flags().BoolVar(&force, "force", false, "Fetch repeated sources again instead of reusing the result")
	return cmd
}

func readLines(path string, stdin io.Reader) ([]string, error) {
	r := stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		r = file
	}

	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

func (a *app) batch(ctx context.Context, lines []string, format string, force bool, stdout io.Writer) error {
	desc, err := a.formats.Lookup(format)
	if err != nil {
		return err
	}

	results := make([]batchResult, len(lines))
	keys := make(map[string]int)
	var first, repeats []int
	for i, raw := range lines {
		results[i] = batchResult{Source: raw, Status: request.StatusError}
		if _, seen := keys[raw]; seen {
			repeats = append(repeats, i)
			continue
		}
		keys[raw] = len(keys) + 1
		first = append(first, i)
	}

	// Repeats go in a second round so they reuse, or with force replace, a
	// finished unit instead of taking over the callback of a running one.
	submit := func(indexes []int, force bool) {
		var wg sync.WaitGroup
		for _, i := range indexes {
			raw := lines[i]
			err := a.submitCached(ctx, &wg, keys[raw], raw, desc, force, &results[i])
			if err != nil {
				results[i].Message = err.Error()
				a.logger.Warn("source skipped", "source", raw, "error", err)
			}
		}
		wg.Wait()
	}
	submit(first, false)
	submit(repeats, force)
	if c := a.dp.Cache(); c != nil && c.Stats() != nil {
		a.logger.Debug("result cache", "stats", c.Stats().Summary())
	}

	failed := 0
	enc := json.NewEncoder(stdout)
	for _, r := range results {
		if !request.IsSuccess(r.Status) {
			failed++
		}
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed", failed, len(results))
	}
	return nil
}

func (a *app) submitCached(ctx context.Context, wg *sync.WaitGroup, key int, raw string, desc processor.Descriptor[any], force bool, out *batchResult) error {
	src, err := parseSource(raw, a.cfg)
	if err != nil {
		return err
	}
	req, err := a.request(ctx, src, nil)
	if err != nil {
		return err
	}

	wg.Add(1)
	record := func(result any, status int, message string) {
		defer wg.Done()
		out.Status = status
		out.Message = message
		out.Bytes = resultSize(result)
	}

	if a.dp.Cache() == nil {
		_, err = dataprocessor.ExecuteAsync(ctx, a.dp, req, desc, record)
	} else {
		var resolution resultcache.Resolution
		_, resolution, err = dataprocessor.ExecuteCachedAsync(ctx, a.dp, key, req, desc, record, force)
		a.logger.Debug("source submitted", "source", raw, "key", key, "resolution", resolution)
	}
	if err != nil {
		wg.Done()
		return err
	}
	return nil
}

func resultSize(result any) int {
	switch v := result.(type) {
	case nil:
		return 0
	case []byte:
		return len(v)
	case fmt.Stringer:
		return len(v.String())
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return 0
		}
		return len(data)
	}
}

func newCheckCmd(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report pipeline health and test server reachability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(global)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()
			return a.run(ctx, func(ctx context.Context) error {
				return a.check(ctx, cmd.OutOrStdout())
			})
		},
	}
}

func (a *app) check(ctx context.Context, stdout io.Writer) error {
	status := a.dp.Health(ctx)
	if a.cfg.NATS.URL != "" {
		client, err := a.natsClient(ctx)
		if err != nil {
			a.logger.Warn("NATS unavailable", "error", err)
		} else {
			subs := append(status.SubStatuses, health.FromNATS("nats", client.GetStatus()))
			status = health.Aggregate(status.Component, subs)
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(status); err != nil {
		return err
	}
	if status.IsUnhealthy() {
		return fmt.Errorf("pipeline unhealthy: %s", status.Message)
	}
	return nil
}

func newPutCmd(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "put <bucket> <name> <file>",
		Short: "Upload a file to a NATS object store bucket",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[2])
			if err != nil {
				return err
			}
			a, err := newApp(global)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()
			return a.run(ctx, func(ctx context.Context) error {
				client, err := a.natsClient(ctx)
				if err != nil {
					return err
				}
				if err := client.PutObject(ctx, args[0], args[1], data); err != nil {
					return err
				}
				a.logger.Info("object stored", "bucket", args[0], "name", args[1], "bytes", len(data))
				return nil
			})
		},
	}
}
