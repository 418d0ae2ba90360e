package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360/dataprocessor/config"
	"github.com/c360/dataprocessor/pkg/tlsutil"
	"github.com/c360/dataprocessor/request"
)

// Source kinds accepted on the command line.
const (
	kindHTTP      = "http"
	kindWebSocket = "websocket"
	kindObject    = "object"
	kindS3        = "s3"
	kindRedis     = "redis"
	kindFile      = "file"
)

// source is a parsed command-line resource reference.
type source struct {
	kind   string
	url    string // http and websocket
	bucket string // object and s3
	name   string // object name, s3 key, redis key or file path
}

// parseSource maps a URI to a source. Bucket-less object store and S3
// references fall back to the configured bucket.
func parseSource(raw string, cfg *config.Config) (source, error) {
	if raw == "" {
		return source{}, fmt.Errorf("empty source")
	}
	if !strings.Contains(raw, "://") {
		return source{kind: kindFile, name: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return source{}, fmt.Errorf("parse source %q: %w", raw, err)
	}
	path := strings.TrimPrefix(u.Path, "/")

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return source{kind: kindHTTP, url: raw}, nil
	case "ws", "wss":
		return source{kind: kindWebSocket, url: raw}, nil
	case "file":
		return source{kind: kindFile, name: u.Host + u.Path}, nil
	case "nats":
		return bucketSource(kindObject, u.Host, path, cfg.NATS.Bucket, raw)
	case "s3":
		return bucketSource(kindS3, u.Host, path, cfg.S3.Bucket, raw)
	case "redis":
		key := u.Host
		if path != "" {
			key += "/" + path
		}
		if key == "" {
			return source{}, fmt.Errorf("source %q has no key", raw)
		}
		return source{kind: kindRedis, name: key}, nil
	default:
		return source{}, fmt.Errorf("unsupported source scheme %q", u.Scheme)
	}
}

func bucketSource(kind, host, path, defaultBucket, raw string) (source, error) {
	bucket, name := host, path
	if name == "" && defaultBucket != "" {
		bucket, name = defaultBucket, host
	}
	if bucket == "" || name == "" {
		return source{}, fmt.Errorf("source %q needs both a bucket and a name", raw)
	}
	return source{kind: kind, bucket: bucket, name: name}, nil
}

// request builds the request for src, creating backend clients on demand.
func (a *app) request(ctx context.Context, src source, message []byte, opts ...request.Option) (request.Request, error) {
	opts = append([]request.Option{request.WithLogger(a.logger)}, opts...)

	switch src.kind {
	case kindHTTP:
		return request.NewGet(a.cfg).URL(src.url).Options(opts...).Build()
	case kindWebSocket:
		tlsConfig, err := tlsutil.LoadClientTLSConfig(a.cfg.TLS)
		if err != nil {
			return nil, err
		}
		ws := request.NewWebSocket(src.url, message, a.cfg.Timeout.Std(), opts...)
		ws.SetHeader("User-Agent", a.cfg.UserAgent).SetTLSConfig(tlsConfig)
		return ws, nil
	case kindObject:
		store, err := a.objectStore(ctx, src.bucket)
		if err != nil {
			return nil, err
		}
		return request.NewObject(store, src.name, opts...), nil
	case kindS3:
		client, err := a.s3Client(ctx)
		if err != nil {
			return nil, err
		}
		return request.NewS3(client, src.bucket, src.name, opts...), nil
	case kindRedis:
		client, err := a.redisClient()
		if err != nil {
			return nil, err
		}
		return request.NewRedis(client, src.name, opts...), nil
	default:
		return request.NewFile(src.name, opts...), nil
	}
}

// render writes a processor result: bytes and strings verbatim, anything
// else encoded as JSON or YAML.
func render(w io.Writer, result any, format string) error {
	switch v := result.(type) {
	case nil:
		return nil
	case []byte:
		_, err := w.Write(v)
		return err
	case fmt.Stringer:
		_, err := io.WriteString(w, v.String()+"\n")
		return err
	}

	if strings.EqualFold(format, "yaml") {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
