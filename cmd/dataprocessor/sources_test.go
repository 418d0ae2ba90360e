package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/dataprocessor/config"
	"github.com/c360/dataprocessor/processor"
)

func TestParseSource(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.NATS.Bucket = "reports"
	cfg.S3.Bucket = "archive"

	tests := []struct {
		raw  string
		want source
	}{
		{raw: "https://api.example.com/items?page=2", want: source{kind: kindHTTP, url: "https://api.example.com/items?page=2"}},
		{raw: "wss://feed.example.com/live", want: source{kind: kindWebSocket, url: "wss://feed.example.com/live"}},
		{raw: "/tmp/data.json", want: source{kind: kindFile, name: "/tmp/data.json"}},
		{raw: "file:///tmp/data.json", want: source{kind: kindFile, name: "/tmp/data.json"}},
		{raw: "nats://daily/2024/summary.json", want: source{kind: kindObject, bucket: "daily", name: "2024/summary.json"}},
		{raw: "nats://summary.json", want: source{kind: kindObject, bucket: "reports", name: "summary.json"}},
		{raw: "s3://logs/app.log", want: source{kind: kindS3, bucket: "logs", name: "app.log"}},
		{raw: "s3://app.log", want: source{kind: kindS3, bucket: "archive", name: "app.log"}},
		{raw: "redis://session/42", want: source{kind: kindRedis, name: "session/42"}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseSource(tt.raw, cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSource_Errors(t *testing.T) {
	cfg := config.DefaultConfig()

	for _, raw := range []string{"", "ftp://host/file", "nats://only-name", "s3://", "redis://"} {
		t.Run(raw, func(t *testing.T) {
			_, err := parseSource(raw, cfg)
			assert.Error(t, err)
		})
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, render(&buf, []byte("raw body"), "raw"))
	assert.Equal(t, "raw body", buf.String())

	buf.Reset()
	require.NoError(t, render(&buf, &processor.Text{Value: "hello"}, "string"))
	assert.Equal(t, "hello\n", buf.String())

	buf.Reset()
	require.NoError(t, render(&buf, map[string]any{"name": "a"}, "json"))
	assert.JSONEq(t, `{"name":"a"}`, buf.String())

	buf.Reset()
	require.NoError(t, render(&buf, map[string]any{"name": "a"}, "yaml"))
	assert.Equal(t, "name: a\n", buf.String())

	buf.Reset()
	require.NoError(t, render(&buf, nil, "raw"))
	assert.Empty(t, buf.String())
}

func TestReadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nhttps://a\n\n  /tmp/b  \n"), 0o644))

	lines, err := readLines(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a", "/tmp/b"}, lines)

	lines, err = readLines("-", strings.NewReader("redis://k\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"redis://k"}, lines)
}

func TestResultSize(t *testing.T) {
	assert.Equal(t, 0, resultSize(nil))
	assert.Equal(t, 3, resultSize([]byte("abc")))
	assert.Equal(t, 5, resultSize(&processor.Text{Value: "hello"}))
	assert.Equal(t, 12, resultSize(map[string]any{"name": "a"}))
}
