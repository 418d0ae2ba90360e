package health

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_Predicates(t *testing.T) {
	tests := []struct {
		status                       Status
		healthy, degraded, unhealthy bool
	}{
		{status: NewHealthy("c", ""), healthy: true},
		{status: NewDegraded("c", ""), degraded: true},
		{status: NewUnhealthy("c", ""), unhealthy: true},
		{status: Status{}},
	}

	for _, tt := range tests {
		t.Run(tt.status.Status, func(t *testing.T) {
			assert.Equal(t, tt.healthy, tt.status.IsHealthy())
			assert.Equal(t, tt.healthy, tt.status.Healthy)
			assert.Equal(t, tt.degraded, tt.status.IsDegraded())
			assert.Equal(t, tt.unhealthy, tt.status.IsUnhealthy())
		})
	}
}

func TestWithSubStatus_SliceIsolation(t *testing.T) {
	original := NewHealthy("parent", "").WithSubStatus(NewHealthy("pool", ""))
	modified := original.WithSubStatus(NewUnhealthy("cache", ""))

	assert.Len(t, original.SubStatuses, 1)
	assert.Len(t, modified.SubStatuses, 2)

	original.SubStatuses[0].Status = StateDegraded
	assert.Equal(t, StateHealthy, modified.SubStatuses[0].Status)
}

func TestFromError(t *testing.T) {
	ok := FromError("site", nil)
	assert.True(t, ok.IsHealthy())
	assert.Equal(t, "site", ok.Component)
	assert.False(t, ok.Timestamp.IsZero())

	failed := FromError("site", fmt.Errorf("probe https://example.com/ping failed: token=abc123"))
	assert.True(t, failed.IsUnhealthy())
	assert.Equal(t, "probe [URL] failed: [REDACTED]", failed.Message)
}

func TestSanitizeErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "cache file path", input: "open /var/cache/reports/daily.json: permission denied", expected: "open [PATH]: permission denied"},
		{name: "windows path", input: "cannot read C:\\cache\\daily.json", expected: "cannot read [PATH]"},
		{name: "http url", input: "GET https://api.example.com/v1/items timed out", expected: "GET [URL] timed out"},
		{name: "nats url", input: "cannot connect to nats://localhost:4222", expected: "cannot connect to [URL]"},
		{name: "websocket url", input: "dial wss://feed.example.com/live refused", expected: "dial [URL] refused"},
		{name: "ip address", input: "no route to 10.0.0.12", expected: "no route to [IP]"},
		{name: "port", input: "listen on :9090 failed", expected: "listen on [PORT] failed"},
		{name: "credentials", input: "auth failed with password:hunter2", expected: "auth failed with [REDACTED]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeErrorMessage(tt.input))
		})
	}
}

func TestSanitizeErrorMessage_SourceURLs(t *testing.T) {
	assert.Equal(t, "GET [URL] from [URL] failed",
		sanitizeErrorMessage("GET redis://cache:6379/0 from s3://bucket/key failed"))
}
