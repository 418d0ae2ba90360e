// Package request defines the byte sources the execution pipeline reads from.
//
// A Request is built once, opened once with InputStream and closed once.
// After InputStream returns, StatusCode and StatusMessage describe the
// outcome: HTTP sources report the response code (error responses still
// return their body), local and store-backed sources report
// StatusFileSuccess, and network failures before any response report
// StatusNoConnection.
//
// Sources:
//
//   - HTTP: GET, POST and DELETE built from the configuration with
//     NewGet, NewPost and NewDelete. POST bodies are url-encoded forms,
//     multipart forms when a file is attached, or raw bytes.
//   - File: a local file.
//   - Object: an object in a NATS JetStream object store bucket.
//   - S3: an object in an S3 bucket.
//   - Redis: the value of one key.
//   - WebSocket: the first message received after an optional request message.
//
// Every source accepts the shared options WithCacheFile, WithRewriteCacheFile,
// WithTag and WithLogger. Errors wrap the sentinels from the errors package so
// errors.IOKindOf can tell timeouts, missing resources and other I/O failures
// apart.
package request
