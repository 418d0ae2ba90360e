// Package natsclient wraps a NATS connection for the object store request
// source.
//
// Connect dials the server and retries transient failures with the policy set
// by WithRetry. Every failed dial counts toward a circuit breaker; once the
// threshold is reached the client reports StatusCircuitOpen and refuses work
// until the backoff expires. The backoff doubles on every opening up to
// WithMaxBackoff and resets on the first success.
//
// ObjectStore opens a JetStream object store bucket, creating it on first
// use. The returned store can be handed to request.NewObject:
//
//	client, err := natsclient.NewClient("nats://localhost:4222")
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	store, err := client.ObjectStore(ctx, "reports")
//
// Close drains the connection, bounded by the drain timeout, and is safe to
// call more than once.
package natsclient
