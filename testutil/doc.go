// Package testutil provides test doubles shared by the pipeline packages.
//
// MockRequest is an in-memory request.Request with call counters, an optional
// gate that holds InputStream open, and injectable status and errors.
// MockObjectStore stands in for a JetStream object store behind
// request.NewObject. Recorder captures callback deliveries; WaitForDeliveries
// polls it at 10ms intervals until the expected number arrive.
//
//	req := testutil.NewMockRequest(`{"id":1}`)
//	rec := testutil.NewRecorder[map[string]any]()
//	unit, err := execution.New(req, processor.JSON[map[string]any](),
//	    execution.WithCallback(rec.Callback))
//	require.NoError(t, err)
//	unit.ExecuteAsync(ctx, nil)
//	got := testutil.WaitForDeliveries(t, rec, 1, time.Second)
//
// All types are safe for concurrent use.
package testutil
