// Package api serves the node's local status API while it is awake.
//
// Endpoints:
//
//	GET /api/v1/health    liveness and version
//	GET /api/v1/state     cycle, retained state, broker and pump status, latest snapshot
//	GET /api/v1/readings  journal history (?limit=N&sensor=key)
//	GET /api/v1/ws        WebSocket feed of snapshot events
//	GET /metrics          Prometheus exposition
//
// The server lives for one operate phase:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// The Server is also a snapshot sink: every published snapshot is cached
// for /state and broadcast to WebSocket clients subscribed to "snapshot".
package api
