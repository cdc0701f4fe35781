// Package api provides the HTTP admin surface and WebSocket server for
// dubswitch.
//
// It exposes console discovery, routing operations, the persisted
// channel matrix, and real-time state fan-out to browser sessions.
//
// The server follows the same lifecycle pattern as other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
