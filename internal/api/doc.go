// Package api provides the HTTP API and WebSocket event stream for
// Gray Logic Fleet.
//
// Field devices call POST /register-device on boot and POST /assign-user
// during provisioning. The management plane reads GET /get-all-devices
// and GET /check-device, and can follow reconciliations live on /ws.
// With a SQL store, GET /audit pages through the stored history.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
