// Package server implements the WebSocket transport and HTTP surface of the
// room relay.
//
// The implementation is organized into specialized files for configuration,
// hub management, clients, routing, and HTTP handlers. The hub assigns each
// upgraded connection an id, feeds decoded frames to the relay, and delivers
// the relay's outbound events back onto the right sockets.
package server
