// Package server implements the talkroom chat broadcast engine.
//
// The implementation is organized into specialized files: the registry and
// flood guard hold per-connection state, the monitor sweeps stale
// connections, sessions drive the frame protocol, and the hub ties them to
// the durable message store and the HTTP surface.
package server
