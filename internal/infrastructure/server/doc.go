// Package server wires configuration, logging, metrics, the usage store,
// the shell resolver, the session manager and the HTTP and websocket
// surfaces into one process.
package server
