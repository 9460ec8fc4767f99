// Package server exposes the push-to-talk pipeline over HTTP and WebSocket.
package server
