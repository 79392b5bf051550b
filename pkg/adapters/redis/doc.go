// Package redis provides Redis-backed registration storage and distributed
// locking, so replicas sharing an advertised URI coordinate their handshakes.
package redis
