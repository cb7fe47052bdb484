// Package types defines the shared value types used across the buffer
// residency engine: usage/bind/access flags, the vertex-format enumeration,
// and the stream-declaration view consumed by the conversion engine.
package types
