// Package store provides durable key/value byte storage for the speech queue
// and its settings. Every backend prefixes keys with a fixed namespace so
// several applications can share one database or directory.
package store
