// Package storage provides the small blob store behind cursor and subscriber
// persistence. Two drivers: a dependency-free file backend (one file per key,
// atomic rename writes) and a SQLite backend.
package storage
