// Package sqlite implements storage.Engine over a single SQLite file.
//
// The store owns the terrain_tiles table. Coordinator transactions pin one
// pooled connection each for their lifetime; one-shot writes take their own
// short transaction.
package sqlite
