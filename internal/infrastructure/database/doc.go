// Package database provides the SQLite connection used by the routing
// history log.
//
// SQLite fits here for the same reasons it fits most single-writer
// appliances: zero operational overhead, a single file to back up, and
// WAL mode for concurrent reads while the engine appends.
package database
