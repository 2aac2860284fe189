// Package journal keeps a local history of published readings in SQLite.
//
// The journal survives power loss and broker outages, so the status API can
// show recent values even when the hub never received them. Rows are
// pruned by age at the start of every cycle.
package journal
