// Package rate implements Redis fixed-window attempt counters.
//
// A window opens on the first recorded failure for a subject (INCR followed by
// EXPIRE on the first hit) and closes when the key expires or is reset.
// Keys are <prefix>:<subject>.
package rate
