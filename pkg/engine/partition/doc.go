// Package partition turns a command's index range into per-worker Parts.
//
// Even is the default Partitioner: equal slices dealt round-robin over the
// eligible workers, then one remainder slice. The remainder always continues
// from where the last whole slice ended, so the Parts cover [start, end)
// contiguously whatever the start offset.
package partition
