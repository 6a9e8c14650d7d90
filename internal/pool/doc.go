// Package pool provides memory management optimizations.
// This includes read-buffer tiers and fixed-capacity chunk pools so that
// streaming uploads reuse part buffers instead of allocating one per part.
package pool
