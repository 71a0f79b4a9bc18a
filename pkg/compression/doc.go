// Package compression chooses between Lz4 and Zstd (or neither) for
// an outbound frame based on its size and the configured
// compression_level.
package compression
