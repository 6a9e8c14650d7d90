// Package download reconstructs objects from concurrent byte-range fetches.
//
// Every download starts with a HeadObject call that sizes the byte-range plan.
// The ordered ranges are then written to an io.Writer, streamed through a
// pipe, or concatenated in memory.
package download
