// Package manager coordinates concurrent transfer operations.
// It provides the bounded pipeline shared by multipart uploads and ranged
// downloads: a fixed window of slots, a goroutine group, and first-error
// cancellation of everything still running.
package manager
