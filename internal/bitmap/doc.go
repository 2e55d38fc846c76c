// Package bitmap implements the two-level free map used to allocate
// descriptor numbers.
//
// The low level holds one bit per descriptor. The high level holds one bit per
// low word and is set when that word is completely full, so a search for the
// lowest free descriptor skips 64 full words with a single comparison.
//
// A Map is not safe for concurrent use. The descriptor table serialises every
// call under its own mutex.
package bitmap
