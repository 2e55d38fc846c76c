// Package core provides the internal implementation of the fdtable library.
// It contains the System (registry of live files and processes with the
// system-wide open file limit), the descriptor Table (lock-free lookup over a
// resizable slot array, a two-level allocation bitmap and a per-slot close
// protocol that drains concurrent users), the reference-counted File, and the
// Process operations built on them: allocation, duplication, fork, exec and
// exit.
package core
