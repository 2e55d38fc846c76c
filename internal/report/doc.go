// Package report writes descriptor table snapshots to a SQLite database.
//
// The database has two tables, files and descriptors, mirroring
// core.FileInfo and core.DescriptorInfo. It is built in a scratch file and
// published atomically, so an existing report is replaced only by a
// complete one.
package report
