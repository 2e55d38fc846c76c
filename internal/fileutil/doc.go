// Package fileutil publishes generated files atomically.
//
// A writer asks TempFile for a scratch path next to the destination, fills
// it, and hands it to Publish, which syncs, applies the final mode and
// renames it into place. Readers of the destination never observe a
// partially written file.
package fileutil
