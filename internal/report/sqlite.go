package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	// Register the pure-Go SQLite driver (no CGO required).
	_ "modernc.org/sqlite"

	"github.com/giantswarm/fdtable/internal/core"
	"github.com/giantswarm/fdtable/internal/fileutil"
)

const schema = `
CREATE TABLE files (
	id          INTEGER PRIMARY KEY,
	type        TEXT    NOT NULL,
	flags       INTEGER NOT NULL,
	file_offset INTEGER NOT NULL,
	refs        INTEGER NOT NULL,
	uid         INTEGER NOT NULL,
	gid         INTEGER NOT NULL
);
CREATE TABLE descriptors (
	pid           INTEGER NOT NULL,
	fd            INTEGER NOT NULL,
	file_id       INTEGER,
	type          TEXT,
	flags         INTEGER NOT NULL,
	file_offset   INTEGER NOT NULL,
	file_refs     INTEGER NOT NULL,
	handle_refs   INTEGER NOT NULL,
	closing       INTEGER NOT NULL,
	close_on_exec INTEGER NOT NULL,
	close_on_fork INTEGER NOT NULL,
	PRIMARY KEY (pid, fd)
);
`

// WriteSQLite writes files and descriptors to a new SQLite database at path,
// replacing any file already there.
func WriteSQLite(ctx context.Context, path string, files []core.FileInfo, descs []core.DescriptorInfo) error {
	tmp, err := fileutil.TempFile(path)
	if err != nil {
		return err
	}

	core.Logger().Debug("writing descriptor report", "path", path, "files", len(files), "descriptors", len(descs))

	if err := writeDB(ctx, tmp, files, descs); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := fileutil.Publish(tmp, path, &fileutil.PublishOptions{Sync: true}); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}
	return nil
}

func writeDB(ctx context.Context, dbPath string, files []core.FileInfo, descs []core.DescriptorInfo) (retErr error) {
	// Rollback journal instead of WAL: the database must be a single file
	// when it is renamed into place.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(DELETE)&_pragma=synchronous(NORMAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			core.Logger().Warn("report: close sqlite", "error", closeErr)
			if retErr == nil {
				retErr = fmt.Errorf("close sqlite: %w", closeErr)
			}
		}
	}()

	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := insertAll(ctx, tx, files, descs); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit report: %w", err)
	}
	return nil
}

func insertAll(ctx context.Context, tx *sql.Tx, files []core.FileInfo, descs []core.DescriptorInfo) error {
	fileStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO files (id, type, flags, file_offset, refs, uid, gid) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare file insert: %w", err)
	}
	defer fileStmt.Close() //nolint:errcheck // statement is closed with the transaction

	for _, f := range files {
		if _, err := fileStmt.ExecContext(ctx,
			f.ID, f.Type.String(), uint32(f.Flags), f.Offset, f.Refs, f.Cred.UID, f.Cred.GID,
		); err != nil {
			return fmt.Errorf("insert file %d: %w", f.ID, err)
		}
	}

	descStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO descriptors (
			pid, fd, file_id, type, flags, file_offset, file_refs,
			handle_refs, closing, close_on_exec, close_on_fork
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare descriptor insert: %w", err)
	}
	defer descStmt.Close() //nolint:errcheck // statement is closed with the transaction

	for _, d := range descs {
		// A descriptor caught mid-close has no file.
		var fileID, typ any
		if !d.Closing {
			fileID, typ = d.FileID, d.Type.String()
		}
		if _, err := descStmt.ExecContext(ctx,
			d.PID, d.FD, fileID, typ, uint32(d.Flags), d.Offset, d.FileRefs,
			d.HandleRefs, d.Closing, d.CloseOnExec, d.CloseOnFork,
		); err != nil {
			return fmt.Errorf("insert descriptor %d/%d: %w", d.PID, d.FD, err)
		}
	}
	return nil
}
