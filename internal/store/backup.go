package store

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const backupDatabaseEntry = "datapipe.db"

// Backup writes a self-contained zip archive holding the database file and
// every payload file under the data directory. The archive can be handed
// to RestoreArchive to recreate an equivalent store.
func (s *DataStore) Backup(path string) error {
	if s.dbPath == "" {
		return errors.New("store was opened without backup paths")
	}

	// checkpoint so the main db file carries all committed state
	if s.db.Dialector.Name() == "sqlite" {
		if err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error; err != nil {
			zap.S().Named("store").Warnf("wal checkpoint before backup failed: %v", err)
		}
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating backup archive: %w", err)
	}
	defer out.Close()

	archive := zip.NewWriter(out)
	defer archive.Close()

	if err := addArchiveFile(archive, s.dbPath, backupDatabaseEntry); err != nil {
		return err
	}

	if s.dataDir == "" {
		return nil
	}
	absDB, _ := filepath.Abs(s.dbPath)
	absOut, _ := filepath.Abs(path)
	return filepath.WalkDir(s.dataDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		abs, _ := filepath.Abs(p)
		if abs == absOut {
			return nil // never archive the archive itself
		}
		// the db file is archived under a fixed name; skip it and its
		// sqlite side files when the data dir contains them
		if abs == absDB || abs == absDB+"-wal" || abs == absDB+"-shm" {
			return nil
		}
		rel, err := filepath.Rel(s.dataDir, p)
		if err != nil {
			return err
		}
		return addArchiveFile(archive, p, filepath.ToSlash(filepath.Join("files", rel)))
	})
}

// RestoreArchive unpacks a backup archive into dbPath and dataDir. It must
// run before the store is opened; restoring underneath a live connection
// is not supported.
func RestoreArchive(archivePath, dbPath, dataDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening backup archive: %w", err)
	}
	defer reader.Close()

	for _, entry := range reader.File {
		var target string
		switch {
		case entry.Name == backupDatabaseEntry:
			target = dbPath
		case strings.HasPrefix(entry.Name, "files/"):
			rel := filepath.FromSlash(strings.TrimPrefix(entry.Name, "files/"))
			target = filepath.Join(dataDir, rel)
			if !strings.HasPrefix(filepath.Clean(target), filepath.Clean(dataDir)) {
				return fmt.Errorf("archive entry escapes data directory: %s", entry.Name)
			}
		default:
			zap.S().Named("store").Warnf("skipping unknown archive entry %s", entry.Name)
			continue
		}

		if err := extractArchiveFile(entry, target); err != nil {
			return err
		}
	}
	return nil
}

func addArchiveFile(archive *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s for backup: %w", path, err)
	}
	defer src.Close()

	dst, err := archive.Create(name)
	if err != nil {
		return fmt.Errorf("adding %s to backup: %w", name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("archiving %s: %w", name, err)
	}
	return nil
}

func extractArchiveFile(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating restore directory: %w", err)
	}

	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("opening archive entry %s: %w", entry.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("restoring %s: %w", target, err)
	}
	return nil
}
