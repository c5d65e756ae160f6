package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"caja/internal/core"
	"caja/internal/log"
	"caja/internal/storage"
)

const backupPrefix = "caja_backup_"

// BackupInfo describes a database snapshot on disk.
type BackupInfo = storage.BackupRecord

// DatabaseInfo reports the live database file.
type DatabaseInfo struct {
	Path       string `json:"path"`
	SizeBytes  int64  `json:"size_bytes"`
	ModifiedAt string `json:"modified_at"`
}

// BackupService writes consistent snapshots of the live database.
type BackupService struct {
	base
	dir string
}

func NewBackupService(gw *storage.Gateway, dir string, opts ...Option) *BackupService {
	return &BackupService{base: newBase(gw, log.ComponentBackup, opts), dir: dir}
}

func (s *BackupService) resolveDir(dir string) string {
	if strings.TrimSpace(dir) == "" {
		return s.dir
	}
	return dir
}

// CreateBackup snapshots the database into dir (the configured directory when
// empty) and records it in the backup history.
func (s *BackupService) CreateBackup(ctx context.Context, dir, description string) (BackupInfo, error) {
	const op = "create_backup"
	dir = s.resolveDir(dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return BackupInfo{}, backupFailed(op, fmt.Errorf("create backup directory: %w", err))
	}

	now := s.now()
	filename := backupPrefix + now.Format("20060102_150405") + ".db"
	path := filepath.Join(dir, filename)
	if _, err := os.Stat(path); err == nil {
		return BackupInfo{}, core.E(core.KindConflict, op, core.CodeBackupFailed,
			fmt.Sprintf("backup %s already exists", filename))
	}

	info := BackupInfo{
		Filename:    filename,
		Filepath:    path,
		CreatedAt:   now,
		Description: description,
	}
	err := s.gw.View(ctx, op, func(ctx context.Context, q *storage.Queries) error {
		if err := q.VacuumInto(ctx, path); err != nil {
			return backupFailed(op, err)
		}
		st, err := os.Stat(path)
		if err != nil {
			return backupFailed(op, err)
		}
		info.SizeBytes = st.Size()
		if info.ID, err = q.InsertBackup(ctx, info); err != nil {
			// A snapshot without a history row is never listed as created.
			if rmErr := os.Remove(path); rmErr != nil {
				s.logger.ErrorContext(ctx, "Failed to remove unrecorded backup",
					log.FieldBackupFile, path, log.FieldError, rmErr)
			}
			return backupFailed(op, err)
		}
		return nil
	})
	if err != nil {
		return BackupInfo{}, err
	}

	s.logger.InfoContext(ctx, "Backup created",
		log.FieldOperation, log.OpBackup,
		log.FieldBackupFile, info.Filepath,
		"size_bytes", info.SizeBytes)
	return info, nil
}

// ListBackups lists .db files in dir, newest first. A missing directory is empty.
func (s *BackupService) ListBackups(dir string) ([]BackupInfo, error) {
	dir = s.resolveDir(dir)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []BackupInfo{}, nil
	}
	if err != nil {
		return nil, core.StorageError("list_backups", err)
	}

	out := make([]BackupInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".db" {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, BackupInfo{
			Filename:  e.Name(),
			Filepath:  filepath.Join(dir, e.Name()),
			CreatedAt: fi.ModTime(),
			SizeBytes: fi.Size(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Filename > out[j].Filename
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// BackupHistory returns recorded backups, newest first.
func (s *BackupService) BackupHistory(ctx context.Context, limit int) ([]BackupInfo, error) {
	limit = clampLimit(limit)
	var out []BackupInfo
	err := s.gw.View(ctx, "backup_history", func(ctx context.Context, q *storage.Queries) error {
		var err error
		out, err = q.ListBackups(ctx, limit)
		return err
	})
	return out, err
}

// DeleteBackup removes a backup file. Only files inside the backup directory
// named like snapshots can be removed.
func (s *BackupService) DeleteBackup(filename string) error {
	const op = "delete_backup"
	if filename != filepath.Base(filename) || !strings.HasPrefix(filename, backupPrefix) || filepath.Ext(filename) != ".db" {
		return core.E(core.KindValidation, op, core.CodeInvalidRequest, fmt.Sprintf("invalid backup name %q", filename))
	}
	err := os.Remove(filepath.Join(s.dir, filename))
	if os.IsNotExist(err) {
		return core.E(core.KindNotFound, op, core.CodeBackupNotFound, fmt.Sprintf("backup %s not found", filename))
	}
	if err != nil {
		return core.StorageError(op, err)
	}
	return nil
}

// DatabaseInfo reports the size and modification time of the live database.
func (s *BackupService) DatabaseInfo() (DatabaseInfo, error) {
	fi, err := os.Stat(s.gw.Path())
	if err != nil {
		return DatabaseInfo{}, core.StorageError("database_info", err)
	}
	return DatabaseInfo{
		Path:       s.gw.Path(),
		SizeBytes:  fi.Size(),
		ModifiedAt: fi.ModTime().Format(storage.TimestampLayout),
	}, nil
}

func backupFailed(op string, err error) error {
	e := core.StorageError(op, err)
	e.Code = core.CodeBackupFailed
	return e
}
