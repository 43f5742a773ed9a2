package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/username/stocktracker/src/database"
	"github.com/username/stocktracker/src/logger"
	"github.com/username/stocktracker/src/models"
	"github.com/username/stocktracker/src/parsers"
)

const (
	backupPrefix     = "transactions-"
	backupTimeLayout = "20060102T150405Z"
)

type backupServiceImpl struct {
	ledger     LedgerService
	dir        string
	maxBackups int
	now        func() time.Time
}

// NewBackupService writes JSON snapshots of the ledger to dir, keeping at most
// maxBackups of them (0 keeps all).
func NewBackupService(ledger LedgerService, dir string, maxBackups int) BackupService {
	return &backupServiceImpl{ledger: ledger, dir: dir, maxBackups: maxBackups, now: time.Now}
}

func (s *backupServiceImpl) Create(ctx context.Context) (models.BackupInfo, error) {
	log := logger.FromContext(ctx)
	var buf bytes.Buffer
	count, err := s.ledger.Export(ctx, parsers.FormatJSON, &buf, models.TransactionFilter{}, parsers.ExportOptions{})
	if err != nil {
		return models.BackupInfo{}, err
	}

	created := s.now().UTC()
	base := backupPrefix + created.Format(backupTimeLayout)
	path := filepath.Join(s.dir, base+".json")
	for i := 1; fileExists(path); i++ {
		path = filepath.Join(s.dir, fmt.Sprintf("%s-%d.json", base, i))
	}
	if err := database.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return models.BackupInfo{}, &models.StorageError{Op: "backup", Path: path, Err: err}
	}
	log.Info("Ledger backup written", "path", path, "records", count)

	if err := s.prune(ctx); err != nil {
		log.Warn("Failed to prune old backups", "dir", s.dir, "error", err)
	}
	return models.BackupInfo{
		Name:    filepath.Base(path),
		Path:    path,
		Size:    int64(buf.Len()),
		Created: created.Format(time.RFC3339),
		Records: count,
	}, nil
}

// List returns snapshots newest first.
func (s *backupServiceImpl) List() ([]models.BackupInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.BackupInfo{}, nil
	}
	if err != nil {
		return nil, &models.StorageError{Op: "list backups", Path: s.dir, Err: err}
	}
	type entry struct {
		info models.BackupInfo
		seq  int
	}
	found := make([]entry, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		created := info.ModTime().UTC()
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), ".json")
		seq := 0
		if i := strings.IndexByte(stamp, '-'); i >= 0 {
			seq, _ = strconv.Atoi(stamp[i+1:])
			stamp = stamp[:i]
		}
		if t, err := time.Parse(backupTimeLayout, stamp); err == nil {
			created = t
		}
		found = append(found, entry{seq: seq, info: models.BackupInfo{
			Name:    name,
			Path:    filepath.Join(s.dir, name),
			Size:    info.Size(),
			Created: created.Format(time.RFC3339),
		}})
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].info.Created != found[j].info.Created {
			return found[i].info.Created > found[j].info.Created
		}
		return found[i].seq > found[j].seq
	})
	backups := make([]models.BackupInfo, len(found))
	for i, e := range found {
		backups[i] = e.info
	}
	return backups, nil
}

func (s *backupServiceImpl) prune(ctx context.Context) error {
	if s.maxBackups <= 0 {
		return nil
	}
	backups, err := s.List()
	if err != nil {
		return err
	}
	for _, b := range backups[min(len(backups), s.maxBackups):] {
		if err := os.Remove(b.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		logger.FromContext(ctx).Info("Pruned old backup", "path", b.Path)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
