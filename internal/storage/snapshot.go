package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Snapshot errors.
var (
	ErrSnapshotExists     = errors.New("snapshot already exists")
	ErrInvalidSnapshotTag = errors.New("invalid snapshot tag")
)

// maxAutoSnapshots is how many automatic snapshots Prune keeps.
const maxAutoSnapshots = 5

// SnapshotInfo describes one point-in-time copy of the ledger.
type SnapshotInfo struct {
	CreatedAt     time.Time      `json:"created_at"`
	RowCounts     map[string]int `json:"row_counts"`
	ID            string         `json:"id"`
	Path          string         `json:"-"`
	FileSize      int64          `json:"file_size"`
	SchemaVersion int            `json:"schema_version"`
	IsAuto        bool           `json:"is_auto"`
}

// Snapshot writes a consistent copy of the database into a snapshots
// directory next to it. An empty tag generates a timestamped one.
func (s *SQLiteStorage) Snapshot(ctx context.Context, tag string, auto bool) (*SnapshotInfo, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	if tag == "" {
		prefix := "snapshot"
		if auto {
			prefix = "auto"
		}
		tag = fmt.Sprintf("%s-%s", prefix, time.Now().UTC().Format("2006-01-02-150405"))
	}
	if strings.ContainsAny(tag, `/\'";`) || strings.Contains(tag, "..") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSnapshotTag, tag)
	}

	dir, err := s.snapshotDir()
	if err != nil {
		return nil, err
	}

	dest, err := filepath.Abs(filepath.Join(dir, tag+".db"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve snapshot path: %w", err)
	}
	if _, statErr := os.Stat(dest); statErr == nil {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotExists, tag)
	}

	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}

	counts, err := s.rowCounts(ctx)
	if err != nil {
		return nil, err
	}

	// #nosec G201 - tag is validated above and dir comes from the db path
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", dest)); err != nil {
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}

	stat, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to stat snapshot: %w", err)
	}

	info := &SnapshotInfo{
		ID:            tag,
		Path:          dest,
		CreatedAt:     time.Now().UTC(),
		RowCounts:     counts,
		FileSize:      stat.Size(),
		SchemaVersion: version,
		IsAuto:        auto,
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot metadata: %w", err)
	}
	if err := os.WriteFile(strings.TrimSuffix(dest, ".db")+".meta.json", data, 0600); err != nil {
		if rmErr := os.Remove(dest); rmErr != nil {
			slog.Error("failed to remove snapshot after metadata failure", "error", rmErr)
		}
		return nil, fmt.Errorf("failed to save snapshot metadata: %w", err)
	}

	if auto {
		if err := s.pruneAutoSnapshots(); err != nil {
			slog.Warn("failed to prune automatic snapshots", "error", err)
		}
	}

	return info, nil
}

// Snapshots lists existing snapshots, newest first.
func (s *SQLiteStorage) Snapshots() ([]SnapshotInfo, error) {
	dir, err := s.snapshotDir()
	if err != nil {
		return nil, err
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.meta.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	snapshots := make([]SnapshotInfo, 0, len(matches))
	for _, metaPath := range matches {
		data, err := os.ReadFile(filepath.Clean(metaPath))
		if err != nil {
			slog.Debug("skipping unreadable snapshot metadata", "path", metaPath, "error", err)
			continue
		}
		var info SnapshotInfo
		if err := json.Unmarshal(data, &info); err != nil {
			slog.Debug("skipping corrupt snapshot metadata", "path", metaPath, "error", err)
			continue
		}
		info.Path = strings.TrimSuffix(metaPath, ".meta.json") + ".db"
		snapshots = append(snapshots, info)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})
	return snapshots, nil
}

func (s *SQLiteStorage) pruneAutoSnapshots() error {
	snapshots, err := s.Snapshots()
	if err != nil {
		return err
	}

	kept := 0
	for _, snap := range snapshots {
		if !snap.IsAuto {
			continue
		}
		kept++
		if kept <= maxAutoSnapshots {
			continue
		}
		for _, p := range []string{snap.Path, strings.TrimSuffix(snap.Path, ".db") + ".meta.json"} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove snapshot %s: %w", snap.ID, err)
			}
		}
	}
	return nil
}

func (s *SQLiteStorage) snapshotDir() (string, error) {
	dir := filepath.Join(filepath.Dir(s.dbPath), "snapshots")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create snapshots directory: %w", err)
	}
	return dir, nil
}

func (s *SQLiteStorage) rowCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	for _, table := range []string{"items", "accounts", "transactions", "category_overrides", "rules"} {
		var n int
		// #nosec G202 - table names are constants
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}
