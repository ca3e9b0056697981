package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"logistics-backend/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	maxRetries = 3
	retryDelay = 2 * time.Minute
)

// CleanupJob is extra housekeeping run after the file sweep.
type CleanupJob struct {
	Name string
	Run  func(ctx context.Context) error
}

// CleanupExpiredFiles removes regular files in dir older than ttl and returns how
// many were deleted. A missing directory is not an error.
func CleanupExpiredFiles(dir string, ttl time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("error reading directory %s: %w", dir, err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= ttl {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			return removed, fmt.Errorf("error deleting expired file %s: %w", path, err)
		}
		removed++
	}
	return removed, nil
}

// CleanupAllExpired sweeps every directory with the same ttl.
func CleanupAllExpired(dirs []string, ttl time.Duration) error {
	now := time.Now()
	for _, dir := range dirs {
		n, err := CleanupExpiredFiles(dir, ttl, now)
		if err != nil {
			return err
		}
		if n > 0 {
			config.Logger.Info("Expired files removed", zap.String("dir", dir), zap.Int("count", n))
		}
	}
	return nil
}

// RunCleanupJobs runs every job, logging failures without stopping the rest.
func RunCleanupJobs(ctx context.Context, jobs []CleanupJob) int {
	failed := 0
	for _, job := range jobs {
		if err := job.Run(ctx); err != nil {
			failed++
			config.Logger.Error("Cleanup job failed", zap.String("job", job.Name), zap.Error(err))
		}
	}
	return failed
}

// RunScheduledCleanup removes expired uploads and error reports daily at 1 AM,
// retrying a failed sweep, then runs jobs. The returned scheduler is already started.
func RunScheduledCleanup(dirs []string, ttl time.Duration, jobs ...CleanupJob) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(DateLocation))

	_, err := c.AddFunc("0 1 * * *", func() {
		config.Logger.Info("Running scheduled cleanup task", zap.Strings("dirs", dirs))

		sweepFiles(dirs, ttl)
		RunCleanupJobs(context.Background(), jobs)
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}

func sweepFiles(dirs []string, ttl time.Duration) {
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := CleanupAllExpired(dirs, ttl)
		if err == nil {
			return
		}
		config.Logger.Warn("Cleanup attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt < maxRetries {
			time.Sleep(retryDelay)
		}
	}
	config.Logger.Error("Cleanup task failed after retries", zap.Int("retries", maxRetries))
}
