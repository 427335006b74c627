package jobs

import (
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"playtube/api/internal/config"
)

// Scheduler periodically sweeps the upload temp directory. Uploads remove
// their own temp files, but a crash between spool and cleanup can leave
// strays behind; the sweep guarantees they do not accumulate.
type Scheduler struct {
	cron   *cron.Cron
	dir    string
	maxAge time.Duration
	log    zerolog.Logger
}

func NewScheduler(cfg config.UploadConfig, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:   c,
		dir:    cfg.TempDir,
		maxAge: cfg.TempMaxAge,
		log:    log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 */10 * * * *", s.sweepTempFiles); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits for any running sweep to finish, up to five seconds.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
}

func (s *Scheduler) sweepTempFiles() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("dir", s.dir).Msg("temp sweep failed")
		}
		return
	}

	cutoff := time.Now().Add(-s.maxAge)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("temp file remove failed")
			continue
		}
		removed++
	}

	if removed > 0 {
		s.log.Debug().Int("removed", removed).Str("dir", s.dir).Msg("temp files swept")
	}
}
