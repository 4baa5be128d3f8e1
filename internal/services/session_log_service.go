// Package services holds the background services of the relay.
package services

import (
	"context"
	"sync"
	"time"

	"chat-relay/internal/encryption"
	"chat-relay/internal/models"
	"chat-relay/internal/types"
	"chat-relay/internal/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	sessionLogBufferSize = 256
	sessionLogBatchSize  = 64
	sessionLogFlushEvery = 5 * time.Second
	sessionLogCleanEvery = time.Hour
)

// SessionLogService buffers session summary rows and writes them to the
// database in batches. Recording never blocks the request path: when the
// buffer is full the row is dropped with a warning.
type SessionLogService struct {
	db         *gorm.DB
	relay      types.RelayConfig
	encryption encryption.Service

	logs     chan *models.SessionLog
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewSessionLogService creates a new SessionLogService instance.
func NewSessionLogService(db *gorm.DB, configManager types.ConfigManager, enc encryption.Service) *SessionLogService {
	return &SessionLogService{
		db:         db,
		relay:      configManager.GetRelayConfig(),
		encryption: enc,
		logs:       make(chan *models.SessionLog, sessionLogBufferSize),
		stopChan:   make(chan struct{}),
	}
}

// Start launches the flush and retention loops.
func (s *SessionLogService) Start() {
	s.wg.Add(1)
	go s.runLoop()
}

func (s *SessionLogService) runLoop() {
	defer s.wg.Done()

	flushTicker := time.NewTicker(sessionLogFlushEvery)
	defer flushTicker.Stop()
	cleanTicker := time.NewTicker(sessionLogCleanEvery)
	defer cleanTicker.Stop()

	batch := make([]*models.SessionLog, 0, sessionLogBatchSize)
	for {
		select {
		case entry := <-s.logs:
			batch = append(batch, entry)
			if len(batch) >= sessionLogBatchSize {
				s.writeBatch(batch)
				batch = batch[:0]
			}
		case <-flushTicker.C:
			if len(batch) > 0 {
				s.writeBatch(batch)
				batch = batch[:0]
			}
		case <-cleanTicker.C:
			s.cleanupExpired()
		case <-s.stopChan:
			// Drain whatever is still buffered before exiting.
			for {
				select {
				case entry := <-s.logs:
					batch = append(batch, entry)
				default:
					if len(batch) > 0 {
						s.writeBatch(batch)
					}
					return
				}
			}
		}
	}
}

// Stop flushes pending rows and stops the service.
func (s *SessionLogService) Stop(ctx context.Context) {
	close(s.stopChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logrus.Info("SessionLogService stopped gracefully.")
	case <-ctx.Done():
		logrus.Warn("SessionLogService stop timed out.")
	}
}

// Record queues a session row for persistence. The request body is encrypted
// before it leaves the request goroutine.
func (s *SessionLogService) Record(entry *models.SessionLog) {
	if !s.relay.EnableSessionLogging {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if entry.RequestBody != "" {
		if !s.relay.EnableRequestBodyLogging {
			entry.RequestBody = ""
		} else if ciphertext, err := s.encryption.Encrypt(entry.RequestBody); err != nil {
			logrus.WithError(err).Warn("Failed to encrypt request body, dropping it from the session log")
			entry.RequestBody = ""
		} else {
			entry.RequestBody = ciphertext
		}
	}

	select {
	case s.logs <- entry:
	default:
		logrus.WithField("session_id", entry.SessionID).Warn("Session log buffer full, dropping entry")
	}
}

func (s *SessionLogService) writeBatch(batch []*models.SessionLog) {
	err := s.db.CreateInBatches(batch, sessionLogBatchSize).Error
	if err == nil {
		logrus.Debugf("Flushed %d session log(s)", len(batch))
		return
	}
	if utils.IsTransientDBError(err) {
		// One retry covers the common SQLite busy window.
		time.Sleep(100 * time.Millisecond)
		err = s.db.CreateInBatches(batch, sessionLogBatchSize).Error
	}
	if err != nil {
		logrus.WithError(err).Errorf("Failed to write %d session log(s)", len(batch))
	}
}

func (s *SessionLogService) cleanupExpired() {
	days := s.relay.SessionLogRetentionDays
	if days <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.SessionLog{})
	if result.Error != nil {
		logrus.WithError(result.Error).Warn("Session log cleanup failed")
		return
	}
	if result.RowsAffected > 0 {
		logrus.Infof("Session log cleanup removed %d expired row(s)", result.RowsAffected)
	}
}

// List returns session rows newest first with offset pagination.
func (s *SessionLogService) List(ctx context.Context, page, pageSize int) ([]models.SessionLog, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.SessionLog{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.SessionLog
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Get returns one session row by its session id.
func (s *SessionLogService) Get(ctx context.Context, sessionID string) (*models.SessionLog, error) {
	var row models.SessionLog
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// DecryptRequestBody returns the stored request body in the clear.
func (s *SessionLogService) DecryptRequestBody(row *models.SessionLog) (string, error) {
	if row.RequestBody == "" {
		return "", nil
	}
	return s.encryption.Decrypt(row.RequestBody)
}
