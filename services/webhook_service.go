package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"training-management-api/config"
	"training-management-api/models"
	"training-management-api/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// webhookEnvelope is the wire shape of a remote push notification.
type webhookEnvelope struct {
	ID                 string          `json:"id"`
	Type               string          `json:"type"`
	Created            string          `json:"created"`
	Data               json.RawMessage `json:"data"`
	PreviousAttributes json.RawMessage `json:"previous_attributes,omitempty"`
}

// IngestResult is what the webhook endpoint reports back to the sender.
type IngestResult struct {
	EventID   string `json:"event_id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// WebhookService receives remote push notifications, verifies and
// deduplicates them, and processes them out of the request path through a
// small worker pool plus a background retry sweep.
type WebhookService struct {
	db     *gorm.DB
	cfg    *config.IntegrationConfig
	policy *RetryPolicy

	queue chan uint
}

var (
	defaultWebhookSvc  *WebhookService
	defaultWebhookOnce sync.Once
)

// DefaultWebhookService returns the process-wide webhook service. Controllers
// go through this accessor so the request path and the worker pool share one
// queue.
func DefaultWebhookService() *WebhookService {
	defaultWebhookOnce.Do(func() {
		defaultWebhookSvc = NewWebhookService(nil, nil)
	})
	return defaultWebhookSvc
}

func NewWebhookService(db *gorm.DB, cfg *config.IntegrationConfig) *WebhookService {
	if db == nil {
		db = config.DB
	}
	if cfg == nil {
		cfg = config.LoadIntegrationConfig()
	}
	return &WebhookService{
		db:     db,
		cfg:    cfg,
		policy: NewRetryPolicy(cfg),
		queue:  make(chan uint, 256),
	}
}

// VerifySignature checks the hex HMAC-SHA256 of the raw body against the
// shared secret using a constant-time comparison.
func VerifySignature(rawBody []byte, signature, secret string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// Ingest handles one delivery. It verifies the signature, deduplicates by
// event id, persists the event as pending and hands it to the worker pool.
// Everything here must stay fast: the sender's retry timeout is short.
func (s *WebhookService) Ingest(ctx context.Context, rawBody []byte, signature string) (*IngestResult, error) {
	if !VerifySignature(rawBody, signature, s.cfg.WebhookSecret) {
		s.recordRejected(ctx, rawBody)
		return &IngestResult{Status: models.WebhookStatusRejected}, nil
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil || strings.TrimSpace(envelope.ID) == "" || strings.TrimSpace(envelope.Type) == "" {
		// Authenticated but unusable payload: dead-letter immediately so the
		// sender stops retrying and an operator can inspect it.
		event := s.newEvent("malformed-"+uuid.NewString(), envelope.Type, rawBody)
		event.ProcessingStatus = models.WebhookStatusFailed
		event.AttemptCount = event.MaxAttempts
		event.LastError = stringPtr("malformed webhook envelope")
		if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
			return nil, err
		}
		return &IngestResult{EventID: event.EventID, Status: models.WebhookStatusFailed}, nil
	}

	// Fast-path dedup: the remote delivers at least once, so repeats are
	// routine, not errors.
	var existing models.WebhookEvent
	err := s.db.WithContext(ctx).Where("event_id = ?", envelope.ID).First(&existing).Error
	if err == nil {
		return &IngestResult{EventID: envelope.ID, Status: models.WebhookStatusDuplicate, Duplicate: true}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	event := s.newEvent(envelope.ID, envelope.Type, rawBody)
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(event)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost a race against a concurrent delivery of the same event.
		return &IngestResult{EventID: envelope.ID, Status: models.WebhookStatusDuplicate, Duplicate: true}, nil
	}

	s.enqueue(event.ID)
	return &IngestResult{EventID: envelope.ID, Status: models.WebhookStatusPending}, nil
}

func (s *WebhookService) newEvent(eventID, eventType string, rawBody []byte) *models.WebhookEvent {
	return &models.WebhookEvent{
		EventID:          eventID,
		EventType:        eventType,
		RawPayload:       string(rawBody),
		SignatureValid:   true,
		ProcessingStatus: models.WebhookStatusPending,
		MaxAttempts:      s.cfg.WebhookMaxAttempts,
		ReceivedAt:       time.Now(),
	}
}

// recordRejected keeps an audit row for a delivery that failed signature
// verification. The payload is untrusted, so the row gets a generated id.
// Recording is best-effort; the 401 response never depends on it.
func (s *WebhookService) recordRejected(ctx context.Context, rawBody []byte) {
	event := &models.WebhookEvent{
		EventID:          "rejected-" + uuid.NewString(),
		EventType:        "unverified",
		RawPayload:       string(rawBody),
		SignatureValid:   false,
		ProcessingStatus: models.WebhookStatusRejected,
		MaxAttempts:      s.cfg.WebhookMaxAttempts,
		ReceivedAt:       time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		log.Printf("webhook: failed to record rejected delivery: %v", err)
	}
}

func (s *WebhookService) enqueue(id uint) {
	select {
	case s.queue <- id:
	default:
		// Queue full: the retry sweep picks up pending rows.
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled.
func (s *WebhookService) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = s.cfg.WebhookWorkers
	}
	for i := 0; i < workers; i++ {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case id := <-s.queue:
					s.ProcessEvent(ctx, id)
				}
			}
		}()
	}
}

// ProcessEvent claims and processes one stored event. Claiming is a guarded
// UPDATE so two workers can never process the same event concurrently.
func (s *WebhookService) ProcessEvent(ctx context.Context, id uint) {
	claim := s.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("id = ? AND processing_status = ?", id, models.WebhookStatusPending).
		Updates(map[string]interface{}{
			"processing_status": models.WebhookStatusProcessing,
			"attempt_count":     gorm.Expr("attempt_count + 1"),
		})
	if claim.Error != nil {
		log.Printf("webhook: failed to claim event %d: %v", id, claim.Error)
		return
	}
	if claim.RowsAffected == 0 {
		return
	}

	var event models.WebhookEvent
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		log.Printf("webhook: failed to load event %d: %v", id, err)
		return
	}

	if err := s.dispatch(ctx, &event); err != nil {
		s.markFailure(ctx, &event, err)
		return
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&event).Updates(map[string]interface{}{
		"processing_status": models.WebhookStatusSucceeded,
		"processed_at":      now,
		"last_error":        nil,
	}).Error; err != nil {
		log.Printf("webhook: failed to mark event %d succeeded: %v", id, err)
	}
}

// dispatch routes the event to the adapter registered for its entity type and
// applies the payload through the shared idempotent upsert.
func (s *WebhookService) dispatch(ctx context.Context, event *models.WebhookEvent) error {
	var envelope webhookEnvelope
	if err := json.Unmarshal([]byte(event.RawPayload), &envelope); err != nil {
		return &MappingError{EntityType: event.EventType, Field: "payload", Err: err}
	}

	adapter, action, err := adapterForEvent(envelope.Type)
	if err != nil {
		return &MappingError{EntityType: envelope.Type, Field: "type", Err: err}
	}

	if action == "deleted" {
		var ref struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(envelope.Data, &ref); err != nil || strings.TrimSpace(ref.ID) == "" {
			return &MappingError{EntityType: adapter.entityType, Field: "data.id", Err: err}
		}
		return applyRemoteDeletion(ctx, s.db, adapter, ref.ID)
	}

	_, err = applyRemoteRecord(ctx, s.db, adapter, envelope.Data)
	if errors.Is(err, errLinkageConflict) {
		_, err = applyRemoteRecord(ctx, s.db, adapter, envelope.Data)
	}
	return err
}

// markFailure records a processing failure. Unrecoverable mapping errors are
// forced to the attempt ceiling; retryable failures get a backoff-scheduled
// next attempt. Exhausted events are dead-lettered and the operator notified.
func (s *WebhookService) markFailure(ctx context.Context, event *models.WebhookEvent, cause error) {
	attempts := event.AttemptCount // the claim already incremented this
	updates := map[string]interface{}{
		"processing_status": models.WebhookStatusFailed,
		"last_error":        truncateError(cause),
	}

	if !isRetryable(cause) {
		updates["attempt_count"] = event.MaxAttempts
		attempts = event.MaxAttempts
	} else if attempts < event.MaxAttempts {
		updates["next_attempt_at"] = time.Now().Add(s.policy.Delay(attempts - 1))
	}

	if err := s.db.WithContext(ctx).Model(event).Updates(updates).Error; err != nil {
		log.Printf("webhook: failed to mark event %d failed: %v", event.ID, err)
		return
	}

	if attempts >= event.MaxAttempts {
		s.notifyDeadLetter(event, cause)
	}
}

func (s *WebhookService) notifyDeadLetter(event *models.WebhookEvent, cause error) {
	log.Printf("webhook: event %s dead-lettered after %d attempts: %v", event.EventID, event.MaxAttempts, cause)
	to := strings.TrimSpace(s.cfg.DeadLetterNotifyMail)
	if to == "" {
		return
	}
	if !utils.ValidateEmail(to) {
		log.Printf("webhook: DEADLETTER_NOTIFY_EMAIL %q is not a valid address, skipping notification", to)
		return
	}
	subject := fmt.Sprintf("[training-api] webhook event %s requires manual replay", event.EventID)
	html := fmt.Sprintf("<p>Event <b>%s</b> (type %s) exhausted its attempts.</p><p>Last error: %v</p>",
		event.EventID, event.EventType, cause)
	if err := config.SendMail([]string{to}, subject, html); err != nil {
		log.Printf("webhook: failed to send dead-letter notification: %v", err)
	}
}

// StartSweeper launches the background loop that re-dispatches due retries,
// recovers pending events dropped from the queue, and purges events past the
// retention window.
func (s *WebhookService) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweepOnce(ctx)
			}
		}
	}()
}

// webhookProcessingTimeout bounds how long an event may sit in processing.
// The claim bumps update_at, so anything processing past this window lost its
// worker (crash, restart, cancellation mid-dispatch).
const webhookProcessingTimeout = 5 * time.Minute

func (s *WebhookService) sweepOnce(ctx context.Context) {
	now := time.Now()

	// Recover events whose worker died after the claim. The attempt is
	// already counted, so they go to failed with an immediately-due retry:
	// the requeue below picks them up, or they surface as dead-lettered
	// once attempts are exhausted.
	if err := s.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("processing_status = ? AND update_at <= ?",
			models.WebhookStatusProcessing, now.Add(-webhookProcessingTimeout)).
		Updates(map[string]interface{}{
			"processing_status": models.WebhookStatusFailed,
			"next_attempt_at":   now,
			"last_error":        "worker lost before completion",
		}).Error; err != nil {
		log.Printf("webhook sweep: failed to recover stuck events: %v", err)
	}

	// Failed events whose backoff elapsed go back to pending.
	if err := s.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("processing_status = ? AND attempt_count < max_attempts AND next_attempt_at IS NOT NULL AND next_attempt_at <= ?",
			models.WebhookStatusFailed, now).
		Updates(map[string]interface{}{
			"processing_status": models.WebhookStatusPending,
			"next_attempt_at":   nil,
		}).Error; err != nil {
		log.Printf("webhook sweep: failed to requeue retries: %v", err)
	}

	// Pending rows older than the grace period were dropped from the queue
	// (full channel or restart); hand them to the workers again.
	var stale []models.WebhookEvent
	if err := s.db.WithContext(ctx).
		Where("processing_status = ? AND received_at <= ?", models.WebhookStatusPending, now.Add(-30*time.Second)).
		Limit(200).
		Find(&stale).Error; err != nil {
		log.Printf("webhook sweep: failed to load pending events: %v", err)
	} else {
		for _, event := range stale {
			s.enqueue(event.ID)
		}
	}

	// Retention purge.
	cutoff := now.Add(-s.cfg.WebhookRetention)
	if err := s.db.WithContext(ctx).
		Where("received_at < ? AND processing_status <> ?", cutoff, models.WebhookStatusProcessing).
		Delete(&models.WebhookEvent{}).Error; err != nil {
		log.Printf("webhook sweep: failed to purge old events: %v", err)
	}
}

// ListDeadLetters pages through events that exhausted their attempts and wait
// for manual replay.
func (s *WebhookService) ListDeadLetters(limit, offset int) ([]models.WebhookEvent, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := s.db.Model(&models.WebhookEvent{}).
		Where("processing_status = ? AND attempt_count >= max_attempts", models.WebhookStatusFailed)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var events []models.WebhookEvent
	if err := query.Order("received_at DESC").Offset(offset).Limit(limit).Find(&events).Error; err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// Replay resets a dead-lettered event for another processing round.
func (s *WebhookService) Replay(ctx context.Context, id uint) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	if !event.DeadLettered() {
		return nil, ErrEventNotReplayable
	}

	if err := s.db.WithContext(ctx).Model(&event).Updates(map[string]interface{}{
		"processing_status": models.WebhookStatusPending,
		"attempt_count":     0,
		"next_attempt_at":   nil,
		"last_error":        nil,
	}).Error; err != nil {
		return nil, err
	}

	s.enqueue(event.ID)
	event.ProcessingStatus = models.WebhookStatusPending
	event.AttemptCount = 0
	return &event, nil
}

func stringPtr(value string) *string { return &value }

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > 2000 {
		return msg[:1997] + "..."
	}
	return msg
}
