package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/cari_backend/config"
	"bitbucket.org/mmdatafocus/cari_backend/models"
	"bitbucket.org/mmdatafocus/cari_backend/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Mailer hands an email to whatever actually delivers it.
type Mailer interface {
	Send(ctx context.Context, msg config.EmailMessage) (messageId string, err error)
}

// PubSubMailer publishes to the topic the mail service consumes.
type PubSubMailer struct {
	Topic string
}

func (m PubSubMailer) Send(ctx context.Context, msg config.EmailMessage) (string, error) {
	return config.PublishEmail(ctx, m.Topic, msg)
}

// LogMailer only logs; used when no notification topic is configured.
type LogMailer struct {
	Logger *logrus.Logger
}

func (m LogMailer) Send(ctx context.Context, msg config.EmailMessage) (string, error) {
	if m.Logger != nil {
		m.Logger.WithFields(logrus.Fields{
			"field":        "LogMailer",
			"to":           msg.To,
			"event_type":   msg.EventType,
			"reference_id": msg.ReferenceId,
		}).Info("email not sent, no notification topic configured: " + msg.Subject)
	}
	return "", nil
}

type deliverySignedEvent struct {
	note          models.DeliveryNote
	correlationId string
}

// NotificationDispatcher sends ledger notifications off the request path.
// Enqueueing never blocks; a full queue is recorded as a failed notification that the
// retry loop picks up later.
type NotificationDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	Mailer       Mailer
	DispatcherID string

	Workers        int
	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration

	queue chan deliverySignedEvent
	wg    sync.WaitGroup
}

func NewNotificationDispatcher(db *gorm.DB, logger *logrus.Logger, mailer Mailer, settings config.Settings) *NotificationDispatcher {
	queueSize := settings.NotificationQueueSize
	if queueSize <= 0 {
		queueSize = 1
	}
	workers := settings.NotificationWorkers
	if workers <= 0 {
		workers = 1
	}
	return &NotificationDispatcher{
		DB:             db,
		Logger:         logger,
		Mailer:         mailer,
		DispatcherID:   uuid.NewString(),
		Workers:        workers,
		BatchSize:      50,
		PollInterval:   5 * time.Second,
		LockTimeout:    time.Minute,
		MaxAttempts:    settings.NotificationMaxAttempts,
		InitialBackoff: 30 * time.Second,
		queue:          make(chan deliverySignedEvent, queueSize),
	}
}

// DeliverySigned implements DeliveryNotifier.
func (d *NotificationDispatcher) DeliverySigned(ctx context.Context, note models.DeliveryNote) {
	note.SignatureData = nil
	note.Items = nil
	ev := deliverySignedEvent{note: note}
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		ev.correlationId = cid
	}
	select {
	case d.queue <- ev:
	default:
		d.logWarn(note.ID, "notification queue full, deferring to retry loop")
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.persistDeferred(context.Background(), ev, errors.New("notification queue full"))
		}()
	}
}

// Start runs the workers and the retry loop until ctx is cancelled.
func (d *NotificationDispatcher) Start(ctx context.Context) {
	for i := 0; i < d.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.work(ctx)
		}()
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.Run(ctx)
	}()
}

// Wait blocks until every goroutine started by Start has returned.
func (d *NotificationDispatcher) Wait() {
	d.wg.Wait()
}

var errDispatcherStopped = errors.New("notification dispatcher stopped before sending")

func (d *NotificationDispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case ev := <-d.queue:
			if ctx.Err() != nil {
				d.persistDeferred(context.Background(), ev, errDispatcherStopped)
				continue
			}
			d.handle(ctx, ev)
		}
	}
}

// drain records whatever is still queued as failed so the retry loop sends it
// after the next start.
func (d *NotificationDispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.persistDeferred(context.Background(), ev, errDispatcherStopped)
		default:
			return
		}
	}
}

func (d *NotificationDispatcher) handle(ctx context.Context, ev deliverySignedEvent) {
	rec, err := d.buildRecord(ctx, ev)
	if err != nil {
		if ctx.Err() != nil {
			d.persistDeferred(context.Background(), ev, errDispatcherStopped)
			return
		}
		config.LogError(d.Logger, "NotificationDispatcher", "handle", "build notification", ev.note.ID, err)
		return
	}
	if rec.Recipient == "" {
		msg := "customer has no email address"
		rec.Status = models.NotificationStatusDead
		rec.LastError = &msg
		if err := d.DB.WithContext(ctx).Create(rec).Error; err != nil {
			config.LogError(d.Logger, "NotificationDispatcher", "handle", "store notification", ev.note.ID, err)
		}
		return
	}

	now := time.Now().UTC()
	rec.Status = models.NotificationStatusProcessing
	rec.Attempts = 1
	rec.LockedAt = &now
	rec.LockedBy = &d.DispatcherID
	if err := d.DB.WithContext(ctx).Create(rec).Error; err != nil {
		config.LogError(d.Logger, "NotificationDispatcher", "handle", "store notification", ev.note.ID, err)
		return
	}
	d.send(ctx, *rec)
}

func (d *NotificationDispatcher) persistDeferred(ctx context.Context, ev deliverySignedEvent, cause error) {
	rec, err := d.buildRecord(ctx, ev)
	if err != nil {
		config.LogError(d.Logger, "NotificationDispatcher", "persistDeferred", "build notification", ev.note.ID, err)
		return
	}
	msg := cause.Error()
	next := time.Now().UTC()
	rec.Status = models.NotificationStatusFailed
	rec.LastError = &msg
	rec.NextAttemptAt = &next
	if err := d.DB.WithContext(ctx).Create(rec).Error; err != nil {
		config.LogError(d.Logger, "NotificationDispatcher", "persistDeferred", "store notification", ev.note.ID, err)
	}
}

func (d *NotificationDispatcher) buildRecord(ctx context.Context, ev deliverySignedEvent) (*models.NotificationLog, error) {
	var customer models.Customer
	if err := d.DB.WithContext(ctx).First(&customer, ev.note.CustomerId).Error; err != nil {
		return nil, err
	}
	subject, body := deliverySignedEmail(customer, ev.note)
	return &models.NotificationLog{
		Channel:       models.NotificationChannelEmail,
		EventType:     models.NotificationEventDeliverySigned,
		ReferenceId:   ev.note.ID,
		Recipient:     customer.Email,
		Subject:       subject,
		Body:          body,
		CorrelationId: ev.correlationId,
	}, nil
}

func deliverySignedEmail(customer models.Customer, note models.DeliveryNote) (subject string, body string) {
	subject = fmt.Sprintf("Delivery %s received", note.DeliveryNumber)
	signer := ""
	if note.SignerName != nil {
		signer = *note.SignerName
	}
	signedAt := ""
	if note.SignatureDate != nil {
		signedAt = note.SignatureDate.Format("2006-01-02 15:04")
	}
	body = fmt.Sprintf("Dear %s,\n\nDelivery note %s dated %s was signed by %s on %s.\nTotal: %s\n",
		customer.CompanyName, note.DeliveryNumber, note.DeliveryDate.String(), signer, signedAt, note.TotalAmount.StringFixed(2))
	return subject, body
}

func (d *NotificationDispatcher) send(ctx context.Context, rec models.NotificationLog) {
	msg := config.EmailMessage{
		To:            rec.Recipient,
		Subject:       rec.Subject,
		Body:          rec.Body,
		EventType:     rec.EventType,
		ReferenceId:   rec.ReferenceId,
		CorrelationId: rec.CorrelationId,
	}
	messageId, err := d.Mailer.Send(ctx, msg)
	if err != nil {
		d.markFailed(ctx, rec.ID, rec.ReferenceId, err, rec.Attempts)
		return
	}
	d.markSent(ctx, rec.ID, messageId)
}

// Run re-claims failed or stale notifications until ctx is cancelled.
func (d *NotificationDispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.dispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// RetryOnce runs a single claim-and-send pass and reports how many notifications it attempted.
func (d *NotificationDispatcher) RetryOnce(ctx context.Context) int {
	return d.dispatchOnce(ctx)
}

func (d *NotificationDispatcher) dispatchOnce(ctx context.Context) int {
	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTimeout)
	if d.DB == nil {
		return 0
	}

	var claimed []models.NotificationLog
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Eligible:
		// - FAILED and due for retry
		// - PROCESSING with a stale lock (worker died mid-send)
		q := tx.
			Where(`
				(status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?))
				OR
				(status = ? AND locked_at IS NOT NULL AND locked_at <= ?)
			`, models.NotificationStatusFailed, now, models.NotificationStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			if d.MaxAttempts > 0 && claimed[i].Attempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max attempts exceeded (%d)", d.MaxAttempts)
				claimed[i].Status = models.NotificationStatusDead
				if err := tx.Model(&models.NotificationLog{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"status":          models.NotificationStatusDead,
					"last_error":      &msg,
					"next_attempt_at": nil,
					"locked_at":       nil,
					"locked_by":       nil,
				}).Error; err != nil {
					return err
				}
				continue
			}

			claimed[i].Status = models.NotificationStatusProcessing
			claimed[i].Attempts++
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &d.DispatcherID
			if err := tx.Model(&models.NotificationLog{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"status":          models.NotificationStatusProcessing,
				"attempts":        gorm.Expr("attempts + 1"),
				"locked_at":       &now,
				"locked_by":       &d.DispatcherID,
				"next_attempt_at": nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		config.LogError(d.Logger, "NotificationDispatcher", "dispatchOnce", "claim notifications", nil, err)
		return 0
	}

	attempted := 0
	for _, rec := range claimed {
		if rec.Status == models.NotificationStatusDead {
			continue
		}
		d.send(ctx, rec)
		attempted++
	}
	return attempted
}

func (d *NotificationDispatcher) markSent(ctx context.Context, id int, messageId string) {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":          models.NotificationStatusSent,
		"sent_at":         &now,
		"last_error":      nil,
		"locked_at":       nil,
		"locked_by":       nil,
		"next_attempt_at": nil,
	}
	if messageId != "" {
		updates["message_id"] = &messageId
	}
	if err := d.DB.WithContext(context.WithoutCancel(ctx)).Model(&models.NotificationLog{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		config.LogError(d.Logger, "NotificationDispatcher", "markSent", "update notification", id, err)
	}
}

func (d *NotificationDispatcher) markFailed(ctx context.Context, id int, referenceId int, err error, attempt int) {
	db := d.DB.WithContext(context.WithoutCancel(ctx))
	msg := err.Error()

	if d.MaxAttempts > 0 && attempt >= d.MaxAttempts {
		if err := db.Model(&models.NotificationLog{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":          models.NotificationStatusDead,
			"last_error":      &msg,
			"next_attempt_at": nil,
			"locked_at":       nil,
			"locked_by":       nil,
		}).Error; err != nil {
			config.LogError(d.Logger, "NotificationDispatcher", "markFailed", "mark notification dead", id, err)
		}
		if d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"field":        "NotificationDispatcher",
				"record_id":    id,
				"reference_id": referenceId,
				"attempt":      attempt,
			}).Error("notification moved to dead after max attempts: " + msg)
		}
		return
	}

	next := time.Now().UTC().Add(retryDelay(d.InitialBackoff, attempt))
	if err := db.Model(&models.NotificationLog{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":          models.NotificationStatusFailed,
		"last_error":      &msg,
		"next_attempt_at": &next,
		"locked_at":       nil,
		"locked_by":       nil,
	}).Error; err != nil {
		config.LogError(d.Logger, "NotificationDispatcher", "markFailed", "mark notification failed", id, err)
	}
	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":           "NotificationDispatcher",
			"record_id":       id,
			"reference_id":    referenceId,
			"attempt":         attempt,
			"next_attempt_at": next.Format(time.RFC3339Nano),
		}).Error("notification send failed: " + msg)
	}
}

// retryDelay doubles per attempt and caps at ten minutes.
func retryDelay(initial time.Duration, attempt int) time.Duration {
	backoff := initial
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > 10*time.Minute {
			return 10 * time.Minute
		}
	}
	return backoff
}

func (d *NotificationDispatcher) logWarn(referenceId int, msg string) {
	if d.Logger == nil {
		return
	}
	d.Logger.WithFields(logrus.Fields{
		"field":        "NotificationDispatcher",
		"reference_id": referenceId,
	}).Warn(msg)
}
