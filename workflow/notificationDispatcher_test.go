package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/cari_backend/config"
	"bitbucket.org/mmdatafocus/cari_backend/models"
	"bitbucket.org/mmdatafocus/cari_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	mu   sync.Mutex
	fail bool
	sent []config.EmailMessage
}

func (m *fakeMailer) Send(ctx context.Context, msg config.EmailMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, msg)
	return "msg-" + msg.To, nil
}

func newTestDispatcher(f *fixture, mailer Mailer, queueSize int) *NotificationDispatcher {
	settings := config.DefaultSettings()
	settings.NotificationQueueSize = queueSize
	settings.NotificationMaxAttempts = 3
	d := NewNotificationDispatcher(f.db, testLogger(), mailer, settings)
	d.InitialBackoff = time.Second
	return d
}

func signedNote(f *fixture, customerId int) models.DeliveryNote {
	signer := "Ayse Yilmaz"
	signedAt := fixedNow
	return models.DeliveryNote{
		ID:             7,
		DeliveryNumber: "DN-" + today + "-0007",
		CustomerId:     customerId,
		DeliveryDate:   date("2026-10-18"),
		Status:         models.DeliveryNoteStatusDelivered,
		SignerName:     &signer,
		SignatureDate:  &signedAt,
		TotalAmount:    dec("125.5"),
	}
}

func TestDispatcherSendsAndRecords(t *testing.T) {
	f := newFixture(t)
	mailer := &fakeMailer{}
	d := newTestDispatcher(f, mailer, 4)

	ctx := utils.SetCorrelationIdInContext(f.ctx, "corr-1")
	d.DeliverySigned(ctx, signedNote(f, f.customer.ID))
	d.handle(ctx, <-d.queue)

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "billing@anadolu.example", msg.To)
	assert.Equal(t, models.NotificationEventDeliverySigned, msg.EventType)
	assert.Contains(t, msg.Subject, "DN-"+today+"-0007")
	assert.Contains(t, msg.Body, "Ayse Yilmaz")
	assert.Contains(t, msg.Body, "125.50")

	var rec models.NotificationLog
	require.NoError(t, f.db.First(&rec).Error)
	assert.Equal(t, models.NotificationStatusSent, rec.Status)
	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, "corr-1", rec.CorrelationId)
	require.NotNil(t, rec.MessageId)
	assert.Equal(t, "msg-billing@anadolu.example", *rec.MessageId)
	assert.NotNil(t, rec.SentAt)
	assert.Nil(t, rec.LockedBy)
}

func TestDispatcherFailureSchedulesRetry(t *testing.T) {
	f := newFixture(t)
	mailer := &fakeMailer{fail: true}
	d := newTestDispatcher(f, mailer, 4)

	d.DeliverySigned(f.ctx, signedNote(f, f.customer.ID))
	d.handle(f.ctx, <-d.queue)

	var rec models.NotificationLog
	require.NoError(t, f.db.First(&rec).Error)
	assert.Equal(t, models.NotificationStatusFailed, rec.Status)
	assert.Equal(t, 1, rec.Attempts)
	require.NotNil(t, rec.LastError)
	assert.Equal(t, "smtp unavailable", *rec.LastError)
	require.NotNil(t, rec.NextAttemptAt)
	assert.True(t, rec.NextAttemptAt.After(time.Now().UTC()))

	// not due yet
	d.dispatchOnce(f.ctx)
	require.NoError(t, f.db.First(&rec, rec.ID).Error)
	assert.Equal(t, 1, rec.Attempts)

	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, f.db.Model(&models.NotificationLog{}).Where("id = ?", rec.ID).Update("next_attempt_at", past).Error)
	mailer.fail = false
	d.dispatchOnce(f.ctx)

	require.NoError(t, f.db.First(&rec, rec.ID).Error)
	assert.Equal(t, models.NotificationStatusSent, rec.Status)
	assert.Equal(t, 2, rec.Attempts)
	assert.Len(t, mailer.sent, 1)
}

func TestDispatcherGivesUpAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	mailer := &fakeMailer{fail: true}
	d := newTestDispatcher(f, mailer, 4)

	d.DeliverySigned(f.ctx, signedNote(f, f.customer.ID))
	d.handle(f.ctx, <-d.queue)

	var rec models.NotificationLog
	for i := 0; i < 3; i++ {
		past := time.Now().UTC().Add(-time.Minute)
		require.NoError(t, f.db.Model(&models.NotificationLog{}).
			Where("status = ?", models.NotificationStatusFailed).
			Update("next_attempt_at", past).Error)
		d.dispatchOnce(f.ctx)
	}
	require.NoError(t, f.db.First(&rec).Error)
	assert.Equal(t, models.NotificationStatusDead, rec.Status)
	assert.Equal(t, 3, rec.Attempts)
	assert.Nil(t, rec.NextAttemptAt)
}

func TestDispatcherCustomerWithoutEmail(t *testing.T) {
	f := newFixture(t)
	silent := models.Customer{CompanyName: "No Mail Ltd"}
	require.NoError(t, f.db.Create(&silent).Error)
	mailer := &fakeMailer{}
	d := newTestDispatcher(f, mailer, 4)

	d.DeliverySigned(f.ctx, signedNote(f, silent.ID))
	d.handle(f.ctx, <-d.queue)

	assert.Empty(t, mailer.sent)
	var rec models.NotificationLog
	require.NoError(t, f.db.First(&rec).Error)
	assert.Equal(t, models.NotificationStatusDead, rec.Status)
}

func TestDeliverySignedNeverBlocks(t *testing.T) {
	f := newFixture(t)
	d := newTestDispatcher(f, &fakeMailer{}, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			d.DeliverySigned(f.ctx, signedNote(f, f.customer.ID))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("DeliverySigned blocked on a full queue")
	}
	d.Wait()

	assert.Len(t, d.queue, 1)
	var deferred int64
	require.NoError(t, f.db.Model(&models.NotificationLog{}).Where("status = ?", models.NotificationStatusFailed).Count(&deferred).Error)
	assert.EqualValues(t, 2, deferred)
}

func TestDispatcherStartDrainsQueue(t *testing.T) {
	f := newFixture(t)
	mailer := &fakeMailer{}
	d := newTestDispatcher(f, mailer, 4)
	d.PollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(f.ctx)
	d.Start(ctx)
	d.DeliverySigned(ctx, signedNote(f, f.customer.ID))

	assert.Eventually(t, func() bool {
		var sent int64
		f.db.Model(&models.NotificationLog{}).Where("status = ?", models.NotificationStatusSent).Count(&sent)
		return sent == 1
	}, 5*time.Second, 20*time.Millisecond)
	cancel()
	d.Wait()
}

func TestDispatcherStopKeepsQueuedNotifications(t *testing.T) {
	f := newFixture(t)
	mailer := &fakeMailer{}
	d := newTestDispatcher(f, mailer, 4)

	d.DeliverySigned(f.ctx, signedNote(f, f.customer.ID))
	d.DeliverySigned(f.ctx, signedNote(f, f.customer.ID))

	ctx, cancel := context.WithCancel(f.ctx)
	cancel()
	d.Start(ctx)
	d.Wait()

	assert.Empty(t, d.queue)
	assert.Empty(t, mailer.sent)
	var pending []models.NotificationLog
	require.NoError(t, f.db.Where("status = ?", models.NotificationStatusFailed).Find(&pending).Error)
	require.Len(t, pending, 2)
	for _, rec := range pending {
		require.NotNil(t, rec.LastError)
		assert.Equal(t, errDispatcherStopped.Error(), *rec.LastError)
		assert.NotNil(t, rec.NextAttemptAt)
	}

	// the next start picks them up
	assert.Equal(t, 2, d.RetryOnce(f.ctx))
	assert.Len(t, mailer.sent, 2)
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 30 * time.Second},
		{2, time.Minute},
		{3, 2 * time.Minute},
		{5, 8 * time.Minute},
		{6, 10 * time.Minute},
		{20, 10 * time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, retryDelay(30*time.Second, tt.attempt), "attempt %d", tt.attempt)
	}
}
