package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/durablenotify/notifysvc/internal/domain/events"
	"github.com/durablenotify/notifysvc/internal/domain/model"
	"github.com/durablenotify/notifysvc/internal/domain/queue"
	repo "github.com/durablenotify/notifysvc/internal/domain/repository"
)

type fakeNotificationRepo struct {
	notification *model.Notification
}

func (f *fakeNotificationRepo) CreateWithJobs(context.Context, *model.Notification, []*model.NotificationJob) error {
	panic("not used")
}

func (f *fakeNotificationRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Notification, error) {
	if f.notification == nil || f.notification.ID != id {
		return nil, repo.ErrNotFound
	}
	return f.notification, nil
}

func (f *fakeNotificationRepo) FindByToken(context.Context, string, string) (*model.Notification, error) {
	panic("not used")
}

func (f *fakeNotificationRepo) ListJobs(context.Context, uuid.UUID) ([]*model.NotificationJob, error) {
	panic("not used")
}

func (f *fakeNotificationRepo) CancelPendingJobs(context.Context, uuid.UUID) (int, error) {
	panic("not used")
}

type fakeUserRepo struct {
	user *model.User
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	if f.user == nil || f.user.ID != id {
		return nil, repo.ErrNotFound
	}
	return f.user, nil
}

func (f *fakeUserRepo) GetByIDs(context.Context, []int64) (map[int64]*model.User, error) {
	panic("not used")
}

type fakeProvider struct {
	err error
}

func (f *fakeProvider) Send(context.Context, string, string, string, string) error {
	return f.err
}

type fakeRetryScheduler struct {
	inserted *model.NotificationJob
	err      error
}

func (f *fakeRetryScheduler) InsertRetry(_ context.Context, failed *model.NotificationJob, delay time.Duration) (*model.NotificationJob, error) {
	if f.err != nil {
		return nil, f.err
	}
	successor := &model.NotificationJob{
		ID:               uuid.New(),
		NotificationID:   failed.NotificationID,
		RecipientID:      failed.RecipientID,
		Priority:         failed.Priority,
		NotBefore:        time.Now().UTC().Add(delay),
		RetriesRemaining: failed.RetriesRemaining - 1,
	}
	f.inserted = successor
	return successor, nil
}

type fakePublisher struct {
	events []events.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, e events.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func newHandle(job *model.NotificationJob, release func(context.Context, bool) error) *queue.Handle {
	return queue.NewHandle(job, release)
}

func testNotifier(notifications *fakeNotificationRepo, users *fakeUserRepo, p *fakeProvider, retries *fakeRetryScheduler, publisher *fakePublisher) *Notifier {
	logger := zerolog.Nop()
	return New(notifications, users, p, publisher, retries, time.Minute, &logger)
}

func sampleNotification(id uuid.UUID) *model.Notification {
	return &model.Notification{
		ID:        id,
		Subject:   "Hello ${first_name}",
		PlainText: "Body for ${first_name}",
	}
}

func sampleUser(id int64) *model.User {
	return &model.User{ID: id, Email: "a@b.com", FirstName: "Ada", LastName: "Lovelace"}
}

func TestSend_SuccessReleasesTrueAndPublishesDelivered(t *testing.T) {
	notificationID := uuid.New()
	notifications := &fakeNotificationRepo{notification: sampleNotification(notificationID)}
	users := &fakeUserRepo{user: sampleUser(1)}
	p := &fakeProvider{}
	retries := &fakeRetryScheduler{}
	publisher := &fakePublisher{}
	n := testNotifier(notifications, users, p, retries, publisher)

	job := &model.NotificationJob{ID: uuid.New(), NotificationID: notificationID, RecipientID: 1, RetriesRemaining: 2}
	var released *bool
	handle := newHandle(job, func(_ context.Context, successful bool) error {
		released = &successful
		return nil
	})

	n.Send(context.Background(), handle)

	require.NotNil(t, released)
	assert.True(t, *released)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.KindJobDelivered, publisher.events[0].Kind)
	assert.Nil(t, retries.inserted)
}

func TestSend_FailureWithBudgetSchedulesRetry(t *testing.T) {
	notificationID := uuid.New()
	notifications := &fakeNotificationRepo{notification: sampleNotification(notificationID)}
	users := &fakeUserRepo{user: sampleUser(1)}
	p := &fakeProvider{err: errors.New("smtp down")}
	retries := &fakeRetryScheduler{}
	publisher := &fakePublisher{}
	n := testNotifier(notifications, users, p, retries, publisher)

	job := &model.NotificationJob{ID: uuid.New(), NotificationID: notificationID, RecipientID: 1, RetriesRemaining: 2}
	var released *bool
	handle := newHandle(job, func(_ context.Context, successful bool) error {
		released = &successful
		return nil
	})

	n.Send(context.Background(), handle)

	require.NotNil(t, released)
	assert.False(t, *released)
	require.NotNil(t, retries.inserted)
	assert.Equal(t, 1, retries.inserted.RetriesRemaining)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.KindJobFailed, publisher.events[0].Kind)
}

func TestSend_FailureWithNoBudgetDropsWithoutRetry(t *testing.T) {
	notificationID := uuid.New()
	notifications := &fakeNotificationRepo{notification: sampleNotification(notificationID)}
	users := &fakeUserRepo{user: sampleUser(1)}
	p := &fakeProvider{err: errors.New("smtp down")}
	retries := &fakeRetryScheduler{}
	publisher := &fakePublisher{}
	n := testNotifier(notifications, users, p, retries, publisher)

	job := &model.NotificationJob{ID: uuid.New(), NotificationID: notificationID, RecipientID: 1, RetriesRemaining: 0}
	handle := newHandle(job, func(context.Context, bool) error { return nil })

	n.Send(context.Background(), handle)

	assert.Nil(t, retries.inserted)
}

func TestSend_JobAlreadyOwnedSkipsRetryAndPublish(t *testing.T) {
	notificationID := uuid.New()
	notifications := &fakeNotificationRepo{notification: sampleNotification(notificationID)}
	users := &fakeUserRepo{user: sampleUser(1)}
	p := &fakeProvider{err: errors.New("smtp down")}
	retries := &fakeRetryScheduler{}
	publisher := &fakePublisher{}
	n := testNotifier(notifications, users, p, retries, publisher)

	job := &model.NotificationJob{ID: uuid.New(), NotificationID: notificationID, RecipientID: 1, RetriesRemaining: 3}
	handle := newHandle(job, func(context.Context, bool) error { return queue.ErrJobAlreadyOwned })

	n.Send(context.Background(), handle)

	assert.Nil(t, retries.inserted)
	assert.Empty(t, publisher.events)
}

func TestSend_ReleaseIsIdempotent(t *testing.T) {
	notificationID := uuid.New()
	notifications := &fakeNotificationRepo{notification: sampleNotification(notificationID)}
	users := &fakeUserRepo{user: sampleUser(1)}
	p := &fakeProvider{}
	retries := &fakeRetryScheduler{}
	publisher := &fakePublisher{}
	n := testNotifier(notifications, users, p, retries, publisher)

	job := &model.NotificationJob{ID: uuid.New(), NotificationID: notificationID, RecipientID: 1, RetriesRemaining: 2}
	calls := 0
	handle := newHandle(job, func(context.Context, bool) error {
		calls++
		return nil
	})

	n.Send(context.Background(), handle)
	require.NoError(t, handle.Release(context.Background(), true))
	assert.Equal(t, 1, calls)
}
