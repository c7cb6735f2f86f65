package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/durablenotify/notifysvc/internal/domain/model"
	repo "github.com/durablenotify/notifysvc/internal/domain/repository"
)

// fakeNotificationRepository is an in-memory stand-in for
// repo.NotificationRepository, used so these tests exercise the
// service's validation and wiring logic without a database.
type fakeNotificationRepository struct {
	mu            sync.Mutex
	notifications map[uuid.UUID]*model.Notification
	jobs          map[uuid.UUID][]*model.NotificationJob
	failCreate    bool
}

func newFakeNotificationRepository() *fakeNotificationRepository {
	return &fakeNotificationRepository{
		notifications: make(map[uuid.UUID]*model.Notification),
		jobs:          make(map[uuid.UUID][]*model.NotificationJob),
	}
}

func (f *fakeNotificationRepository) CreateWithJobs(_ context.Context, n *model.Notification, jobs []*model.NotificationJob) error {
	if f.failCreate {
		return assert.AnError
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications[n.ID] = n
	f.jobs[n.ID] = jobs
	return nil
}

func (f *fakeNotificationRepository) GetByID(_ context.Context, id uuid.UUID) (*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifications[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return n, nil
}

func (f *fakeNotificationRepository) FindByToken(_ context.Context, context_, token string) (*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notifications {
		if n.Context == context_ && n.Token == token {
			return n, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeNotificationRepository) ListJobs(_ context.Context, id uuid.UUID) ([]*model.NotificationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[id], nil
}

func (f *fakeNotificationRepository) CancelPendingJobs(_ context.Context, id uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	remaining := f.jobs[id][:0]
	cancelled := 0
	for _, j := range f.jobs[id] {
		if j.Owner == nil && j.EndAt == nil {
			cancelled++
			continue
		}
		remaining = append(remaining, j)
	}
	f.jobs[id] = remaining
	return cancelled, nil
}

type fakeUserRepository struct {
	users map[int64]*model.User
}

func newFakeUserRepository(ids ...int64) *fakeUserRepository {
	users := make(map[int64]*model.User, len(ids))
	for _, id := range ids {
		users[id] = &model.User{ID: id, Email: "user@example.com", FirstName: "F", LastName: "L"}
	}
	return &fakeUserRepository{users: users}
}

func (f *fakeUserRepository) GetByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepository) GetByIDs(_ context.Context, ids []int64) (map[int64]*model.User, error) {
	result := make(map[int64]*model.User)
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			result[id] = u
		}
	}
	return result, nil
}

func newTestService(notifications *fakeNotificationRepository, users *fakeUserRepository) *NotificationService {
	logger := zerolog.Nop()
	return New(notifications, users, 3, &logger)
}

func validInput() NewNotificationInput {
	return NewNotificationInput{
		Context:          "t",
		Priority:         model.PriorityDefault,
		Subject:          "s",
		PlainText:        "p",
		RecipientUserIDs: []int64{1},
	}
}

func TestNotify_SingleRecipientPlainTextOnly(t *testing.T) {
	notifications := newFakeNotificationRepository()
	users := newFakeUserRepository(1)
	svc := newTestService(notifications, users)

	notBefore := time.Now().UTC()
	in := validInput()
	in.NotBefore = &notBefore

	n, err := svc.Notify(context.Background(), in)
	require.NoError(t, err)

	assert.Len(t, n.Token, 32)
	assert.Equal(t, int16(50), n.Priority)
	assert.Equal(t, "t", n.Context)
	assert.Equal(t, "p", n.PlainText)
	assert.Empty(t, n.HTMLText)

	jobs := notifications.jobs[n.ID]
	require.Len(t, jobs, 1)
	assert.Equal(t, int64(1), jobs[0].RecipientID)
	assert.Equal(t, int16(50), jobs[0].Priority)
	assert.Equal(t, 3, jobs[0].RetriesRemaining)
	assert.Nil(t, jobs[0].Owner)
	assert.Nil(t, jobs[0].StartAt)
	assert.Nil(t, jobs[0].EndAt)
	assert.WithinDuration(t, notBefore, jobs[0].NotBefore, time.Millisecond)
}

func TestNotify_ThreeRecipients(t *testing.T) {
	notifications := newFakeNotificationRepository()
	users := newFakeUserRepository(1, 2, 3)
	svc := newTestService(notifications, users)

	in := validInput()
	in.RecipientUserIDs = []int64{1, 2, 3}

	n, err := svc.Notify(context.Background(), in)
	require.NoError(t, err)

	jobs := notifications.jobs[n.ID]
	require.Len(t, jobs, 3)
	for i, j := range jobs {
		assert.Equal(t, in.RecipientUserIDs[i], j.RecipientID)
		assert.Equal(t, 3, j.RetriesRemaining)
	}
}

func TestNotify_TokenProvidedIsPreserved(t *testing.T) {
	notifications := newFakeNotificationRepository()
	users := newFakeUserRepository(1)
	svc := newTestService(notifications, users)

	in := validInput()
	in.Token = "caller-supplied-token"

	n, err := svc.Notify(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "caller-supplied-token", n.Token)
}

func TestNotify_IdempotentResubmissionReturnsExistingNotification(t *testing.T) {
	notifications := newFakeNotificationRepository()
	users := newFakeUserRepository(1)
	svc := newTestService(notifications, users)

	in := validInput()
	in.Token = "retry-me"

	first, err := svc.Notify(context.Background(), in)
	require.NoError(t, err)

	second, err := svc.Notify(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, notifications.notifications, 1)
	assert.Len(t, notifications.jobs[first.ID], 1)
}

func TestNotify_ValidationRejection(t *testing.T) {
	cases := map[string]func(in *NewNotificationInput){
		"empty context": func(in *NewNotificationInput) {
			in.Context = ""
		},
		"invalid priority": func(in *NewNotificationInput) {
			in.Priority = "URGENT"
		},
		"empty subject": func(in *NewNotificationInput) {
			in.Subject = ""
		},
		"empty body": func(in *NewNotificationInput) {
			in.PlainText, in.HTMLText = "", ""
		},
		"empty recipients": func(in *NewNotificationInput) {
			in.RecipientUserIDs = nil
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			notifications := newFakeNotificationRepository()
			users := newFakeUserRepository(1)
			svc := newTestService(notifications, users)

			in := validInput()
			mutate(&in)

			_, err := svc.Notify(context.Background(), in)
			require.ErrorIs(t, err, repo.ErrInvalidNotification)
			assert.Empty(t, notifications.notifications)
			assert.Empty(t, notifications.jobs)
		})
	}
}

func TestNotify_UnknownRecipient(t *testing.T) {
	notifications := newFakeNotificationRepository()
	users := newFakeUserRepository(1)
	svc := newTestService(notifications, users)

	in := validInput()
	in.RecipientUserIDs = []int64{999999}

	_, err := svc.Notify(context.Background(), in)
	require.ErrorIs(t, err, repo.ErrInvalidNotification)
	assert.Empty(t, notifications.notifications)
}

func TestNotify_UnavailableOnPersistFailure(t *testing.T) {
	notifications := newFakeNotificationRepository()
	notifications.failCreate = true
	users := newFakeUserRepository(1)
	svc := newTestService(notifications, users)

	_, err := svc.Notify(context.Background(), validInput())
	require.ErrorIs(t, err, repo.ErrUnavailable)
}

func TestNotify_PriorityMappingStability(t *testing.T) {
	cases := map[model.Priority]int16{
		model.PriorityHigh:    10,
		model.PriorityDefault: 50,
		model.PriorityLow:     100,
	}
	for priority, want := range cases {
		notifications := newFakeNotificationRepository()
		users := newFakeUserRepository(1)
		svc := newTestService(notifications, users)

		in := validInput()
		in.Priority = priority

		n, err := svc.Notify(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, want, n.Priority)
		assert.Equal(t, want, notifications.jobs[n.ID][0].Priority)
	}
}

func TestCancelNotification_NoCancellableJobs(t *testing.T) {
	notifications := newFakeNotificationRepository()
	users := newFakeUserRepository(1)
	svc := newTestService(notifications, users)

	n, err := svc.Notify(context.Background(), validInput())
	require.NoError(t, err)

	owner := "worker-1"
	notifications.jobs[n.ID][0].Owner = &owner

	_, err = svc.CancelNotification(context.Background(), n.ID)
	require.ErrorIs(t, err, repo.ErrNotCancellable)
}

func TestCancelNotification_CancelsPendingJobs(t *testing.T) {
	notifications := newFakeNotificationRepository()
	users := newFakeUserRepository(1)
	svc := newTestService(notifications, users)

	n, err := svc.Notify(context.Background(), validInput())
	require.NoError(t, err)

	cancelled, err := svc.CancelNotification(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cancelled)
}
