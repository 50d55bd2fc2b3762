package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medisecure-go/internal/errs"
	"medisecure-go/internal/model"
)

// fakeSessionRepo 是内存版 SessionRepository。
type fakeSessionRepo struct {
	store map[string]*model.SessionRecord
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{store: map[string]*model.SessionRecord{}}
}

func (f *fakeSessionRepo) Get(_ context.Context, sessionID string) (*model.SessionRecord, error) {
	record, ok := f.store[sessionID]
	if !ok {
		return nil, nil
	}
	cp := *record
	return &cp, nil
}

func (f *fakeSessionRepo) Save(_ context.Context, sessionID string, record *model.SessionRecord) error {
	cp := *record
	f.store[sessionID] = &cp
	return nil
}

func (f *fakeSessionRepo) Delete(_ context.Context, sessionID string) error {
	delete(f.store, sessionID)
	return nil
}

func (f *fakeSessionRepo) Count(context.Context) (int64, error) {
	return int64(len(f.store)), nil
}

func TestResolveCreatesNewSession(t *testing.T) {
	svc := NewSessionService(newFakeSessionRepo(), 20)

	sessionID, record, err := svc.Resolve(context.Background(), testUser(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, sessionID)
	_, parseErr := uuid.Parse(sessionID)
	assert.NoError(t, parseErr)
	assert.Equal(t, uint(1), record.UserID)
	assert.Empty(t, record.Messages)
}

func TestResolveRejectsInvalidSessionID(t *testing.T) {
	svc := NewSessionService(newFakeSessionRepo(), 20)

	_, _, err := svc.Resolve(context.Background(), testUser(), "not-a-uuid")
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestResolveRejectsForeignSession(t *testing.T) {
	repo := newFakeSessionRepo()
	sessionID := uuid.NewString()
	repo.store[sessionID] = &model.SessionRecord{UserID: 42}
	svc := NewSessionService(repo, 20)

	_, _, err := svc.Resolve(context.Background(), testUser(), sessionID)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	err = svc.Clear(context.Background(), testUser(), sessionID)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

// 不存在的会话视为该用户的空会话，而不是错误。
func TestResolveUnknownSessionIsEmpty(t *testing.T) {
	svc := NewSessionService(newFakeSessionRepo(), 20)

	sessionID := uuid.NewString()
	gotID, record, err := svc.Resolve(context.Background(), testUser(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, sessionID, gotID)
	assert.Empty(t, record.Messages)
}

func TestAppendExchangeTrimsHistory(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewSessionService(repo, 6)
	user := testUser()
	sessionID := uuid.NewString()

	for i := 0; i < 5; i++ {
		err := svc.AppendExchange(context.Background(), user, sessionID,
			fmt.Sprintf("question %d", i), fmt.Sprintf("answer %d", i))
		require.NoError(t, err)
	}

	messages, err := svc.History(context.Background(), user, sessionID)
	require.NoError(t, err)
	require.Len(t, messages, 6)
	// 最旧的消息被丢弃，剩下最近 3 轮
	assert.Equal(t, "question 2", messages[0].Content)
	assert.Equal(t, "answer 4", messages[5].Content)
}

func TestClearRemovesHistory(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewSessionService(repo, 20)
	user := testUser()
	sessionID := uuid.NewString()

	require.NoError(t, svc.AppendExchange(context.Background(), user, sessionID, "q", "a"))
	require.NoError(t, svc.Clear(context.Background(), user, sessionID))

	messages, err := svc.History(context.Background(), user, sessionID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}
