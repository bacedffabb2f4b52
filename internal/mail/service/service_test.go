package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadbook/internal/cache"
	dmodels "roadbook/internal/driver/models"
	"roadbook/internal/mail/models"
	"roadbook/internal/mail/store"
)

type stubSender struct {
	err  error
	to   string
	body string
}

func (s *stubSender) Send(to, _, body string) error {
	s.to = to
	s.body = body
	return s.err
}

func TestSendVerification(t *testing.T) {
	mem := store.NewMemory()
	cacheStore := cache.NewMemoryStore()
	sender := &stubSender{}

	svc, err := New(mem, cacheStore, sender)
	require.NoError(t, err)

	driver := &dmodels.Driver{ID: uuid.New(), FirstName: "Jean", Email: "jean@example.com"}
	require.NoError(t, svc.SendVerification(context.Background(), driver))

	// The delivered mail must reference the cached token.
	token, found, err := cacheStore.Get(context.Background(), cache.VerifyEmailKey(driver.ID))
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, token, 100)
	assert.Contains(t, sender.body, string(token))
	assert.Equal(t, "jean@example.com", sender.to)

	mails := mem.Mails()
	require.Len(t, mails, 1)
	assert.Equal(t, models.TypeVerification, mails[0].TypeID)
	assert.Equal(t, models.StatusSuccess, mails[0].Status)
	assert.NotNil(t, mails[0].SentAt)
}

func TestSendVerificationDeliveryFailure(t *testing.T) {
	mem := store.NewMemory()
	sender := &stubSender{err: errors.New("smtp: connection refused")}

	svc, err := New(mem, cache.NewMemoryStore(), sender)
	require.NoError(t, err)

	driver := &dmodels.Driver{ID: uuid.New(), FirstName: "Jean", Email: "jean@example.com"}
	err = svc.SendVerification(context.Background(), driver)
	require.ErrorIs(t, err, ErrSendFailed)

	// The ledger row settles to FAILED instead of disappearing.
	mails := mem.Mails()
	require.Len(t, mails, 1)
	assert.Equal(t, models.StatusFailed, mails[0].Status)
	assert.Nil(t, mails[0].SentAt)
}

func TestSendVerificationTokenIsAlphanumeric(t *testing.T) {
	cacheStore := cache.NewMemoryStore()
	svc, err := New(store.NewMemory(), cacheStore, &stubSender{})
	require.NoError(t, err)

	driver := &dmodels.Driver{ID: uuid.New(), FirstName: "Jean", Email: "jean@example.com"}
	require.NoError(t, svc.SendVerification(context.Background(), driver))

	token, found, err := cacheStore.Get(context.Background(), cache.VerifyEmailKey(driver.ID))
	require.NoError(t, err)
	require.True(t, found)

	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	for _, r := range string(token) {
		assert.True(t, strings.ContainsRune(alphabet, r), "unexpected rune %q", r)
	}
}
