package smscode

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-auth-sms/internal/config"
	"github.com/go-auth-sms/internal/domain"
	redisinfra "github.com/go-auth-sms/internal/infrastructure/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockSender struct{ mock.Mock }

func (m *mockSender) SendCode(ctx context.Context, phone, code string) error {
	return m.Called(ctx, phone, code).Error(0)
}

// --- helpers ---

func testConfig() *config.Config {
	return &config.Config{
		SMSCodeLength:     6,
		SMSCodeTTL:        5 * time.Minute,
		SMSResendCooldown: time.Minute,
		SMSMaxAttempts:    3,
		SMSDailyLimit:     5,
	}
}

func newSvc(t *testing.T, sender *mockSender) (Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(testConfig(), ServiceDeps{
		Store:  redisinfra.NewStoreWithClient(client),
		Sender: sender,
	}), mr
}

// sentCode extracts the code delivered through the mocked sender.
func sentCode(sender *mockSender) string {
	for _, call := range sender.Calls {
		if call.Method == "SendCode" {
			return call.Arguments.String(2)
		}
	}
	return ""
}

const phone = "+10000000000"

func TestSend_StoresCodeAndAppliesCooldown(t *testing.T) {
	sender := &mockSender{}
	sender.On("SendCode", mock.Anything, phone, mock.AnythingOfType("string")).Return(nil)
	svc, mr := newSvc(t, sender)
	ctx := context.Background()

	require.NoError(t, svc.Send(ctx, domain.SceneLogin, phone))

	raw, err := mr.Get("auth:sms:code:login:" + phone)
	require.NoError(t, err)
	var record codeRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &record))
	assert.Len(t, record.Code, 6)
	assert.Equal(t, record.Code, sentCode(sender))
	assert.Zero(t, record.Attempts)

	assert.True(t, mr.Exists("auth:sms:cooldown:login:"+phone))
	sender.AssertExpectations(t)
}

func TestSend_CooldownBlocksResend(t *testing.T) {
	sender := &mockSender{}
	sender.On("SendCode", mock.Anything, phone, mock.AnythingOfType("string")).Return(nil)
	svc, mr := newSvc(t, sender)
	ctx := context.Background()

	require.NoError(t, svc.Send(ctx, domain.SceneLogin, phone))

	err := svc.Send(ctx, domain.SceneLogin, phone)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTooManyRequests))

	// After the cooldown window a send succeeds again.
	mr.FastForward(61 * time.Second)
	assert.NoError(t, svc.Send(ctx, domain.SceneLogin, phone))
}

func TestSend_DailyLimit(t *testing.T) {
	sender := &mockSender{}
	sender.On("SendCode", mock.Anything, phone, mock.AnythingOfType("string")).Return(nil)
	svc, mr := newSvc(t, sender)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Send(ctx, domain.SceneLogin, phone))
		mr.FastForward(61 * time.Second)
	}

	err := svc.Send(ctx, domain.SceneLogin, phone)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTooManyRequests))
}

func TestSend_DeliveryFailureCleansUp(t *testing.T) {
	sender := &mockSender{}
	sender.On("SendCode", mock.Anything, phone, mock.AnythingOfType("string")).Return(errors.New("sns unavailable"))
	svc, mr := newSvc(t, sender)
	ctx := context.Background()

	err := svc.Send(ctx, domain.SceneLogin, phone)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSmsSendFailed))

	// No cooldown and no code may survive a failed delivery.
	assert.False(t, mr.Exists("auth:sms:code:login:"+phone))
	assert.False(t, mr.Exists("auth:sms:cooldown:login:"+phone))

	// A retry is allowed immediately.
	sender2 := &mockSender{}
	sender2.On("SendCode", mock.Anything, phone, mock.AnythingOfType("string")).Return(nil)
	svc2 := NewService(testConfig(), ServiceDeps{
		Store:  storeFromMini(t, mr),
		Sender: sender2,
	})
	assert.NoError(t, svc2.Send(ctx, domain.SceneLogin, phone))
}

func TestVerify_Succeeds_ThenCodeIsConsumed(t *testing.T) {
	sender := &mockSender{}
	sender.On("SendCode", mock.Anything, phone, mock.AnythingOfType("string")).Return(nil)
	svc, _ := newSvc(t, sender)
	ctx := context.Background()

	require.NoError(t, svc.Send(ctx, domain.SceneLogin, phone))
	code := sentCode(sender)

	require.NoError(t, svc.Verify(ctx, domain.SceneLogin, phone, code))

	// Replaying the same code fails: the record was deleted on success.
	err := svc.Verify(ctx, domain.SceneLogin, phone, code)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidVerificationCode))
}

func TestVerify_NoCodeLooksLikeWrongCode(t *testing.T) {
	svc, _ := newSvc(t, &mockSender{})
	err := svc.Verify(context.Background(), domain.SceneLogin, phone, "000000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidVerificationCode))
}

func TestVerify_AttemptCeilingPurgesRecord(t *testing.T) {
	sender := &mockSender{}
	sender.On("SendCode", mock.Anything, phone, mock.AnythingOfType("string")).Return(nil)
	svc, mr := newSvc(t, sender)
	ctx := context.Background()

	require.NoError(t, svc.Send(ctx, domain.SceneLogin, phone))
	code := sentCode(sender)

	// Burn through the attempt budget with wrong guesses.
	for i := 0; i < 3; i++ {
		err := svc.Verify(ctx, domain.SceneLogin, phone, "wrong!")
		assert.True(t, errors.Is(err, domain.ErrInvalidVerificationCode))
	}
	assert.False(t, mr.Exists("auth:sms:code:login:"+phone))

	// Even the correct code fails now; a fresh send is required.
	err := svc.Verify(ctx, domain.SceneLogin, phone, code)
	assert.True(t, errors.Is(err, domain.ErrInvalidVerificationCode))
}

func TestVerify_MismatchPreservesRemainingTTL(t *testing.T) {
	sender := &mockSender{}
	sender.On("SendCode", mock.Anything, phone, mock.AnythingOfType("string")).Return(nil)
	svc, mr := newSvc(t, sender)
	ctx := context.Background()

	require.NoError(t, svc.Send(ctx, domain.SceneLogin, phone))
	mr.FastForward(2 * time.Minute)

	err := svc.Verify(ctx, domain.SceneLogin, phone, "wrong!")
	assert.True(t, errors.Is(err, domain.ErrInvalidVerificationCode))

	// The rewrite must not extend the record past its original lifetime.
	ttl := mr.TTL("auth:sms:code:login:" + phone)
	assert.LessOrEqual(t, ttl, 3*time.Minute)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestVerify_MalformedRecordReadsAsAbsent(t *testing.T) {
	svc, mr := newSvc(t, &mockSender{})
	require.NoError(t, mr.Set("auth:sms:code:login:"+phone, "not-json"))

	err := svc.Verify(context.Background(), domain.SceneLogin, phone, "123456")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidVerificationCode))
}

func TestSend_ResendOverwritesAndResetsAttempts(t *testing.T) {
	sender := &mockSender{}
	sender.On("SendCode", mock.Anything, phone, mock.AnythingOfType("string")).Return(nil)
	svc, mr := newSvc(t, sender)
	ctx := context.Background()

	require.NoError(t, svc.Send(ctx, domain.SceneLogin, phone))
	_ = svc.Verify(ctx, domain.SceneLogin, phone, "wrong!")

	mr.FastForward(61 * time.Second)
	require.NoError(t, svc.Send(ctx, domain.SceneLogin, phone))

	raw, err := mr.Get("auth:sms:code:login:" + phone)
	require.NoError(t, err)
	var record codeRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &record))
	assert.Zero(t, record.Attempts)
}

func storeFromMini(t *testing.T, mr *miniredis.Miniredis) redisinfra.Store {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisinfra.NewStoreWithClient(client)
}
