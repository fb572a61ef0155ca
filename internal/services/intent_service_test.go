package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nonyonah/hedwig/internal/models"
	"github.com/nonyonah/hedwig/internal/repository"
)

// scriptedLLM returns canned outputs in order.
type scriptedLLM struct {
	outputs []string
	err     error
	calls   int
}

func (s *scriptedLLM) Generate(_ context.Context, _, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	i := s.calls
	if i >= len(s.outputs) {
		i = len(s.outputs) - 1
	}
	s.calls++
	return s.outputs[i], nil
}

// fakeSessionRepo is an in-memory SessionRepository with the same version
// semantics as the real one.
type fakeSessionRepo struct {
	sessions map[string]*models.SessionContext
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*models.SessionContext)}
}

func (f *fakeSessionRepo) Get(_ context.Context, userID string) (*models.SessionContext, error) {
	if s, ok := f.sessions[userID]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSessionRepo) Save(_ context.Context, session *models.SessionContext) error {
	existing, exists := f.sessions[session.UserID]
	if session.Version == 0 {
		if exists {
			return repository.ErrSessionConflict
		}
		session.Version = 1
		cp := *session
		f.sessions[session.UserID] = &cp
		return nil
	}
	if !exists || existing.Version != session.Version {
		return repository.ErrSessionConflict
	}
	session.Version++
	cp := *session
	f.sessions[session.UserID] = &cp
	return nil
}

func (f *fakeSessionRepo) Clear(_ context.Context, userID string) error {
	delete(f.sessions, userID)
	return nil
}

func TestHandleTurnCompleteIntentInOneShot(t *testing.T) {
	llm := &scriptedLLM{outputs: []string{
		`{"intent":"send","params":{"recipient":"0xabc","amount":"10","asset":"USDC","chain":"base"}}`,
	}}
	sessions := newFakeSessionRepo()
	svc := NewIntentService(llm, sessions)

	result, err := svc.HandleTurn(context.Background(), "u1", "send 10 USDC to 0xabc on base")
	require.NoError(t, err)
	require.NotNil(t, result.Complete)
	assert.Equal(t, IntentSend, result.Complete.Name)
	assert.Equal(t, "10", result.Complete.Params["amount"])
	assert.Empty(t, result.Prompt)
	// Completed intents leave no session behind.
	assert.Empty(t, sessions.sessions)
}

func TestHandleTurnAsksForMissingSlot(t *testing.T) {
	llm := &scriptedLLM{outputs: []string{
		`{"intent":"send","params":{"amount":"10","asset":"USDC","chain":"base"}}`,
	}}
	sessions := newFakeSessionRepo()
	svc := NewIntentService(llm, sessions)

	result, err := svc.HandleTurn(context.Background(), "u1", "send 10 USDC on base")
	require.NoError(t, err)
	assert.Nil(t, result.Complete)
	assert.Contains(t, result.Prompt, "wallet address")

	saved := sessions.sessions["u1"]
	require.NotNil(t, saved)
	assert.Equal(t, IntentSend, saved.PendingIntent)
}

func TestHandleTurnMergesAcrossTurns(t *testing.T) {
	llm := &scriptedLLM{outputs: []string{
		`{"intent":"send","params":{"amount":"10","asset":"USDC","chain":"base"}}`,
		`{"intent":"unknown","params":{}}`,
	}}
	sessions := newFakeSessionRepo()
	svc := NewIntentService(llm, sessions)

	first, err := svc.HandleTurn(context.Background(), "u1", "send 10 USDC on base")
	require.NoError(t, err)
	require.Nil(t, first.Complete)

	// A bare address reply answers the slot we asked for even when the
	// parser makes nothing of it.
	second, err := svc.HandleTurn(context.Background(), "u1", "0x52908400098527886E0F7030069857D2E4169EE7")
	require.NoError(t, err)
	require.NotNil(t, second.Complete)
	assert.Equal(t, IntentSend, second.Complete.Name)
	assert.Equal(t, "0x52908400098527886E0F7030069857D2E4169EE7", second.Complete.Params["recipient"])
	assert.Equal(t, "10", second.Complete.Params["amount"])
	assert.Empty(t, sessions.sessions)
}

func TestHandleTurnIntentSwitchDropsStaleParams(t *testing.T) {
	llm := &scriptedLLM{outputs: []string{
		`{"intent":"send","params":{"amount":"10","asset":"USDC","chain":"base"}}`,
		`{"intent":"offramp","params":{"amount":"50","asset":"USDC"}}`,
	}}
	sessions := newFakeSessionRepo()
	svc := NewIntentService(llm, sessions)

	_, err := svc.HandleTurn(context.Background(), "u1", "send 10 USDC on base")
	require.NoError(t, err)

	result, err := svc.HandleTurn(context.Background(), "u1", "actually cash out 50 USDC")
	require.NoError(t, err)
	require.Nil(t, result.Complete)
	// The pending intent switched; the send chain param must not leak into
	// the offramp flow.
	saved := sessions.sessions["u1"]
	require.NotNil(t, saved)
	assert.Equal(t, IntentOfframp, saved.PendingIntent)
	assert.NotContains(t, saved.CollectedParams, "base")
	assert.Contains(t, result.Prompt, "currency")
}

func TestParseFallsBackToUnknown(t *testing.T) {
	cases := map[string]*scriptedLLM{
		"llm error":      {err: errors.New("upstream 500")},
		"garbage output": {outputs: []string{"I think the user wants to send money"}},
		"empty intent":   {outputs: []string{`{"params":{}}`}},
	}
	for name, llm := range cases {
		t.Run(name, func(t *testing.T) {
			svc := NewIntentService(llm, newFakeSessionRepo())
			parsed := svc.Parse(context.Background(), "whatever")
			assert.Equal(t, IntentUnknown, parsed.Name)
			assert.NotNil(t, parsed.Params)
		})
	}
}

func TestHandleTurnUnknownWithoutPendingIntent(t *testing.T) {
	llm := &scriptedLLM{outputs: []string{`{"intent":"unknown","params":{}}`}}
	sessions := newFakeSessionRepo()
	svc := NewIntentService(llm, sessions)

	result, err := svc.HandleTurn(context.Background(), "u1", "what's the weather")
	require.NoError(t, err)
	require.NotNil(t, result.Complete)
	assert.Equal(t, IntentUnknown, result.Complete.Name)
	assert.Empty(t, sessions.sessions)
}

func TestGuessSlotValue(t *testing.T) {
	assert.Equal(t, "0xabc123", guessSlotValue("recipient", "0xabc123"))
	assert.Equal(t, "10.5", guessSlotValue("amount", "10.5"))
	assert.Equal(t, "", guessSlotValue("amount", "ten"))
	assert.Equal(t, "USDC", guessSlotValue("asset", "USDC"))
	assert.Equal(t, "", guessSlotValue("asset", "I would like to use USDC please"))
	assert.Equal(t, "NGN", guessSlotValue("fiat_currency", "NGN"))
	assert.Equal(t, "", guessSlotValue("recipient", "bob"))
}
