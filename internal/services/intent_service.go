package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/nonyonah/hedwig/internal/models"
	"github.com/nonyonah/hedwig/internal/repository"
)

// Intent names the parser can produce.
const (
	IntentSend        = "send"
	IntentBalance     = "balance"
	IntentInvoice     = "invoice"
	IntentOfframp     = "offramp"
	IntentPaymentLink = "payment_link"
	IntentHelp        = "help"
	IntentUnknown     = "unknown"
)

// requiredSlots lists the parameters each intent needs before it can run.
var requiredSlots = map[string][]string{
	IntentSend:        {"recipient", "amount", "asset", "chain"},
	IntentOfframp:     {"amount", "asset", "fiat_currency"},
	IntentPaymentLink: {"amount", "asset", "chain"},
}

// slotPrompts are the follow-up questions for missing parameters.
var slotPrompts = map[string]string{
	"recipient":     "Who do you want to send to? Paste the wallet address.",
	"amount":        "How much?",
	"asset":         "Which token? (e.g. USDC, ETH, SOL)",
	"chain":         "On which network? (e.g. base, solana)",
	"fiat_currency": "Which currency should the bank transfer arrive in? (e.g. NGN, KES)",
}

const intentSystemPrompt = `You are the intent parser for a crypto wallet assistant.
Given the user's message, respond with JSON only:
{"intent": "<send|balance|invoice|offramp|payment_link|help|unknown>",
 "params": {"recipient": "...", "amount": "...", "asset": "...", "chain": "...", "fiat_currency": "..."}}
Omit params you cannot extract. Amounts are plain decimal strings.
Chain is one of: ethereum, base, polygon, bsc, arbitrum, solana.
If the message is not about wallet operations, use intent "unknown".`

// textGenerator is the subset of the LLM client the intent service uses.
type textGenerator interface {
	Generate(ctx context.Context, systemPrompt, userText string) (string, error)
}

// ParsedIntent is the structured form of one user message.
type ParsedIntent struct {
	Name   string            `json:"intent"`
	Params map[string]string `json:"params"`
}

// TurnResult is the outcome of one conversational turn.
type TurnResult struct {
	// Complete is non-nil when slot-filling finished and the intent is
	// ready to execute.
	Complete *ParsedIntent
	// Prompt is the follow-up question when a required slot is missing.
	Prompt string
}

// IntentService parses free text into intents and fills missing parameters
// across turns using the session store.
type IntentService struct {
	llm      textGenerator
	sessions repository.SessionRepository
}

// NewIntentService creates an IntentService.
func NewIntentService(llm textGenerator, sessions repository.SessionRepository) *IntentService {
	return &IntentService{llm: llm, sessions: sessions}
}

// Parse runs the LLM over one message. Anything unparseable comes back as
// IntentUnknown rather than an error: the caller renders the fallback reply.
func (s *IntentService) Parse(ctx context.Context, text string) ParsedIntent {
	raw, err := s.llm.Generate(ctx, intentSystemPrompt, text)
	if err != nil {
		logrus.WithError(err).Warn("intent parse call failed")
		return ParsedIntent{Name: IntentUnknown, Params: map[string]string{}}
	}

	var parsed ParsedIntent
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || parsed.Name == "" {
		logrus.WithField("raw", truncate(raw, 200)).Warn("unparseable intent output")
		return ParsedIntent{Name: IntentUnknown, Params: map[string]string{}}
	}
	if parsed.Params == nil {
		parsed.Params = map[string]string{}
	}
	for k, v := range parsed.Params {
		parsed.Params[k] = strings.TrimSpace(v)
	}
	return parsed
}

// HandleTurn advances the conversation one turn: parse the message, merge
// it with any pending intent in the session, and either return the complete
// intent or the next follow-up question. The session write uses an
// optimistic version check; on conflict the turn is re-run against the
// fresh session state.
func (s *IntentService) HandleTurn(ctx context.Context, userID, text string) (*TurnResult, error) {
	parsed := s.Parse(ctx, text)

	for attempt := 0; attempt < 2; attempt++ {
		result, err := s.applyTurn(ctx, userID, text, parsed)
		if errors.Is(err, repository.ErrSessionConflict) {
			continue
		}
		return result, err
	}
	return nil, repository.ErrSessionConflict
}

func (s *IntentService) applyTurn(ctx context.Context, userID, text string, parsed ParsedIntent) (*TurnResult, error) {
	session, err := s.sessions.Get(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	intent := parsed.Name
	params := map[string]string{}

	if session != nil && session.PendingIntent != "" {
		// Continue the pending intent: merge field-wise, last write wins
		// per field, never wholesale.
		intent = session.PendingIntent
		if session.CollectedParams != "" {
			if err := json.Unmarshal([]byte(session.CollectedParams), &params); err != nil {
				logrus.WithError(err).Warn("corrupt session params, starting over")
				params = map[string]string{}
			}
		}
		if parsed.Name != IntentUnknown && parsed.Name != intent {
			// The user changed their mind mid-flow; switch intents and
			// keep only the new message's params.
			intent = parsed.Name
			params = map[string]string{}
		}
		for k, v := range parsed.Params {
			if v != "" {
				params[k] = v
			}
		}
		// A bare reply ("0xabc...", "10") answers the slot we asked for.
		if parsed.Name == IntentUnknown {
			if missing := missingSlots(intent, params); len(missing) > 0 {
				if guessed := guessSlotValue(missing[0], text); guessed != "" {
					params[missing[0]] = guessed
				}
			}
		}
	} else {
		if intent == IntentUnknown {
			return &TurnResult{Complete: &ParsedIntent{Name: IntentUnknown, Params: map[string]string{}}}, nil
		}
		for k, v := range parsed.Params {
			if v != "" {
				params[k] = v
			}
		}
	}

	missing := missingSlots(intent, params)
	if len(missing) == 0 {
		if session != nil {
			if err := s.sessions.Clear(ctx, userID); err != nil {
				logrus.WithError(err).Warn("clear session after completed intent")
			}
		}
		return &TurnResult{Complete: &ParsedIntent{Name: intent, Params: params}}, nil
	}

	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	next := &models.SessionContext{
		UserID:          userID,
		PendingIntent:   intent,
		CollectedParams: string(encoded),
		LastActive:      time.Now(),
	}
	if session != nil {
		next.Version = session.Version
	}
	if err := s.sessions.Save(ctx, next); err != nil {
		return nil, err
	}

	return &TurnResult{Prompt: slotPrompts[missing[0]]}, nil
}

func missingSlots(intent string, params map[string]string) []string {
	var missing []string
	for _, slot := range requiredSlots[intent] {
		if params[slot] == "" {
			missing = append(missing, slot)
		}
	}
	return missing
}

// guessSlotValue interprets a terse reply as the answer to the slot we just
// asked about, without another LLM round trip.
func guessSlotValue(slot, text string) string {
	text = strings.TrimSpace(text)
	if text == "" || strings.ContainsAny(text, " \n") {
		return ""
	}
	switch slot {
	case "recipient":
		if strings.HasPrefix(text, "0x") || len(text) >= 32 {
			return text
		}
	case "amount":
		if strings.IndexFunc(text, func(r rune) bool { return (r < '0' || r > '9') && r != '.' }) == -1 {
			return text
		}
	case "asset", "chain", "fiat_currency":
		if len(text) <= 12 {
			return text
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
