// Package llmverify implements the secondary LLM verifier (C7): an optional
// confirm/deny pass over the keyword-detected threat set, calling an
// OpenAI-compatible chat-completions endpoint (Ollama, llama.cpp) and
// failing open on any transport, timeout, or parse error.
package llmverify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tg-alert-filter/internal/domain"
	"tg-alert-filter/internal/infra/openai"
)

const systemPrompt = `You are a Ukrainian air-raid alert classifier.

You receive a Telegram message (Ukrainian or Russian) from an alert channel, together with a keyword-based threat guess produced by an automated filter.

Your job: decide which threats represent an ACTIVE, ONGOING, or IMMINENT threat RIGHT NOW versus analytical / historical / forecast / news / recap text.

Rules:
- Only include a threat if the message describes something happening NOW or about to happen (launch detected, drones in flight, missiles heading to a region, etc.).
- Remove threats that were triggered by analytical context (e.g. "пускові зони" is about launch zones in general, not an active launch).
- If the message is purely informational, a recap, statistics, a forecast, or a calm situation report, return an empty threats list.
- Do NOT add threats that the keyword filter missed — only confirm or remove.
- AllClear ("відбій"/"отбой") should always be confirmed if the message genuinely announces threat cessation.
- When in doubt, confirm the keyword guess (better safe than sorry).
- Do not categorize potential threats, only factual ones.

Reply ONLY with a JSON object, nothing else:
{"threats": ["Ballistic", ...], "reasoning": ["one sentence why for every choice", ...]}

Valid threat values: Ballistic, Hypersonic, CruiseMissile, GuidedBomb, Missile, Shahed, ReconDrone, Aircraft, AllClear
Empty list = not an active alert: {"threats": [], "reasoning": ["..."]}
`

const maxPromptChars = 800

// Verifier calls the configured LLM endpoint to confirm or narrow a
// keyword-detected threat set. A zero-value Verifier with Enabled=false is
// a safe no-op that always passes detections through unchanged.
type Verifier struct {
	client  *openai.Client
	model   string
	enabled bool
	log     zerolog.Logger
}

// New builds a Verifier. When enabled is false, Verify always returns
// kinds unchanged without making any network call.
func New(client *openai.Client, model string, enabled bool, log zerolog.Logger) *Verifier {
	return &Verifier{client: client, model: model, enabled: enabled, log: log.With().Str("component", "llmverify").Logger()}
}

// Enabled reports whether the LLM secondary filter is active.
func (v *Verifier) Enabled() bool {
	return v.enabled
}

type llmResult struct {
	Threats   []string `json:"threats"`
	Reasoning []string `json:"reasoning"`
}

// Verify asks the LLM to confirm or narrow kinds for text. It may only
// remove kinds, never add ones the keyword filter missed. Any transport,
// timeout, or parse failure fails open: kinds are returned unchanged.
func (v *Verifier) Verify(ctx context.Context, text string, kinds []domain.ThreatKind, proximity domain.Proximity, nationwide bool) []domain.ThreatKind {
	if !v.enabled || len(kinds) == 0 {
		return kinds
	}

	truncated := text
	if len(truncated) > maxPromptChars {
		truncated = truncated[:maxPromptChars]
	}

	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.VariantName()
	}

	userContent := fmt.Sprintf(
		"Message from channel:\n```\n%s\n```\nKeyword filter detected: [%s]\nProximity: %s\nNationwide: %t\n\nClassify:",
		truncated, strings.Join(names, ", "), proximity.String(), nationwide,
	)

	req := openai.ChatCompletionRequest{
		Model: v.model,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: systemPrompt},
			{Role: openai.RoleUser, Content: userContent},
		},
		Temperature:    0,
		MaxTokens:      150,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ResponseFormatTypeJSONObject},
	}

	start := time.Now()
	resp, err := v.client.CreateChatCompletion(ctx, req)
	v.log.Debug().Dur("elapsed", time.Since(start)).Msg("llm verify call")
	if err != nil {
		v.log.Warn().Err(err).Msg("llm request failed, failing open")
		return kinds
	}
	if len(resp.Choices) == 0 {
		v.log.Warn().Msg("llm returned no choices, failing open")
		return kinds
	}

	var result llmResult
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &result); err != nil {
		v.log.Warn().Err(err).Str("raw", resp.Choices[0].Message.Content).Msg("llm json parse failed, failing open")
		return kinds
	}

	if len(result.Threats) == 0 {
		v.log.Debug().Msg("llm says not an active alert, suppressing")
		return nil
	}

	candidates := make(map[domain.ThreatKind]struct{}, len(kinds))
	for _, k := range kinds {
		candidates[k] = struct{}{}
	}

	var verified []domain.ThreatKind
	for _, name := range result.Threats {
		k, ok := domain.ThreatKindFromVariantName(name)
		if !ok {
			continue
		}
		if _, isCandidate := candidates[k]; !isCandidate {
			v.log.Warn().Str("threat", name).Msg("llm returned a kind outside the keyword guess, ignoring")
			continue
		}
		verified = append(verified, k)
	}
	if len(verified) == 0 {
		v.log.Warn().Strs("threats", result.Threats).Msg("llm returned no confirmable threats, failing open")
		return kinds
	}
	return verified
}
