package chat

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chattersphere/internal/domain"
	"chattersphere/internal/llm"
)

func TestCannedReplies_PlanBounds(t *testing.T) {
	c := NewCannedReplies(rand.NewSource(42))
	replied := 0
	for i := 0; i < 2000; i++ {
		delay, ok := c.Plan()
		if !ok {
			continue
		}
		replied++
		assert.GreaterOrEqual(t, delay, 800*time.Millisecond)
		assert.Less(t, delay, 2800*time.Millisecond)
	}
	assert.InDelta(t, 0.8, float64(replied)/2000, 0.05)
}

func TestCannedReplies_ComposeUsesFixedSet(t *testing.T) {
	require.Len(t, CannedReplyTexts, 12)
	c := NewCannedReplies(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		body, err := c.Compose(context.Background(), nil, "a", "b")
		require.NoError(t, err)
		assert.Contains(t, CannedReplyTexts, body)
	}
}

func TestLLMReplies_ComposeAndFallback(t *testing.T) {
	mock := &llm.MockClient{Response: "  sure thing "}
	r := NewLLMReplies(mock, "", NewCannedReplies(rand.NewSource(3)))
	history := []domain.Message{
		{ID: 1, SenderID: "me", ReceiverID: "bot", Body: "hey"},
		{ID: 2, SenderID: "bot", ReceiverID: "me", Body: "hi!"},
		{ID: 3, SenderID: "me", ReceiverID: "bot", Body: "how are you"},
	}

	body, err := r.Compose(context.Background(), history, "me", "bot")
	require.NoError(t, err)
	assert.Equal(t, "sure thing", body)
	require.Equal(t, 1, mock.CallCount())

	turns := mock.Calls[0]
	require.Len(t, turns, 4)
	assert.Equal(t, llm.RoleSystem, turns[0].Role)
	assert.Equal(t, llm.RoleUser, turns[1].Role)
	assert.Equal(t, llm.RoleAssistant, turns[2].Role)
	assert.Equal(t, "how are you", turns[3].Content)

	mock.Err = errors.New("quota")
	body, err = r.Compose(context.Background(), history, "me", "bot")
	require.NoError(t, err)
	assert.Contains(t, CannedReplyTexts, body)
}

func TestBuildReplyTurns_TrimsHistory(t *testing.T) {
	history := make([]domain.Message, 30)
	for i := range history {
		history[i] = domain.Message{ID: int64(i + 1), SenderID: "me", Body: "m"}
	}
	turns := buildReplyTurns("persona", history, "bot")
	assert.Len(t, turns, maxReplyHistory+1)
	assert.Equal(t, "persona", turns[0].Content)
}

func TestCleanReply(t *testing.T) {
	cases := map[string]string{
		"  hola  ":                      "hola",
		"\uFEFFhola":                  "hola",
		"```\nque tal\n```":             "que tal",
		"```text\nque tal\n```":         "que tal",
		"\"Claro, nos vemos!\"":         "Claro, nos vemos!",
		"'ok'":                          "ok",
		"dijo \"hola\"":                 "dijo \"hola\"",
		"```\n```":                      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, cleanReply(in), "input %q", in)
	}
}

func TestLLMReplies_CleansModelOutput(t *testing.T) {
	mock := &llm.MockClient{Response: "```\n\"Nos vemos mañana\"\n```"}
	r := NewLLMReplies(mock, "", NewCannedReplies(rand.NewSource(1)))
	out, err := r.Compose(context.Background(), nil, "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, "Nos vemos mañana", out)

	mock.Response = "``` ```"
	out, err = r.Compose(context.Background(), nil, "u1", "u2")
	require.NoError(t, err)
	assert.Contains(t, CannedReplyTexts, out)
}
