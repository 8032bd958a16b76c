package chat

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"chattersphere/internal/domain"
	"chattersphere/internal/llm"
)

const (
	replyProbability = 0.8
	replyMinDelay    = 800 * time.Millisecond
	replyJitter      = 2000 * time.Millisecond
)

// CannedReplyTexts son las respuestas fijas del contraparte simulado.
var CannedReplyTexts = []string{
	"Thanks for your message! 😊",
	"That's really interesting!",
	"I completely agree with you.",
	"Tell me more about that.",
	"How has your day been?",
	"That sounds amazing!",
	"I'm doing well, thanks for asking!",
	"What do you think we should do next?",
	"That's a great point!",
	"I was just thinking about that too.",
	"You're right.",
	"That made me smile 😄",
}

// CounterpartSimulator genera respuestas sinteticas del otro usuario.
// Plan decide si responder y con que demora; Compose produce el texto.
type CounterpartSimulator interface {
	Plan() (delay time.Duration, ok bool)
	Compose(ctx context.Context, history []domain.Message, selfID, counterpartID string) (string, error)
}

// CannedReplies responde con probabilidad 0.8 tras 800-2800ms con un texto fijo al azar.
type CannedReplies struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewCannedReplies(src rand.Source) *CannedReplies {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &CannedReplies{rnd: rand.New(src)}
}

func (c *CannedReplies) Plan() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rnd.Float64() >= replyProbability {
		return 0, false
	}
	delay := replyMinDelay + time.Duration(c.rnd.Float64()*float64(replyJitter))
	return delay, true
}

func (c *CannedReplies) Compose(context.Context, []domain.Message, string, string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CannedReplyTexts[c.rnd.Intn(len(CannedReplyTexts))], nil
}

const defaultPersona = "You are a friendly person chatting with a friend in a messaging app. " +
	"Reply with one or two short, casual sentences."

// maxReplyHistory acota cuantos mensajes previos se mandan al modelo.
const maxReplyHistory = 20

// LLMReplies usa un modelo de chat para el texto y cae a las respuestas fijas si falla.
type LLMReplies struct {
	client   llm.LLMClient
	persona  string
	fallback *CannedReplies
}

func NewLLMReplies(client llm.LLMClient, persona string, fallback *CannedReplies) *LLMReplies {
	if strings.TrimSpace(persona) == "" {
		persona = defaultPersona
	}
	if fallback == nil {
		fallback = NewCannedReplies(nil)
	}
	return &LLMReplies{client: client, persona: persona, fallback: fallback}
}

func (l *LLMReplies) Plan() (time.Duration, bool) {
	return l.fallback.Plan()
}

func (l *LLMReplies) Compose(ctx context.Context, history []domain.Message, selfID, counterpartID string) (string, error) {
	if l.client == nil {
		return l.fallback.Compose(ctx, history, selfID, counterpartID)
	}
	out, err := l.client.Complete(ctx, buildReplyTurns(l.persona, history, counterpartID))
	if err != nil {
		return l.fallback.Compose(ctx, history, selfID, counterpartID)
	}
	out = cleanReply(out)
	if out == "" {
		return l.fallback.Compose(ctx, history, selfID, counterpartID)
	}
	return out, nil
}

// buildReplyTurns arma el historial desde el punto de vista del contraparte.
func buildReplyTurns(persona string, history []domain.Message, counterpartID string) []llm.Turn {
	if len(history) > maxReplyHistory {
		history = history[len(history)-maxReplyHistory:]
	}
	turns := make([]llm.Turn, 0, len(history)+1)
	turns = append(turns, llm.Turn{Role: llm.RoleSystem, Content: persona})
	for _, m := range history {
		role := llm.RoleUser
		if m.SenderID == counterpartID {
			role = llm.RoleAssistant
		}
		turns = append(turns, llm.Turn{Role: role, Content: m.Body})
	}
	return turns
}
