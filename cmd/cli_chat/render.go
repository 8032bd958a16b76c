package main

import (
	"fmt"
	"strings"
	"time"

	"chattersphere/internal/chat"
	"chattersphere/internal/domain"
)

func formatContact(idx int, c chat.Contact, now time.Time) string {
	status := chat.LastSeenLabel(c.LastSeen, now)
	if !c.Online {
		status = "offline, " + status
	}
	return fmt.Sprintf("[%d] (%s) %s <%s> - %s", idx, chat.Initials(c.Name), c.Name, c.Email, status)
}

func formatMessage(m domain.Message, selfID, counterpartName string) string {
	author := counterpartName
	if m.SenderID == selfID {
		author = "Tu"
	}
	return fmt.Sprintf("[%s] %s > %s", m.CreatedAt.Local().Format("15:04"), author, m.Body)
}

// isExitCommand reconoce los comandos para salir de un menu o chat.
func isExitCommand(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "salir", "exit", "/salir", "/exit":
		return true
	}
	return false
}

// transcript imprime cada mensaje persistido una sola vez; los optimistas (id<=0) se omiten.
type transcript struct {
	selfID          string
	counterpartName string
	printed         map[int64]bool
}

func newTranscript(selfID, counterpartName string) *transcript {
	return &transcript{selfID: selfID, counterpartName: counterpartName, printed: make(map[int64]bool)}
}

func (t *transcript) pending(msgs []domain.Message) []string {
	var lines []string
	for _, m := range msgs {
		if m.ID <= 0 || t.printed[m.ID] {
			continue
		}
		t.printed[m.ID] = true
		lines = append(lines, formatMessage(m, t.selfID, t.counterpartName))
	}
	return lines
}
