package domain

import (
	"errors"
	"testing"
	"time"
)

func TestConversationKey_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"a", "b"},
		{"9f1c", "0a2d"},
		{"user-2", "user-10"},
	}
	for _, p := range pairs {
		if ConversationKey(p[0], p[1]) != ConversationKey(p[1], p[0]) {
			t.Fatalf("expected symmetric key for %v", p)
		}
	}
	if got := ConversationKey("b", "a"); got != "a-b" {
		t.Fatalf("expected sorted key a-b, got %q", got)
	}
}

func TestNewDeliveryEvent(t *testing.T) {
	ev := NewDeliveryEvent(Message{ID: 7, SenderID: "z", ReceiverID: "m"})
	if ev.ConversationKey != "m-z" || ev.MessageID != 7 || ev.SenderID != "z" || ev.ReceiverID != "m" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDeliveryEvent_MatchesDisambiguatesDashedIDs(t *testing.T) {
	ev := NewDeliveryEvent(Message{ID: 1, SenderID: "a", ReceiverID: "b-c"})
	if ConversationKey("a-b", "c") != ev.ConversationKey {
		t.Fatalf("expected colliding keys for the fixture")
	}
	if !ev.Matches("a", "b-c") || !ev.Matches("b-c", "a") {
		t.Fatalf("expected event to match its own pair")
	}
	if ev.Matches("a-b", "c") {
		t.Fatalf("event for (a,b-c) must not match (a-b,c)")
	}

	legacy := DeliveryEvent{ConversationKey: "a-b", SenderID: "a"}
	if !legacy.Matches("b", "a") || legacy.Matches("a", "c") {
		t.Fatalf("events without receiver compare by key only")
	}
}

func TestDeliveryEvent_Includes(t *testing.T) {
	cases := []struct {
		name string
		ev   DeliveryEvent
		user string
		want bool
	}{
		{"sender", NewDeliveryEvent(Message{SenderID: "a", ReceiverID: "b"}), "a", true},
		{"receiver", NewDeliveryEvent(Message{SenderID: "a", ReceiverID: "b"}), "b", true},
		{"outsider", NewDeliveryEvent(Message{SenderID: "a", ReceiverID: "b"}), "c", false},
		{"dashed prefix", NewDeliveryEvent(Message{SenderID: "a", ReceiverID: "b-c"}), "a-b", false},
		{"key only", DeliveryEvent{ConversationKey: "a-b"}, "b", true},
		{"key only partial", DeliveryEvent{ConversationKey: "ab-c"}, "a", false},
		{"empty", DeliveryEvent{}, "a", false},
	}
	for _, tc := range cases {
		if got := tc.ev.Includes(tc.user); got != tc.want {
			t.Fatalf("%s: Includes(%q)=%v want %v", tc.name, tc.user, got, tc.want)
		}
	}
}

func TestNormalizeBody(t *testing.T) {
	if _, err := NormalizeBody("   \n\t"); !errors.Is(err, ErrEmptyBody) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}
	body, err := NormalizeBody("  hi ")
	if err != nil || body != "hi" {
		t.Fatalf("expected trimmed body, got %q (%v)", body, err)
	}
}

func TestMessageLess_TieBreaksByID(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Message{ID: 1, CreatedAt: ts}
	b := Message{ID: 2, CreatedAt: ts}
	if !a.Less(b) || b.Less(a) {
		t.Fatalf("expected id tie-break")
	}
	c := Message{ID: 3, CreatedAt: ts.Add(-time.Second)}
	if !c.Less(a) {
		t.Fatalf("expected earlier timestamp first")
	}
}

func TestUserPublic_PresenceHeuristic(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	u := User{ID: "u1", Name: "Ana", Email: "ana@x.com", Secret: "pw", UpdatedAt: now.Add(-4 * time.Minute), CreatedAt: now.Add(-time.Hour)}
	pub := u.Public(now)
	if !pub.IsOnline {
		t.Fatalf("expected online within window")
	}
	if !pub.LastSeen.Equal(u.UpdatedAt) {
		t.Fatalf("expected lastSeen from updated_at")
	}

	u.UpdatedAt = now.Add(-6 * time.Minute)
	if u.Public(now).IsOnline {
		t.Fatalf("expected offline outside window")
	}
}
