package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRoleRegistryConvertsMembership(t *testing.T) {
	repo := newFakeChatRepo(newFakeRoleStore())
	reg := NewRoleRegistry(repo, NewHub(nil))

	convID := uuid.New()
	userID := uuid.New()
	until := time.Now().Add(time.Hour)
	repo.memberships[convID] = map[uuid.UUID]*Membership{
		userID: {
			ConversationID: convID,
			UserID:         userID,
			MutedUntil:     sql.NullTime{Time: until, Valid: true},
			JoinedAt:       time.Now(),
		},
	}

	m, err := reg.GetMembership(context.Background(), convID, userID)
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if m.MutedUntil == nil || !m.MutedUntil.Equal(until) {
		t.Fatalf("mute deadline lost in conversion: %v", m.MutedUntil)
	}

	missing, err := reg.GetMembership(context.Background(), convID, uuid.New())
	if err != nil || missing != nil {
		t.Fatalf("expected nil membership for stranger, got %v, %v", missing, err)
	}

	conv, err := reg.GetConversation(context.Background(), uuid.New())
	if err != nil || conv != nil {
		t.Fatalf("expected nil conversation for unknown id, got %v, %v", conv, err)
	}
}

func TestRoleRegistryKickIsAnnounced(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	repo := newFakeChatRepo(newFakeRoleStore())
	reg := NewRoleRegistry(repo, hub)

	convID := uuid.New()
	kicked := uuid.New()
	repo.memberships[convID] = map[uuid.UUID]*Membership{
		kicked: {ConversationID: convID, UserID: kicked, JoinedAt: time.Now()},
	}

	conn := &Connection{UserID: uuid.New(), Send: make(chan []byte, 1)}
	hub.Register(conn, []uuid.UUID{convID})
	waitRegistered(t, hub, 1)

	if err := reg.RemoveMembership(context.Background(), convID, kicked); err != nil {
		t.Fatalf("remove membership: %v", err)
	}
	if repo.memberships[convID][kicked] != nil {
		t.Fatalf("membership not removed")
	}

	select {
	case payload := <-conn.Send:
		var ev Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		if ev.Type != EventMemberKicked {
			t.Fatalf("expected %s, got %s", EventMemberKicked, ev.Type)
		}
		data, ok := ev.Data.(map[string]interface{})
		if !ok || data["user_id"] != kicked.String() {
			t.Fatalf("kicked user missing from event: %v", ev.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("kick event never delivered")
	}
}
