package listener

import (
	"context"
	"testing"

	"github.com/lib/pq"
)

func TestParsePayload(t *testing.T) {
	got, err := parsePayload(`{"credential_id":"abc","user_id":"3f0c","item_id":"item-1"}`)
	if err != nil {
		t.Fatalf("parsePayload() error = %v", err)
	}
	want := CredentialLinked{CredentialID: "abc", UserID: "3f0c", ItemID: "item-1"}
	if got != want {
		t.Errorf("parsePayload() = %+v, want %+v", got, want)
	}
}

func TestParsePayload_Invalid(t *testing.T) {
	if _, err := parsePayload(`not json`); err == nil {
		t.Error("parsePayload() expected error for invalid JSON")
	}
}

func TestDispatch(t *testing.T) {
	var got []CredentialLinked
	l := NewCredentialListener("", func(ctx context.Context, n CredentialLinked) {
		got = append(got, n)
	})

	l.dispatch(context.Background(), &pq.Notification{Channel: channelName, Extra: `{"user_id":"u1"}`})
	l.dispatch(context.Background(), &pq.Notification{Channel: channelName, Extra: `{`})

	if len(got) != 1 {
		t.Fatalf("handler called %d times, want 1", len(got))
	}
	if got[0].UserID != "u1" {
		t.Errorf("UserID = %q, want u1", got[0].UserID)
	}
}
