// Package listener reacts to PostgreSQL notifications.
package listener

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/lib/pq"
)

const (
	channelName       = "credential_linked"
	reconnectInterval = 5 * time.Second
	pingInterval      = 90 * time.Second
)

// CredentialLinked is the NOTIFY payload sent by the credentials insert trigger.
type CredentialLinked struct {
	CredentialID string `json:"credential_id"`
	UserID       string `json:"user_id"`
	ItemID       string `json:"item_id"`
}

// Handler is invoked once per notification.
type Handler func(ctx context.Context, n CredentialLinked)

// CredentialListener listens for new credentials so a link whose account
// pull failed halfway can be repaired.
type CredentialListener struct {
	connStr    string
	handle     Handler
	shutdownCh chan struct{}
	done       chan struct{}
}

func NewCredentialListener(connStr string, handle Handler) *CredentialListener {
	return &CredentialListener{
		connStr:    connStr,
		handle:     handle,
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins listening in a background goroutine
func (l *CredentialListener) Start(ctx context.Context) {
	go l.listen(ctx)
	log.Println("Credential notification listener started")
}

// Stop shuts down the listener and waits for it to exit
func (l *CredentialListener) Stop() {
	close(l.shutdownCh)
	<-l.done
	log.Println("Credential notification listener stopped")
}

func (l *CredentialListener) listen(ctx context.Context) {
	defer close(l.done)

	for {
		l.connectAndListen(ctx)

		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
			log.Println("Reconnecting to PostgreSQL for credential notifications...")
		}
	}
}

func (l *CredentialListener) connectAndListen(ctx context.Context) {
	pl := pq.NewListener(l.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			log.Println("Connected to PostgreSQL notification channel")
		case pq.ListenerEventDisconnected:
			log.Printf("Disconnected from PostgreSQL notification channel: %v", err)
		case pq.ListenerEventReconnected:
			log.Println("Reconnected to PostgreSQL notification channel")
		case pq.ListenerEventConnectionAttemptFailed:
			log.Printf("Connection attempt failed: %v", err)
		}
	})
	defer pl.Close()

	if err := pl.Listen(channelName); err != nil {
		log.Printf("Failed to listen on channel %s: %v", channelName, err)
		return
	}
	log.Printf("Listening on channel: %s", channelName)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case n := <-pl.Notify:
			if n == nil {
				// pq sends nil after a reconnect; events may have been missed.
				continue
			}
			l.dispatch(ctx, n)
		case <-ticker.C:
			go func() {
				if err := pl.Ping(); err != nil {
					log.Printf("Listener ping failed: %v", err)
				}
			}()
		}
	}
}

func (l *CredentialListener) dispatch(ctx context.Context, n *pq.Notification) {
	payload, err := parsePayload(n.Extra)
	if err != nil {
		log.Printf("Failed to parse %s payload: %v", n.Channel, err)
		return
	}
	l.handle(ctx, payload)
}

func parsePayload(extra string) (CredentialLinked, error) {
	var payload CredentialLinked
	err := json.Unmarshal([]byte(extra), &payload)
	return payload, err
}
