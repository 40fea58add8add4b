package relay

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

// Relay fans messages out between live sessions editing the same
// document. It owns the sessions; room membership and presence live in
// the RoomRegistry. Deltas are relayed verbatim, never decoded.

type RelayServerSettings struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	SendBufferSize int
	ReadBufferSize int
	// when set, join-document must carry a room token signed with this
	// secret whose claims match the join
	AuthSecret []byte
}

func DefaultRelayServerSettings() *RelayServerSettings {
	return &RelayServerSettings{
		WriteTimeout:   5 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   15 * time.Second,
		SendBufferSize: 32,
		ReadBufferSize: 1024,
	}
}

type Relay struct {
	ctx    context.Context
	cancel context.CancelFunc

	settings *RelayServerSettings
	registry *RoomRegistry
	upgrader *websocket.Upgrader

	stateLock sync.Mutex
	sessions  map[Id]*session
}

func NewRelayWithDefaults(ctx context.Context) *Relay {
	return NewRelay(ctx, DefaultRelayServerSettings())
}

func NewRelay(ctx context.Context, settings *RelayServerSettings) *Relay {
	cancelCtx, cancel := context.WithCancel(ctx)
	return &Relay{
		ctx:      cancelCtx,
		cancel:   cancel,
		settings: settings,
		registry: NewRoomRegistry(),
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  settings.ReadBufferSize,
			WriteBufferSize: settings.ReadBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sessions: map[Id]*session{},
	}
}

func (self *Relay) Registry() *RoomRegistry {
	return self.registry
}

// ServeHTTP upgrades the connection and runs the session until the peer
// disconnects. One goroutine reads, one writes; the read loop drives the
// session state machine to completion for each message before the next,
// so per-connection handling needs no further locking.
func (self *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := self.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Infof("[r]upgrade error = %s\n", err)
		return
	}

	s := newSession(self, conn)

	self.stateLock.Lock()
	self.sessions[s.sessionId] = s
	self.stateLock.Unlock()

	glog.V(1).Infof("[r]connect %s\n", s.sessionId)
	s.run()
	glog.V(1).Infof("[r]disconnect %s\n", s.sessionId)

	self.stateLock.Lock()
	delete(self.sessions, s.sessionId)
	self.stateLock.Unlock()
}

func (self *Relay) Close() {
	self.cancel()
}

// broadcast sends raw bytes to every member of the room except the
// excluded session. A full send buffer drops the message for that
// session; backpressure from one slow consumer must not block the room.
func (self *Relay) broadcast(documentId string, excluding Id, b []byte) {
	members := self.registry.Members(documentId, excluding)

	self.stateLock.Lock()
	recipients := make([]*session, 0, len(members))
	for _, sessionId := range members {
		if s, ok := self.sessions[sessionId]; ok {
			recipients = append(recipients, s)
		}
	}
	self.stateLock.Unlock()

	for _, s := range recipients {
		select {
		case s.send <- b:
		default:
			glog.Infof("[r]drop backpressure %s\n", s.sessionId)
		}
	}
}
