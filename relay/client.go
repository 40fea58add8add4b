package relay

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

// Replica is the local handle of the external replicated-data-type
// engine. The sync client applies remote deltas to it and relays the
// deltas it produces; it never interprets the bytes.
type Replica interface {
	ApplyDelta(delta []byte) error
}

type EventType string

const (
	// current-users snapshot received, peers are populated
	EventConnected EventType = "connected"

	EventPeerJoined      EventType = "peer-joined"
	EventPeerLeft        EventType = "peer-left"
	EventPresenceChanged EventType = "presence-changed"
	EventProtocolError   EventType = "protocol-error"

	// terminal; the event channel closes after this
	EventDisconnected EventType = "disconnected"
)

type Event struct {
	Type      EventType
	SessionId Id
	UserId    string
	Presence  PresenceInfo
	Reason    string
}

type SyncClientSettings struct {
	// trailing-edge window for outbound document deltas. Inbound deltas
	// are never throttled; convergence needs them applied promptly.
	SendThrottle       time.Duration
	WsHandshakeTimeout time.Duration
	WriteTimeout       time.Duration
	SendBufferSize     int
	EventBufferSize    int
	// room token forwarded with join when the relay enforces auth
	Token string
}

func DefaultSyncClientSettings() *SyncClientSettings {
	return &SyncClientSettings{
		SendThrottle:       200 * time.Millisecond,
		WsHandshakeTimeout: 2 * time.Second,
		WriteTimeout:       5 * time.Second,
		SendBufferSize:     32,
		EventBufferSize:    64,
	}
}

// SyncClient is the per-editor counterpart of the relay: one websocket,
// one local replica, a throttled outbound delta path and an event stream
// the caller drains.
type SyncClient struct {
	ctx    context.Context
	cancel context.CancelFunc

	settings   *SyncClientSettings
	documentId string
	replica    Replica

	conn     *websocket.Conn
	send     chan []byte
	events   chan Event
	debounce *Debouncer[[]byte]

	closeOnce sync.Once

	stateLock sync.Mutex
	peers     map[Id]UserInfo
}

func NewSyncClientWithDefaults(ctx context.Context, relayUrl string, documentId string, replica Replica) (*SyncClient, error) {
	return NewSyncClient(ctx, relayUrl, documentId, replica, DefaultSyncClientSettings())
}

func NewSyncClient(ctx context.Context, relayUrl string, documentId string, replica Replica, settings *SyncClientSettings) (*SyncClient, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: settings.WsHandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, relayUrl, nil)
	if err != nil {
		return nil, err
	}

	cancelCtx, cancel := context.WithCancel(ctx)
	client := &SyncClient{
		ctx:        cancelCtx,
		cancel:     cancel,
		settings:   settings,
		documentId: documentId,
		replica:    replica,
		conn:       conn,
		send:       make(chan []byte, settings.SendBufferSize),
		events:     make(chan Event, settings.EventBufferSize),
		peers:      map[Id]UserInfo{},
	}
	client.debounce = NewDebouncer(settings.SendThrottle, func(delta []byte) {
		client.sendMessage(&DocumentDelta{Delta: delta})
	})
	go client.readLoop()
	go client.writeLoop()
	return client, nil
}

// Join enters the room. Presence defaults include a display name and a
// color derived deterministically from the user id.
func (self *SyncClient) Join(userId string, presence PresenceInfo) error {
	return self.sendMessage(&JoinDocument{
		DocumentId: self.documentId,
		UserId:     userId,
		Presence:   defaultPresence(userId, presence),
		Token:      self.settings.Token,
	})
}

// LocalDelta queues a delta produced by the local replica. Deltas inside
// one throttle window supersede each other; the replica encodes
// cumulative state, so only the latest needs to go out.
func (self *SyncClient) LocalDelta(delta []byte) {
	self.debounce.Trigger(delta)
}

// UpdatePresence broadcasts new presence info, unthrottled.
func (self *SyncClient) UpdatePresence(presence PresenceInfo) error {
	return self.sendMessage(&PresenceDelta{Presence: presence})
}

// Peers returns a snapshot of the known peers in the room.
func (self *SyncClient) Peers() map[Id]UserInfo {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	peers := make(map[Id]UserInfo, len(self.peers))
	for sessionId, info := range self.peers {
		peers[sessionId] = info
	}
	return peers
}

// Events returns the stream of lifecycle and peer events. Each peer
// event is delivered at least once; the caller must drain the channel.
// The channel closes after EventDisconnected.
func (self *SyncClient) Events() <-chan Event {
	return self.events
}

// Close is idempotent. No throttled send fires after it returns.
func (self *SyncClient) Close() {
	self.closeOnce.Do(func() {
		self.debounce.Stop()
		self.cancel()
		self.conn.Close()
	})
}

func (self *SyncClient) sendMessage(message any) error {
	b, err := EncodeMessage(message)
	if err != nil {
		return err
	}
	select {
	case self.send <- b:
		return nil
	case <-self.ctx.Done():
		return self.ctx.Err()
	}
}

func (self *SyncClient) writeLoop() {
	for {
		select {
		case <-self.ctx.Done():
			return
		case b := <-self.send:
			self.conn.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
			if err := self.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				glog.V(1).Infof("[c]-> error = %s\n", err)
				// unblock pending senders
				self.Close()
				return
			}
		}
	}
}

func (self *SyncClient) readLoop() {
	defer func() {
		self.Close()
		self.emit(Event{Type: EventDisconnected})
		close(self.events)
	}()

	for {
		_, b, err := self.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				glog.V(1).Infof("[c]<- error = %s\n", err)
			}
			return
		}

		message, err := DecodeMessage(b)
		if err != nil {
			glog.Infof("[c]<- decode error = %s\n", err)
			continue
		}

		switch v := message.(type) {
		case *DocumentDelta:
			// applied immediately; a replica failure must not take down
			// the channel
			if err := self.replica.ApplyDelta(v.Delta); err != nil {
				glog.Infof("[c]replica apply error = %s\n", err)
			}
		case *CurrentUsers:
			self.stateLock.Lock()
			for _, info := range v.Users {
				self.peers[info.SessionId] = info
			}
			self.stateLock.Unlock()
			self.emit(Event{Type: EventConnected})
		case *UserJoined:
			self.stateLock.Lock()
			self.peers[v.SessionId] = UserInfo{
				SessionId: v.SessionId,
				UserId:    v.UserId,
				Presence:  v.Presence,
			}
			self.stateLock.Unlock()
			self.emit(Event{
				Type:      EventPeerJoined,
				SessionId: v.SessionId,
				UserId:    v.UserId,
				Presence:  v.Presence,
			})
		case *UserLeft:
			self.stateLock.Lock()
			delete(self.peers, v.SessionId)
			self.stateLock.Unlock()
			self.emit(Event{
				Type:      EventPeerLeft,
				SessionId: v.SessionId,
				UserId:    v.UserId,
			})
		case *PresenceDelta:
			self.stateLock.Lock()
			info := self.peers[v.SessionId]
			info.SessionId = v.SessionId
			info.Presence = v.Presence
			self.peers[v.SessionId] = info
			self.stateLock.Unlock()
			self.emit(Event{
				Type:      EventPresenceChanged,
				SessionId: v.SessionId,
				UserId:    info.UserId,
				Presence:  v.Presence,
			})
		case *ProtocolError:
			glog.Infof("[c]protocol error = %s\n", v.Reason)
			self.emit(Event{
				Type:   EventProtocolError,
				Reason: v.Reason,
			})
		default:
			glog.V(1).Infof("[c]<- drop %T\n", v)
		}
	}
}

func (self *SyncClient) emit(event Event) {
	// fast path so the terminal disconnected event still lands after the
	// context is canceled
	select {
	case self.events <- event:
		return
	default:
	}
	select {
	case self.events <- event:
	case <-self.ctx.Done():
	}
}
