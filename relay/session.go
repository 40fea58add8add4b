package relay

import (
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

type sessionState int

const (
	sessionConnected sessionState = iota
	sessionJoined
	sessionClosed
)

// session is one live connection. State moves Connected -> Joined ->
// Closed; all transitions happen on the read loop, one message at a time.
type session struct {
	relay *Relay
	conn  *websocket.Conn

	sessionId Id
	send      chan []byte
	// closed instead of closing send: peers broadcast into send from
	// their own read loops, so send must stay open for the chan lifetime
	closed chan struct{}

	// read-loop state, no lock needed
	state      sessionState
	documentId string
	userId     string
}

func newSession(relay *Relay, conn *websocket.Conn) *session {
	return &session{
		relay:     relay,
		conn:      conn,
		sessionId: NewId(),
		send:      make(chan []byte, relay.settings.SendBufferSize),
		closed:    make(chan struct{}),
		state:     sessionConnected,
	}
}

func (self *session) run() {
	writeDone := make(chan struct{})
	go self.writeLoop(writeDone)
	self.readLoop()

	// the read loop has exited; no further transitions can race this
	if self.state == sessionJoined {
		self.relay.broadcast(self.documentId, self.sessionId, RequireEncodeMessage(&UserLeft{
			SessionId: self.sessionId,
			UserId:    self.userId,
		}))
		self.relay.registry.Leave(self.sessionId)
	}
	self.state = sessionClosed

	close(self.closed)
	<-writeDone
	self.conn.Close()
}

func (self *session) readLoop() {
	settings := self.relay.settings
	self.conn.SetReadDeadline(time.Now().Add(settings.ReadTimeout))
	self.conn.SetPongHandler(func(string) error {
		self.conn.SetReadDeadline(time.Now().Add(settings.ReadTimeout))
		return nil
	})

	for {
		_, b, err := self.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				glog.V(1).Infof("[r]%s<- error = %s\n", self.sessionId, err)
			}
			return
		}
		self.conn.SetReadDeadline(time.Now().Add(settings.ReadTimeout))

		message, err := DecodeMessage(b)
		if err != nil {
			glog.Infof("[r]%s<- decode error = %s\n", self.sessionId, err)
			continue
		}

		switch v := message.(type) {
		case *JoinDocument:
			self.handleJoin(v)
		case *DocumentDelta:
			self.handleDocumentDelta(v, b)
		case *PresenceDelta:
			self.handlePresenceDelta(v)
		default:
			glog.V(1).Infof("[r]%s<- drop %T\n", self.sessionId, v)
		}
	}
}

func (self *session) writeLoop(done chan struct{}) {
	defer close(done)

	settings := self.relay.settings
	ticker := time.NewTicker(settings.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-self.closed:
			return
		case b := <-self.send:
			self.conn.SetWriteDeadline(time.Now().Add(settings.WriteTimeout))
			if err := self.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				glog.V(1).Infof("[r]%s-> error = %s\n", self.sessionId, err)
				return
			}
		case <-ticker.C:
			self.conn.SetWriteDeadline(time.Now().Add(settings.WriteTimeout))
			if err := self.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply queues a message for this session only
func (self *session) reply(message any) {
	select {
	case self.send <- RequireEncodeMessage(message):
	default:
		glog.Infof("[r]drop backpressure %s\n", self.sessionId)
	}
}

func (self *session) handleJoin(join *JoinDocument) {
	if self.state != sessionConnected {
		glog.V(1).Infof("[r]%s<- drop join in state %d\n", self.sessionId, self.state)
		return
	}
	if join.DocumentId == "" || join.UserId == "" {
		// the source protocol dropped these silently; an explicit error
		// is observable and the session stays usable
		self.reply(&ProtocolError{Reason: "join requires document_id and user_id"})
		return
	}
	if secret := self.relay.settings.AuthSecret; secret != nil {
		token, err := ParseRoomToken(secret, join.Token)
		if err != nil {
			glog.Infof("[r]auth error %s = %s\n", self.sessionId, err)
			self.reply(&ProtocolError{Reason: "invalid room token"})
			return
		}
		if token.UserId != join.UserId || token.DocumentId != join.DocumentId {
			glog.Infof("[r]auth mismatch %s\n", self.sessionId)
			self.reply(&ProtocolError{Reason: "room token does not match join"})
			return
		}
	}

	self.relay.registry.Join(join.DocumentId, self.sessionId, join.UserId, join.Presence)
	self.state = sessionJoined
	self.documentId = join.DocumentId
	self.userId = join.UserId

	self.reply(&CurrentUsers{
		Users: self.relay.registry.ListOthers(join.DocumentId, self.sessionId),
	})
	self.relay.broadcast(join.DocumentId, self.sessionId, RequireEncodeMessage(&UserJoined{
		SessionId: self.sessionId,
		UserId:    join.UserId,
		Presence:  join.Presence,
	}))
	glog.V(1).Infof("[r]join %s doc=%s user=%s\n", self.sessionId, join.DocumentId, join.UserId)
}

// the original frame bytes are rebroadcast untouched
func (self *session) handleDocumentDelta(delta *DocumentDelta, raw []byte) {
	if self.state != sessionJoined {
		glog.V(1).Infof("[r]%s<- drop delta before join\n", self.sessionId)
		return
	}
	glog.V(2).Infof("[r]delta %s %d bytes\n", self.sessionId, len(delta.Delta))
	self.relay.broadcast(self.documentId, self.sessionId, raw)
}

func (self *session) handlePresenceDelta(delta *PresenceDelta) {
	if self.state != sessionJoined {
		glog.V(1).Infof("[r]%s<- drop presence before join\n", self.sessionId)
		return
	}
	delta.SessionId = self.sessionId
	self.relay.broadcast(self.documentId, self.sessionId, RequireEncodeMessage(delta))
}
