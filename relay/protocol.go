package relay

import (
	"encoding/json"
	"fmt"
)

// Wire protocol between sync clients and the relay. Every message is a
// JSON envelope with a `type` field that is peeked before the full decode.
// Document deltas are opaque bytes owned by the replication layer; the
// relay never decodes them.

const (
	MessageTypeJoinDocument  = "join-document"
	MessageTypeDocumentDelta = "document-delta"
	MessageTypePresenceDelta = "presence-delta"
	MessageTypeCurrentUsers  = "current-users"
	MessageTypeUserJoined    = "user-joined"
	MessageTypeUserLeft      = "user-left"
	MessageTypeError         = "error"
)

// free-form per-user metadata (name, color, cursor, ...)
type PresenceInfo map[string]any

type JoinDocument struct {
	Type       string       `json:"type"`
	DocumentId string       `json:"document_id"`
	UserId     string       `json:"user_id"`
	Presence   PresenceInfo `json:"presence,omitempty"`
	Token      string       `json:"token,omitempty"`
}

type DocumentDelta struct {
	Type string `json:"type"`
	// opaque replica update, relayed verbatim
	Delta []byte `json:"delta"`
}

// client->relay carries only the presence payload. The relay stamps
// SessionId on rebroadcast so receivers can attribute it.
type PresenceDelta struct {
	Type      string       `json:"type"`
	SessionId Id           `json:"session_id"`
	Presence  PresenceInfo `json:"presence"`
}

type UserInfo struct {
	SessionId Id           `json:"session_id"`
	UserId    string       `json:"user_id"`
	Presence  PresenceInfo `json:"presence,omitempty"`
}

type CurrentUsers struct {
	Type  string     `json:"type"`
	Users []UserInfo `json:"users"`
}

type UserJoined struct {
	Type      string       `json:"type"`
	SessionId Id           `json:"session_id"`
	UserId    string       `json:"user_id"`
	Presence  PresenceInfo `json:"presence,omitempty"`
}

type UserLeft struct {
	Type      string `json:"type"`
	SessionId Id     `json:"session_id"`
	UserId    string `json:"user_id"`
}

type ProtocolError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// EncodeMessage stamps the type field and marshals the envelope.
func EncodeMessage(message any) ([]byte, error) {
	switch v := message.(type) {
	case *JoinDocument:
		v.Type = MessageTypeJoinDocument
	case *DocumentDelta:
		v.Type = MessageTypeDocumentDelta
	case *PresenceDelta:
		v.Type = MessageTypePresenceDelta
	case *CurrentUsers:
		v.Type = MessageTypeCurrentUsers
	case *UserJoined:
		v.Type = MessageTypeUserJoined
	case *UserLeft:
		v.Type = MessageTypeUserLeft
	case *ProtocolError:
		v.Type = MessageTypeError
	default:
		return nil, fmt.Errorf("unknown message type: %T", v)
	}
	return json.Marshal(message)
}

func RequireEncodeMessage(message any) []byte {
	b, err := EncodeMessage(message)
	if err != nil {
		panic(err)
	}
	return b
}

func DecodeMessage(b []byte) (any, error) {
	var peek struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &peek); err != nil {
		return nil, err
	}

	var message any
	switch peek.Type {
	case MessageTypeJoinDocument:
		message = &JoinDocument{}
	case MessageTypeDocumentDelta:
		message = &DocumentDelta{}
	case MessageTypePresenceDelta:
		message = &PresenceDelta{}
	case MessageTypeCurrentUsers:
		message = &CurrentUsers{}
	case MessageTypeUserJoined:
		message = &UserJoined{}
	case MessageTypeUserLeft:
		message = &UserLeft{}
	case MessageTypeError:
		message = &ProtocolError{}
	default:
		return nil, fmt.Errorf("unknown message type: %s", peek.Type)
	}
	if err := json.Unmarshal(b, message); err != nil {
		return nil, err
	}
	return message, nil
}
