package relay

import (
	"errors"
	"fmt"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Room tokens bind a user id to a document id. The relay only enforces
// them when started with an auth secret; an open relay ignores them.

type RoomToken struct {
	UserId     string
	DocumentId string
}

func MintRoomToken(secret []byte, userId string, documentId string) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("empty auth secret")
	}
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"user_id":     userId,
		"document_id": documentId,
	})
	return token.SignedString(secret)
}

func ParseRoomToken(secret []byte, tokenStr string) (*RoomToken, error) {
	token, err := gojwt.Parse(tokenStr, func(token *gojwt.Token) (any, error) {
		if _, ok := token.Method.(*gojwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(gojwt.MapClaims)
	if !ok {
		return nil, errors.New("missing claims")
	}

	roomToken := &RoomToken{}
	if userId, ok := claims["user_id"].(string); ok {
		roomToken.UserId = userId
	}
	if documentId, ok := claims["document_id"].(string); ok {
		roomToken.DocumentId = documentId
	}
	if roomToken.UserId == "" || roomToken.DocumentId == "" {
		return nil, errors.New("token missing user_id or document_id")
	}
	return roomToken, nil
}
