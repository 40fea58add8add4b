package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/docopt/docopt-go"

	"golang.org/x/term"

	"github.com/scriptroom/scriptroom/relay"
)

const LocalVersion = "0.0.0-local"

func main() {
	usage := `Scriptroom room tool.

Usage:
    roomctl token --user=<user> --doc=<doc> [--secret=<secret>]
    roomctl tail --url=<url> --doc=<doc> --user=<user> [--token=<token>]

Options:
    -h --help            Show this screen.
    --version            Show version.
    --user=<user>        User id.
    --doc=<doc>          Document id.
    --secret=<secret>    Token signing secret. Prompted when omitted.
    --url=<url>          Relay websocket url, e.g. ws://localhost:8080.
    --token=<token>      Room token for relays that enforce auth.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], LocalVersion)
	if err != nil {
		panic(err)
	}

	if token_, _ := opts.Bool("token"); token_ {
		token(opts)
	} else if tail_, _ := opts.Bool("tail"); tail_ {
		tail(opts)
	}
}

func token(opts docopt.Opts) {
	userId, _ := opts.String("--user")
	documentId, _ := opts.String("--doc")

	var secret string
	if secretAny := opts["--secret"]; secretAny != nil {
		secret = secretAny.(string)
	} else {
		fmt.Print("Signing secret: ")
		secretBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			panic(err)
		}
		secret = string(secretBytes)
	}

	roomToken, err := relay.MintRoomToken([]byte(secret), userId, documentId)
	if err != nil {
		panic(err)
	}
	fmt.Println(roomToken)
}

// tailReplica counts the opaque deltas; the tail tool has no document to
// merge them into
type tailReplica struct {
}

func (self *tailReplica) ApplyDelta(delta []byte) error {
	fmt.Printf("delta %d bytes\n", len(delta))
	return nil
}

func tail(opts docopt.Opts) {
	relayUrl, _ := opts.String("--url")
	documentId, _ := opts.String("--doc")
	userId, _ := opts.String("--user")

	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settings := relay.DefaultSyncClientSettings()
	if tokenAny := opts["--token"]; tokenAny != nil {
		settings.Token = tokenAny.(string)
	}

	client, err := relay.NewSyncClient(cancelCtx, relayUrl, documentId, &tailReplica{}, settings)
	if err != nil {
		panic(err)
	}
	defer client.Close()

	if err := client.Join(userId, nil); err != nil {
		panic(err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		client.Close()
	}()

	for event := range client.Events() {
		switch event.Type {
		case relay.EventConnected:
			fmt.Printf("connected, %d peers\n", len(client.Peers()))
		case relay.EventPeerJoined:
			fmt.Printf("joined %s (%s)\n", event.UserId, event.SessionId)
		case relay.EventPeerLeft:
			fmt.Printf("left %s (%s)\n", event.UserId, event.SessionId)
		case relay.EventPresenceChanged:
			fmt.Printf("presence %s = %v\n", event.SessionId, event.Presence)
		case relay.EventProtocolError:
			fmt.Printf("error: %s\n", event.Reason)
		case relay.EventDisconnected:
			fmt.Println("disconnected")
		}
	}
}
