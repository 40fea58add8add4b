package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/docopt/docopt-go"

	"github.com/golang/glog"

	"github.com/scriptroom/scriptroom/relay"
)

const LocalVersion = "0.0.0-local"

func main() {
	usage := `Scriptroom relay server.

Usage:
    relayd serve [--port=<port>] [--auth_secret=<auth_secret>]

Options:
    -h --help                    Show this screen.
    --version                    Show version.
    -p --port=<port>             Listen port [default: 8080].
    --auth_secret=<auth_secret>  Require room tokens signed with this secret.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], LocalVersion)
	if err != nil {
		panic(err)
	}

	if serve_, _ := opts.Bool("serve"); serve_ {
		serve(opts)
	}
}

func serve(opts docopt.Opts) {
	port, _ := opts.Int("--port")

	settings := relay.DefaultRelayServerSettings()
	if authSecretAny := opts["--auth_secret"]; authSecretAny != nil {
		settings.AuthSecret = []byte(authSecretAny.(string))
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := relay.NewRelay(cancelCtx, settings)
	defer r.Close()

	glog.Infof("[relayd]listen :%d auth=%t\n", port, settings.AuthSecret != nil)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), r); err != nil {
		panic(err)
	}
}
