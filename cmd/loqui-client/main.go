// Command loqui-client is a reference client: it dials a TCP loqui
// server, negotiates an encoder, sends one request, fires a push, and
// pings once before exiting. Shaped after
// _examples/xtaci-kcptun/client/main.go's cli.App skeleton.
package main

import (
	"context"
	"log"
	"net"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/SmithJrBlaquaLuigi/loqui"
	"github.com/SmithJrBlaquaLuigi/loqui/encoding"
)

// VERSION is injected by build flags.
var VERSION = "SELFBUILD"

func main() {
	app := cli.NewApp()
	app.Name = "loqui-client"
	app.Usage = "reference loqui RPC client"
	app.Version = VERSION
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "remoteaddr, r",
			Value: "127.0.0.1:7890",
			Usage: "loqui server address",
		},
		cli.StringFlag{
			Name:  "encoder, e",
			Value: "json",
			Usage: "encoder to advertise: json, msgpack, or json+snappy",
		},
		cli.DurationFlag{
			Name:  "pinginterval, p",
			Value: 30 * time.Second,
			Usage: "keepalive ping interval to advertise to the server",
		},
		cli.StringFlag{
			Name:  "message, m",
			Value: "hello from loqui-client",
			Usage: "request payload to send",
		},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		checkError(err)
	}
}

func run(c *cli.Context) error {
	conn, err := net.Dial("tcp", c.String("remoteaddr"))
	checkError(err)
	defer conn.Close()

	log.Println("connected to", conn.RemoteAddr())

	cfg := loqui.DefaultConfig()
	cfg.PingInterval = c.Duration("pinginterval")

	sess := loqui.NewSession(loqui.NewNetSocket(conn, 0), cfg, loqui.RoleClient)
	if err := registerEncoder(sess, c.String("encoder")); err != nil {
		return err
	}
	sess.OnPush(func(payload any) {
		log.Println("push from server:", payload)
	})
	sess.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	future, err := sess.SendRequest(ctx, c.String("message"))
	if err != nil {
		return errors.Wrap(err, "loqui-client: send request")
	}
	color.Green("encoder negotiated, request sent")
	reply, err := future.Wait(ctx)
	checkError(err)
	log.Println("reply:", reply)

	checkError(sess.SendPush(ctx, "goodbye"))

	pingFuture, err := sess.Ping(ctx)
	checkError(err)
	if _, err := pingFuture.Wait(ctx); err != nil {
		log.Println("ping failed:", err)
	} else {
		log.Println("pong received")
	}

	sess.Close(true, loqui.ReasonExplicitClose)
	return nil
}

// registerEncoder advertises only the encoder named by -encoder: the
// client's Hello lists exactly what the operator chose, not a fixed
// three-way menu.
func registerEncoder(sess *loqui.Session, name string) error {
	switch name {
	case "json":
		sess.RegisterEncoder(name, encoding.JSON{})
	case "msgpack":
		sess.RegisterEncoder(name, encoding.Msgpack{})
	case "json+snappy":
		sess.RegisterEncoder(name, encoding.NewSnappy(encoding.JSON{}))
	default:
		return errors.Errorf("loqui-client: unknown encoder %q (want json, msgpack, or json+snappy)", name)
	}
	return nil
}

func checkError(err error) {
	if err != nil {
		log.Printf("%+v\n", err)
		os.Exit(1)
	}
}
