// Command loqui-server is a reference server: it accepts TCP
// connections, spins up one Session per connection, and answers every
// string request with its uppercased text (any other payload type gets a
// fixed "unsupported payload type" reply). Shaped after
// _examples/xtaci-kcptun/server/main.go's cli.App skeleton.
package main

import (
	"log"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/SmithJrBlaquaLuigi/loqui"
	"github.com/SmithJrBlaquaLuigi/loqui/encoding"
)

// VERSION is injected by build flags.
var VERSION = "SELFBUILD"

func main() {
	app := cli.NewApp()
	app.Name = "loqui-server"
	app.Usage = "reference loqui RPC server"
	app.Version = VERSION
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "localaddr, l",
			Value: ":7890",
			Usage: "local listen address",
		},
		cli.DurationFlag{
			Name:  "pinginterval, p",
			Value: 30 * time.Second,
			Usage: "default keepalive ping interval, overridden by the client's Hello",
		},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		checkError(err)
	}
}

func run(c *cli.Context) error {
	listener, err := net.Listen("tcp", c.String("localaddr"))
	if err != nil {
		return errors.Wrap(err, "loqui-server: listen")
	}
	log.Println("listening on:", listener.Addr())

	pingInterval := c.Duration("pinginterval")
	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Printf("accept error: %+v\n", err)
			continue
		}
		go serve(conn, pingInterval)
	}
}

func serve(conn net.Conn, pingInterval time.Duration) {
	log.Println("accepted connection from", conn.RemoteAddr())

	cfg := loqui.DefaultConfig()
	cfg.PingInterval = pingInterval

	sess := loqui.NewSession(loqui.NewNetSocket(conn, 0), cfg, loqui.RoleServer)
	sess.RegisterEncoder("json", encoding.JSON{})
	sess.RegisterEncoder("msgpack", encoding.Msgpack{})
	sess.RegisterEncoder("json+snappy", encoding.NewSnappy(encoding.JSON{}))

	sess.OnRequest(func(seq uint32, payload any) (any, bool) {
		text, ok := payload.(string)
		if !ok {
			return "unsupported payload type", true
		}
		return strings.ToUpper(text), true
	})
	sess.OnPush(func(payload any) {
		log.Println("push from client:", payload)
	})

	sess.Start()
}

func checkError(err error) {
	if err != nil {
		log.Printf("%+v\n", err)
		os.Exit(1)
	}
}
