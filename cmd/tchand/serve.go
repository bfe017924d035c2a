package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/gochannel/tchan"
	"github.com/gochannel/tchan/admin"
	"github.com/gochannel/tchan/peerstore"
	"github.com/gochannel/tchan/tchanlog"
	"github.com/gochannel/tchan/wstransport"
)

var serveCommand = cli.Command{
	Name:  "serve",
	Usage: "listen on hostport and serve the demo ping/echo endpoints",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "hostport", Usage: "host:port to listen on"},
		cli.StringFlag{Name: "process-name", Value: "tchand"},
		cli.StringFlag{Name: "config", Usage: "optional JSON config file"},
		cli.StringFlag{Name: "admin-addr", Usage: "optional host:port for the admin HTTP surface"},
		cli.StringFlag{Name: "ws-addr", Usage: "optional host:port for an additional websocket transport"},
		cli.StringFlag{Name: "peerstore", Usage: "optional path to a goleveldb directory for peer hint persistence"},
		cli.BoolFlag{Name: "verbose"},
	},
	Action: func(c *cli.Context) error {
		return runServe(c)
	},
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}

	opts := cfg.toOptions(tchan.Options{
		HostPort:    c.String("hostport"),
		ProcessName: c.String("process-name"),
	})

	var logger tchanlog.Logger
	if c.Bool("verbose") {
		logger, err = tchanlog.NewDevelopment()
	} else {
		logger, err = tchanlog.NewProduction(opts.ProcessName)
	}
	if err != nil {
		return err
	}
	opts.Logger = logger

	ch, err := tchan.NewChannel(opts)
	if err != nil {
		return err
	}

	ch.Register("ping", tchan.HandlerFunc(func(ctx context.Context, arg2, arg3 []byte) ([]byte, []byte, error) {
		return arg2, arg3, nil
	}))
	ch.Register("echo", tchan.HandlerFunc(func(ctx context.Context, arg2, arg3 []byte) ([]byte, []byte, error) {
		return arg2, arg3, nil
	}))

	if psPath := c.String("peerstore"); psPath != "" {
		store, err := peerstore.Open(psPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ch.SetObserver(&peerstoreObserver{store: store, log: logger})
		redialKnownPeers(ch, store, logger)
	}

	adminAddr := c.String("admin-addr")
	if adminAddr == "" {
		adminAddr = cfg.AdminAddr
	}
	if adminAddr != "" {
		srv := admin.New(ch, nil)
		go func() {
			if err := http.ListenAndServe(adminAddr, srv); err != nil {
				logger.Errorf("admin server stopped: %v", err)
			}
		}()
		logger.Infof("admin surface listening on %s", adminAddr)
	}

	if wsAddr := c.String("ws-addr"); wsAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			nc, err := wstransport.Upgrade(w, r)
			if err != nil {
				logger.Warnf("websocket upgrade failed: %v", err)
				return
			}
			if _, err := ch.AdoptInbound(nc); err != nil {
				logger.Warnf("rejecting websocket connection: %v", err)
				nc.Close()
			}
		})
		go func() {
			if err := http.ListenAndServe(wsAddr, mux); err != nil {
				logger.Errorf("websocket listener stopped: %v", err)
			}
		}()
		logger.Infof("websocket transport listening on %s", wsAddr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	done := make(chan struct{})
	ch.Quit(func() { close(done) })
	<-done
	return nil
}
