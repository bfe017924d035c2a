package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/urfave/cli"

	"github.com/gochannel/tchan/admin"
)

var peersCommand = cli.Command{
	Name:  "peers",
	Usage: "print the peer table of a running tchand serve process",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "admin-addr", Usage: "host:port of the target's admin HTTP surface"},
	},
	Action: func(c *cli.Context) error {
		return runPeers(c)
	},
}

func runPeers(c *cli.Context) error {
	addr := c.String("admin-addr")
	if addr == "" {
		return fmt.Errorf("-admin-addr is required")
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/peers", addr))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var peers []admin.PeerConn
	if err := json.NewDecoder(resp.Body).Decode(&peers); err != nil {
		return err
	}

	printPeerTable(peers)
	return nil
}

// printPeerTable column-aligns the HostPort field with go-runewidth,
// since HostPort strings (especially once IPv6/unicode process names
// enter the picture) are not guaranteed to be one terminal column per
// rune.
func printPeerTable(peers []admin.PeerConn) {
	const hostCol = 32

	header := fmt.Sprintf("%s  %-3s  %-10s  %6s  %6s",
		runewidth.FillRight("HOSTPORT", hostCol), "DIR", "IDENTIFIED", "IN", "OUT")
	fmt.Println(header)
	fmt.Println(strings.Repeat("-", runewidth.StringWidth(header)))

	for _, p := range peers {
		fmt.Printf("%s  %-3s  %-10v  %6d  %6d\n",
			runewidth.FillRight(p.HostPort, hostCol), p.Direction, p.Identified, p.InPending, p.OutPending)
	}
}
