package main

import (
	"fmt"
	"sync"
	"time"

	pb "gopkg.in/cheggaaa/pb.v1"

	"github.com/urfave/cli"

	"github.com/gochannel/tchan"
)

var benchCommand = cli.Command{
	Name:  "bench",
	Usage: "open a channel and send N pings to a target, reporting throughput",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "hostport", Usage: "host:port this bench process binds as"},
		cli.StringFlag{Name: "target", Usage: "host:port of the peer to call"},
		cli.IntFlag{Name: "n", Value: 1000},
		cli.DurationFlag{Name: "timeout", Value: 2 * time.Second},
	},
	Action: func(c *cli.Context) error {
		return runBench(c)
	},
}

func runBench(c *cli.Context) error {
	ch, err := tchan.NewChannel(tchan.Options{
		HostPort:    c.String("hostport"),
		ProcessName: "tchand-bench",
	})
	if err != nil {
		return err
	}
	defer func() {
		done := make(chan struct{})
		ch.Quit(func() { close(done) })
		<-done
	}()

	n := c.Int("n")
	target := c.String("target")
	timeout := c.Duration("timeout")

	bar := pb.StartNew(n)
	defer bar.Finish()

	var wg sync.WaitGroup
	var okCount, errCount int
	var mu sync.Mutex

	start := time.Now()
	for i := 0; i < n; i++ {
		wg.Add(1)
		ch.Send(tchan.CallOptions{Host: target, Timeout: timeout}, []byte("ping"), []byte("k"), []byte("v"),
			func(err error, res2, res3 []byte) {
				defer wg.Done()
				defer bar.Increment()
				mu.Lock()
				if err != nil {
					errCount++
				} else {
					okCount++
				}
				mu.Unlock()
			})
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("sent %d calls in %s (%d ok, %d errored)\n", n, elapsed, okCount, errCount)
	return nil
}
