package tchan

import (
	"fmt"

	"github.com/gochannel/tchan/tchanerr"
)

func invalidArgErr(msg string) error {
	return tchanerr.New(tchanerr.KindInvalidArg, fmt.Errorf("%s", msg))
}

func destroyedErr() error {
	return tchanerr.New(tchanerr.KindDestroyed, nil)
}

func noSuchEndpointErr(name string) error {
	return tchanerr.New(tchanerr.KindNoSuchEndpoint, fmt.Errorf("no such endpoint %q", name))
}

func timeoutErr() error {
	return tchanerr.New(tchanerr.KindTimeout, nil)
}

func socketErr(cause error) error {
	return tchanerr.New(tchanerr.KindSocketError, cause)
}

func socketClosedErr() error {
	return tchanerr.New(tchanerr.KindSocketClosed, nil)
}

func parseErr(cause error) error {
	return tchanerr.New(tchanerr.KindParseError, cause)
}

func shutdownErr() error {
	return tchanerr.New(tchanerr.KindShutdown, nil)
}

func sendBufferFullErr(cause error) error {
	return tchanerr.New(tchanerr.KindSendBufferFull, cause)
}
