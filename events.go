package tchan

// Observer receives the fixed set of events a Channel emits (spec.md §6
// "Observable events"). It deliberately is NOT a string-keyed event bus:
// every event the core can raise has its own method, so a typo in an
// event name can never silently drop a notification. Embed Observer (via
// NopObserver) to implement only the events you care about.
type Observer interface {
	OnListening(hostPort string)
	OnIdentified(hostPort string)
	OnSocketClose(conn *Connection, err error)
	OnEndpoint(name string)
	OnEndpointMissing(name string)
}

// NopObserver implements Observer with no-ops. Embed it in a partial
// observer to avoid having to stub out events you don't use.
type NopObserver struct{}

func (NopObserver) OnListening(string)               {}
func (NopObserver) OnIdentified(string)               {}
func (NopObserver) OnSocketClose(*Connection, error)  {}
func (NopObserver) OnEndpoint(string)                 {}
func (NopObserver) OnEndpointMissing(string)          {}
