package proxyenv

import "github.com/codeready-toolchain/agentsim/pkg/event"

// LocalReceiver accepts an event for ordinary local delivery, normally
// *event.Bus.Enqueue.
type LocalReceiver interface {
	Enqueue(ev event.Event)
}

// Receiver is a worker's distnode.EventReceiver: a response event destined
// for a parked ProxyEnv future is delivered there; anything else (an
// ordinary forwarded event addressed to a local agent) falls through to
// the local bus.
type Receiver struct {
	proxy *ProxyEnv
	local LocalReceiver
}

// NewReceiver builds a Receiver wrapping proxy and local.
func NewReceiver(proxy *ProxyEnv, local LocalReceiver) *Receiver {
	return &Receiver{proxy: proxy, local: local}
}

// Enqueue satisfies distnode.EventReceiver.
func (r *Receiver) Enqueue(ev event.Event) {
	switch ev.Kind {
	case event.KindDataResponse, event.KindDataUpdateResponse, event.KindAgentDataByTypeResp:
		if r.proxy.Deliver(ev) {
			return
		}
	}
	r.local.Enqueue(ev)
}
