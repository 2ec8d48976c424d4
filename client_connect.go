package tremotesf

import (
	"context"
	"time"
)

// Connect starts the connection handshake (spec.md §4.4) if a server has
// been configured and the engine isn't already connecting/connected.
func (c *Client) Connect() {
	c.post(func(c *Client) { c.connectLocked() })
}

func (c *Client) connectLocked() {
	if !c.hasConfig || c.status.State != Disconnected {
		return
	}
	c.cancelReconnectTimer()
	c.setStatus(Status{State: Connecting})
	c.beginUpdateCycle(true)
}

// Disconnect tears the connection down unconditionally, emitting
// AboutToDisconnect before clearing state, per spec.md §4.4's Disconnected
// entry action. Since this is a deliberate, caller-initiated disconnect (as
// opposed to one forced by a transport failure), it tells the daemon the
// client is going away via session-close first.
func (c *Client) Disconnect() {
	c.post(func(c *Client) {
		c.cancelReconnectTimer()
		c.disconnectLocked(Status{}, true)
	})
}

// ResetServer clears the configuration entirely and disconnects, cancelling
// any pending auto-reconnect (spec.md §4.4).
func (c *Client) ResetServer() {
	c.post(func(c *Client) {
		c.cancelReconnectTimer()
		c.disconnectLocked(Status{}, true)
		c.hasConfig = false
		c.cfg = ServerConfig{}
	})
}

// disconnectLocked performs the Disconnected entry action: clear session id,
// cancel in-flight requests, clear torrents (emitting a single removal
// spanning all of them), stop timers. Must run on the engine loop.
//
// notifyServer controls whether session-close is sent: it is true for a
// deliberate Disconnect()/ResetServer() call, false when disconnection is
// forced by a transport failure (spec.md lists session-close among the
// methods used but doesn't describe a connection already known to be broken
// as a sensible target for one more request).
func (c *Client) disconnectLocked(newStatus Status, notifyServer bool) {
	wasConnected := c.status.IsConnected()
	if c.status.State != Disconnected {
		c.AboutToDisconnect.emit(struct{}{})
	}

	c.transport.CancelPendingAndClearSessionID()
	c.stopUpdateTimerLocked()
	if c.updateStop != nil {
		c.updateStop()
		c.updateStop = nil
	}

	if notifyServer && wasConnected {
		// Fire on a context detached from the engine's own (just-cancelled)
		// lifetime context, so the request has a chance to actually reach
		// the daemon instead of being torn down alongside it.
		c.transport.Post(context.Background(), "session-close", struct{}{}, Independent, func(Response) {})
	}

	if n := len(c.torrents); n > 0 {
		c.torrents = nil
		c.TorrentsUpdatedSignal.emit(TorrentsUpdated{Removed: []IndexRange{{First: 0, Last: n}}})
	}

	if newStatus.State == 0 {
		newStatus = Status{State: Disconnected}
	}
	c.setStatus(newStatus)

	if wasConnected {
		c.ConnectedChanged.emit(false)
	}

	c.maybeScheduleReconnect(newStatus)
}

func (c *Client) setStatus(s Status) {
	errChanged := c.status.Error != s.Error
	c.status = s
	c.StatusChanged.emit(s)
	if errChanged {
		c.ErrorChanged.emit(s.Error)
	}
}

// failConnection transitions to Disconnected with the given error, from
// Connecting or Connected (spec.md §7).
func (c *Client) failConnection(kind ErrorKind, short, detailed string) {
	c.disconnectLocked(Status{State: Disconnected, Error: kind, ErrorMessage: short, DetailedErrorMessage: detailed}, false)
}

func (c *Client) onTransportFailure(method string, err *RequestError) {
	c.post(func(c *Client) {
		if c.status.State == Disconnected {
			// Late failure for a request issued before a prior disconnect;
			// spec.md §5 requires it not mutate state.
			return
		}
		c.logger.Warn("rpc request failed", "method", method, "kind", err.Kind, "error", err.Short)
		c.failConnection(err.Kind, err.Short, err.Detailed)
	})
}

func (c *Client) maybeScheduleReconnect(status Status) {
	if !c.hasConfig || !c.cfg.AutoReconnect {
		return
	}
	if status.Error != TimedOut && status.Error != ConnectionError {
		return
	}
	interval := c.cfg.AutoReconnectInterval
	if interval <= 0 {
		return
	}
	c.reconnectTimer = time.AfterFunc(interval, func() {
		c.post(func(c *Client) {
			c.reconnectTimer = nil
			c.connectLocked()
		})
	})
}

func (c *Client) cancelReconnectTimer() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *Client) engineContext() context.Context {
	if c.updateCtx == nil {
		c.updateCtx, c.updateStop = context.WithCancel(context.Background())
	}
	return c.updateCtx
}
