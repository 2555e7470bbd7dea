package platform

import (
	"context"

	"go.uber.org/zap"

	"github.com/faeterjconnect/connect/internal/bus"
	"github.com/faeterjconnect/connect/internal/status"
)

// EventHandler drives the state machine from transport and session events,
// and runs the reconnect hook once the broker is up.
type EventHandler struct {
	bus         *bus.Bus
	machine     *status.Machine
	loggedIn    func() bool
	onConnected func(ctx context.Context)
	logger      *zap.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewEventHandler creates a new event handler. loggedIn reports whether a
// dropped connection should be retried or is the result of a logout.
func NewEventHandler(b *bus.Bus, machine *status.Machine, loggedIn func() bool, logger *zap.Logger) *EventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHandler{bus: b, machine: machine, loggedIn: loggedIn, logger: logger}
}

// OnConnected registers fn to run, off the event loop, after every broker
// connect. Call before Start.
func (h *EventHandler) OnConnected(fn func(ctx context.Context)) {
	h.onConnected = fn
}

// Start subscribes to the bus.
func (h *EventHandler) Start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	h.ctx = ctx
	h.done = make(chan struct{})
	transportCh, unsubTransport := h.bus.Subscribe("transport.", 64)
	sessionCh, unsubSession := h.bus.Subscribe(bus.KindLoggedOut, 16)

	go func() {
		defer close(h.done)
		defer unsubTransport()
		defer unsubSession()
		for {
			select {
			case evt := <-transportCh:
				h.Handle(evt)
			case evt := <-sessionCh:
				h.Handle(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop unsubscribes and waits for the loop to exit.
func (h *EventHandler) Stop() {
	if h.cancel != nil {
		h.cancel()
		<-h.done
	}
}

// Handle applies one event to the state machine.
func (h *EventHandler) Handle(evt bus.Event) {
	switch evt.Kind {
	case bus.KindTransportConnected:
		h.logger.Info("broker connected")
		switch h.machine.Current() {
		case status.Booting, status.LoggedOut, status.Error:
			_ = h.machine.Transition(status.Connecting)
		}
		_ = h.machine.Transition(status.Connected)
		if h.onConnected != nil {
			ctx := h.ctx
			if ctx == nil {
				ctx = context.Background()
			}
			go h.onConnected(ctx)
		}
	case bus.KindTransportDisconnected:
		if !h.loggedIn() {
			return
		}
		h.logger.Warn("broker disconnected")
		_ = h.machine.Transition(status.Reconnecting)
	case bus.KindTransportError:
		if !h.loggedIn() {
			return
		}
		h.logger.Warn("broker error", zap.Any("detail", evt.Payload))
		if h.machine.Current() == status.Connecting {
			_ = h.machine.Transition(status.Reconnecting)
		}
	case bus.KindLoggedOut:
		_ = h.machine.Transition(status.LoggedOut)
	}
}
