package dashboard

import (
	"log"
	"os"

	"github.com/jobsheet/jobsheet/internal/connectivity"
	jsync "github.com/jobsheet/jobsheet/internal/sync"
)

// Handler turns coordinator events and connectivity changes into dashboard
// messages.
type Handler struct {
	server *Server
	logger *log.Logger
}

// NewHandler creates a new event handler connected to a dashboard server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(os.Stderr, "[dashboard] ", log.LstdFlags)
	}
	return &Handler{server: server, logger: logger}
}

// Attach subscribes to coord and monitor. The returned function removes
// both subscriptions.
func (h *Handler) Attach(coord jsync.Coordinator, monitor *connectivity.Monitor) (detach func()) {
	offEvents := coord.Subscribe(h.OnEvent)
	offOnline := func() {}
	if monitor != nil {
		offOnline = monitor.Subscribe(h.OnConnectivity)
	}
	return func() {
		offEvents()
		offOnline()
	}
}

// OnEvent handles a finished coordinator operation. Committed operations
// also refresh the stats.
func (h *Handler) OnEvent(ev jsync.Event) {
	h.logger.Printf("%s %s (%d records)", ev.Op, ev.Outcome, ev.Records)

	h.server.BroadcastData(MessageTypeSync, ev)
	if h.server.notices != nil {
		h.server.BroadcastData(MessageTypeNotice, h.server.notices.Active())
	}
	if ev.Outcome != jsync.OutcomeNone.String() {
		h.broadcastStats()
	}
}

// OnConnectivity handles an online/offline transition.
func (h *Handler) OnConnectivity(online bool) {
	if online {
		h.logger.Println("Connectivity restored")
	} else {
		h.logger.Println("Connectivity lost")
	}
	h.server.BroadcastData(MessageTypeConnectivity, ConnectivityData{Online: online})
}

func (h *Handler) broadcastStats() {
	h.server.BroadcastData(MessageTypeStats, h.server.Stats())
}
