package handler

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/vlima/comanda/internal/core/domain"
	"github.com/vlima/comanda/internal/core/service"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsEvent is the frame streamed to customer views. Every frame carries a full
// snapshot; clients re-render, never patch.
type wsEvent struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type sessionEvent struct {
	Status service.SessionState `json:"status"`
}

type WSHandler struct {
	svc *service.POSService
}

func NewWSHandler(svc *service.POSService) *WSHandler {
	return &WSHandler{svc: svc}
}

// ServeTable streams catalog, the table's orders and its session state over
// one WebSocket. The session watcher turns the disappearing session record
// into a single payment_confirmed event after a bill was requested.
func (h *WSHandler) ServeTable(w http.ResponseWriter, r *http.Request) {
	tableID, ok := tableIDVar(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	watcher := service.NewSessionWatcher(tableID)

	var writeMu sync.Mutex
	confirmed := false
	send := func(ev wsEvent) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(ev); err != nil {
			logrus.WithError(err).Debug("ws write failed")
			conn.Close()
		}
	}

	cancelProducts, err := h.svc.SubscribeProducts(ctx, func(products []domain.Product) {
		send(wsEvent{Type: "products", Data: products})
	})
	if err != nil {
		logrus.WithError(err).Error("products subscription failed")
		return
	}
	defer cancelProducts()

	cancelOrders, err := h.svc.SubscribeOrders(ctx, func(orders []domain.Order) {
		mine := make([]domain.Order, 0, len(orders))
		for _, o := range orders {
			if o.TableID == tableID {
				mine = append(mine, o)
			}
		}
		send(wsEvent{Type: "orders", Data: mine})
	})
	if err != nil {
		logrus.WithError(err).Error("orders subscription failed")
		return
	}
	defer cancelOrders()

	cancelSessions, err := h.svc.SubscribeSessions(ctx, func(sessions map[int]domain.TableSession) {
		state := watcher.Observe(sessions)
		send(wsEvent{Type: "session", Data: sessionEvent{Status: state}})

		writeMu.Lock()
		fire := state == service.SessionStateConfirmed && !confirmed
		if fire {
			confirmed = true
		}
		writeMu.Unlock()
		if fire {
			send(wsEvent{Type: "payment_confirmed"})
		}
	})
	if err != nil {
		logrus.WithError(err).Error("sessions subscription failed")
		return
	}
	defer cancelSessions()

	// Block until the client goes away; the deferred cancels stop the
	// subscription goroutines.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
