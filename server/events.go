package server

import (
	"net/http"
	"time"

	feedertypes "github.com/Nuklai/nuklai-contracts-bitcoin-form/types"
	"github.com/gorilla/websocket"
)

const (
	eventsBuffer = 16
	pingInterval = 10 * time.Second
	writeTimeout = 10 * time.Second
)

// handleEvents streams OwnershipTransferred and LatestCoinPrice to a websocket subscriber
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	// subscribe before the handshake completes so no event after it is missed
	ownershipCh := make(chan feedertypes.OwnershipTransferred, eventsBuffer)
	priceCh := make(chan feedertypes.LatestCoinPrice, eventsBuffer)
	ownershipSub := s.fetcher.Access().SubscribeOwnershipTransferred(ownershipCh)
	defer ownershipSub.Unsubscribe()
	priceSub := s.fetcher.SubscribeLatestCoinPrice(priceCh)
	defer priceSub.Unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade events connection", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	s.metrics.Subscribers.Set(float64(s.subscribers.Inc()))
	defer func() {
		s.metrics.Subscribers.Set(float64(s.subscribers.Dec()))
	}()
	s.logger.Info("events subscriber connected", "remote", r.RemoteAddr)

	// read routine only detects the peer closing the connection
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		var msg *eventMsg
		select {
		case e := <-ownershipCh:
			msg = &eventMsg{
				Event:         feedertypes.EventOwnershipTransferred,
				PreviousAdmin: e.Previous.Hex(),
				NewAdmin:      e.New.Hex(),
			}
		case e := <-priceCh:
			msg = &eventMsg{
				Event:    feedertypes.EventLatestCoinPrice,
				CoinPair: e.CoinPair,
				Price:    e.Price.String(),
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeTimeout)); err != nil {
				s.logger.Error("failed to write ping message to events subscriber", "remote", r.RemoteAddr, "error", err)
				return
			}
			continue
		case <-closed:
			s.logger.Info("events subscriber disconnected", "remote", r.RemoteAddr)
			return
		case <-ownershipSub.Err():
			return
		case <-priceSub.Err():
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.Error("failed to write event", "remote", r.RemoteAddr, "event", msg.Event, "error", err)
			return
		}
	}
}
