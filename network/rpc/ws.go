// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpc

import (
	"container/list"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/btcsuite/websocket"
)

// websocketSendBufferSize is the number of elements the send channel
// can queue before blocking.
const websocketSendBufferSize = 50

// ErrClientQuit describes the error where a client send is not processed due
// to the client having already been disconnected or dropped.
var ErrClientQuit = errors.New("client quit")

// wsManager tracks the connected event subscribers.
type wsManager struct {
	sync.Mutex
	clients map[*wsClient]struct{}
	max     int
	closed  bool
	wg      sync.WaitGroup
}

func newWsManager(max int) *wsManager {
	return &wsManager{
		clients: make(map[*wsClient]struct{}),
		max:     max,
	}
}

// add registers c unless the limit is reached or the manager is shut down.
func (m *wsManager) add(c *wsClient) bool {
	m.Lock()
	defer m.Unlock()
	if m.closed || len(m.clients) >= m.max {
		return false
	}
	m.clients[c] = struct{}{}
	m.wg.Add(1)
	return true
}

func (m *wsManager) remove(c *wsClient) {
	m.Lock()
	if _, ok := m.clients[c]; ok {
		delete(m.clients, c)
		m.wg.Done()
	}
	m.Unlock()
}

// count returns the number of connected subscribers.
func (m *wsManager) count() int {
	m.Lock()
	defer m.Unlock()
	return len(m.clients)
}

func (m *wsManager) broadcast(msg []byte) {
	m.Lock()
	clients := make([]*wsClient, 0, len(m.clients))
	for c := range m.clients {
		clients = append(clients, c)
	}
	m.Unlock()

	for _, c := range clients {
		// Disconnected clients are removed by their own handlers.
		_ = c.QueueNotification(msg)
	}
}

// shutdown disconnects every client and waits for their handlers.
func (m *wsManager) shutdown() {
	m.Lock()
	m.closed = true
	clients := make([]*wsClient, 0, len(m.clients))
	for c := range m.clients {
		clients = append(clients, c)
	}
	m.Unlock()

	for _, c := range clients {
		c.Disconnect()
	}
	m.wg.Wait()
}

// WSHandleFunc upgrades an authenticated request to an event stream.
func (server *Server) WSHandleFunc(w http.ResponseWriter, r *http.Request) {
	if _, _, err := server.checkAuth(r); err != nil {
		jsonAuthFail(w)
		return
	}

	if server.ws.count() >= server.cfg.MaxWebsockets {
		log.Info().Int("max", server.cfg.MaxWebsockets).Str("address", r.RemoteAddr).
			Msg("Max websocket clients exceeded, disconnecting client")
		http.Error(w, "503 Too busy.  Try again later.", http.StatusServiceUnavailable)
		return
	}

	ws, err := websocket.Upgrade(w, r, nil, 0, 0)
	if err != nil {
		if _, ok := err.(websocket.HandshakeError); !ok {
			log.Error().Err(err).Msg("Unexpected websocket error")
		}
		http.Error(w, "400 Bad Request.", http.StatusBadRequest)
		return
	}

	client := newWebsocketClient(server.ws, ws, r.RemoteAddr)
	if !server.ws.add(client) {
		_ = ws.Close()
		return
	}
	client.Start()
}

// wsClient pushes event notifications to one websocket subscriber.  Inbound
// messages are read only to notice disconnects.  Notifications are queued by
// notificationQueueHandler so a slow subscriber never blocks the publisher,
// and all messages are written by outHandler.
type wsClient struct {
	sync.Mutex

	manager *wsManager
	conn    *websocket.Conn
	addr    string

	disconnected bool

	ntfnChan chan []byte
	sendChan chan wsResponse
	quit     chan struct{}
	wg       sync.WaitGroup
}

type wsResponse struct {
	msg      []byte
	doneChan chan bool
}

func newWebsocketClient(manager *wsManager, conn *websocket.Conn, remoteAddr string) *wsClient {
	return &wsClient{
		manager:  manager,
		conn:     conn,
		addr:     remoteAddr,
		ntfnChan: make(chan []byte, 1), // nonblocking sync
		sendChan: make(chan wsResponse, websocketSendBufferSize),
		quit:     make(chan struct{}),
	}
}

func (c *wsClient) shouldLogReadError(err error) bool {
	// No logging when the connection is being forcibly disconnected.
	select {
	case <-c.quit:
		return false
	default:
	}

	// No logging when the connection has been disconnected.
	if err == io.EOF {
		return false
	}
	if opErr, ok := err.(*net.OpError); ok && !opErr.Temporary() {
		return false
	}
	return true
}

// inHandler discards inbound messages until the connection fails.  It must
// be run as a goroutine.
func (c *wsClient) inHandler() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if c.shouldLogReadError(err) {
				log.Debug().Str("address", c.addr).Err(err).Msg("Websocket receive error")
			}
			break
		}
	}

	c.Disconnect()
	c.wg.Done()
	log.Trace().Str("address", c.addr).Msg("Websocket client input handler done")
}

// notificationQueueHandler buffers events for outHandler so that publishing
// never waits on a slow subscriber.  It must be run as a goroutine.
func (c *wsClient) notificationQueueHandler() {
	sent := make(chan bool, 1)

	// Events wait in pending while one is in flight.
	pending := list.New()
	waiting := false
out:
	for {
		select {
		case msg := <-c.ntfnChan:
			if waiting {
				pending.PushBack(msg)
				continue
			}
			waiting = true
			c.SendMessage(msg, sent)

		case <-sent:
			next := pending.Front()
			if next == nil {
				waiting = false
				continue
			}
			c.SendMessage(pending.Remove(next).([]byte), sent)

		case <-c.quit:
			break out
		}
	}

cleanup:
	for {
		select {
		case <-c.ntfnChan:
		case <-sent:
		default:
			break cleanup
		}
	}
	c.wg.Done()
	log.Trace().Str("address", c.addr).Msg("Websocket client notification queue handler done")
}

// outHandler is the only writer of the connection.  It must be run as a
// goroutine.
func (c *wsClient) outHandler() {
out:
	for {
		select {
		case r := <-c.sendChan:
			err := c.conn.WriteMessage(websocket.TextMessage, r.msg)
			if err != nil {
				c.Disconnect()
				break out
			}
			if r.doneChan != nil {
				r.doneChan <- true
			}

		case <-c.quit:
			break out
		}
	}

	// Release senders still waiting on a done channel.
cleanup:
	for {
		select {
		case r := <-c.sendChan:
			if r.doneChan != nil {
				r.doneChan <- false
			}
		default:
			break cleanup
		}
	}
	c.wg.Done()
	log.Trace().Str("address", c.addr).Msg("Websocket client output handler done")
}

// SendMessage hands msg to outHandler.  doneChan, when set, receives the
// write outcome.
func (c *wsClient) SendMessage(msg []byte, doneChan chan bool) {
	if c.Disconnected() {
		if doneChan != nil {
			doneChan <- false
		}
		return
	}

	select {
	case c.sendChan <- wsResponse{msg: msg, doneChan: doneChan}:
	case <-c.quit:
		if doneChan != nil {
			doneChan <- false
		}
	}
}

// QueueNotification queues an encoded event without blocking on the
// connection.
func (c *wsClient) QueueNotification(ntfn []byte) error {
	if c.Disconnected() {
		return ErrClientQuit
	}

	select {
	case c.ntfnChan <- ntfn:
		return nil
	case <-c.quit:
		return ErrClientQuit
	}
}

// Disconnected returns whether or not the websocket client is disconnected.
func (c *wsClient) Disconnected() bool {
	c.Lock()
	isDisconnected := c.disconnected
	c.Unlock()

	return isDisconnected
}

// Disconnect disconnects the websocket client.
func (c *wsClient) Disconnect() {
	c.Lock()
	defer c.Unlock()

	// Nothing to do if already disconnected.
	if c.disconnected {
		return
	}

	log.Trace().Str("address", c.addr).Msg("Disconnecting websocket client")
	close(c.quit)
	_ = c.conn.Close()
	c.disconnected = true
}

// Start begins processing input and output messages.
func (c *wsClient) Start() {
	log.Trace().Str("address", c.addr).Msg("Starting websocket client")

	c.wg.Add(3)
	go c.inHandler()
	go c.notificationQueueHandler()
	go c.outHandler()

	go func() {
		c.WaitForShutdown()
		c.manager.remove(c)
	}()
}

// WaitForShutdown blocks until the websocket client goroutines are stopped
// and the connection is closed.
func (c *wsClient) WaitForShutdown() {
	c.wg.Wait()
}
