// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2017 The Decred developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpc

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/jaxnet/smicp/types/events"
	"gitlab.com/jaxnet/smicp/types/rpcjson"
)

const (
	// rpcAuthTimeoutSeconds is the number of seconds a connection to the
	// RPC server is allowed to stay open without authenticating before it
	// is closed.
	rpcAuthTimeoutSeconds = 10

	// anonymousCaller is recorded as the caller when authentication is
	// not configured.
	anonymousCaller = "anonymous"

	maxRequestSize = 1 << 22
)

var errAuthFailure = errors.New("auth failure")

// Server serves the protocol methods over JSON-RPC and pushes emitted events
// to websocket subscribers.
type Server struct {
	started  int32
	shutdown int32
	cfg      *Config
	mux      Mux

	authSHA      [sha256.Size]byte
	limitAuthSHA [sha256.Size]byte
	authEnabled  bool
	numClients   int32

	ws *wsManager
	wg sync.WaitGroup
}

// NewServer builds the server for backend.  When neither the admin nor the
// limited user is configured every request is treated as admin.
func NewServer(config *Config, backend Backend) *Server {
	config.setDefaults()
	server := &Server{
		cfg: config,
		mux: NewMux(backend),
	}

	if config.User != "" && config.Password != "" {
		login := config.User + ":" + config.Password
		auth := "Basic " + base64.StdEncoding.EncodeToString([]byte(login))
		server.authSHA = sha256.Sum256([]byte(auth))
		server.authEnabled = true
	}
	if config.LimitUser != "" && config.LimitPass != "" {
		login := config.LimitUser + ":" + config.LimitPass
		auth := "Basic " + base64.StdEncoding.EncodeToString([]byte(login))
		server.limitAuthSHA = sha256.Sum256([]byte(auth))
		server.authEnabled = true
	}

	server.ws = newWsManager(config.MaxWebsockets)
	return server
}

// Handler routes JSON-RPC posts on "/" and the event stream on "/ws".
func (server *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", server.HandleFunc)
	mux.HandleFunc("/ws", server.WSHandleFunc)
	return mux
}

// Publish implements events.Sink by queueing the events to every websocket
// subscriber.
func (server *Server) Publish(evs ...events.Event) {
	for _, ev := range evs {
		msg, err := json.Marshal(&rpcjson.Notification{
			Jsonrpc: "2.0",
			Method:  rpcjson.MethodEvent,
			Params:  ev,
		})
		if err != nil {
			log.Error().Err(err).Str("event", string(ev.Name)).Msg("Failed to marshal notification")
			continue
		}
		server.ws.broadcast(msg)
	}
}

// WebsocketClients returns the number of connected event subscribers.
func (server *Server) WebsocketClients() int {
	return server.ws.count()
}

// Run serves on the configured listeners until ctx is done.
func (server *Server) Run(ctx context.Context) error {
	if atomic.AddInt32(&server.started, 1) != 1 {
		return nil
	}

	if len(server.cfg.Listeners) == 0 {
		if _, err := server.cfg.SetupRPCListeners(); err != nil {
			return err
		}
	}

	log.Debug().Msg("Starting RPC Server")
	httpServer := &http.Server{
		Handler: server.Handler(),
		// Timeout connections which don't complete the initial
		// handshake within the allowed timeframe.
		ReadTimeout: time.Second * rpcAuthTimeoutSeconds,
	}

	for _, listener := range server.cfg.Listeners {
		server.wg.Add(1)
		go func(listener net.Listener) {
			defer server.wg.Done()
			log.Info().Str("address", listener.Addr().String()).Msg("RPC Server listening")
			_ = httpServer.Serve(listener)
			log.Trace().Str("address", listener.Addr().String()).Msg("RPC listener done")
		}(listener)
	}

	<-ctx.Done()

	log.Info().Msg("Shutting down the RPC Server...")
	err := httpServer.Close()
	server.stop()
	return err
}

func (server *Server) stop() {
	if atomic.AddInt32(&server.shutdown, 1) != 1 {
		log.Info().Msg("RPC Server is already in the process of shutting down")
		return
	}
	server.ws.shutdown()
	server.wg.Wait()
	log.Info().Msg("RPC Server shutdown complete")
}

// HandleFunc serves one JSON-RPC request.
func (server *Server) HandleFunc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		http.Error(w, "405 Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Limit the number of connections to max allowed.
	if server.limitConnections(w, r.RemoteAddr) {
		return
	}

	// Keep track of the number of connected clients.
	server.incrementClients()
	defer server.decrementClients()

	caller, isAdmin, err := server.checkAuth(r)
	if err != nil {
		jsonAuthFail(w)
		return
	}

	body, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestSize))
	_ = r.Body.Close()
	if err != nil {
		errCode := http.StatusBadRequest
		http.Error(w, fmt.Sprintf("%d error reading JSON message: %v",
			errCode, err), errCode)
		return
	}

	reply := server.processRequest(body, caller, isAdmin)
	if reply == nil {
		return
	}
	if _, err := w.Write(append(reply, '\n')); err != nil {
		log.Error().Err(err).Msg("Failed to write marshalled reply")
	}
}

// processRequest decodes and serves one request body.  Requests without an
// id are notifications and get no reply.
func (server *Server) processRequest(body []byte, caller string, isAdmin bool) []byte {
	var request rpcjson.Request
	if err := json.Unmarshal(body, &request); err != nil {
		jsonErr := &rpcjson.RPCError{
			Code:    rpcjson.ErrRPCParse.Code,
			Message: "Failed to parse request: " + err.Error(),
		}
		return server.createMarshalledReply(nil, nil, jsonErr)
	}
	if request.ID == nil {
		return nil
	}
	if !rpcjson.IsValidIDType(request.ID) {
		return server.createMarshalledReply(nil, nil, rpcjson.ErrRPCInvalidRequest)
	}

	if !isAdmin {
		if _, ok := rpcAdminOnly[request.Method]; ok {
			jsonErr := &rpcjson.RPCError{
				Code:    rpcjson.ErrRPCLimitedAccess,
				Message: "limited user not authorized for this method",
			}
			return server.createMarshalledReply(request.ID, nil, jsonErr)
		}
	}

	result, err := server.mux.HandleCommand(CmdCtx{
		Method: request.Method,
		Params: request.Params,
		Caller: caller,
		Admin:  isAdmin,
	})
	if err != nil {
		log.Debug().Str("method", request.Method).Str("caller", caller).Err(err).Msg("Request rejected")
	}
	return server.createMarshalledReply(request.ID, result, err)
}

// limitConnections responds with a 503 service unavailable and returns true if
// adding another client would exceed the maximum allow RPC clients.
//
// This function is safe for concurrent access.
func (server *Server) limitConnections(w http.ResponseWriter, remoteAddr string) bool {
	if int(atomic.LoadInt32(&server.numClients)+1) > server.cfg.MaxClients {
		log.Info().Int("max", server.cfg.MaxClients).Str("address", remoteAddr).
			Msg("Max RPC clients exceeded, disconnecting client")
		http.Error(w, "503 Too busy.  Try again later.",
			http.StatusServiceUnavailable)
		return true
	}
	return false
}

// incrementClients adds one to the number of connected RPC clients.  Note
// this only applies to standard clients.  Websocket clients have their own
// limits and are tracked separately.
func (server *Server) incrementClients() {
	atomic.AddInt32(&server.numClients, 1)
}

// decrementClients subtracts one from the number of connected RPC clients.
func (server *Server) decrementClients() {
	atomic.AddInt32(&server.numClients, -1)
}

// checkAuth checks the HTTP Basic authentication supplied by an RPC client
// in the HTTP request r.  It returns the caller name and whether the caller
// may use admin methods.
//
// This check is time-constant.
func (server *Server) checkAuth(r *http.Request) (string, bool, error) {
	if !server.authEnabled {
		return anonymousCaller, true, nil
	}

	authhdr := r.Header["Authorization"]
	if len(authhdr) <= 0 {
		log.Warn().Str("address", r.RemoteAddr).Msg("RPC authentication failure")
		return "", false, errAuthFailure
	}

	authsha := sha256.Sum256([]byte(authhdr[0]))

	// Check for limited auth first as in environments with limited users, those
	// are probably expected to have a higher volume of calls
	limitcmp := subtle.ConstantTimeCompare(authsha[:], server.limitAuthSHA[:])
	if limitcmp == 1 && server.cfg.LimitUser != "" {
		return server.cfg.LimitUser, false, nil
	}

	// Check for admin-level auth
	cmp := subtle.ConstantTimeCompare(authsha[:], server.authSHA[:])
	if cmp == 1 && server.cfg.User != "" {
		return server.cfg.User, true, nil
	}

	log.Warn().Str("address", r.RemoteAddr).Msg("RPC authentication failure")
	return "", false, errAuthFailure
}

// createMarshalledReply returns a new marshalled JSON-RPC response given the
// passed parameters.  Protocol failures keep their kind and key.
func (server *Server) createMarshalledReply(id, result interface{}, replyErr error) []byte {
	jsonErr := rpcjson.FromError(replyErr)
	if jsonErr != nil {
		result = nil
	}
	if jsonErr != nil && jsonErr.Code == rpcjson.ErrRPCInternal.Code && jsonErr.Data == nil {
		log.Error().Str("error", jsonErr.Message).Msg("Internal RPC error")
	}

	msg, err := rpcjson.MarshalResponse(id, result, jsonErr)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal reply")
		msg, _ = rpcjson.MarshalResponse(id, nil, rpcjson.NewRPCError(rpcjson.ErrRPCInternal.Code, err.Error()))
	}
	return msg
}

// jsonAuthFail sends a message back to the client if the http auth is rejected.
func jsonAuthFail(w http.ResponseWriter) {
	w.Header().Add("WWW-Authenticate", `Basic realm="smicpd RPC"`)
	http.Error(w, "401 Unauthorized.", http.StatusUnauthorized)
}
