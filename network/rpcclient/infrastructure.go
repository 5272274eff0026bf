// Copyright (c) 2014-2017 The btcsuite developers
// Copyright (c) 2015-2017 The Decred developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/websocket"
	"github.com/pkg/errors"
	"gitlab.com/jaxnet/smicp/types/events"
	"gitlab.com/jaxnet/smicp/types/rpcjson"
)

const defaultTimeout = 30 * time.Second

// ErrClientShutdown is returned for requests issued after Shutdown.
var ErrClientShutdown = errors.New("the client has been shutdown")

// ConnConfig describes the connection configuration parameters for the
// client.
type ConnConfig struct {
	// Host is the host:port of the RPC server.  A leading http:// is
	// accepted.
	Host string `yaml:"host"`

	// User and Pass are the Basic auth credentials.  Leave both empty
	// for a server running without authentication.
	User string `yaml:"user"`
	Pass string `yaml:"pass"`

	// Timeout bounds every HTTP request.  Zero means 30 seconds.
	Timeout time.Duration `yaml:"timeout"`
}

func (config *ConnConfig) baseURL() string {
	host := strings.TrimSuffix(config.Host, "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host
}

func (config *ConnConfig) wsURL() string {
	u := config.baseURL()
	if strings.HasPrefix(u, "https://") {
		return "wss://" + strings.TrimPrefix(u, "https://") + "/ws"
	}
	return "ws://" + strings.TrimPrefix(u, "http://") + "/ws"
}

func (config *ConnConfig) authHeader() string {
	if config.User == "" && config.Pass == "" {
		return ""
	}
	login := config.User + ":" + config.Pass
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(login))
}

// response is the raw bytes of a JSON-RPC result, or the error if the
// response error object was non-null.
type response struct {
	result []byte
	err    error
}

// Client represents a JSON-RPC client of the smicpd node.  Every call has an
// Async variant that returns a future and a blocking variant built on it.
type Client struct {
	id uint64 // atomic, so must stay 64-bit aligned

	config     *ConnConfig
	httpClient *http.Client

	shutdown int32
	wg       sync.WaitGroup
}

// New creates a client for the passed connection configuration.
func New(config *ConnConfig) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NextID returns the next id to be used when sending a JSON-RPC message.
// This function is safe for concurrent access.
func (c *Client) NextID() uint64 {
	return atomic.AddUint64(&c.id, 1)
}

// sendCmd sends the passed method and parameters and returns a future that
// delivers the reply.
func (c *Client) sendCmd(method string, params interface{}) chan *response {
	responseChan := make(chan *response, 1)
	if atomic.LoadInt32(&c.shutdown) != 0 {
		responseChan <- &response{err: ErrClientShutdown}
		return responseChan
	}

	req, err := rpcjson.NewRequest(c.NextID(), method, params)
	if err != nil {
		responseChan <- &response{err: err}
		return responseChan
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		responseChan <- c.sendPost(req)
	}()
	return responseChan
}

// sendPost posts one request and decodes the JSON-RPC reply.
func (c *Client) sendPost(req *rpcjson.Request) *response {
	body, err := json.Marshal(req)
	if err != nil {
		return &response{err: err}
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.config.baseURL()+"/", bytes.NewReader(body))
	if err != nil {
		return &response{err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if auth := c.config.authHeader(); auth != "" {
		httpReq.Header.Set("Authorization", auth)
	}

	log.Trace().Str("method", req.Method).Msg("Sending command")
	httpResponse, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &response{err: err}
	}
	respBytes, err := ioutil.ReadAll(httpResponse.Body)
	httpResponse.Body.Close()
	if err != nil {
		return &response{err: errors.Wrap(err, "error reading json reply")}
	}

	// Try to unmarshal the response as a regular JSON-RPC response.
	var resp rpcjson.Response
	if err = json.Unmarshal(respBytes, &resp); err != nil {
		// When the response itself isn't a valid JSON-RPC response
		// return an error which includes the HTTP status code and raw
		// response bytes.
		err = fmt.Errorf("status code: %d, response: %q",
			httpResponse.StatusCode, strings.TrimSpace(string(respBytes)))
		return &response{err: err}
	}
	if resp.Error != nil {
		return &response{err: resp.Error}
	}
	return &response{result: resp.Result}
}

// receiveFuture receives from the passed futureResult channel to extract a
// reply or any errors.  The examined errors include an error in the reply
// itself as well as any transport failure.
func receiveFuture(f chan *response) ([]byte, error) {
	r := <-f
	return r.result, r.err
}

// receiveInto waits for the future and decodes the result into v.
func receiveInto(f chan *response, v interface{}) error {
	res, err := receiveFuture(f)
	if err != nil {
		return err
	}
	return json.Unmarshal(res, v)
}

// RawRequest sends an arbitrary method with params and returns the raw
// result.  It is useful for methods this client has no wrapper for.
func (c *Client) RawRequest(method string, params interface{}) (json.RawMessage, error) {
	return receiveFuture(c.sendCmd(method, params))
}

// Shutdown waits for the in-flight requests and rejects new ones.
func (c *Client) Shutdown() {
	atomic.StoreInt32(&c.shutdown, 1)
	c.wg.Wait()
}

// Subscribe opens the event stream and calls handler for every event until
// ctx is done or the connection fails.  It returns nil when ctx ends the
// stream.
func (c *Client) Subscribe(ctx context.Context, handler func(events.Event)) error {
	header := http.Header{}
	if auth := c.config.authHeader(); auth != "" {
		header.Set("Authorization", auth)
	}

	dialer := websocket.Dialer{}
	conn, _, err := dialer.Dial(c.config.wsURL(), header)
	if err != nil {
		return errors.Wrap(err, "unable to open event stream")
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "event stream closed")
		}

		var ntfn struct {
			Method string       `json:"method"`
			Params events.Event `json:"params"`
		}
		if err := json.Unmarshal(msg, &ntfn); err != nil {
			log.Warn().Err(err).Msg("Malformed notification")
			continue
		}
		if ntfn.Method != rpcjson.MethodEvent {
			continue
		}
		handler(ntfn.Params)
	}
}
