// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

// Package direct is a swarm-free point-to-point transport, used when a
// peer is reachable only by a known endpoint rather than through the
// libp2p overlay -- the orchestrator's SettleOffering and RunInference,
// which dial an offering's or LLM provider's endpoint directly.
package direct

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Request is the wire frame sent to a direct endpoint.
type Request struct {
	ToolKeyName string `json:"tool_key_name"`
	Payload     []byte `json:"payload"`
}

// Response is the wire frame an endpoint replies with.
type Response struct {
	Success bool   `json:"success"`
	Data    []byte `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Client dials a direct endpoint, writes one request frame, and waits
// for one response frame before closing the connection.
type Client struct {
	dialTimeout  time.Duration
	writeTimeout time.Duration
	readTimeout  time.Duration
}

// NewClient builds a Client with the teacher's default WebSocket
// transport timeouts.
func NewClient() *Client {
	return &Client{
		dialTimeout:  10 * time.Second,
		writeTimeout: 10 * time.Second,
		readTimeout:  30 * time.Second,
	}
}

// Send dials url and round-trips a single Request/Response pair.
func (c *Client) Send(ctx context.Context, url string, req Request) (*Response, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: c.dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("direct: dial %s failed (HTTP %d): %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("direct: dial %s failed: %w", url, err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("direct: write request: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return nil, err
	}
	var out Response
	if err := conn.ReadJSON(&out); err != nil {
		return nil, fmt.Errorf("direct: read response: %w", err)
	}
	return &out, nil
}

// Handler processes one direct request and produces the reply frame.
type Handler func(Request) Response

// Server accepts direct WebSocket connections, one request/response pair
// per connection, and dispatches each to Handler.
type Server struct {
	handler  Handler
	upgrader websocket.Upgrader
}

// NewServer builds a Server that dispatches every accepted connection's
// single request frame to h.
func NewServer(h Handler) *Server {
	return &Server{
		handler: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// ServeHTTP implements http.Handler, so a Server can be mounted directly
// on a mux alongside the health/metrics endpoints.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var req Request
	if err := conn.ReadJSON(&req); err != nil {
		return
	}
	resp := s.handler(req)
	_ = conn.WriteJSON(resp)
}
