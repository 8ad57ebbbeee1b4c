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

package direct

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientServerRoundTrip(t *testing.T) {
	handler := func(req Request) Response {
		if req.ToolKeyName != "echo" {
			return Response{Success: false, Error: "unexpected tool"}
		}
		return Response{Success: true, Data: req.Payload}
	}

	srv := httptest.NewServer(NewServer(handler))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	c := NewClient()
	resp, err := c.Send(context.Background(), url, Request{ToolKeyName: "echo", Payload: []byte("hello")})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, []byte("hello"), resp.Data)
}

func TestClientServerUnknownTool(t *testing.T) {
	handler := func(req Request) Response {
		if req.ToolKeyName != "echo" {
			return Response{Success: false, Error: "unexpected tool"}
		}
		return Response{Success: true, Data: req.Payload}
	}

	srv := httptest.NewServer(NewServer(handler))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	c := NewClient()
	resp, err := c.Send(context.Background(), url, Request{ToolKeyName: "other"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "unexpected tool", resp.Error)
}

func TestClientDialFailure(t *testing.T) {
	c := NewClient()
	_, err := c.Send(context.Background(), "ws://127.0.0.1:1/nope", Request{ToolKeyName: "echo"})
	assert.Error(t, err)
}
