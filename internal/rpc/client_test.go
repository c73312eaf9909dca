// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, "test-token").
		WithHTTPClient(srv.Client()).
		WithRateLimit(1000)
	return srv, client
}

func TestCallSuccess(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq callRequest

	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(callResponse{OK: true})
	})

	res, err := client.Call(context.Background(), "sess-1", "setModel", map[string]string{"model": "sonnet"})
	require.NoError(t, err)
	assert.True(t, res.OK)

	assert.Equal(t, "/v1/sessions/call", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "sess-1", gotReq.SessionID)
	assert.Equal(t, "setModel", gotReq.Method)
	assert.Equal(t, "sonnet", gotReq.Params["model"])
}

func TestCallServerFailure(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(callResponse{OK: false, Message: "model not available"})
	})

	res, err := client.Call(context.Background(), "sess-1", "setModel", nil)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "model not available", res.Message)
}

func TestCallNotConfigured(t *testing.T) {
	client := NewClient("", "")
	_, err := client.Call(context.Background(), "sess-1", "getUsage", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCallAuthFailed(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":"bad_token","message":"token expired"}}`))
	})

	_, err := client.Call(context.Background(), "sess-1", "getUsage", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.Contains(t, err.Error(), "token expired")
}

func TestCallSessionNotFound(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"no such session"}}`))
	})

	_, err := client.Call(context.Background(), "gone", "getUsage", nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCallRetriesTransientErrors(t *testing.T) {
	var attempts atomic.Int32
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(callResponse{OK: true})
	})

	res, err := client.Call(context.Background(), "sess-1", "clearConversation", nil)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestCallDoesNotRetryClientErrors(t *testing.T) {
	var attempts atomic.Int32
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad params"}}`))
	})

	_, err := client.Call(context.Background(), "sess-1", "setModel", nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestCallExhaustsRetries(t *testing.T) {
	var attempts atomic.Int32
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	client.WithMaxRetries(2)

	_, err := client.Call(context.Background(), "sess-1", "getUsage", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(2), attempts.Load())
}

func TestCallCanceledContext(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(callResponse{OK: true})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Call(ctx, "sess-1", "getUsage", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCallResponseTooLarge(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", MaxResponseSize+1)))
	})

	_, err := client.Call(context.Background(), "sess-1", "getUsage", nil)
	assert.ErrorIs(t, err, ErrResponseTooLarge)
}

func TestSendMessage(t *testing.T) {
	var gotPath string
	var gotReq sendRequest

	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte(`{}`))
	})

	err := client.SendMessage(context.Background(), "sess-1", "/help")
	require.NoError(t, err)
	assert.Equal(t, "/v1/sessions/send", gotPath)
	assert.Equal(t, "sess-1", gotReq.SessionID)
	assert.Equal(t, "/help", gotReq.Text)
}

func TestPing(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/ping", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})

	assert.NoError(t, client.Ping(context.Background()))
}

func TestPingFailure(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	err := client.Ping(context.Background())
	require.Error(t, err)
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusServiceUnavailable, gwErr.Status)
}

func TestGatewayErrorString(t *testing.T) {
	withCode := &GatewayError{Code: "bad_token", Message: "token expired", Status: 401}
	assert.Equal(t, "gateway error [bad_token] (HTTP 401): token expired", withCode.Error())

	noCode := &GatewayError{Message: "boom", Status: 500}
	assert.Equal(t, "gateway error (HTTP 500): boom", noCode.Error())
}

func TestCalculateBackoff(t *testing.T) {
	assert.Equal(t, retryBaseDelay*2, calculateBackoff(1))
	assert.Equal(t, retryBaseDelay*4, calculateBackoff(2))
	assert.Equal(t, retryMaxDelay, calculateBackoff(20))
}
