// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package rpc implements the HTTP client for the palaver session gateway.
//
// The gateway exposes two endpoints: session method calls (model changes,
// conversation maintenance, usage queries) and the ordinary message-send
// path. Both speak a small JSON envelope. The client handles retries with
// exponential backoff for transient errors, caps response sizes, and rate
// limits outgoing calls so a stuck key-repeat cannot flood the gateway.
package rpc
