// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"errors"
	"testing"
)

func testDescriptors() []Descriptor {
	return []Descriptor{
		{ID: "alpha", Trigger: "/alpha", Name: "Alpha", Description: "first", Kind: KindRemoteCall, RemoteMethod: "doAlpha", RequiresSession: true},
		{ID: "beta", Trigger: "/beta", Name: "Beta", Description: "second", Kind: KindSendMessage},
		{ID: "gamma", Trigger: "/gamma", Name: "Gamma", Description: "third", Kind: KindRemoteCall, RemoteMethod: "doGamma"},
	}
}

func TestNewRegistryValid(t *testing.T) {
	r, err := NewRegistry(testDescriptors()...)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}

	d, ok := r.Get("beta")
	if !ok || d.Trigger != "/beta" {
		t.Errorf("Get(beta) = %+v, %v", d, ok)
	}

	d, ok = r.GetByTrigger("/gamma")
	if !ok || d.ID != "gamma" {
		t.Errorf("GetByTrigger(/gamma) = %+v, %v", d, ok)
	}

	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) = true, want false")
	}
}

func TestNewRegistryPreservesOrder(t *testing.T) {
	r, err := NewRegistry(testDescriptors()...)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	all := r.All()
	wantOrder := []string{"alpha", "beta", "gamma"}
	for i, id := range wantOrder {
		if all[i].ID != id {
			t.Errorf("All()[%d].ID = %q, want %q", i, all[i].ID, id)
		}
	}
}

func TestNewRegistryValidation(t *testing.T) {
	tests := []struct {
		name    string
		descs   []Descriptor
		wantErr error
	}{
		{
			name:    "empty trigger",
			descs:   []Descriptor{{ID: "x", Trigger: "", Kind: KindSendMessage}},
			wantErr: ErrEmptyTrigger,
		},
		{
			name:    "missing slash prefix",
			descs:   []Descriptor{{ID: "x", Trigger: "model", Kind: KindSendMessage}},
			wantErr: ErrBadTriggerPrefix,
		},
		{
			name: "duplicate id",
			descs: []Descriptor{
				{ID: "x", Trigger: "/x", Kind: KindSendMessage},
				{ID: "x", Trigger: "/y", Kind: KindSendMessage},
			},
			wantErr: ErrDuplicateID,
		},
		{
			name: "duplicate trigger",
			descs: []Descriptor{
				{ID: "x", Trigger: "/same", Kind: KindSendMessage},
				{ID: "y", Trigger: "/same", Kind: KindSendMessage},
			},
			wantErr: ErrDuplicateTrigger,
		},
		{
			name: "trigger strict prefix of another",
			descs: []Descriptor{
				{ID: "model", Trigger: "/model", Kind: KindSendMessage},
				{ID: "models", Trigger: "/models", Kind: KindSendMessage},
			},
			wantErr: ErrTriggerOverlap,
		},
		{
			name:    "remote call without method",
			descs:   []Descriptor{{ID: "x", Trigger: "/x", Kind: KindRemoteCall}},
			wantErr: ErrMissingMethod,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.descs...)
			if err == nil {
				t.Fatal("NewRegistry() error = nil, want error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewRegistry() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAllReturnsCopy(t *testing.T) {
	r, err := NewRegistry(testDescriptors()...)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	all := r.All()
	all[0].ID = "mutated"

	if d, _ := r.Get("alpha"); d.ID != "alpha" {
		t.Error("mutating All() result changed registry state")
	}
}

func TestDefaultDescriptorsValid(t *testing.T) {
	r, err := NewRegistry(DefaultDescriptors()...)
	if err != nil {
		t.Fatalf("default command set failed validation: %v", err)
	}
	if r.Len() == 0 {
		t.Fatal("default command set is empty")
	}

	for _, d := range r.All() {
		if d.Kind == KindRemoteCall && d.RemoteMethod == "" {
			t.Errorf("command %q: remote call without method", d.ID)
		}
	}
}

func TestKindString(t *testing.T) {
	if KindRemoteCall.String() != "remote-call" {
		t.Errorf("KindRemoteCall.String() = %q", KindRemoteCall.String())
	}
	if KindSendMessage.String() != "send-as-message" {
		t.Errorf("KindSendMessage.String() = %q", KindSendMessage.String())
	}
	if Kind(99).String() != "unknown" {
		t.Errorf("Kind(99).String() = %q", Kind(99).String())
	}
}
