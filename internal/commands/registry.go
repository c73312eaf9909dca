// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands implements the slash command core for the palaver TUI.
package commands

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// COMMAND DESCRIPTOR
// =============================================================================

// Kind determines how a confirmed command is executed.
type Kind int

const (
	// KindRemoteCall invokes a method on the remote session.
	KindRemoteCall Kind = iota

	// KindSendMessage forwards the trigger text through the ordinary
	// message-send path instead of making a remote call.
	KindSendMessage
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindRemoteCall:
		return "remote-call"
	case KindSendMessage:
		return "send-as-message"
	default:
		return "unknown"
	}
}

// Descriptor describes a single slash command. Descriptors are immutable;
// the full set is fixed at construction time and never mutated.
type Descriptor struct {
	// ID is the unique identifier (e.g., "model")
	ID string

	// Trigger is the literal command string, always "/"-prefixed (e.g., "/model")
	Trigger string

	// Name is the short display name shown in the palette
	Name string

	// Description is shown alongside the name in palette and completion lists
	Description string

	// Kind selects remote-call vs send-as-message execution
	Kind Kind

	// RemoteMethod is the method invoked on the remote session.
	// Set iff Kind is KindRemoteCall.
	RemoteMethod string

	// RequiresSession gates dispatch on a live session reference
	RequiresSession bool
}

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds an ordered, validated set of command descriptors.
//
// The registry is an explicit value passed into the filter and dispatcher at
// construction time rather than package-level state, so tests can substitute
// arbitrary command sets.
type Registry struct {
	descriptors []Descriptor
	byID        map[string]int
	byTrigger   map[string]int
}

// Validation errors returned by NewRegistry.
var (
	// ErrEmptyTrigger indicates a descriptor with no trigger string.
	ErrEmptyTrigger = errors.New("command trigger must not be empty")

	// ErrBadTriggerPrefix indicates a trigger that does not start with "/".
	ErrBadTriggerPrefix = errors.New("command trigger must start with /")

	// ErrDuplicateID indicates two descriptors sharing an id.
	ErrDuplicateID = errors.New("duplicate command id")

	// ErrDuplicateTrigger indicates two descriptors sharing a trigger.
	ErrDuplicateTrigger = errors.New("duplicate command trigger")

	// ErrTriggerOverlap indicates a trigger that is a strict prefix of
	// another, which would break exact-match detection.
	ErrTriggerOverlap = errors.New("command trigger is a prefix of another trigger")

	// ErrMissingMethod indicates a remote-call descriptor without a method.
	ErrMissingMethod = errors.New("remote-call command requires a remote method")
)

// NewRegistry builds a registry from the given descriptors, preserving their
// order. It fails fast on invalid or ambiguous definitions so a bad command
// set is caught at startup rather than at dispatch time.
func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{
		descriptors: make([]Descriptor, 0, len(descriptors)),
		byID:        make(map[string]int, len(descriptors)),
		byTrigger:   make(map[string]int, len(descriptors)),
	}

	for _, d := range descriptors {
		if err := validateDescriptor(d); err != nil {
			return nil, fmt.Errorf("command %q: %w", d.ID, err)
		}
		if _, ok := r.byID[d.ID]; ok {
			return nil, fmt.Errorf("command %q: %w", d.ID, ErrDuplicateID)
		}
		if _, ok := r.byTrigger[d.Trigger]; ok {
			return nil, fmt.Errorf("command %q: %w (%s)", d.ID, ErrDuplicateTrigger, d.Trigger)
		}

		idx := len(r.descriptors)
		r.descriptors = append(r.descriptors, d)
		r.byID[d.ID] = idx
		r.byTrigger[d.Trigger] = idx
	}

	// Reject trigger sets where prefix narrowing can never reach an
	// unambiguous exact match (e.g., /model and /models).
	for i, a := range r.descriptors {
		for j, b := range r.descriptors {
			if i == j {
				continue
			}
			if strings.HasPrefix(b.Trigger, a.Trigger) {
				return nil, fmt.Errorf("command %q: %w (%s vs %s)",
					a.ID, ErrTriggerOverlap, a.Trigger, b.Trigger)
			}
		}
	}

	return r, nil
}

// validateDescriptor checks a single descriptor for structural validity.
func validateDescriptor(d Descriptor) error {
	if d.ID == "" {
		return errors.New("command id must not be empty")
	}
	if d.Trigger == "" {
		return ErrEmptyTrigger
	}
	if !strings.HasPrefix(d.Trigger, "/") {
		return ErrBadTriggerPrefix
	}
	if d.Kind == KindRemoteCall && d.RemoteMethod == "" {
		return ErrMissingMethod
	}
	return nil
}

// All returns the descriptors in their declared order. The returned slice is
// a copy; callers may not mutate registry state through it.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Get retrieves a descriptor by id.
func (r *Registry) Get(id string) (Descriptor, bool) {
	idx, ok := r.byID[id]
	if !ok {
		return Descriptor{}, false
	}
	return r.descriptors[idx], true
}

// GetByTrigger retrieves a descriptor by its exact trigger string.
func (r *Registry) GetByTrigger(trigger string) (Descriptor, bool) {
	idx, ok := r.byTrigger[trigger]
	if !ok {
		return Descriptor{}, false
	}
	return r.descriptors[idx], true
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	return len(r.descriptors)
}

// =============================================================================
// DEFAULT COMMAND SET
// =============================================================================

// DefaultDescriptors returns the built-in command set for the palaver chat
// client. Adding a command means appending an entry here; order is the order
// shown in the full palette.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		{
			ID:              "model",
			Trigger:         "/model",
			Name:            "Change model",
			Description:     "Choose the model used for this session",
			Kind:            KindRemoteCall,
			RemoteMethod:    "setModel",
			RequiresSession: true,
		},
		{
			ID:              "clear",
			Trigger:         "/clear",
			Name:            "Clear conversation",
			Description:     "Clear the conversation history on the remote session",
			Kind:            KindRemoteCall,
			RemoteMethod:    "clearConversation",
			RequiresSession: true,
		},
		{
			ID:              "compact",
			Trigger:         "/compact",
			Name:            "Compact conversation",
			Description:     "Summarize older messages to free up context",
			Kind:            KindRemoteCall,
			RemoteMethod:    "compactConversation",
			RequiresSession: true,
		},
		{
			ID:              "rename",
			Trigger:         "/rename",
			Name:            "Rename session",
			Description:     "Generate a new title for this session",
			Kind:            KindRemoteCall,
			RemoteMethod:    "renameSession",
			RequiresSession: true,
		},
		{
			ID:              "usage",
			Trigger:         "/usage",
			Name:            "Show usage",
			Description:     "Show token usage for the current session",
			Kind:            KindRemoteCall,
			RemoteMethod:    "getUsage",
			RequiresSession: true,
		},
		{
			ID:          "help",
			Trigger:     "/help",
			Name:        "Help",
			Description: "Ask the agent what it can do",
			Kind:        KindSendMessage,
		},
		{
			ID:          "feedback",
			Trigger:     "/feedback",
			Name:        "Send feedback",
			Description: "Send feedback about this client",
			Kind:        KindSendMessage,
		},
	}
}
