// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package mtrf

import (
	"sort"
	"sync"
)

// Handler receives decoded events on the dispatcher goroutine.
// Handlers must not block for long: they delay every later event.
type Handler func(Event)

// ListenerID identifies a registration for removal
type ListenerID uint64

// On adapts a function taking one concrete event type into a Handler that
// ignores every other type.
//
//	ctrl.AddListener(5, mtrf.On(func(ev mtrf.TempHumi) { ... }))
func On[E Event](fn func(E)) Handler {
	return func(ev Event) {
		if e, ok := ev.(E); ok {
			fn(e)
		}
	}
}

// listenerRegistry holds per-channel and all-channel listeners
type listenerRegistry struct {
	mu        sync.RWMutex
	next      ListenerID
	byChannel map[uint8]map[ListenerID]Handler
	all       map[ListenerID]Handler
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{
		byChannel: make(map[uint8]map[ListenerID]Handler),
		all:       make(map[ListenerID]Handler),
	}
}

func (r *listenerRegistry) add(channel uint8, h Handler) ListenerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	m, ok := r.byChannel[channel]
	if !ok {
		m = make(map[ListenerID]Handler)
		r.byChannel[channel] = m
	}
	m[r.next] = h
	return r.next
}

func (r *listenerRegistry) remove(channel uint8, id ListenerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byChannel[channel]
	if !ok {
		return false
	}
	if _, ok := m[id]; !ok {
		return false
	}
	delete(m, id)
	if len(m) == 0 {
		delete(r.byChannel, channel)
	}
	return true
}

func (r *listenerRegistry) subscribe(h Handler) ListenerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.all[r.next] = h
	return r.next
}

func (r *listenerRegistry) unsubscribe(id ListenerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.all[id]; !ok {
		return false
	}
	delete(r.all, id)
	return true
}

// handlers returns the listeners for channel in registration order,
// channel listeners first
func (r *listenerRegistry) handlers(channel uint8) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.byChannel[channel]
	if len(m) == 0 && len(r.all) == 0 {
		return nil
	}
	out := make([]Handler, 0, len(m)+len(r.all))
	out = appendOrdered(out, m)
	out = appendOrdered(out, r.all)
	return out
}

func appendOrdered(out []Handler, m map[ListenerID]Handler) []Handler {
	ids := make([]ListenerID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}
