package app

import (
	"slices"
	"sync"
	"time"

	"github.com/mbocsi/lightwaverf/proto"
)

// DeviceState is a known device plus the last state the hub reported for it.
type DeviceState struct {
	proto.Device
	On      bool      `json:"on"`
	Level   int       `json:"level"`
	Updated time.Time `json:"updated,omitzero"`
}

type Registry struct {
	mu    sync.RWMutex
	store map[string]*DeviceState
}

func NewRegistry() *Registry {
	return &Registry{store: make(map[string]*DeviceState)}
}

func (r *Registry) Store(d proto.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.store[d.Key()]; ok {
		s.Device = d
		return
	}
	r.store[d.Key()] = &DeviceState{Device: d}
}

func (r *Registry) Get(room, device int) (DeviceState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.store[proto.DeviceKey(room, device)]
	if !ok {
		return DeviceState{}, false
	}
	return *s, true
}

func (r *Registry) Delete(room, device int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.store, proto.DeviceKey(room, device))
}

// Replace swaps the known devices for devices, keeping reported state for
// any device that survives.
func (r *Registry) Replace(devices []proto.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make(map[string]*DeviceState, len(devices))
	for _, d := range devices {
		s, ok := r.store[d.Key()]
		if !ok {
			s = &DeviceState{}
		}
		s.Device = d
		next[d.Key()] = s
	}
	r.store = next
}

// List returns the devices ordered by room then device.
func (r *Registry) List() []DeviceState {
	r.mu.RLock()
	out := make([]DeviceState, 0, len(r.store))
	for _, s := range r.store {
		out = append(out, *s)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b DeviceState) int {
		if a.RoomID != b.RoomID {
			return a.RoomID - b.RoomID
		}
		return a.DeviceID - b.DeviceID
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.store)
}

// apply records a reported state change. Unknown devices are added without
// names so activity from devices missing in the account still shows up.
func (r *Registry) apply(room, device int, update func(*DeviceState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := proto.DeviceKey(room, device)
	s, ok := r.store[key]
	if !ok {
		s = &DeviceState{Device: proto.Device{RoomID: room, DeviceID: device}}
		r.store[key] = s
	}
	update(s)
}
