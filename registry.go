package vaapi

import "sync"

// DeviceRegistry is the renderer's list of hardware decode devices.
type DeviceRegistry interface {
	Add(d *Device)
	Remove(d *Device)
}

// Devices is a goroutine-safe DeviceRegistry.
type Devices struct {
	mu      sync.RWMutex
	devices []*Device
}

// NewDevices returns an empty registry.
func NewDevices() *Devices {
	return &Devices{}
}

// Add registers d. Adding the same device twice has no effect.
func (r *Devices) Add(d *Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.devices {
		if x == d {
			return
		}
	}
	r.devices = append(r.devices, d)
}

// Remove unregisters d.
func (r *Devices) Remove(d *Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, x := range r.devices {
		if x == d {
			r.devices = append(r.devices[:i], r.devices[i+1:]...)
			return
		}
	}
}

// Lookup returns the first device registered under name, or nil.
func (r *Devices) Lookup(name string) *Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.devices {
		if d.Name() == name {
			return d
		}
	}
	return nil
}

// List returns the registered devices in registration order.
func (r *Devices) List() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Device, len(r.devices))
	copy(out, r.devices)
	return out
}

// Len returns the number of registered devices.
func (r *Devices) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}
