// Package accessory holds the characteristics the bridge exposes.
//
// Accessories, services and characteristics are declared in a registration
// table (see DefaultTable). NewStore turns the table into live
// Characteristic handles. Values change only through Set, and observers
// (transports, history sinks) learn about a change only when Notify is
// called, so callers control when and in which order updates go out.
package accessory

import (
	"errors"
	"fmt"
	"sync"
)

// Sentinel errors.
var (
	ErrUnknownCharacteristic = errors.New("accessory: unknown characteristic")
	ErrTypeMismatch          = errors.New("accessory: value type mismatch")
	ErrDuplicateID           = errors.New("accessory: duplicate id")
)

// Format is the value type of a characteristic.
type Format string

const (
	FormatBool  Format = "bool"
	FormatFloat Format = "float"
)

// Perm is a characteristic permission.
type Perm string

const (
	PermPairedRead  Perm = "pr"
	PermPairedWrite Perm = "pw"
	PermEvents      Perm = "ev"
)

// Definition declares one characteristic.
type Definition struct {
	ID      string // unique key within the store
	Type    string // protocol type name, e.g. "CurrentTemperature"
	Format  Format
	Perms   []Perm
	Initial any
	Unit    string  `json:",omitempty"`
	Min     float64 `json:",omitempty"`
	Max     float64 `json:",omitempty"`
	Step    float64 `json:",omitempty"`
}

// Notifiable reports whether observers may subscribe to changes.
func (d Definition) Notifiable() bool {
	for _, p := range d.Perms {
		if p == PermEvents {
			return true
		}
	}
	return false
}

// Service groups characteristics under one protocol service type.
type Service struct {
	Type            string
	Name            string `json:",omitempty"`
	Primary         bool   `json:",omitempty"`
	Characteristics []Definition
}

// Info is the accessory information service.
type Info struct {
	Name         string
	Manufacturer string `json:",omitempty"`
	SerialNumber string `json:",omitempty"`
	Model        string `json:",omitempty"`
	Firmware     string `json:",omitempty"`
}

// Accessory is one addressable device behind the bridge.
type Accessory struct {
	ID       int
	Category string
	Info     Info
	Services []Service
}

// Event is delivered to observers on Notify.
type Event struct {
	AccessoryID    int
	Characteristic string
	Type           string
	Value          any
}

// Observer receives characteristic notifications. Notify is called on the
// goroutine that called Characteristic.Notify and must not block.
type Observer interface {
	Notify(ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev Event)

// Notify calls f(ev).
func (f ObserverFunc) Notify(ev Event) { f(ev) }

// Store owns the characteristics declared by a registration table.
type Store struct {
	accessories []Accessory

	mu        sync.RWMutex
	chars     map[string]*Characteristic
	order     []string
	observers []Observer
}

// NewStore validates the table and creates a handle per characteristic.
func NewStore(table []Accessory) (*Store, error) {
	s := &Store{
		accessories: table,
		chars:       make(map[string]*Characteristic),
	}

	seenAcc := make(map[int]bool)
	for _, acc := range table {
		if seenAcc[acc.ID] {
			return nil, fmt.Errorf("%w: accessory %d", ErrDuplicateID, acc.ID)
		}
		seenAcc[acc.ID] = true

		for _, svc := range acc.Services {
			for _, def := range svc.Characteristics {
				if _, ok := s.chars[def.ID]; ok {
					return nil, fmt.Errorf("%w: characteristic %q", ErrDuplicateID, def.ID)
				}
				v, err := coerce(def.Format, def.Initial)
				if err != nil {
					return nil, fmt.Errorf("initial value of %q: %w", def.ID, err)
				}
				s.chars[def.ID] = &Characteristic{
					def:         def,
					accessoryID: acc.ID,
					store:       s,
					value:       v,
				}
				s.order = append(s.order, def.ID)
			}
		}
	}
	return s, nil
}

// Accessories returns the registration table.
func (s *Store) Accessories() []Accessory {
	return s.accessories
}

// Characteristic returns the handle for id.
func (s *Store) Characteristic(id string) (*Characteristic, error) {
	c, ok := s.chars[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCharacteristic, id)
	}
	return c, nil
}

// Subscribe adds an observer. Observers are notified in subscription order.
func (s *Store) Subscribe(o Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

// Snapshot returns the current value of every characteristic in table order.
func (s *Store) Snapshot() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]Event, 0, len(s.order))
	for _, id := range s.order {
		events = append(events, s.chars[id].eventLocked())
	}
	return events
}

// Characteristic is a live, typed value.
type Characteristic struct {
	def         Definition
	accessoryID int
	store       *Store

	value any // guarded by store.mu
}

// ID returns the characteristic id.
func (c *Characteristic) ID() string { return c.def.ID }

// AccessoryID returns the id of the owning accessory.
func (c *Characteristic) AccessoryID() int { return c.accessoryID }

// Definition returns the declaration this handle was built from.
func (c *Characteristic) Definition() Definition { return c.def }

// Value returns the current value (bool or float64).
func (c *Characteristic) Value() any {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	return c.value
}

// Set assigns v without notifying observers.
func (c *Characteristic) Set(v any) error {
	cv, err := coerce(c.def.Format, v)
	if err != nil {
		return fmt.Errorf("set %q: %w", c.def.ID, err)
	}
	c.store.mu.Lock()
	c.value = cv
	c.store.mu.Unlock()
	return nil
}

// Notify delivers the current value to every observer.
// It is a no-op for characteristics without the events permission.
func (c *Characteristic) Notify() {
	if !c.def.Notifiable() {
		return
	}

	c.store.mu.RLock()
	ev := c.eventLocked()
	observers := c.store.observers
	c.store.mu.RUnlock()

	for _, o := range observers {
		o.Notify(ev)
	}
}

func (c *Characteristic) eventLocked() Event {
	return Event{
		AccessoryID:    c.accessoryID,
		Characteristic: c.def.ID,
		Type:           c.def.Type,
		Value:          c.value,
	}
}

func coerce(f Format, v any) (any, error) {
	switch f {
	case FormatBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case FormatFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		}
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrTypeMismatch, f)
	}
	return nil, fmt.Errorf("%w: %T is not %s", ErrTypeMismatch, v, f)
}
