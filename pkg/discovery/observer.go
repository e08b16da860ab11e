// ABOUTME: Observer contract and fan-out of server up/down notifications
// ABOUTME: Each observer call is isolated so one failure cannot stop the others
package discovery

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Observer receives server transitions. Calls are made synchronously while the
// client holds its delivery lock, so implementations must return promptly.
type Observer interface {
	ServerUp(r ServerRecord)
	ServerDown(r ServerRecord)
}

// ObserverFuncs adapts plain functions to Observer. Nil functions are skipped.
type ObserverFuncs struct {
	Up   func(r ServerRecord)
	Down func(r ServerRecord)
}

func (o ObserverFuncs) ServerUp(r ServerRecord) {
	if o.Up != nil {
		o.Up(r)
	}
}

func (o ObserverFuncs) ServerDown(r ServerRecord) {
	if o.Down != nil {
		o.Down(r)
	}
}

// ObserverID identifies a registration returned by Client.AddObserver
type ObserverID = uuid.UUID

type registration struct {
	id       ObserverID
	observer Observer
}

type observerSet struct {
	mu   sync.RWMutex
	regs []registration
}

func (s *observerSet) add(o Observer) ObserverID {
	id := uuid.New()
	s.mu.Lock()
	s.regs = append(s.regs, registration{id: id, observer: o})
	s.mu.Unlock()
	return id
}

func (s *observerSet) remove(id ObserverID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.regs)
	s.regs = slices.DeleteFunc(s.regs, func(r registration) bool { return r.id == id })
	return len(s.regs) != n
}

func (s *observerSet) snapshot() []registration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.regs)
}

func (s *observerSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.regs)
}

// fanOut calls notify once per registration. A panic in one observer is
// reported through onPanic and delivery continues with the next.
func fanOut(regs []registration, notify func(Observer), onPanic func(ObserverID, any)) {
	for _, reg := range regs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					onPanic(reg.id, r)
				}
			}()
			notify(reg.observer)
		}()
	}
}
