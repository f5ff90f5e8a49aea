package appointment

import (
	"sync"

	"github.com/google/uuid"
)

// doctorLocker hands out one mutex per doctor so that booking attempts for
// the same doctor serialize in-process. Entries are kept for the process
// lifetime; the set is bounded by the number of doctors.
type doctorLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newDoctorLocker() *doctorLocker {
	return &doctorLocker{
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (l *doctorLocker) Lock(doctorID uuid.UUID) func() {
	l.mu.Lock()
	m, ok := l.locks[doctorID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[doctorID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
