package state

import "sync"

type session struct {
	state State
	bag   map[string]interface{}
}

type memoryManager struct {
	mu       sync.RWMutex
	sessions map[int64]*session
}

// NewMemoryManager constructs the in-memory Manager implementation.
func NewMemoryManager() Manager {
	return &memoryManager{sessions: make(map[int64]*session)}
}

func (m *memoryManager) GetState(userID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sess, ok := m.sessions[userID]; ok {
		return sess.state
	}
	return Idle
}

// SetState updates the state for a user, creating a record if necessary.
// Setting Idle empties the context bag.
func (m *memoryManager) SetState(userID int64, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := m.session(userID)
	sess.state = st
	if st == Idle {
		sess.bag = make(map[string]interface{})
	}
}

func (m *memoryManager) GetContext(userID int64, key string) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[userID]
	if !ok {
		return nil, false
	}
	val, ok := sess.bag[key]
	return val, ok
}

func (m *memoryManager) SetContext(userID int64, key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session(userID).bag[key] = value
}

// ClearContext empties the bag without changing state. Used mid-workflow
// after accumulated data has been consumed.
func (m *memoryManager) ClearContext(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[userID]; ok {
		sess.bag = make(map[string]interface{})
	}
}

func (m *memoryManager) GetContextString(userID int64, key string) (string, bool) {
	val, ok := m.GetContext(userID, key)
	if !ok {
		return "", false
	}
	s, ok := val.(string)
	return s, ok
}

func (m *memoryManager) GetContextStrings(userID int64, key string) ([]string, bool) {
	val, ok := m.GetContext(userID, key)
	if !ok {
		return nil, false
	}
	s, ok := val.([]string)
	return s, ok
}

// session returns the record for a user, creating a default Idle one.
// Callers must hold the write lock.
func (m *memoryManager) session(userID int64) *session {
	sess, ok := m.sessions[userID]
	if !ok {
		sess = &session{state: Idle, bag: make(map[string]interface{})}
		m.sessions[userID] = sess
	}
	return sess
}
