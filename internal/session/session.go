// Package session provides cookie-identified, Redis-backed sessions for
// anonymous shoppers. A session is a small JSON document keyed by session id;
// mutations mark it dirty and the middleware persists it after the handler.
package session

import "encoding/json"

// Session holds the per-visitor state for one shopping session.
type Session struct {
	ID     string
	values map[string]json.RawMessage
	dirty  bool
	fresh  bool
}

func newSession(id string, fresh bool) *Session {
	return &Session{ID: id, values: map[string]json.RawMessage{}, fresh: fresh}
}

// Get unmarshals the value stored under key into dst. It reports whether the
// key was present.
func (s *Session) Get(key string, dst any) (bool, error) {
	if s == nil {
		return false, nil
	}
	raw, ok := s.values[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores v under key and marks the session dirty.
func (s *Session) Set(key string, v any) error {
	if s == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.values[key] = raw
	s.dirty = true
	return nil
}

// Delete removes key from the session. A removal of an absent key is a no-op
// and does not dirty the session.
func (s *Session) Delete(key string) {
	if s == nil {
		return
	}
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// Dirty reports whether the session has unsaved mutations.
func (s *Session) Dirty() bool { return s != nil && s.dirty }

// Fresh reports whether the session was created by this request.
func (s *Session) Fresh() bool { return s != nil && s.fresh }
