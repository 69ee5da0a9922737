package services

import "time"

// SetClock replaces the session store's time source.
func (s *SessionStore) SetClock(now func() time.Time) { s.now = now }
