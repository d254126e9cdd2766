// Package auth models the external sign-in collaborator as seen by the checkout flow.
package auth

import "sync"

// Session holds the signed-in user of one storefront session.
type Session struct {
	mu     sync.RWMutex
	userID string
}

func NewSession() *Session {
	return &Session{}
}

func (s *Session) SignIn(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
}

func (s *Session) SignOut() {
	s.SignIn("")
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID != ""
}

// CurrentUserID returns the user id, or false when nobody is signed in.
func (s *Session) CurrentUserID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID, s.userID != ""
}

// Identity is a fixed sign-in state, typically taken from one incoming request.
// The zero value is an anonymous shopper.
type Identity struct {
	UserID string
}

func (i Identity) IsAuthenticated() bool {
	return i.UserID != ""
}

func (i Identity) CurrentUserID() (string, bool) {
	return i.UserID, i.UserID != ""
}
