package notes

import (
	"errors"
	"strings"
	"sync"
)

var ErrMissingStaff = errors.New("staff name is required")

type GeneralNote struct {
	Text      string `json:"text"`
	StaffName string `json:"staffName"`
}

// Store keeps the general board note and per-staff private notes in memory.
type Store struct {
	mu      sync.RWMutex
	general GeneralNote
	staff   map[string]string
}

func NewStore() *Store {
	return &Store{staff: make(map[string]string)}
}

func (s *Store) SetGeneral(text, staffName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.general = GeneralNote{Text: text, StaffName: strings.TrimSpace(staffName)}
}

func (s *Store) General() GeneralNote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.general
}

func (s *Store) SetStaffNote(staffName, text string) error {
	name := strings.TrimSpace(staffName)
	if name == "" {
		return ErrMissingStaff
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staff[name] = text
	return nil
}

// StaffNote returns "" when no note has been left for staffName.
func (s *Store) StaffNote(staffName string) (string, error) {
	name := strings.TrimSpace(staffName)
	if name == "" {
		return "", ErrMissingStaff
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.staff[name], nil
}
