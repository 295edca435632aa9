package queue

import (
	"strings"
	"sync"
	"time"
)

// Gender selects which secondary history an archived ticket goes to.
type Gender string

const (
	GenderUnspecified Gender = ""
	GenderMen         Gender = "men"
	GenderWomen       Gender = "women"
)

const DefaultHistorySize = 15

// ParseGender maps request values onto a Gender. Anything unrecognised is
// unspecified.
func ParseGender(value string) Gender {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "men", "man", "male":
		return GenderMen
	case "women", "woman", "female":
		return GenderWomen
	default:
		return GenderUnspecified
	}
}

type Options struct {
	GeneralCapacity int
	MenCapacity     int
	WomenCapacity   int
	Now             func() time.Time
}

// State holds the currently called ticket and its recency histories. It is
// safe for concurrent use.
type State struct {
	mu       sync.Mutex
	current  int
	gender   Gender
	calledAt time.Time
	general  *Ring
	men      *Ring
	women    *Ring
	now      func() time.Time
}

type View struct {
	CurrentNumber  int        `json:"currentNumber"`
	CurrentGender  Gender     `json:"currentGender"`
	CalledAt       *time.Time `json:"calledAt,omitempty"`
	GeneralHistory []int      `json:"generalHistory"`
	MenHistory     []int      `json:"menHistory"`
	WomenHistory   []int      `json:"womenHistory"`
}

func New(options Options) *State {
	now := options.Now
	if now == nil {
		now = time.Now
	}
	return &State{
		general: NewRing(withDefault(options.GeneralCapacity)),
		men:     NewRing(withDefault(options.MenCapacity)),
		women:   NewRing(withDefault(options.WomenCapacity)),
		now:     now,
	}
}

func withDefault(capacity int) int {
	if capacity <= 0 {
		return DefaultHistorySize
	}
	return capacity
}

func ValidateTicket(ticket int) error {
	if ticket <= 0 {
		return ErrInvalidTicket
	}
	return nil
}

// CallNext archives the current ticket, if any, and makes ticket current.
// The archived ticket lands in the general history and in the history of the
// gender it was called with.
func (s *State) CallNext(ticket int, gender Gender) (View, error) {
	if err := ValidateTicket(ticket); err != nil {
		return View{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current > 0 {
		s.general.Push(s.current)
		switch s.gender {
		case GenderMen:
			s.men.Push(s.current)
		case GenderWomen:
			s.women.Push(s.current)
		}
	}
	s.current = ticket
	s.gender = gender
	s.calledAt = s.now().UTC()
	return s.viewLocked(), nil
}

func (s *State) Repeat() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = 0
	s.gender = GenderUnspecified
	s.calledAt = time.Time{}
	s.general.Clear()
	s.men.Clear()
	s.women.Clear()
}

func (s *State) viewLocked() View {
	view := View{
		CurrentNumber:  s.current,
		CurrentGender:  s.gender,
		GeneralHistory: s.general.Items(),
		MenHistory:     s.men.Items(),
		WomenHistory:   s.women.Items(),
	}
	if !s.calledAt.IsZero() {
		calledAt := s.calledAt
		view.CalledAt = &calledAt
	}
	return view
}
