package core

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"intake.app/console/internal/flow"
	"intake.app/console/internal/store"
)

// RoutingStore persists department routings.
type RoutingStore interface {
	SaveRouting(r store.Routing) error
	GetRouting(sessionID string) (*store.Routing, error)
}

type DepartmentState struct {
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
}

type RoutingView struct {
	SessionID   string
	Departments []DepartmentState
	Notes       string
	Sent        *store.Routing
}

// Routing is the department tagging of one reviewed project.
type Routing struct {
	sessionID string
	catalogue []string
	store     RoutingStore
	now       func() time.Time

	mu       sync.Mutex
	selected map[string]bool
	notes    string
	sent     *store.Routing
}

// NewRouting starts from the stored routing of the session if there is one,
// otherwise from the catalogue's default selection.
func NewRouting(sessionID string, doc flow.Document, st RoutingStore, now func() time.Time) (*Routing, error) {
	if now == nil {
		now = time.Now
	}
	r := &Routing{
		sessionID: sessionID,
		catalogue: append([]string{}, doc.Departments...),
		store:     st,
		now:       now,
		selected:  map[string]bool{},
	}
	for _, d := range doc.DefaultDepartments {
		r.selected[d] = true
	}
	if st == nil {
		return r, nil
	}
	existing, err := st.GetRouting(sessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		r.selected = map[string]bool{}
		for _, d := range existing.Departments {
			r.selected[d] = true
		}
		r.notes = existing.Notes
		r.sent = existing
	}
	return r, nil
}

// Toggle flips one department and reports whether it is now selected.
func (r *Routing) Toggle(department string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !contains(r.catalogue, department) {
		return false, ErrUnknownDepartment
	}
	r.selected[department] = !r.selected[department]
	if !r.selected[department] {
		delete(r.selected, department)
	}
	return r.selected[department], nil
}

func (r *Routing) SetNotes(notes string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = strings.TrimSpace(notes)
}

// Selected lists chosen departments in catalogue order.
func (r *Routing) Selected() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectedLocked()
}

func (r *Routing) selectedLocked() []string {
	var out []string
	for _, d := range r.catalogue {
		if r.selected[d] {
			out = append(out, d)
		}
	}
	return out
}

// Send records the routing. At least one department must be selected.
func (r *Routing) Send() (*store.Routing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deps := r.selectedLocked()
	if len(deps) == 0 {
		return nil, ErrNoDepartments
	}
	id := uuid.NewString()
	if r.sent != nil {
		id = r.sent.ID
	}
	rec := store.Routing{
		ID:          id,
		SessionID:   r.sessionID,
		Departments: deps,
		Notes:       r.notes,
		RoutedAt:    r.now(),
	}
	if r.store != nil {
		if err := r.store.SaveRouting(rec); err != nil {
			return nil, err
		}
	}
	r.sent = &rec
	out := rec
	return &out, nil
}

func (r *Routing) View() RoutingView {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := RoutingView{SessionID: r.sessionID, Notes: r.notes}
	for _, d := range r.catalogue {
		v.Departments = append(v.Departments, DepartmentState{Name: d, Selected: r.selected[d]})
	}
	if r.sent != nil {
		s := *r.sent
		v.Sent = &s
	}
	return v
}
