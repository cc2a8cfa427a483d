package scan_test

import (
	"context"
	"sync"
	"time"

	"frontdesk/internal/session"
)

// memRepo is a minimal in-memory session.Repo with the store's conditional
// write semantics.
type memRepo struct {
	mu   sync.Mutex
	rows []session.Session
}

func (m *memRepo) InsertActive(_ context.Context, s session.Session) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.StudentID == s.StudentID && row.Status == session.StatusActive {
			return false, nil
		}
	}
	m.rows = append(m.rows, s)
	return true, nil
}

func (m *memRepo) CompleteActive(_ context.Context, studentID string, endedAt time.Time, reason session.EndReason) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].StudentID == studentID && m.rows[i].Status == session.StatusActive {
			m.rows[i].Status = session.StatusCompleted
			m.rows[i].EndedAt = &endedAt
			m.rows[i].EndReason = &reason
			out := m.rows[i]
			return &out, nil
		}
	}
	return nil, nil
}

func (m *memRepo) ActiveFor(_ context.Context, studentID string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].StudentID == studentID && m.rows[i].Status == session.StatusActive {
			out := m.rows[i]
			return &out, nil
		}
	}
	return nil, nil
}

func (m *memRepo) LatestFor(_ context.Context, studentID string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].StudentID == studentID {
			out := m.rows[i]
			return &out, nil
		}
	}
	return nil, nil
}

func (m *memRepo) Active(_ context.Context) ([]session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []session.Session
	for _, row := range m.rows {
		if row.Status == session.StatusActive {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memRepo) Stats(_ context.Context) (session.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := session.Stats{TotalCheckIns: len(m.rows)}
	students := make(map[string]bool)
	for _, row := range m.rows {
		students[row.StudentID] = true
	}
	st.UniqueStudents = len(students)
	return st, nil
}

func (m *memRepo) ActiveDue(_ context.Context, cutoff time.Time) ([]session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []session.Session
	for _, row := range m.rows {
		if row.Status == session.StatusActive && !row.AutoExpireAt.After(cutoff) {
			out = append(out, row)
		}
	}
	return out, nil
}
