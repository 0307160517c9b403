// Package memstore keeps users, marks and authorized emails in process
// memory. It backs DATABASE_URI=memory:// and the service tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"MarksAPI/internal/apperr"
	"MarksAPI/internal/model"

	"github.com/google/uuid"
)

type Store struct {
	mu     sync.Mutex
	now    func() time.Time
	users  map[string]*model.User // by email
	marks  map[string]*model.Marks
	emails map[string]*model.AuthorizedEmail // by id
}

func New() *Store {
	return &Store{
		now:    time.Now,
		users:  make(map[string]*model.User),
		marks:  make(map[string]*model.Marks),
		emails: make(map[string]*model.AuthorizedEmail),
	}
}

func (s *Store) Users() *UserRepository                       { return &UserRepository{s} }
func (s *Store) Marks() *MarksRepository                      { return &MarksRepository{s} }
func (s *Store) AuthorizedEmails() *AuthorizedEmailRepository { return &AuthorizedEmailRepository{s} }

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close()                     {}

type UserRepository struct{ s *Store }

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[email]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return copyUser(u), nil
}

func (r *UserRepository) UpsertOTP(_ context.Context, email, code string, expiresAt time.Time) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	u, ok := r.s.users[email]
	if !ok {
		u = &model.User{ID: uuid.NewString(), Email: email, CreatedAt: now}
		r.s.users[email] = u
	}
	c, exp := code, expiresAt
	u.OTP, u.OTPExpiresAt, u.UpdatedAt = &c, &exp, now
	return copyUser(u), nil
}

func (r *UserRepository) ConsumeOTP(_ context.Context, userID, code string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.ID != userID {
			continue
		}
		if u.OTP == nil || *u.OTP != code {
			return nil, apperr.ErrNotFound
		}
		u.IsVerified = true
		u.OTP, u.OTPExpiresAt = nil, nil
		u.UpdatedAt = r.s.now()
		return copyUser(u), nil
	}
	return nil, apperr.ErrNotFound
}

func (r *UserRepository) SetSubmittedMarks(_ context.Context, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[email]; ok {
		u.HasSubmittedMarks = true
		u.UpdatedAt = r.s.now()
	}
	return nil
}

func copyUser(u *model.User) *model.User {
	out := *u
	if u.OTP != nil {
		c := *u.OTP
		out.OTP = &c
	}
	if u.OTPExpiresAt != nil {
		e := *u.OTPExpiresAt
		out.OTPExpiresAt = &e
	}
	return &out
}

type MarksRepository struct{ s *Store }

func (r *MarksRepository) GetByOwner(_ context.Context, email string) (*model.Marks, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.marks {
		if m.AddedBy == email {
			out := *m
			return &out, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (r *MarksRepository) Count(context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.marks)), nil
}

func (r *MarksRepository) Create(_ context.Context, m *model.Marks) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.marks {
		if existing.StudentID == m.StudentID || existing.AddedBy == m.AddedBy {
			return apperr.ErrDuplicate
		}
	}
	now := r.s.now()
	m.ID = uuid.NewString()
	m.CreatedAt, m.UpdatedAt = now, now
	stored := *m
	r.s.marks[m.ID] = &stored
	return nil
}

func (r *MarksRepository) Update(_ context.Context, m *model.Marks) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.marks[m.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	m.UpdatedAt = r.s.now()
	existing.TheoryComponent = m.TheoryComponent
	existing.LabComponent = m.LabComponent
	existing.FatMarks = m.FatMarks
	existing.OverallMarks = m.OverallMarks
	existing.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *MarksRepository) ListByOverall(ctx context.Context) ([]model.Marks, error) {
	return r.list(func(a, b model.Marks) bool { return a.OverallMarks < b.OverallMarks }), nil
}

func (r *MarksRepository) ListByFat(ctx context.Context) ([]model.Marks, error) {
	return r.list(func(a, b model.Marks) bool { return a.FatMarks < b.FatMarks }), nil
}

func (r *MarksRepository) ListByStudentID(ctx context.Context) ([]model.Marks, error) {
	return r.list(func(a, b model.Marks) bool { return false }), nil
}

// list returns a snapshot ordered by less, ties broken by student ID.
func (r *MarksRepository) list(less func(a, b model.Marks) bool) []model.Marks {
	r.s.mu.Lock()
	out := make([]model.Marks, 0, len(r.s.marks))
	for _, m := range r.s.marks {
		out = append(out, *m)
	}
	r.s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if less(out[i], out[j]) {
			return true
		}
		if less(out[j], out[i]) {
			return false
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out
}

type AuthorizedEmailRepository struct{ s *Store }

func (r *AuthorizedEmailRepository) List(context.Context) ([]model.AuthorizedEmail, error) {
	r.s.mu.Lock()
	out := make([]model.AuthorizedEmail, 0, len(r.s.emails))
	for _, e := range r.s.emails {
		out = append(out, *e)
	}
	r.s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Email < out[j].Email
	})
	return out, nil
}

func (r *AuthorizedEmailRepository) Exists(_ context.Context, email string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.emails {
		if e.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *AuthorizedEmailRepository) Create(_ context.Context, email, addedBy string) (*model.AuthorizedEmail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.emails {
		if e.Email == email {
			return nil, apperr.ErrDuplicate
		}
	}
	now := r.s.now()
	e := &model.AuthorizedEmail{
		ID:        uuid.NewString(),
		Email:     email,
		AddedBy:   addedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.s.emails[e.ID] = e
	out := *e
	return &out, nil
}

func (r *AuthorizedEmailRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.emails[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(r.s.emails, id)
	return nil
}
