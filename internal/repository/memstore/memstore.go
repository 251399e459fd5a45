// Package memstore keeps pictures and spaces in process memory. Transactions
// are serialized behind one mutex and roll back by restoring a snapshot.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"picturehub/internal/domain"
	"picturehub/internal/repository"
)

type state struct {
	pictures    map[int64]domain.Picture
	spaces      map[int64]domain.Space
	nextPicture int64
	nextSpace   int64
}

func (s *state) clone() *state {
	c := &state{
		pictures:    make(map[int64]domain.Picture, len(s.pictures)),
		spaces:      make(map[int64]domain.Space, len(s.spaces)),
		nextPicture: s.nextPicture,
		nextSpace:   s.nextSpace,
	}
	for id, p := range s.pictures {
		c.pictures[id] = p
	}
	for id, sp := range s.spaces {
		c.spaces[id] = sp
	}
	return c
}

type Store struct {
	mu   *sync.Mutex
	root **state
	inTx bool
}

func New() *Store {
	st := &state{
		pictures: make(map[int64]domain.Picture),
		spaces:   make(map[int64]domain.Space),
	}
	return &Store{mu: &sync.Mutex{}, root: &st}
}

func (s *Store) Pictures() repository.Pictures { return &pictures{s} }
func (s *Store) Spaces() repository.Spaces     { return &spaces{s} }

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) (err error) {
	if s.inTx {
		return fn(ctx, s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := (*s.root).clone()
	defer func() {
		if p := recover(); p != nil {
			*s.root = snapshot
			panic(p)
		}
		if err != nil {
			*s.root = snapshot
		}
	}()

	return fn(ctx, &Store{mu: s.mu, root: s.root, inTx: true})
}

// view runs fn with exclusive access to the current state.
func (s *Store) view(fn func(st *state) error) error {
	if !s.inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(*s.root)
}

type pictures struct{ s *Store }

func (r *pictures) GetByID(_ context.Context, id int64) (*domain.Picture, error) {
	var out *domain.Picture
	err := r.s.view(func(st *state) error {
		p, ok := st.pictures[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = clonePicture(p)
		return nil
	})
	return out, err
}

func (r *pictures) Create(_ context.Context, pic *domain.Picture) error {
	return r.s.view(func(st *state) error {
		st.nextPicture++
		now := time.Now()
		pic.ID = st.nextPicture
		pic.CreatedAt, pic.UpdatedAt = now, now
		st.pictures[pic.ID] = *clonePicture(*pic)
		return nil
	})
}

func (r *pictures) Update(_ context.Context, pic *domain.Picture) error {
	return r.s.view(func(st *state) error {
		old, ok := st.pictures[pic.ID]
		if !ok {
			return repository.ErrNotFound
		}
		pic.UserID = old.UserID
		pic.CreatedAt = old.CreatedAt
		pic.UpdatedAt = time.Now()
		st.pictures[pic.ID] = *clonePicture(*pic)
		return nil
	})
}

func (r *pictures) Delete(_ context.Context, id int64) error {
	return r.s.view(func(st *state) error {
		if _, ok := st.pictures[id]; !ok {
			return repository.ErrNotFound
		}
		delete(st.pictures, id)
		return nil
	})
}

func (r *pictures) DeleteBySpace(_ context.Context, spaceID int64) (int64, error) {
	var n int64
	err := r.s.view(func(st *state) error {
		for id, p := range st.pictures {
			if p.SpaceID != nil && *p.SpaceID == spaceID {
				delete(st.pictures, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *pictures) List(_ context.Context, q domain.PictureQuery) ([]domain.Picture, int64, error) {
	var matched []domain.Picture
	_ = r.s.view(func(st *state) error {
		for _, p := range st.pictures {
			if matchPicture(p, q) {
				matched = append(matched, *clonePicture(p))
			}
		}
		return nil
	})
	sort.Slice(matched, func(i, j int) bool {
		if q.SortField == "name" {
			if q.SortOrder == domain.SortAscend {
				return matched[i].Name < matched[j].Name
			}
			return matched[i].Name > matched[j].Name
		}
		return matched[i].ID > matched[j].ID
	})
	return paginate(matched, q.Offset(), q.PageSize), int64(len(matched)), nil
}

func matchPicture(p domain.Picture, q domain.PictureQuery) bool {
	switch {
	case q.ID != nil && p.ID != *q.ID:
		return false
	case q.UserID != "" && p.UserID != q.UserID:
		return false
	case q.SpaceID != nil && (p.SpaceID == nil || *p.SpaceID != *q.SpaceID):
		return false
	case q.SpaceID == nil && q.NullSpaceID && p.SpaceID != nil:
		return false
	case q.ReviewStatus != nil && p.ReviewStatus != *q.ReviewStatus:
		return false
	case q.Category != "" && p.Category != q.Category:
		return false
	case q.Name != "" && !containsFold(p.Name, q.Name):
		return false
	case q.Introduction != "" && !containsFold(p.Introduction, q.Introduction):
		return false
	case q.PicFormat != "" && !containsFold(p.PicFormat, q.PicFormat):
		return false
	case q.SearchText != "" && !containsFold(p.Name, q.SearchText) && !containsFold(p.Introduction, q.SearchText):
		return false
	}
	for _, want := range q.Tags {
		found := false
		for _, tag := range p.Tags {
			if tag == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

type spaces struct{ s *Store }

func (r *spaces) GetByID(_ context.Context, id int64) (*domain.Space, error) {
	var out *domain.Space
	err := r.s.view(func(st *state) error {
		sp, ok := st.spaces[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &sp
		return nil
	})
	return out, err
}

func (r *spaces) GetByUserID(_ context.Context, userID string) (*domain.Space, error) {
	var out *domain.Space
	err := r.s.view(func(st *state) error {
		for _, sp := range st.spaces {
			if sp.UserID == userID {
				found := sp
				out = &found
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *spaces) Create(_ context.Context, space *domain.Space) error {
	return r.s.view(func(st *state) error {
		for _, sp := range st.spaces {
			if sp.UserID == space.UserID {
				return repository.ErrDuplicate
			}
		}
		st.nextSpace++
		now := time.Now()
		space.ID = st.nextSpace
		space.CreatedAt, space.UpdatedAt = now, now
		st.spaces[space.ID] = *space
		return nil
	})
}

func (r *spaces) Update(_ context.Context, space *domain.Space) error {
	return r.s.view(func(st *state) error {
		old, ok := st.spaces[space.ID]
		if !ok {
			return repository.ErrNotFound
		}
		old.SpaceName = space.SpaceName
		old.SpaceLevel = space.SpaceLevel
		old.MaxSize = space.MaxSize
		old.MaxCount = space.MaxCount
		old.EditTime = space.EditTime
		old.UpdatedAt = time.Now()
		st.spaces[space.ID] = old
		*space = old
		return nil
	})
}

func (r *spaces) Delete(_ context.Context, id int64) error {
	return r.s.view(func(st *state) error {
		if _, ok := st.spaces[id]; !ok {
			return repository.ErrNotFound
		}
		delete(st.spaces, id)
		return nil
	})
}

func (r *spaces) ApplyUsageDelta(_ context.Context, id int64, deltaBytes, deltaCount int64) error {
	return r.s.view(func(st *state) error {
		sp, ok := st.spaces[id]
		if !ok {
			return repository.ErrNotFound
		}
		if deltaBytes > 0 && sp.TotalSize+deltaBytes > sp.MaxSize {
			return repository.ErrQuotaExceeded
		}
		if deltaCount > 0 && sp.TotalCount+deltaCount > sp.MaxCount {
			return repository.ErrQuotaExceeded
		}
		sp.TotalSize = max(0, sp.TotalSize+deltaBytes)
		sp.TotalCount = max(0, sp.TotalCount+deltaCount)
		sp.UpdatedAt = time.Now()
		st.spaces[id] = sp
		return nil
	})
}

func (r *spaces) List(_ context.Context, q domain.SpaceQuery) ([]domain.Space, int64, error) {
	var matched []domain.Space
	_ = r.s.view(func(st *state) error {
		for _, sp := range st.spaces {
			if q.UserID != "" && sp.UserID != q.UserID {
				continue
			}
			if q.SpaceName != "" && !containsFold(sp.SpaceName, q.SpaceName) {
				continue
			}
			if q.SpaceLevel != nil && sp.SpaceLevel != *q.SpaceLevel {
				continue
			}
			matched = append(matched, sp)
		}
		return nil
	})
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	return paginate(matched, q.Offset(), q.PageSize), int64(len(matched)), nil
}

func clonePicture(p domain.Picture) *domain.Picture {
	p.Tags = append(domain.Tags{}, p.Tags...)
	if p.SpaceID != nil {
		id := *p.SpaceID
		p.SpaceID = &id
	}
	return &p
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func paginate[T any](items []T, offset, size int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + size
	if end > len(items) || size <= 0 {
		end = len(items)
	}
	return items[offset:end]
}
