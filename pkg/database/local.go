package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"tgspace-backend/pkg/models"
)

// LocalDatabase 本地内存数据库实现，可选持久化到 JSON 文件。
// It reproduces the cascades the PostgreSQL schema declares.
type LocalDatabase struct {
	mu   sync.RWMutex
	path string
	now  func() time.Time

	state localState
}

type localState struct {
	NextID   int64                   `json:"next_id"`
	Users    map[int64]*models.User  `json:"users"`
	Spaces   map[int64]*models.Space `json:"spaces"`
	Sections map[int64]*localSection `json:"sections"`
	Items    map[int64]*models.Item  `json:"items"`
}

type localSection struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Order       int       `json:"order"`
	ParentID    *int64    `json:"parent_id"`
	SpaceID     int64     `json:"space_id"`
	CreatedByID *int64    `json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewLocalDatabase 创建本地数据库实例。path 为空时仅保存在内存中。
func NewLocalDatabase(path string) (*LocalDatabase, error) {
	db := &LocalDatabase{
		path: path,
		now:  time.Now,
		state: localState{
			NextID:   1,
			Users:    map[int64]*models.User{},
			Spaces:   map[int64]*models.Space{},
			Sections: map[int64]*localSection{},
			Items:    map[int64]*models.Item{},
		},
	}
	if path == "" {
		return db, nil
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return db, nil
	case err != nil:
		return nil, fmt.Errorf("read local data: %w", err)
	}
	if err := json.Unmarshal(data, &db.state); err != nil {
		return nil, fmt.Errorf("parse local data: %w", err)
	}
	return db, nil
}

// persist writes the state when a file is configured. Caller holds the write lock.
func (db *LocalDatabase) persist() error {
	if db.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(db.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode local data: %w", err)
	}
	if dir := filepath.Dir(db.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}
	tmp := db.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write local data: %w", err)
	}
	return os.Rename(tmp, db.path)
}

func (db *LocalDatabase) nextID() int64 {
	id := db.state.NextID
	db.state.NextID++
	return id
}

// 用户管理

func (db *LocalDatabase) UpsertUser(_ context.Context, p models.TelegramProfile) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := db.now()
	for _, u := range db.state.Users {
		if u.TelegramID != p.TelegramID {
			continue
		}
		if p.Username != "" {
			u.Username = p.Username
		}
		if p.FirstName != "" {
			u.FirstName = p.FirstName
		}
		if p.LastName != "" {
			u.LastName = p.LastName
		}
		u.UpdatedAt = now
		cp := *u
		return &cp, db.persist()
	}

	u := &models.User{
		ID:         db.nextID(),
		TelegramID: p.TelegramID,
		Username:   p.Username,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	db.state.Users[u.ID] = u
	cp := *u
	return &cp, db.persist()
}

func (db *LocalDatabase) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	u, ok := db.state.Users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// Spaces

func (db *LocalDatabase) FindOrCreateSpace(_ context.Context, chatID int64, title string) (*models.Space, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, s := range db.state.Spaces {
		if s.ChatID != chatID {
			continue
		}
		if title != "" && title != s.Title {
			s.Title = title
			s.UpdatedAt = db.now()
			if err := db.persist(); err != nil {
				return nil, err
			}
		}
		cp := *s
		return &cp, nil
	}

	now := db.now()
	s := &models.Space{ID: db.nextID(), ChatID: chatID, Title: title, CreatedAt: now, UpdatedAt: now}
	db.state.Spaces[s.ID] = s
	cp := *s
	return &cp, db.persist()
}

func (db *LocalDatabase) GetSpaceByID(_ context.Context, id int64) (*models.Space, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	s, ok := db.state.Spaces[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (db *LocalDatabase) DeleteSpaceByChatID(_ context.Context, chatID int64) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for id, s := range db.state.Spaces {
		if s.ChatID != chatID {
			continue
		}
		for sid, sec := range db.state.Sections {
			if sec.SpaceID == id {
				delete(db.state.Sections, sid)
			}
		}
		for iid, it := range db.state.Items {
			if it.SpaceID == id {
				delete(db.state.Items, iid)
			}
		}
		delete(db.state.Spaces, id)
		return true, db.persist()
	}
	return false, nil
}

// Sections

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyID(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// nextSectionOrder returns max sibling order + 1, ignoring exclude.
func (db *LocalDatabase) nextSectionOrder(spaceID int64, parentID *int64, exclude int64) int {
	next := 0
	for _, s := range db.state.Sections {
		if s.ID != exclude && s.SpaceID == spaceID && sameParent(s.ParentID, parentID) && s.Order >= next {
			next = s.Order + 1
		}
	}
	return next
}

func (db *LocalDatabase) author(id *int64) *models.Author {
	if id == nil {
		return nil
	}
	u, ok := db.state.Users[*id]
	if !ok {
		return nil
	}
	return &models.Author{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Username: u.Username}
}

func (db *LocalDatabase) viewSection(s *localSection) models.Section {
	count := models.SectionCount{}
	for _, c := range db.state.Sections {
		if c.ParentID != nil && *c.ParentID == s.ID {
			count.Children++
		}
	}
	for _, it := range db.state.Items {
		if it.SectionID == s.ID {
			count.Items++
		}
	}
	return models.Section{
		ID:          s.ID,
		Title:       s.Title,
		Order:       s.Order,
		ParentID:    copyID(s.ParentID),
		SpaceID:     s.SpaceID,
		CreatedByID: copyID(s.CreatedByID),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		Count:       &count,
		CreatedBy:   db.author(s.CreatedByID),
	}
}

func (db *LocalDatabase) CreateSection(_ context.Context, s *models.Section) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.state.Spaces[s.SpaceID]; !ok {
		return fmt.Errorf("%w: space %d", ErrNotFound, s.SpaceID)
	}
	if s.ParentID != nil {
		if _, ok := db.state.Sections[*s.ParentID]; !ok {
			return fmt.Errorf("%w: parent section %d", ErrNotFound, *s.ParentID)
		}
	}

	now := db.now()
	rec := &localSection{
		ID:          db.nextID(),
		Title:       s.Title,
		Order:       db.nextSectionOrder(s.SpaceID, s.ParentID, 0),
		ParentID:    copyID(s.ParentID),
		SpaceID:     s.SpaceID,
		CreatedByID: copyID(s.CreatedByID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	db.state.Sections[rec.ID] = rec

	s.ID, s.Order, s.CreatedAt, s.UpdatedAt = rec.ID, rec.Order, rec.CreatedAt, rec.UpdatedAt
	s.Count = &models.SectionCount{}
	return db.persist()
}

func (db *LocalDatabase) GetSection(_ context.Context, id int64) (*models.Section, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	s, ok := db.state.Sections[id]
	if !ok {
		return nil, ErrNotFound
	}
	v := db.viewSection(s)
	return &v, nil
}

func (db *LocalDatabase) GetSectionNode(_ context.Context, id int64) (*models.SectionNode, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	s, ok := db.state.Sections[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &models.SectionNode{
		ID: s.ID, Title: s.Title, ParentID: copyID(s.ParentID), SpaceID: s.SpaceID, CreatedByID: copyID(s.CreatedByID),
	}, nil
}

func (db *LocalDatabase) ListSections(_ context.Context, spaceID int64, parentID *int64) ([]models.Section, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []models.Section{}
	for _, s := range db.state.Sections {
		if s.SpaceID == spaceID && sameParent(s.ParentID, parentID) {
			out = append(out, db.viewSection(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return lessOrdered(out[i].Order, out[j].Order, out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func lessOrdered(oi, oj int, ci, cj time.Time, ii, ij int64) bool {
	if oi != oj {
		return oi < oj
	}
	if !ci.Equal(cj) {
		return ci.Before(cj)
	}
	return ii < ij
}

func (db *LocalDatabase) UpdateSection(_ context.Context, id int64, patch models.SectionPatch) (*models.Section, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.state.Sections[id]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.Title != nil {
		s.Title = *patch.Title
	}
	if patch.Order != nil {
		s.Order = *patch.Order
	}
	s.UpdatedAt = db.now()
	v := db.viewSection(s)
	return &v, db.persist()
}

func (db *LocalDatabase) MoveSection(_ context.Context, id int64, parentID *int64) (*models.Section, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.state.Sections[id]
	if !ok {
		return nil, ErrNotFound
	}
	if parentID != nil {
		if _, ok := db.state.Sections[*parentID]; !ok {
			return nil, fmt.Errorf("%w: parent section %d", ErrNotFound, *parentID)
		}
	}
	s.Order = db.nextSectionOrder(s.SpaceID, parentID, s.ID)
	s.ParentID = copyID(parentID)
	s.UpdatedAt = db.now()
	v := db.viewSection(s)
	return &v, db.persist()
}

func (db *LocalDatabase) DeleteSection(_ context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.state.Sections[id]; !ok {
		return ErrNotFound
	}

	// Collect the subtree breadth-first.
	doomed := map[int64]bool{id: true}
	queue := []int64{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for cid, c := range db.state.Sections {
			if c.ParentID != nil && *c.ParentID == cur && !doomed[cid] {
				doomed[cid] = true
				queue = append(queue, cid)
			}
		}
	}
	for sid := range doomed {
		delete(db.state.Sections, sid)
	}
	for iid, it := range db.state.Items {
		if doomed[it.SectionID] {
			delete(db.state.Items, iid)
		}
	}
	return db.persist()
}

// Items

func (db *LocalDatabase) nextItemOrder(sectionID, exclude int64) int {
	next := 0
	for _, it := range db.state.Items {
		if it.ID != exclude && it.SectionID == sectionID && it.Order >= next {
			next = it.Order + 1
		}
	}
	return next
}

func (db *LocalDatabase) viewItem(it *models.Item) models.Item {
	v := *it
	v.CreatedByID = copyID(it.CreatedByID)
	v.CreatedBy = db.author(it.CreatedByID)
	return v
}

func (db *LocalDatabase) CreateItem(_ context.Context, it *models.Item) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.state.Sections[it.SectionID]; !ok {
		return fmt.Errorf("%w: section %d", ErrNotFound, it.SectionID)
	}

	now := db.now()
	rec := *it
	rec.ID = db.nextID()
	rec.Order = db.nextItemOrder(it.SectionID, 0)
	rec.CreatedByID = copyID(it.CreatedByID)
	rec.CreatedAt, rec.UpdatedAt = now, now
	rec.CreatedBy = nil
	db.state.Items[rec.ID] = &rec

	it.ID, it.Order, it.CreatedAt, it.UpdatedAt = rec.ID, rec.Order, now, now
	return db.persist()
}

func (db *LocalDatabase) GetItem(_ context.Context, id int64) (*models.Item, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	it, ok := db.state.Items[id]
	if !ok {
		return nil, ErrNotFound
	}
	v := db.viewItem(it)
	return &v, nil
}

func (db *LocalDatabase) ListItems(_ context.Context, sectionID int64) ([]models.Item, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []models.Item{}
	for _, it := range db.state.Items {
		if it.SectionID == sectionID {
			out = append(out, db.viewItem(it))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return lessOrdered(out[i].Order, out[j].Order, out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (db *LocalDatabase) UpdateItem(_ context.Context, id int64, patch models.ItemPatch) (*models.Item, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	it, ok := db.state.Items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.Title != nil {
		it.Title = *patch.Title
	}
	if patch.Content != nil {
		it.Content = *patch.Content
	}
	if patch.Order != nil {
		it.Order = *patch.Order
	}
	it.UpdatedAt = db.now()
	v := db.viewItem(it)
	return &v, db.persist()
}

func (db *LocalDatabase) MoveItem(_ context.Context, id, sectionID int64) (*models.Item, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	it, ok := db.state.Items[id]
	if !ok {
		return nil, ErrNotFound
	}
	target, ok := db.state.Sections[sectionID]
	if !ok {
		return nil, ErrNotFound
	}
	it.Order = db.nextItemOrder(sectionID, id)
	it.SectionID = sectionID
	it.SpaceID = target.SpaceID
	it.UpdatedAt = db.now()
	v := db.viewItem(it)
	return &v, db.persist()
}

func (db *LocalDatabase) DeleteItem(_ context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.state.Items[id]; !ok {
		return ErrNotFound
	}
	delete(db.state.Items, id)
	return db.persist()
}

// ReorderItems validates every id before changing anything.
func (db *LocalDatabase) ReorderItems(_ context.Context, sectionID int64, itemIDs []int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, id := range itemIDs {
		it, ok := db.state.Items[id]
		if !ok || it.SectionID != sectionID {
			return ErrNotFound
		}
	}
	now := db.now()
	for idx, id := range itemIDs {
		db.state.Items[id].Order = idx
		db.state.Items[id].UpdatedAt = now
	}
	return db.persist()
}

// Search

func containsFold(s, q string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(q))
}

func (db *LocalDatabase) SearchSections(_ context.Context, spaceID int64, query string, limit int) ([]models.SectionNode, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []models.SectionNode{}
	for _, s := range db.state.Sections {
		if s.SpaceID == spaceID && containsFold(s.Title, query) {
			out = append(out, models.SectionNode{
				ID: s.ID, Title: s.Title, ParentID: copyID(s.ParentID), SpaceID: s.SpaceID, CreatedByID: copyID(s.CreatedByID),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (db *LocalDatabase) SearchItems(_ context.Context, spaceID int64, query string, limit int) ([]models.Item, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []models.Item{}
	for _, it := range db.state.Items {
		if it.SpaceID != spaceID {
			continue
		}
		if containsFold(it.Title, query) || containsFold(it.Content, query) || containsFold(it.FileName, query) {
			out = append(out, db.viewItem(it))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// 健康检查
func (db *LocalDatabase) HealthCheck(context.Context) error {
	return nil
}

// Close flushes the state to disk.
func (db *LocalDatabase) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.persist()
}
