package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"memoryland-backend/internal/models"
)

// memoryDB keeps every table in-process behind one lock. It enforces the
// same uniqueness constraints and cascades as schema.sql.
type memoryDB struct {
	mu           sync.RWMutex
	nextID       int64
	users        map[int64]models.User
	albums       map[int64]models.Album
	photos       map[int64]models.Photo
	displayTypes map[int64]models.DisplayType
	displays     map[int64]models.Display
	slots        map[int64]models.Slot
	tokens       map[int64]models.AccessToken
	transactions map[int64]models.Transaction
}

// DefaultDisplayTypes mirrors the rows seeded by schema.sql
var DefaultDisplayTypes = []models.DisplayType{
	{ID: 1, Name: "single", Capacity: 1},
	{ID: 2, Name: "triptych", Capacity: 3},
	{ID: 3, Name: "gallery", Capacity: 9},
}

// NewMemoryStores creates stores kept in process memory, seeded with the
// default display types
func NewMemoryStores() *Stores {
	db := &memoryDB{
		nextID:       100,
		users:        make(map[int64]models.User),
		albums:       make(map[int64]models.Album),
		photos:       make(map[int64]models.Photo),
		displayTypes: make(map[int64]models.DisplayType),
		displays:     make(map[int64]models.Display),
		slots:        make(map[int64]models.Slot),
		tokens:       make(map[int64]models.AccessToken),
		transactions: make(map[int64]models.Transaction),
	}
	for _, dt := range DefaultDisplayTypes {
		db.displayTypes[dt.ID] = dt
	}
	return &Stores{
		Users:        &memoryUsers{db},
		Albums:       &memoryAlbums{db},
		Photos:       &memoryPhotos{db},
		DisplayTypes: &memoryDisplayTypes{db},
		Displays:     &memoryDisplays{db},
		Slots:        &memorySlots{db},
		Tokens:       &memoryTokens{db},
		Transactions: &memoryTransactions{db},
	}
}

func (db *memoryDB) id() int64 {
	db.nextID++
	return db.nextID
}

// cascade helpers; callers hold the write lock

func (db *memoryDB) deleteUser(id int64) {
	delete(db.users, id)
	for albumID, album := range db.albums {
		if album.OwnerID == id {
			db.deleteAlbum(albumID)
		}
	}
	for displayID, display := range db.displays {
		if display.OwnerID == id {
			db.deleteDisplay(displayID)
		}
	}
	for txID, tx := range db.transactions {
		if tx.UserID == id {
			delete(db.transactions, txID)
		}
	}
}

func (db *memoryDB) deleteAlbum(id int64) {
	delete(db.albums, id)
	for photoID, photo := range db.photos {
		if photo.AlbumID == id {
			db.deletePhoto(photoID)
		}
	}
	for txID, tx := range db.transactions {
		if tx.AlbumID == id {
			delete(db.transactions, txID)
		}
	}
}

func (db *memoryDB) deletePhoto(id int64) {
	delete(db.photos, id)
	for slotID, slot := range db.slots {
		if slot.PhotoID == id {
			delete(db.slots, slotID)
		}
	}
}

func (db *memoryDB) deleteDisplay(id int64) {
	delete(db.displays, id)
	for slotID, slot := range db.slots {
		if slot.DisplayID == id {
			delete(db.slots, slotID)
		}
	}
	for tokenID, token := range db.tokens {
		if token.DisplayID == id {
			delete(db.tokens, tokenID)
		}
	}
}

type memoryUsers struct{ *memoryDB }

func (m *memoryUsers) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return fmt.Errorf("user email %q: %w", user.Email, ErrConflict)
		}
	}
	user.ID = m.id()
	m.users[user.ID] = *user
	return nil
}

func (m *memoryUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", ErrNotFound)
	}
	return &u, nil
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user not found: %w", ErrNotFound)
}

func (m *memoryUsers) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return fmt.Errorf("user not found: %w", ErrNotFound)
	}
	m.deleteUser(id)
	return nil
}

type memoryAlbums struct{ *memoryDB }

func (m *memoryAlbums) nameTaken(ownerID, exceptID int64, name string) bool {
	for _, a := range m.albums {
		if a.OwnerID == ownerID && a.Name == name && a.ID != exceptID {
			return true
		}
	}
	return false
}

func (m *memoryAlbums) Create(_ context.Context, album *models.Album) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[album.OwnerID]; !ok {
		return fmt.Errorf("user not found: %w", ErrNotFound)
	}
	if m.nameTaken(album.OwnerID, 0, album.Name) {
		return fmt.Errorf("album name %q: %w", album.Name, ErrConflict)
	}
	album.ID = m.id()
	m.albums[album.ID] = *album
	return nil
}

func (m *memoryAlbums) GetByID(_ context.Context, id int64) (*models.Album, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.albums[id]
	if !ok {
		return nil, fmt.Errorf("album not found: %w", ErrNotFound)
	}
	return &a, nil
}

func (m *memoryAlbums) ListByOwner(_ context.Context, ownerID int64) ([]*models.Album, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var albums []*models.Album
	for _, a := range m.albums {
		if a.OwnerID == ownerID {
			a := a
			albums = append(albums, &a)
		}
	}
	sort.Slice(albums, func(i, j int) bool { return albums[i].Name < albums[j].Name })
	return albums, nil
}

func (m *memoryAlbums) Rename(_ context.Context, id int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.albums[id]
	if !ok {
		return fmt.Errorf("album not found: %w", ErrNotFound)
	}
	if m.nameTaken(a.OwnerID, id, name) {
		return fmt.Errorf("album name %q: %w", name, ErrConflict)
	}
	a.Name = name
	m.albums[id] = a
	return nil
}

func (m *memoryAlbums) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.albums[id]; !ok {
		return fmt.Errorf("album not found: %w", ErrNotFound)
	}
	m.deleteAlbum(id)
	return nil
}

func (m *memoryAlbums) OwnerID(_ context.Context, id int64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.albums[id]
	if !ok {
		return 0, fmt.Errorf("album not found: %w", ErrNotFound)
	}
	return a.OwnerID, nil
}

type memoryPhotos struct{ *memoryDB }

func (m *memoryPhotos) nameTaken(albumID, exceptID int64, name string) bool {
	for _, p := range m.photos {
		if p.AlbumID == albumID && p.Name == name && p.ID != exceptID {
			return true
		}
	}
	return false
}

func (m *memoryPhotos) Create(_ context.Context, photo *models.Photo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.albums[photo.AlbumID]; !ok {
		return fmt.Errorf("album not found: %w", ErrNotFound)
	}
	if m.nameTaken(photo.AlbumID, 0, photo.Name) {
		return fmt.Errorf("photo name %q: %w", photo.Name, ErrConflict)
	}
	photo.ID = m.id()
	m.photos[photo.ID] = *photo
	return nil
}

func (m *memoryPhotos) GetByID(_ context.Context, id int64) (*models.Photo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.photos[id]
	if !ok {
		return nil, fmt.Errorf("photo not found: %w", ErrNotFound)
	}
	return &p, nil
}

func (m *memoryPhotos) ListByAlbum(_ context.Context, albumID int64) ([]*models.Photo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var photos []*models.Photo
	for _, p := range m.photos {
		if p.AlbumID == albumID {
			p := p
			photos = append(photos, &p)
		}
	}
	sort.Slice(photos, func(i, j int) bool { return photos[i].Name < photos[j].Name })
	return photos, nil
}

func (m *memoryPhotos) Rename(_ context.Context, id int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.photos[id]
	if !ok {
		return fmt.Errorf("photo not found: %w", ErrNotFound)
	}
	if m.nameTaken(p.AlbumID, id, name) {
		return fmt.Errorf("photo name %q: %w", name, ErrConflict)
	}
	p.Name = name
	m.photos[id] = p
	return nil
}

func (m *memoryPhotos) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.photos[id]; !ok {
		return fmt.Errorf("photo not found: %w", ErrNotFound)
	}
	m.deletePhoto(id)
	return nil
}

func (m *memoryPhotos) OwnerID(_ context.Context, id int64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.photos[id]
	if !ok {
		return 0, fmt.Errorf("photo not found: %w", ErrNotFound)
	}
	a, ok := m.albums[p.AlbumID]
	if !ok {
		return 0, fmt.Errorf("photo not found: %w", ErrNotFound)
	}
	return a.OwnerID, nil
}

type memoryDisplayTypes struct{ *memoryDB }

func (m *memoryDisplayTypes) List(_ context.Context) ([]*models.DisplayType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var types []*models.DisplayType
	for _, dt := range m.displayTypes {
		dt := dt
		types = append(types, &dt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].ID < types[j].ID })
	return types, nil
}

func (m *memoryDisplayTypes) GetByID(_ context.Context, id int64) (*models.DisplayType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dt, ok := m.displayTypes[id]
	if !ok {
		return nil, fmt.Errorf("display type not found: %w", ErrNotFound)
	}
	return &dt, nil
}

type memoryDisplays struct{ *memoryDB }

func (m *memoryDisplays) nameTaken(ownerID, exceptID int64, name string) bool {
	for _, d := range m.displays {
		if d.OwnerID == ownerID && d.Name == name && d.ID != exceptID {
			return true
		}
	}
	return false
}

func (m *memoryDisplays) Create(_ context.Context, display *models.Display) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dt, ok := m.displayTypes[display.Type.ID]
	if !ok {
		return fmt.Errorf("display type not found: %w", ErrNotFound)
	}
	if _, ok := m.users[display.OwnerID]; !ok {
		return fmt.Errorf("user not found: %w", ErrNotFound)
	}
	if m.nameTaken(display.OwnerID, 0, display.Name) {
		return fmt.Errorf("display name %q: %w", display.Name, ErrConflict)
	}
	display.ID = m.id()
	display.Type = dt
	m.displays[display.ID] = *display
	return nil
}

func (m *memoryDisplays) GetByID(_ context.Context, id int64) (*models.Display, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.displays[id]
	if !ok {
		return nil, fmt.Errorf("display not found: %w", ErrNotFound)
	}
	return &d, nil
}

func (m *memoryDisplays) ListByOwner(_ context.Context, ownerID int64) ([]*models.Display, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var displays []*models.Display
	for _, d := range m.displays {
		if d.OwnerID == ownerID {
			d := d
			displays = append(displays, &d)
		}
	}
	sort.Slice(displays, func(i, j int) bool { return displays[i].Name < displays[j].Name })
	return displays, nil
}

func (m *memoryDisplays) Rename(_ context.Context, id int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.displays[id]
	if !ok {
		return fmt.Errorf("display not found: %w", ErrNotFound)
	}
	if m.nameTaken(d.OwnerID, id, name) {
		return fmt.Errorf("display name %q: %w", name, ErrConflict)
	}
	d.Name = name
	m.displays[id] = d
	return nil
}

func (m *memoryDisplays) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.displays[id]; !ok {
		return fmt.Errorf("display not found: %w", ErrNotFound)
	}
	m.deleteDisplay(id)
	return nil
}

func (m *memoryDisplays) OwnerID(_ context.Context, id int64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.displays[id]
	if !ok {
		return 0, fmt.Errorf("display not found: %w", ErrNotFound)
	}
	return d.OwnerID, nil
}

type memorySlots struct{ *memoryDB }

func (m *memorySlots) Upsert(_ context.Context, slot *models.Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.displays[slot.DisplayID]; !ok {
		return fmt.Errorf("display or photo not found: %w", ErrNotFound)
	}
	if _, ok := m.photos[slot.PhotoID]; !ok {
		return fmt.Errorf("display or photo not found: %w", ErrNotFound)
	}
	for id, s := range m.slots {
		if s.DisplayID == slot.DisplayID && s.Position == slot.Position {
			s.PhotoID = slot.PhotoID
			m.slots[id] = s
			slot.ID = id
			return nil
		}
	}
	slot.ID = m.id()
	m.slots[slot.ID] = *slot
	return nil
}

func (m *memorySlots) GetByID(_ context.Context, id int64) (*models.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, fmt.Errorf("slot not found: %w", ErrNotFound)
	}
	return &s, nil
}

func (m *memorySlots) ListByDisplay(_ context.Context, displayID int64) ([]*models.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	slots := []*models.Slot{}
	for _, s := range m.slots {
		if s.DisplayID == displayID {
			s := s
			slots = append(slots, &s)
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Position < slots[j].Position })
	return slots, nil
}

func (m *memorySlots) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[id]; !ok {
		return fmt.Errorf("slot not found: %w", ErrNotFound)
	}
	delete(m.slots, id)
	return nil
}

func (m *memorySlots) OwnerID(_ context.Context, id int64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.slots[id]
	if !ok {
		return 0, fmt.Errorf("slot not found: %w", ErrNotFound)
	}
	d, ok := m.displays[s.DisplayID]
	if !ok {
		return 0, fmt.Errorf("slot not found: %w", ErrNotFound)
	}
	return d.OwnerID, nil
}

type memoryTokens struct{ *memoryDB }

func (m *memoryTokens) Upsert(_ context.Context, token *models.AccessToken) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.displays[token.DisplayID]; !ok {
		return "", fmt.Errorf("display not found: %w", ErrNotFound)
	}
	var existing *models.AccessToken
	for id, t := range m.tokens {
		if t.Token == token.Token && !(t.DisplayID == token.DisplayID && t.Kind == token.Kind) {
			return "", fmt.Errorf("token value: %w", ErrConflict)
		}
		if t.DisplayID == token.DisplayID && t.Kind == token.Kind {
			t := t
			t.ID = id
			existing = &t
		}
	}
	if existing != nil {
		token.ID = existing.ID
		m.tokens[token.ID] = *token
		return existing.Token, nil
	}
	token.ID = m.id()
	m.tokens[token.ID] = *token
	return "", nil
}

func (m *memoryTokens) GetByToken(_ context.Context, value string) (*models.AccessToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tokens {
		if t.Token == value {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("token not found: %w", ErrNotFound)
}

func (m *memoryTokens) ListByDisplay(_ context.Context, displayID int64) ([]*models.AccessToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var tokens []*models.AccessToken
	for _, t := range m.tokens {
		if t.DisplayID == displayID {
			t := t
			tokens = append(tokens, &t)
		}
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].Kind < tokens[j].Kind })
	return tokens, nil
}

func (m *memoryTokens) DeleteByKind(_ context.Context, displayID int64, kind models.TokenKind) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tokens {
		if t.DisplayID == displayID && t.Kind == kind {
			delete(m.tokens, id)
			return t.Token, nil
		}
	}
	return "", fmt.Errorf("token not found: %w", ErrNotFound)
}

type memoryTransactions struct{ *memoryDB }

func (m *memoryTransactions) Create(_ context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.albums[tx.AlbumID]; !ok {
		return fmt.Errorf("album not found: %w", ErrNotFound)
	}
	for _, t := range m.transactions {
		if t.UserID == tx.UserID {
			return fmt.Errorf("open transaction: %w", ErrConflict)
		}
	}
	tx.ID = m.id()
	m.transactions[tx.ID] = *tx
	return nil
}

func (m *memoryTransactions) GetByUser(_ context.Context, userID int64) (*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.transactions {
		if t.UserID == userID {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("transaction not found: %w", ErrNotFound)
}

func (m *memoryTransactions) DeleteByUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.transactions {
		if t.UserID == userID {
			delete(m.transactions, id)
			return nil
		}
	}
	return fmt.Errorf("transaction not found: %w", ErrNotFound)
}
