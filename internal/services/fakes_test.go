package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/moodlocation/apiserver/internal/storage"
	"github.com/moodlocation/apiserver/internal/store"
	"github.com/moodlocation/apiserver/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memoryAccounts struct {
	mu        sync.Mutex
	accounts  map[primitive.ObjectID]types.Account
	createErr error
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{accounts: map[primitive.ObjectID]types.Account{}}
}

func (m *memoryAccounts) GetByID(ctx context.Context, id primitive.ObjectID) (types.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return types.Account{}, store.ErrNotFound
	}
	account.PasswordHash = ""
	return account, nil
}

func (m *memoryAccounts) GetByEmail(ctx context.Context, email string) (types.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.accounts {
		if account.Email == email {
			return account, nil
		}
	}
	return types.Account{}, store.ErrNotFound
}

func (m *memoryAccounts) Create(ctx context.Context, account types.Account) (types.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return types.Account{}, m.createErr
	}
	for _, existing := range m.accounts {
		if existing.Email == account.Email {
			return types.Account{}, store.ErrDuplicateKey
		}
	}
	account.ID = primitive.NewObjectID()
	m.accounts[account.ID] = account
	return account, nil
}

func (m *memoryAccounts) UpdateProfile(ctx context.Context, id primitive.ObjectID, update types.ProfileUpdate) (types.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return types.Account{}, store.ErrNotFound
	}
	if update.FirstName != nil {
		account.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		account.LastName = *update.LastName
	}
	if update.Gender != nil {
		account.Gender = *update.Gender
	}
	if update.ProfileImage != nil {
		account.ProfileImage = *update.ProfileImage
	}
	m.accounts[id] = account
	account.PasswordHash = ""
	return account, nil
}

// stored returns the raw record, digest included.
func (m *memoryAccounts) stored(id primitive.ObjectID) types.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id]
}

type memoryHistory struct {
	mu      sync.Mutex
	entries []types.HistoryEntry
	clock   time.Time
	listErr error
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{clock: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (m *memoryHistory) Create(ctx context.Context, entry types.HistoryEntry) (types.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Second)
	entry.ID = primitive.NewObjectID()
	entry.Timestamp = m.clock
	m.entries = append(m.entries, entry)
	return entry, nil
}

func (m *memoryHistory) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]types.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []types.HistoryEntry
	for _, entry := range m.entries {
		if entry.UserID == userID {
			result = append(result, entry)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return result, nil
}

type recordedEvent struct {
	channel string
	data    []byte
}

type memoryPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (p *memoryPublisher) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, recordedEvent{channel: channel, data: data})
	return primitive.NewObjectID().Hex(), nil
}

func (p *memoryPublisher) channels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	channels := make([]string, 0, len(p.events))
	for _, event := range p.events {
		channels = append(channels, event.channel)
	}
	return channels
}

type memoryImages struct {
	mu      sync.Mutex
	objects map[string][]byte
	ctypes  map[string]string
	owners  map[string]string
	putErr  error
}

func newMemoryImages() *memoryImages {
	return &memoryImages{
		objects: map[string][]byte{},
		ctypes:  map[string]string{},
		owners:  map[string]string{},
	}
}

func (m *memoryImages) Put(ctx context.Context, upload storage.Upload) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(upload.Body)
	if err != nil {
		return err
	}
	if int64(len(data)) != upload.Size {
		return errors.New("size mismatch")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[upload.Key] = data
	m.ctypes[upload.Key] = upload.ContentType
	m.owners[upload.Key] = upload.Owner
	return nil
}

func (m *memoryImages) Open(ctx context.Context, key string) (storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return storage.Object{}, storage.ErrObjectNotFound
	}
	return storage.Object{
		Body:        io.NopCloser(bytes.NewReader(data)),
		ContentType: m.ctypes[key],
		Size:        int64(len(data)),
	}, nil
}

func (m *memoryImages) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryImages) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}
