package tus

import (
	"sync"
	"time"
)

// Upload is the receiver-side state of one tus upload.
type Upload struct {
	ID        string
	Size      int64
	Offset    int64
	Metadata  Metadata
	ExpiresAt time.Time
	Path      string
}

func (u Upload) Complete() bool {
	return u.Offset >= u.Size
}

func (u Upload) Filename() string {
	if name := u.Metadata["filename"]; name != "" {
		return name
	}
	return u.ID
}

type Store interface {
	Find(id string) (Upload, bool)
	Save(upload Upload)
	Delete(id string)
}

type MemoryStore struct {
	sync.RWMutex
	uploads map[string]Upload
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		uploads: make(map[string]Upload),
	}
}

func (s *MemoryStore) Find(id string) (Upload, bool) {
	s.RLock()
	defer s.RUnlock()
	u, ok := s.uploads[id]
	return u, ok
}

func (s *MemoryStore) Save(upload Upload) {
	s.Lock()
	defer s.Unlock()
	s.uploads[upload.ID] = upload
}

func (s *MemoryStore) Delete(id string) {
	s.Lock()
	defer s.Unlock()
	delete(s.uploads, id)
}
