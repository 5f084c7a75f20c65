// Package journal keeps the terminal result of every transfer, grouped by
// conversation, so a user can list what was relayed recently.
package journal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/imrenagi/go-drive-relay/transfer"
)

const (
	StatusDone   = "done"
	StatusFailed = "failed"
)

type Entry struct {
	TransferID string    `json:"transfer_id"`
	ChatID     int64     `json:"chat_id"`
	Status     string    `json:"status"`
	Name       string    `json:"name,omitempty"`
	Link       string    `json:"link,omitempty"`
	Failure    string    `json:"failure,omitempty"`
	Code       int       `json:"code,omitempty"`
	At         time.Time `json:"at"`
}

// FromResult builds the journal entry of a finished transfer.
func FromResult(req transfer.Request, res transfer.Result, at time.Time) Entry {
	e := Entry{
		TransferID: req.ID,
		ChatID:     req.ChatID,
		At:         at,
	}
	switch r := res.(type) {
	case transfer.Success:
		e.Status = StatusDone
		e.Name = r.Name
		e.Link = r.Link
	case transfer.Failure:
		e.Status = StatusFailed
		e.Name = transfer.ResolveName(req)
		e.Failure = r.Kind.String()
		e.Code = r.Code
	}
	return e
}

type Store interface {
	Save(ctx context.Context, e Entry) error
	// Recent returns at most limit entries of a conversation, newest first.
	Recent(ctx context.Context, chatID int64, limit int) ([]Entry, error)
}

type Memory struct {
	sync.RWMutex
	entries map[int64][]Entry
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[int64][]Entry),
	}
}

func (m *Memory) Save(ctx context.Context, e Entry) error {
	m.Lock()
	defer m.Unlock()
	entries := append(m.entries[e.ChatID], e)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].At.Before(entries[j].At)
	})
	m.entries[e.ChatID] = entries
	return nil
}

func (m *Memory) Recent(ctx context.Context, chatID int64, limit int) ([]Entry, error) {
	m.RLock()
	defer m.RUnlock()
	entries := m.entries[chatID]
	var out []Entry
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}
