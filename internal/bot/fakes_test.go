package bot

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"insales-monitor/internal/insales"
	"insales-monitor/internal/models"
	"insales-monitor/internal/store"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	// failures per chat id; -1 fails forever
	failures map[int64]int
}

func newFakeSender() *fakeSender {
	return &fakeSender{failures: make(map[int64]int)}
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		if left, ok := s.failures[msg.ChatID]; ok && left != 0 {
			if left > 0 {
				s.failures[msg.ChatID] = left - 1
			}
			return tgbotapi.Message{}, errors.New("telegram unavailable")
		}
	}
	s.sent = append(s.sent, c)
	return tgbotapi.Message{MessageID: len(s.sent)}, nil
}

func (s *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (s *fakeSender) messages() []tgbotapi.MessageConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range s.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg)
		}
	}
	return out
}

func (s *fakeSender) edits() []tgbotapi.EditMessageTextConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []tgbotapi.EditMessageTextConfig
	for _, c := range s.sent {
		if edit, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			out = append(out, edit)
		}
	}
	return out
}

func (s *fakeSender) callbacks() []tgbotapi.CallbackConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []tgbotapi.CallbackConfig
	for _, c := range s.requests {
		if cb, ok := c.(tgbotapi.CallbackConfig); ok {
			out = append(out, cb)
		}
	}
	return out
}

func (s *fakeSender) lastMessage() tgbotapi.MessageConfig {
	msgs := s.messages()
	if len(msgs) == 0 {
		return tgbotapi.MessageConfig{}
	}
	return msgs[len(msgs)-1]
}

type memAccounts struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]*models.Account
	listErr  error
	updates  int
}

func newMemAccounts(accounts ...*models.Account) *memAccounts {
	m := &memAccounts{accounts: make(map[int64]*models.Account)}
	for _, a := range accounts {
		m.nextID++
		if a.ID == 0 {
			a.ID = m.nextID
		}
		m.accounts[a.ID] = a
	}
	return m
}

func (m *memAccounts) List(_ context.Context) ([]*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*models.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		c := *a
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memAccounts) Get(_ context.Context, id int64) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (m *memAccounts) Create(_ context.Context, n models.NewAccount) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.ShopDomain == n.ShopDomain {
			return nil, store.ErrDuplicateDomain
		}
	}
	m.nextID++
	a := &models.Account{
		ID:                   m.nextID,
		Title:                n.Title,
		ShopDomain:           n.ShopDomain,
		APIKey:               n.APIKey,
		APIPassword:          n.APIPassword,
		PaidTill:             n.PaidTill,
		NotificationsEnabled: true,
	}
	m.accounts[a.ID] = a
	c := *a
	return &c, nil
}

func (m *memAccounts) UpdatePaidTill(_ context.Context, id int64, paidTill *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	a.PaidTill = paidTill
	m.updates++
	return nil
}

func (m *memAccounts) SetNotificationsEnabled(_ context.Context, id int64, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	a.NotificationsEnabled = enabled
	m.updates++
	return nil
}

func (m *memAccounts) UpdateLastNotified(_ context.Context, id int64, day time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	d := models.DateOf(day)
	a.LastNotifiedAt = &d
	m.updates++
	return nil
}

func (m *memAccounts) snapshot(id int64) models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.accounts[id]
}

func (m *memAccounts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}

type memChats struct {
	mu    sync.Mutex
	chats map[string]*models.Chat
	order []string
}

func newMemChats(chats ...*models.Chat) *memChats {
	m := &memChats{chats: make(map[string]*models.Chat)}
	for _, c := range chats {
		m.chats[c.ChatID] = c
		m.order = append(m.order, c.ChatID)
	}
	return m
}

func (m *memChats) Upsert(_ context.Context, p models.ChatProfile, superAdmin bool) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[p.ChatID]
	if !ok {
		c = &models.Chat{ChatID: p.ChatID}
		m.chats[p.ChatID] = c
		m.order = append(m.order, p.ChatID)
	}
	c.Username, c.FirstName, c.LastName = p.Username, p.FirstName, p.LastName
	if superAdmin {
		c.IsAdmin, c.IsSuperAdmin = true, true
	}
	cp := *c
	return &cp, nil
}

func (m *memChats) Get(_ context.Context, chatID string) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[chatID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memChats) List(_ context.Context) ([]*models.Chat, error) {
	return m.filter(func(*models.Chat) bool { return true }), nil
}

func (m *memChats) ListAdmins(_ context.Context) ([]*models.Chat, error) {
	return m.filter(func(c *models.Chat) bool { return c.IsAdmin }), nil
}

func (m *memChats) filter(keep func(*models.Chat) bool) []*models.Chat {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Chat
	for _, id := range m.order {
		if c := m.chats[id]; keep(c) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out
}

func (m *memChats) SetAdmin(_ context.Context, chatID string, isAdmin bool) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[chatID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if c.IsSuperAdmin {
		return nil, store.ErrSuperAdminImmutable
	}
	c.IsAdmin = isAdmin
	cp := *c
	return &cp, nil
}

type fakeFetcher struct {
	mu      sync.Mutex
	results map[string]*insales.AccountInfo
	errs    map[string]error
	calls   []string
	block   chan struct{}
	started chan struct{}
	// domains whose fetch waits for the context to end
	hang map[string]bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		results: make(map[string]*insales.AccountInfo),
		errs:    make(map[string]error),
		hang:    make(map[string]bool),
	}
}

func (f *fakeFetcher) FetchAccount(ctx context.Context, domain, _, _ string) (*insales.AccountInfo, error) {
	f.mu.Lock()
	f.calls = append(f.calls, domain)
	block, started := f.block, f.started
	info, err := f.results[domain], f.errs[domain]
	hang := f.hang[domain]
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if block != nil {
		if started != nil {
			started <- struct{}{}
		}
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if info == nil {
		return &insales.AccountInfo{}, nil
	}
	return info, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func adminChat(id int64) *models.Chat {
	return &models.Chat{ChatID: strconv.FormatInt(id, 10), IsAdmin: true}
}

func strPtr(s string) *string { return &s }
