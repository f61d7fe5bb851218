package bot

import (
	"sync"

	"insales-monitor/internal/models"
)

// registrationStep is one state of the add-account dialog. Each step carries
// only the answers collected so far.
type registrationStep interface {
	prompt() string
}

type awaitingTitle struct{}

type awaitingDomain struct {
	title string
}

type awaitingAPIKey struct {
	title  string
	domain string
}

type awaitingAPIPassword struct {
	title  string
	domain string
	apiKey string
}

func (awaitingTitle) prompt() string { return "Enter the account title:" }
func (awaitingDomain) prompt() string {
	return "Enter the shop domain (for example, shop.myinsales.ru):"
}
func (awaitingAPIKey) prompt() string      { return "Enter the API key:" }
func (awaitingAPIPassword) prompt() string { return "Enter the API password:" }

// advance feeds one non-empty answer into the dialog. It returns either the
// next step or, after the last answer, the collected account.
func advance(step registrationStep, input string) (registrationStep, *models.NewAccount) {
	switch s := step.(type) {
	case awaitingTitle:
		return awaitingDomain{title: input}, nil
	case awaitingDomain:
		return awaitingAPIKey{title: s.title, domain: input}, nil
	case awaitingAPIKey:
		return awaitingAPIPassword{title: s.title, domain: s.domain, apiKey: input}, nil
	case awaitingAPIPassword:
		return nil, &models.NewAccount{
			Title:       s.title,
			ShopDomain:  s.domain,
			APIKey:      s.apiKey,
			APIPassword: input,
		}
	default:
		return awaitingTitle{}, nil
	}
}

// conversations keeps the in-progress dialog per chat. It is not persisted;
// a restart drops every open dialog.
type conversations struct {
	mu    sync.Mutex
	steps map[int64]registrationStep
}

func newConversations() *conversations {
	return &conversations{steps: make(map[int64]registrationStep)}
}

func (c *conversations) get(chatID int64) (registrationStep, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	step, ok := c.steps[chatID]
	return step, ok
}

func (c *conversations) set(chatID int64, step registrationStep) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps[chatID] = step
}

// clear ends the dialog and reports whether one was open.
func (c *conversations) clear(chatID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.steps[chatID]
	delete(c.steps, chatID)
	return ok
}
