package tool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/rs/zerolog/log"
	statex "github.com/tanpawarit/travel-concierge/agent/state"
)

var ErrCatalogNotConnected = errors.New("tool catalog is not connected")

type CatalogOption func(*Catalog)

func WithProvider(p Provider) CatalogOption {
	return func(c *Catalog) { c.provider = p }
}

func WithKnowledgeBase(kb *KnowledgeBase) CatalogOption {
	return func(c *Catalog) { c.kb = kb }
}

func WithNotifier(n Notifier) CatalogOption {
	return func(c *Catalog) { c.notifier = n }
}

func WithClock(now func() time.Time) CatalogOption {
	return func(c *Catalog) {
		if now != nil {
			c.now = now
		}
	}
}

// Catalog owns the tool backends and hands each agent its tool set.
// Connect must be called before ToolsFor; Close releases the backends.
type Catalog struct {
	provider Provider
	kb       *KnowledgeBase
	notifier Notifier
	now      func() time.Time

	mu        sync.Mutex
	connected bool
}

func NewCatalog(opts ...CatalogOption) *Catalog {
	c := &Catalog{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Catalog) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}
	if c.kb != nil {
		if err := c.kb.Index(ctx); err != nil {
			// Lookups still work on keywords.
			log.Warn().Err(err).Msg("knowledge base indexing failed, using keyword search")
		}
	}
	c.connected = true
	return nil
}

func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	c.connected = false
	if closer, ok := c.provider.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// ToolsFor returns the ordinary tools of an agent. Routing directives are not
// tools and are bound separately.
func (c *Catalog) ToolsFor(kind statex.AgentID) ([]einotool.BaseTool, error) {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return nil, ErrCatalogNotConnected
	}

	var tools []einotool.BaseTool
	switch kind {
	case statex.AgentSupervisor:
	case statex.AgentHotel:
		if c.provider != nil {
			tools = append(tools, newSearchHotels(c.provider))
		}
	case statex.AgentFlight:
		if c.provider != nil {
			tools = append(tools, newSearchFlights(c.provider))
		}
	case statex.AgentTour:
		if c.provider != nil {
			tools = append(tools, newSearchTours(c.provider))
		}
	case statex.AgentCustomerService:
		if c.kb != nil {
			tools = append(tools, newPolicyLookup(c.kb))
		}
		if c.notifier != nil {
			tools = append(tools, newRequestHumanCallback(c.notifier, c.now))
		}
	default:
		return nil, fmt.Errorf("%w: %s", statex.ErrUnknownAgent, kind)
	}
	return tools, nil
}
