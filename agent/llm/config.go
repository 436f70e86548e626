package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/travel-concierge/agent/contract"
	statex "github.com/tanpawarit/travel-concierge/agent/state"
	openrouterx "github.com/tanpawarit/travel-concierge/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`
	EmbeddingModel     string        `envconfig:"EMBEDDING_MODEL" split_words:"true" default:"openai/text-embedding-3-small"`

	SupervisorModel       string  `envconfig:"SUPERVISOR_MODEL" split_words:"true"`
	CustomerServiceModel  string  `envconfig:"CUSTOMER_SERVICE_MODEL" split_words:"true"`
	HotelModel            string  `envconfig:"HOTEL_MODEL" split_words:"true"`
	FlightModel           string  `envconfig:"FLIGHT_MODEL" split_words:"true"`
	TourModel             string  `envconfig:"TOUR_MODEL" split_words:"true"`
	SupervisorTemperature float32 `envconfig:"SUPERVISOR_TEMPERATURE" split_words:"true" default:"-1"`
	SpecialistTemperature float32 `envconfig:"SPECIALIST_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// modelFor returns the per-agent override, or "" when the agent uses the
// default model.
func (c Config) modelFor(agent statex.AgentID) string {
	switch agent {
	case statex.AgentSupervisor:
		return c.SupervisorModel
	case statex.AgentCustomerService:
		return c.CustomerServiceModel
	case statex.AgentHotel:
		return c.HotelModel
	case statex.AgentFlight:
		return c.FlightModel
	case statex.AgentTour:
		return c.TourModel
	default:
		return ""
	}
}

func (c Config) OpenRouterFor(agent statex.AgentID) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	if v := strings.TrimSpace(c.modelFor(agent)); v != "" {
		modelName = v
	}

	temp := c.Temperature
	if agent == statex.AgentSupervisor {
		if c.SupervisorTemperature >= 0 {
			temp = c.SupervisorTemperature
		}
	} else if c.SpecialistTemperature >= 0 {
		temp = c.SpecialistTemperature
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}

// Embedding is the client config for the knowledge-base embedder. The model
// name is returned separately since the chat config carries a chat model.
func (c Config) Embedding() (openrouterx.Config, string) {
	cfg := c.OpenRouterFor(statex.AgentCustomerService)
	return cfg, strings.TrimSpace(c.EmbeddingModel)
}
