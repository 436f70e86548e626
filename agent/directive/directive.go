// Package directive defines the structured directives a model can emit to move
// control between agents, and decodes them from tool calls.
package directive

import (
	"fmt"
	"strings"

	statex "github.com/tanpawarit/travel-concierge/agent/state"
)

const (
	NameToHotelAgent       = "ToHotelAgent"
	NameToFlightAgent      = "ToFlightAgent"
	NameToTourAgent        = "ToTourAgent"
	NameToCustomerService  = "ToCustomerService"
	NameCompleteOrEscalate = "CompleteOrEscalate"
)

// Directive is the closed set of structured directives. Use a type switch over
// the five concrete types; no other implementations exist.
type Directive interface {
	ID() string
	Name() string
	isDirective()
}

// Handoff is implemented by every directive that transfers control to a
// specialist agent.
type Handoff interface {
	Directive
	Target() statex.AgentID
	// Request is the free-text request forwarded to the target agent.
	Request() string
	// Details renders the structured fields for the target agent.
	Details() string
}

type ToHotelAgent struct {
	CallID       string `json:"-"`
	Location     string `json:"location,omitempty"`
	CheckinDate  string `json:"checkin_date,omitempty"`
	CheckoutDate string `json:"checkout_date,omitempty"`
	Text         string `json:"request"`
}

type ToFlightAgent struct {
	CallID        string `json:"-"`
	Route         string `json:"route,omitempty"`
	DepartureDate string `json:"departure_date,omitempty"`
	Text          string `json:"request"`
}

type ToTourAgent struct {
	CallID      string `json:"-"`
	Destination string `json:"destination,omitempty"`
	Date        string `json:"date,omitempty"`
	Text        string `json:"request"`
}

type ToCustomerService struct {
	CallID string `json:"-"`
	Text   string `json:"request"`
}

// CompleteOrEscalate hands control back to the previous agent on the stack.
type CompleteOrEscalate struct {
	CallID string `json:"-"`
	Cancel bool   `json:"cancel"`
	Reason string `json:"reason"`
}

func (d ToHotelAgent) ID() string       { return d.CallID }
func (d ToFlightAgent) ID() string      { return d.CallID }
func (d ToTourAgent) ID() string        { return d.CallID }
func (d ToCustomerService) ID() string  { return d.CallID }
func (d CompleteOrEscalate) ID() string { return d.CallID }

func (ToHotelAgent) Name() string       { return NameToHotelAgent }
func (ToFlightAgent) Name() string      { return NameToFlightAgent }
func (ToTourAgent) Name() string        { return NameToTourAgent }
func (ToCustomerService) Name() string  { return NameToCustomerService }
func (CompleteOrEscalate) Name() string { return NameCompleteOrEscalate }

func (ToHotelAgent) isDirective()       {}
func (ToFlightAgent) isDirective()      {}
func (ToTourAgent) isDirective()        {}
func (ToCustomerService) isDirective()  {}
func (CompleteOrEscalate) isDirective() {}

func (ToHotelAgent) Target() statex.AgentID      { return statex.AgentHotel }
func (ToFlightAgent) Target() statex.AgentID     { return statex.AgentFlight }
func (ToTourAgent) Target() statex.AgentID       { return statex.AgentTour }
func (ToCustomerService) Target() statex.AgentID { return statex.AgentCustomerService }

func (d ToHotelAgent) Request() string      { return d.Text }
func (d ToFlightAgent) Request() string     { return d.Text }
func (d ToTourAgent) Request() string       { return d.Text }
func (d ToCustomerService) Request() string { return d.Text }

func (d ToHotelAgent) Details() string {
	return joinFields(
		"location", d.Location,
		"checkin_date", d.CheckinDate,
		"checkout_date", d.CheckoutDate,
	)
}

func (d ToFlightAgent) Details() string {
	return joinFields("route", d.Route, "departure_date", d.DepartureDate)
}

func (d ToTourAgent) Details() string {
	return joinFields("destination", d.Destination, "date", d.Date)
}

func (ToCustomerService) Details() string { return "" }

func joinFields(kv ...string) string {
	parts := make([]string, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if v := strings.TrimSpace(kv[i+1]); v != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", kv[i], v))
		}
	}
	return strings.Join(parts, ", ")
}

// IsDirectiveName reports whether a tool call name belongs to a directive.
func IsDirectiveName(name string) bool {
	switch name {
	case NameToHotelAgent, NameToFlightAgent, NameToTourAgent, NameToCustomerService, NameCompleteOrEscalate:
		return true
	default:
		return false
	}
}
