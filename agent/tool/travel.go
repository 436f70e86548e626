package tool

import (
	"context"
	"strings"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
)

const (
	ToolSearchHotels         = "search_hotels"
	ToolSearchFlights        = "search_flights"
	ToolSearchTours          = "search_tours"
	ToolPolicyLookup         = "policy_lookup"
	ToolRequestHumanCallback = "request_human_callback"
)

// SearchOutput is what the model sees. Provider failures are reported in
// Error so the agent can tell the user instead of aborting the turn.
type SearchOutput[T any] struct {
	Results []T    `json:"results"`
	Error   string `json:"error,omitempty"`
}

func newSearchHotels(p Provider) einotool.InvokableTool {
	info := &schema.ToolInfo{
		Name: ToolSearchHotels,
		Desc: "Search hotels by location and optional stay dates, guest count and nightly budget.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"location":      {Type: schema.String, Desc: "City, island or neighbourhood", Required: true},
			"checkin_date":  {Type: schema.String, Desc: "Check-in date, YYYY-MM-DD"},
			"checkout_date": {Type: schema.String, Desc: "Check-out date, YYYY-MM-DD"},
			"guests":        {Type: schema.Integer, Desc: "Number of guests"},
			"max_price":     {Type: schema.Integer, Desc: "Maximum nightly price"},
		}),
	}
	return utils.NewTool[HotelQuery, SearchOutput[Hotel]](info, func(ctx context.Context, q HotelQuery) (SearchOutput[Hotel], error) {
		if strings.TrimSpace(q.Location) == "" {
			return SearchOutput[Hotel]{Error: "location is required"}, nil
		}
		hotels, err := p.SearchHotels(ctx, q)
		if err != nil {
			log.Warn().Err(err).Str("tool", ToolSearchHotels).Msg("provider search failed")
			return SearchOutput[Hotel]{Error: "hotel search is unavailable right now"}, nil
		}
		return SearchOutput[Hotel]{Results: nonNil(hotels)}, nil
	})
}

func newSearchFlights(p Provider) einotool.InvokableTool {
	info := &schema.ToolInfo{
		Name: ToolSearchFlights,
		Desc: "Search flights between two airports or cities on a departure date.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"origin":         {Type: schema.String, Desc: "Departure airport code or city", Required: true},
			"destination":    {Type: schema.String, Desc: "Arrival airport code or city", Required: true},
			"departure_date": {Type: schema.String, Desc: "Departure date, YYYY-MM-DD"},
			"passengers":     {Type: schema.Integer, Desc: "Number of passengers"},
		}),
	}
	return utils.NewTool[FlightQuery, SearchOutput[Flight]](info, func(ctx context.Context, q FlightQuery) (SearchOutput[Flight], error) {
		if strings.TrimSpace(q.Origin) == "" || strings.TrimSpace(q.Destination) == "" {
			return SearchOutput[Flight]{Error: "origin and destination are required"}, nil
		}
		flights, err := p.SearchFlights(ctx, q)
		if err != nil {
			log.Warn().Err(err).Str("tool", ToolSearchFlights).Msg("provider search failed")
			return SearchOutput[Flight]{Error: "flight search is unavailable right now"}, nil
		}
		return SearchOutput[Flight]{Results: nonNil(flights)}, nil
	})
}

func newSearchTours(p Provider) einotool.InvokableTool {
	info := &schema.ToolInfo{
		Name: ToolSearchTours,
		Desc: "Search tours and activities at a destination.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"destination": {Type: schema.String, Desc: "Destination city or region", Required: true},
			"date":        {Type: schema.String, Desc: "Preferred date, YYYY-MM-DD"},
			"keywords":    {Type: schema.String, Desc: "Interests such as food, diving or temples"},
		}),
	}
	return utils.NewTool[TourQuery, SearchOutput[Tour]](info, func(ctx context.Context, q TourQuery) (SearchOutput[Tour], error) {
		if strings.TrimSpace(q.Destination) == "" {
			return SearchOutput[Tour]{Error: "destination is required"}, nil
		}
		tours, err := p.SearchTours(ctx, q)
		if err != nil {
			log.Warn().Err(err).Str("tool", ToolSearchTours).Msg("provider search failed")
			return SearchOutput[Tour]{Error: "tour search is unavailable right now"}, nil
		}
		return SearchOutput[Tour]{Results: nonNil(tours)}, nil
	})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
