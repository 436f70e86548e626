package directive

import (
	"github.com/cloudwego/eino/schema"
	statex "github.com/tanpawarit/travel-concierge/agent/state"
)

// ToolInfos returns the directive tools bound to an agent's model. The
// supervisor can only delegate; specialists can only hand control back.
func ToolInfos(kind statex.AgentID) []*schema.ToolInfo {
	if kind == statex.AgentSupervisor {
		return []*schema.ToolInfo{
			toCustomerServiceInfo(),
			toHotelAgentInfo(),
			toFlightAgentInfo(),
			toTourAgentInfo(),
		}
	}
	return []*schema.ToolInfo{completeOrEscalateInfo()}
}

func toHotelAgentInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: NameToHotelAgent,
		Desc: "Transfer work to the hotel specialist to search and recommend accommodation.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"location":      {Type: schema.String, Desc: "City or area the user wants to stay in"},
			"checkin_date":  {Type: schema.String, Desc: "Check-in date, YYYY-MM-DD"},
			"checkout_date": {Type: schema.String, Desc: "Check-out date, YYYY-MM-DD"},
			"request":       {Type: schema.String, Desc: "Any additional information or requests from the user", Required: true},
		}),
	}
}

func toFlightAgentInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: NameToFlightAgent,
		Desc: "Transfer work to the flight specialist to search flights.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"route":          {Type: schema.String, Desc: "Origin and destination, e.g. BKK-DPS"},
			"departure_date": {Type: schema.String, Desc: "Departure date, YYYY-MM-DD"},
			"request":        {Type: schema.String, Desc: "Any additional information or requests from the user", Required: true},
		}),
	}
}

func toTourAgentInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: NameToTourAgent,
		Desc: "Transfer work to the tour specialist to find tours and activities.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"destination": {Type: schema.String, Desc: "Destination of the tour"},
			"date":        {Type: schema.String, Desc: "Preferred tour date, YYYY-MM-DD"},
			"request":     {Type: schema.String, Desc: "Any additional information or requests from the user", Required: true},
		}),
	}
}

func toCustomerServiceInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: NameToCustomerService,
		Desc: "Transfer work to customer service for policies, bookings, refunds and complaints.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"request": {Type: schema.String, Desc: "What the user needs help with", Required: true},
		}),
	}
}

func completeOrEscalateInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: NameCompleteOrEscalate,
		Desc: "Mark the current task as completed and/or escalate control of the dialog to the main assistant, " +
			"who can re-route the dialog based on the user's needs.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"cancel": {Type: schema.Boolean, Desc: "True when the task is cancelled or cannot be handled here"},
			"reason": {Type: schema.String, Desc: "Why control is handed back"},
		}),
	}
}
