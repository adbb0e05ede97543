package ingest

import (
	"encoding/json"
	"strings"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from JSON number or numeric string. Gamma sends volume
// and liquidity as strings on some endpoints and numbers on others.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	var parsed float64
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return err
	}
	*f = flexFloat(parsed)
	return nil
}

// RawMarket is a market as returned by the Polymarket Gamma API. Outcomes,
// outcome prices, and token IDs arrive as JSON-encoded string arrays inside
// string fields.
type RawMarket struct {
	ID            string    `json:"id"`
	Question      string    `json:"question"`
	ConditionID   string    `json:"conditionId"`
	Slug          string    `json:"slug"`
	Active        flexBool  `json:"active"`
	Closed        bool      `json:"closed"`
	Outcomes      string    `json:"outcomes"`      // e.g. "[\"Yes\",\"No\"]"
	OutcomePrices string    `json:"outcomePrices"` // e.g. "[\"0.85\",\"0.15\"]"
	ClobTokenIDs  string    `json:"clobTokenIds"`  // e.g. "[\"123\",\"456\"]"
	Volume24h     flexFloat `json:"volume24hr"`
	Liquidity     flexFloat `json:"liquidity"`
	EndDate       string    `json:"endDate"`
}

// outcomeLabels decodes the JSON-encoded Outcomes field. Returns nil when the
// field is empty or malformed.
func (m *RawMarket) outcomeLabels() []string {
	if m.Outcomes == "" {
		return nil
	}
	var labels []string
	if err := json.Unmarshal([]byte(m.Outcomes), &labels); err != nil {
		return nil
	}
	return labels
}

// outcomePrices decodes the JSON-encoded OutcomePrices field, which holds
// numbers as strings.
func (m *RawMarket) outcomePrices() []float64 {
	if m.OutcomePrices == "" {
		return nil
	}
	var raw []string
	if err := json.Unmarshal([]byte(m.OutcomePrices), &raw); err != nil {
		return nil
	}
	prices := make([]float64, len(raw))
	for i, s := range raw {
		var f flexFloat
		if err := json.Unmarshal([]byte(`"`+s+`"`), &f); err != nil {
			return nil
		}
		prices[i] = float64(f)
	}
	return prices
}

// tokenIDs decodes the JSON-encoded ClobTokenIDs field.
func (m *RawMarket) tokenIDs() []string {
	if m.ClobTokenIDs == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(m.ClobTokenIDs), &ids); err != nil {
		return nil
	}
	return ids
}

// PriceUpdate is a trade-price tick from the CLOB WebSocket, keyed by the
// outcome token it priced.
type PriceUpdate struct {
	AssetID string
	Market  string
	Price   float64
	Size    float64
}

// wsMessage is the outer envelope of a CLOB WebSocket frame.
type wsMessage struct {
	MsgType   string `json:"msg_type"`
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Timestamp string `json:"timestamp"`
}

// wsCommand is the JSON payload sent to the WebSocket to subscribe or
// unsubscribe.
type wsCommand struct {
	Type    string   `json:"type"`
	Channel string   `json:"channel,omitempty"`
	Assets  []string `json:"assets_ids,omitempty"`
}
