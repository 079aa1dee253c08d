package models

import "time"

// Canonical column names of a bar table.
const (
	ColOpen   = "open"
	ColHigh   = "high"
	ColLow    = "low"
	ColClose  = "close"
	ColVolume = "volume"

	ColCallsBought = "calls_bought"
	ColCallsSold   = "calls_sold"
	ColPutsBought  = "puts_bought"
	ColPutsSold    = "puts_sold"
)

// OHLCV lists the raw price columns in table order.
var OHLCV = []string{ColOpen, ColHigh, ColLow, ColClose, ColVolume}

// Bar is one OHLCV observation. Extra carries optional numeric fields such as
// bar-level option flow counts.
type Bar struct {
	Timestamp time.Time          `json:"ts"`
	Open      float64            `json:"open"`
	High      float64            `json:"high"`
	Low       float64            `json:"low"`
	Close     float64            `json:"close"`
	Volume    float64            `json:"volume"`
	Extra     map[string]float64 `json:"extra,omitempty"`
}

// FlowRecord is option flow aggregated for one bar and one signed strike-distance bucket.
type FlowRecord struct {
	Timestamp   time.Time `json:"ts"`
	Distance    int       `json:"distance"`
	CallsBought float64   `json:"calls_bought"`
	CallsSold   float64   `json:"calls_sold"`
	PutsBought  float64   `json:"puts_bought"`
	PutsSold    float64   `json:"puts_sold"`
}

// IndicatorDescriptor names one indicator and its parameter overrides.
type IndicatorDescriptor struct {
	Name   string         `yaml:"name" json:"name" validate:"required"`
	Params map[string]any `yaml:"params" json:"params,omitempty"`
}

// IndicatorSet is an ordered, named list of descriptors.
type IndicatorSet struct {
	Name       string                `yaml:"name" json:"name" default:"default"`
	Version    int                   `yaml:"version" json:"version" default:"1"`
	Indicators []IndicatorDescriptor `yaml:"indicators" json:"indicators" validate:"required,min=1,dive"`
}
