package models

// Requests for the pipeline HTTP endpoints and Kafka run messages.

type RunRequest struct {
	Ticker     string                `json:"ticker" validate:"required"`
	ModelID    string                `json:"model_id"`
	From       string                `json:"from"`
	To         string                `json:"to"`
	Cadence    string                `json:"cadence" default:"hourly" validate:"oneof=hourly daily none"`
	Label      string                `json:"label" validate:"omitempty,oneof=forward close_to_open"`
	Folds      int                   `json:"folds" validate:"gte=0,lte=50"`
	Embargo    *int                  `json:"embargo,omitempty" validate:"omitempty,gte=0"`
	Thresholds []float64             `json:"thresholds" validate:"omitempty,dive,gte=0,lte=1"`
	Indicators []IndicatorDescriptor `json:"indicators" validate:"omitempty,dive"`
	Persist    bool                  `json:"persist"`
}

type BatchRequest struct {
	Tickers    []string              `json:"tickers" validate:"required,min=1,max=500,dive,required"`
	ModelID    string                `json:"model_id"`
	From       string                `json:"from"`
	To         string                `json:"to"`
	Cadence    string                `json:"cadence" default:"hourly" validate:"oneof=hourly daily none"`
	Label      string                `json:"label" validate:"omitempty,oneof=forward close_to_open"`
	Thresholds []float64             `json:"thresholds" validate:"omitempty,dive,gte=0,lte=1"`
	Indicators []IndicatorDescriptor `json:"indicators" validate:"omitempty,dive"`
	Persist    bool                  `json:"persist"`
}

type IndicatorListRequest struct {
	Category string `query:"category" json:"category" validate:"omitempty,oneof=trend momentum oscillator volatility volume flow"`
}
