package indicators

// Builtins is the startup registration table.
func Builtins() []Spec {
	return []Spec{
		{Name: "sma", Category: Trend, Subcategory: "moving_average", Version: "1",
			Description: "simple moving average",
			Defaults:    Params{"period": 20, "column": "close"}, New: newSMA},
		{Name: "ema", Category: Trend, Subcategory: "moving_average", Version: "1",
			Description: "exponential moving average, alpha = 2/(period+1)",
			Defaults:    Params{"period": 20, "column": "close"}, New: newEMA},
		{Name: "macd", Category: Trend, Subcategory: "moving_average", Version: "1",
			Defaults: Params{"fast": 12, "slow": 26, "signal": 9}, New: newMACD},
		{Name: "adx", Category: Trend, Subcategory: "directional", Version: "1",
			Description: "average directional index with +DI/-DI, Wilder smoothing",
			Defaults:    Params{"period": 14}, New: newADX},
		{Name: "supertrend", Category: Trend, Subcategory: "trend_following", Version: "1",
			Defaults: Params{"period": 10, "multiplier": 3.0}, New: newSupertrend},

		{Name: "rsi", Category: Momentum, Subcategory: "strength", Version: "1",
			Description: "relative strength index, Wilder smoothing",
			Defaults:    Params{"period": 14}, New: newRSI},
		{Name: "roc", Category: Momentum, Subcategory: "rate_of_change", Version: "1",
			Defaults: Params{"period": 10}, New: newROC},

		{Name: "stoch", Category: Oscillator, Subcategory: "range", Version: "1",
			Defaults: Params{"k": 14, "d": 3}, New: newStoch},
		{Name: "williams_r", Category: Oscillator, Subcategory: "range", Version: "1",
			Defaults: Params{"period": 14}, New: newWilliamsR},
		{Name: "cci", Category: Oscillator, Subcategory: "deviation", Version: "1",
			Defaults: Params{"period": 20}, New: newCCI},

		{Name: "atr", Category: Volatility, Subcategory: "range", Version: "1",
			Defaults: Params{"period": 14}, New: newATR},
		{Name: "bbands", Category: Volatility, Subcategory: "bands", Version: "1",
			Defaults: Params{"period": 20, "k": 2.0}, New: newBBands},
		{Name: "realized_vol", Category: Volatility, Subcategory: "realized", Version: "1",
			Description: "annualized deviation of log returns",
			Defaults:    Params{"window": 20, "bars_per_year": 252.0 * 7}, New: newRealizedVol},

		{Name: "obv", Category: Volume, Subcategory: "accumulation", Version: "1",
			Defaults: Params{}, New: newOBV},
		{Name: "vwap", Category: Volume, Subcategory: "price_volume", Version: "1",
			Description: "rolling volume weighted typical price",
			Defaults:    Params{"period": 20}, New: newVWAP},
		{Name: "volume_z", Category: Volume, Subcategory: "anomaly", Version: "1",
			Defaults: Params{"period": 20}, New: newVolumeZ},

		{Name: "put_call_ratio", Category: Flow, Subcategory: "ratio", Version: "1",
			Defaults: Params{"window": 1}, New: newPutCallRatio},
		{Name: "flow_imbalance", Category: Flow, Subcategory: "imbalance", Version: "1",
			Defaults: Params{"window": 1}, New: newFlowImbalance},
	}
}
