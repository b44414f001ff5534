package domain

// PriceDirection is a short-horizon directional forecast.
type PriceDirection string

// Price directions.
const (
	DirectionUp   PriceDirection = "up"
	DirectionDown PriceDirection = "down"
	DirectionFlat PriceDirection = "flat"
)

// HistoryPoint is one sample in a pool's sliding history window.
type HistoryPoint struct {
	Timestamp int64   // Unix timestamp in milliseconds
	Price     float64 // spot price at sample time
	Volume    float64 // 24h volume at sample time
	Liquidity float64 // combined reserve depth at sample time
}

// PricePrediction is a directional forecast for one pool.
type PricePrediction struct {
	PoolID         string         // predicted pool
	HorizonSeconds int            // forecast horizon
	Direction      PriceDirection // predicted direction
	Confidence     float64        // in [0,1], low when window is thin or noisy
	ExpectedMovePct float64       // projected price change over the horizon, percent
	SampleCount    int            // window size the forecast was computed from
}

// AnomalyMetric names the metric an anomaly was detected on.
type AnomalyMetric string

// Anomaly metrics.
const (
	MetricPrice     AnomalyMetric = "price"
	MetricVolume    AnomalyMetric = "volume"
	MetricLiquidity AnomalyMetric = "liquidity"
)

// Anomaly flags a history point deviating beyond the z-score threshold.
type Anomaly struct {
	PoolID    string        // pool the anomaly was observed on
	Metric    AnomalyMetric // offending metric
	Value     float64       // observed value
	Mean      float64       // window mean for the metric
	ZScore    float64       // signed deviation in standard deviations
	Timestamp int64         // sample timestamp, Unix milliseconds
}
