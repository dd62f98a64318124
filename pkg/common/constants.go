package common

const (
	// RedisStreamTradingSignals receives BUY/SELL signals for subscribers.
	RedisStreamTradingSignals = "prism:trading-signals"

	KafkaTopicTradingSignals = "prism.trading-signals"

	SignalSource = "prism-insight"
)
