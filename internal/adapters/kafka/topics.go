package kafka

// Topic definitions for the liquidation event feed
const (
	// TopicLiquidations carries recorded liquidation events
	TopicLiquidations = "vaults.liquidations"

	// TopicRiskAlerts carries scanner alerts for newly liquidatable vaults
	TopicRiskAlerts = "vaults.risk_alerts"
)
