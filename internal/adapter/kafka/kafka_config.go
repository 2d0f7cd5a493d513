package kafka

import (
	"time"

	"github.com/IBM/sarama"
)

// NewGroup builds a consumer group that starts from the oldest retained
// offset when the group has no commit yet, so no payment event is skipped.
func NewGroup(brokers []string, groupID string) (sarama.ConsumerGroup, error) {
	return sarama.NewConsumerGroup(brokers, groupID, newConfig())
}

func newConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = "marketplace-settlement"
	cfg.Version = sarama.V2_6_0_0
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.BalanceStrategyRange}
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true
	cfg.Net.DialTimeout = 5 * time.Second
	return cfg
}
