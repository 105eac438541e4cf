// Package domain contains the delivery pipeline models: inbound webhook
// deliveries, dedup bookkeeping, in-flight claims and dead letters.
package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Delivery is a verified inbound event, ready for dispatch.
type Delivery struct {
	Topic      string          `json:"topic"`
	DeliveryID string          `json:"delivery_id"`
	ShopDomain string          `json:"shop_domain"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Job wraps a delivery with its attempt counter while it travels
// through the queue.
type Job struct {
	Delivery Delivery `json:"delivery"`
	Attempt  int      `json:"attempt"`
}

// ProcessedDelivery records a delivery whose handler completed, so a
// redelivery of the same event is acknowledged without re-running it.
type ProcessedDelivery struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	Topic       string       `gorm:"type:text;not null;uniqueIndex:idx_processed_topic_delivery,priority:1"`
	DeliveryID  string       `gorm:"type:text;not null;uniqueIndex:idx_processed_topic_delivery,priority:2"`
	ProcessedAt time.Time    `gorm:"not null;index"`
}

func (ProcessedDelivery) TableName() string { return "processed_deliveries" }

// DeliveryClaim marks a delivery as currently being executed by a
// worker. The unique index is what keeps two redeliveries of the same
// event from running concurrently.
type DeliveryClaim struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	Topic      string       `gorm:"type:text;not null;uniqueIndex:idx_claim_topic_delivery,priority:1"`
	DeliveryID string       `gorm:"type:text;not null;uniqueIndex:idx_claim_topic_delivery,priority:2"`
	ClaimedAt  time.Time    `gorm:"not null;index"`
}

func (DeliveryClaim) TableName() string { return "delivery_claims" }

// DeadLetter is a delivery that permanently failed, kept with its
// original payload for inspection and manual replay.
type DeadLetter struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	Topic      string       `gorm:"type:text;not null;index"`
	DeliveryID string       `gorm:"type:text;not null"`
	ShopDomain string       `gorm:"type:text;not null"`
	Payload    []byte       `gorm:"type:bytes"`
	Attempts   int          `gorm:"not null"`
	Reason     string       `gorm:"type:text;not null"`
	FailedAt   time.Time    `gorm:"not null;index"`
}

func (DeadLetter) TableName() string { return "dead_letters" }
