package models

// MessageStatus represents the delivery status of an outbound message.
type MessageStatus string

const (
	// MessageStatusSent indicates the message was handed to the channel.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered indicates the channel confirmed delivery.
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead indicates the recipient read the message.
	MessageStatusRead MessageStatus = "read"
)

// Receipt is a delivery status event for an outbound message.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// InboundMessage is an incoming message event from a channel service, already
// stripped of channel-specific wire formats.
type InboundMessage struct {
	From    string  `json:"from"`
	Body    string  `json:"body"`
	Channel Channel `json:"channel"`
	Time    int64   `json:"time"`
}
