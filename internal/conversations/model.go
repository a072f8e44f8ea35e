package conversations

import "time"

const (
	StatusOpen     = "open"
	StatusAssigned = "assigned"
	StatusClosed   = "closed"
)

func IsValidStatus(status string) bool {
	switch status {
	case StatusOpen, StatusAssigned, StatusClosed:
		return true
	default:
		return false
	}
}

type Conversation struct {
	ID            string    `bson:"_id,omitempty" json:"id"`
	CustomerID    string    `bson:"customerId" json:"customerId"`
	StaffID       string    `bson:"staffId,omitempty" json:"staffId,omitempty"`
	Subject       string    `bson:"subject" json:"subject"`
	Status        string    `bson:"status" json:"status"`
	LastMessageAt time.Time `bson:"lastMessageAt" json:"lastMessageAt"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt" json:"updatedAt"`
}

type Message struct {
	ID             string    `bson:"_id,omitempty" json:"id"`
	ConversationID string    `bson:"conversationId" json:"conversationId"`
	SenderID       string    `bson:"senderId" json:"senderId"`
	SenderRole     string    `bson:"senderRole" json:"senderRole"`
	Content        string    `bson:"content" json:"content"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
}

type CreateRequest struct {
	Subject string `json:"subject" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=4000"`
}

type MessageRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}

// Created is the response of a new conversation together with its opening message.
type Created struct {
	Conversation
	FirstMessage Message `json:"firstMessage"`
}

type ListFilter struct {
	CustomerID string
	// VisibleToStaff limits results to open conversations plus those claimed by this staff id.
	VisibleToStaff string
	Statuses       []string
}
