package models

// RoomView is a room as held in the client projection: participants joined
// with profiles, the name shown to the viewer and the latest known message.
type RoomView struct {
	RoomDetails
	DisplayName string   `json:"display_name"`
	LastMessage *Message `json:"last_message,omitempty"`
}

// MessageView is a message joined with its sender profile. ClientID is set
// while the message is an optimistic local entry.
type MessageView struct {
	Message
	Sender   *Profile `json:"sender,omitempty"`
	ClientID string   `json:"client_id,omitempty"`
	Pending  bool     `json:"pending,omitempty"`
}
