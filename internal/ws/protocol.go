package ws

import (
	"encoding/json"

	"kidoku/internal/notify"
	"kidoku/internal/transcript"
)

type ClientMessageType string

const (
	ClientMessageTypeLogin             ClientMessageType = "login"
	ClientMessageTypeLogout            ClientMessageType = "logout"
	ClientMessageTypeNickname          ClientMessageType = "nickname"
	ClientMessageTypeSend              ClientMessageType = "send"
	ClientMessageTypeFocus             ClientMessageType = "focus"
	ClientMessageTypeBlur              ClientMessageType = "blur"
	ClientMessageTypeVisibility        ClientMessageType = "visibility"
	ClientMessageTypeNotificationClick ClientMessageType = "notification-click"
	ClientMessageTypePushSubscription  ClientMessageType = "push-subscription"
	ClientMessageTypePermission        ClientMessageType = "permission"
)

type ClientMessage struct {
	Type       ClientMessageType `json:"type"`
	Email      string            `json:"email,omitempty"`
	Password   string            `json:"password,omitempty"`
	Nickname   string            `json:"nickname,omitempty"`
	Text       string            `json:"text,omitempty"`
	Visible    bool              `json:"visible,omitempty"`
	Permission notify.Permission `json:"permission,omitempty"`
	// Subscription is the browser's PushSubscription.toJSON().
	Subscription json.RawMessage `json:"subscription,omitempty"`
}

type ServerMessageType string

const (
	ServerMessageTypeView         ServerMessageType = "view"
	ServerMessageTypeSetupProfile ServerMessageType = "setup-profile"
	ServerMessageTypeAlert        ServerMessageType = "alert"
	ServerMessageTypeNotification ServerMessageType = "notification"
	ServerMessageTypeDismiss      ServerMessageType = "dismiss"
)

type ServerMessage struct {
	Type         ServerMessageType    `json:"type"`
	View         *transcript.View     `json:"view,omitempty"`
	Text         string               `json:"text,omitempty"`  // Alert text
	Input        string               `json:"input,omitempty"` // Unsent input to restore after a failed send
	Notification *notify.Notification `json:"notification,omitempty"`
}
