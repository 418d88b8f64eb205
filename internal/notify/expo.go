package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
)

type ExpoConfig struct {
	Token string
	TTL   time.Duration
	// Host overrides the Expo API host, e.g. for tests.
	Host       string
	HTTPClient *http.Client
}

// Expo delivers notifications to one device through the Expo push
// service. Expo has no way to retract a delivered push, so Dismiss is a
// no-op and the TTL bounds delivery instead.
type Expo struct {
	client *expo.PushClient
	token  expo.ExponentPushToken
	ttl    time.Duration
}

func NewExpo(cfg ExpoConfig) (*Expo, error) {
	token, err := expo.NewExponentPushToken(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("expo token: %w", err)
	}

	var clientCfg *expo.ClientConfig
	if cfg.Host != "" || cfg.HTTPClient != nil {
		clientCfg = &expo.ClientConfig{
			Host:       cfg.Host,
			HTTPClient: cfg.HTTPClient,
		}
	}

	return &Expo{
		client: expo.NewPushClient(clientCfg),
		token:  token,
		ttl:    cfg.TTL,
	}, nil
}

func (e *Expo) Permission() Permission { return PermissionGranted }

func (e *Expo) Notify(ctx context.Context, n Notification) (Handle, error) {
	msg := &expo.PushMessage{
		To:         []expo.ExponentPushToken{e.token},
		Title:      n.Title,
		Body:       n.Body,
		Data:       map[string]string{"messageId": n.MessageID},
		Sound:      "default",
		TTLSeconds: int(e.ttl / time.Second),
		Priority:   expo.HighPriority,
	}

	response, err := e.client.Publish(msg)
	if err != nil {
		return nil, fmt.Errorf("expo publish: %w", err)
	}
	if err := response.ValidateResponse(); err != nil {
		return nil, fmt.Errorf("expo rejected push: %w", err)
	}

	return newHandle(nil), nil
}
