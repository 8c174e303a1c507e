package push

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

var (
	_ SingleSender = (*FCM)(nil)
	_ BatchSender  = (*FCM)(nil)
)

type messagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCM sends notifications through Firebase Cloud Messaging.
type FCM struct {
	client messagingClient
}

// NewFCM initialises a Firebase app from a service account file.
func NewFCM(ctx context.Context, credentialsFile string) (*FCM, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error creating messaging client: %w", err)
	}
	return &FCM{client: client}, nil
}

func (f *FCM) Send(ctx context.Context, token string, msg Message) Result {
	id, err := f.client.Send(ctx, &messaging.Message{
		Token:        token,
		Notification: &messaging.Notification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
		Android:      androidConfig(),
		APNS:         apnsConfig(msg),
	})
	if err != nil {
		return ResultFromError(err)
	}
	return Result{Outcome: Delivered, MessageID: id}
}

func (f *FCM) SendBatch(ctx context.Context, tokens []string, msg Message) ([]Result, error) {
	if len(tokens) > MaxBatchSize {
		return nil, fmt.Errorf("batch of %d tokens exceeds limit of %d", len(tokens), MaxBatchSize)
	}

	resp, err := f.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens:       tokens,
		Notification: &messaging.Notification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
		Android:      androidConfig(),
		APNS:         apnsConfig(msg),
	})
	if err != nil {
		return nil, fmt.Errorf("send multicast: %w", err)
	}
	if len(resp.Responses) != len(tokens) {
		return nil, fmt.Errorf("multicast returned %d responses for %d tokens", len(resp.Responses), len(tokens))
	}

	results := make([]Result, len(tokens))
	for i, r := range resp.Responses {
		if r.Success {
			results[i] = Result{Outcome: Delivered, MessageID: r.MessageID}
			continue
		}
		results[i] = ResultFromError(r.Error)
	}
	return results, nil
}

func androidConfig() *messaging.AndroidConfig {
	return &messaging.AndroidConfig{
		Priority: "high",
		Notification: &messaging.AndroidNotification{
			Icon:  "ic_weather_alert",
			Color: "#FF5722",
			Sound: "default",
		},
	}
}

func apnsConfig(msg Message) *messaging.APNSConfig {
	badge := 1
	return &messaging.APNSConfig{
		Payload: &messaging.APNSPayload{
			Aps: &messaging.Aps{
				Alert: &messaging.ApsAlert{
					Title: msg.Title,
					Body:  msg.Body,
				},
				Sound: "default",
				Badge: &badge,
			},
		},
	}
}

// isFCMTokenError reports errors that condemn the token itself. A generic
// INVALID_ARGUMENT may come from a bad payload, so it only counts when the
// gateway names the registration token as the invalid argument.
func isFCMTokenError(err error) bool {
	if messaging.IsUnregistered(err) || messaging.IsSenderIDMismatch(err) {
		return true
	}
	return messaging.IsInvalidArgument(err) && namesRegistrationToken(err.Error())
}

func namesRegistrationToken(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "registration token") ||
		strings.Contains(msg, "registration-token")
}
