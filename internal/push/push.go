// Package push delivers Firebase Cloud Messaging push notifications
// for hot-pool orders in the diamond category — the mobile-app-facing
// counterpart to notify.Telegram.
package push

import (
	"context"
	"fmt"
	"log"
	"os"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"github.com/wallsentry/wallsentry/internal/model"
	"google.golang.org/api/option"
)

const defaultQueueCapacity = 500

// Message is one outbound FCM push.
type Message struct {
	Topic string
	Title string
	Body  string
	Data  map[string]string
}

// Service queues and delivers FCM pushes. A nil *Service is valid and
// every method on it is a no-op, so callers don't need to branch when
// credentials are absent.
type Service struct {
	client *messaging.Client
	queue  chan Message
}

// New initializes the Firebase app from the service account file
// named by FCM_CREDENTIALS_FILE (default serviceAccountKey.json).
// Returns nil if the file is missing or initialization fails — push
// notifications are disabled, not fatal.
func New() *Service {
	credFile := os.Getenv("FCM_CREDENTIALS_FILE")
	if credFile == "" {
		credFile = "serviceAccountKey.json"
	}
	if _, err := os.Stat(credFile); os.IsNotExist(err) {
		log.Println("⚠️  FCM credentials file not found, push notifications disabled")
		return nil
	}

	opt := option.WithCredentialsFile(credFile)
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		log.Printf("⚠️  FCM: failed to init app: %v", err)
		return nil
	}
	client, err := app.Messaging(context.Background())
	if err != nil {
		log.Printf("⚠️  FCM: failed to get messaging client: %v", err)
		return nil
	}

	log.Println("✅ FCM push service initialized")
	return &Service{client: client, queue: make(chan Message, defaultQueueCapacity)}
}

// Run drains the queue and sends each message, synchronously, until
// ctx is cancelled. A single worker keeps outbound throughput bounded
// by FCM's own send latency.
func (s *Service) Run(ctx context.Context) {
	if s == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.queue:
			fcmMsg := &messaging.Message{
				Notification: &messaging.Notification{Title: msg.Title, Body: msg.Body},
				Data:         msg.Data,
				Topic:        msg.Topic,
			}
			resp, err := s.client.Send(ctx, fcmMsg)
			if err != nil {
				log.Printf("⚠️  FCM send error: %v", err)
				continue
			}
			log.Printf("📲 push sent: %s (id=%s)", msg.Body, resp)
		}
	}
}

// NotifyDiamondAdmission enqueues a push for a hot-pool order whose
// recommended category is diamond; any other category is ignored. It
// does not check whether the order was already pushed. Non-blocking: a
// full queue drops the push rather than stalling the hot pool.
func (s *Service) NotifyDiamondAdmission(order model.HotOrder) {
	if s == nil {
		return
	}
	if order.Weight.RecommendedCategory != model.CategoryDiamond {
		return
	}
	notional, _ := order.CurrentNotional.Float64()
	var valueStr string
	if notional >= 1_000_000 {
		valueStr = fmt.Sprintf("$%.1fM", notional/1_000_000)
	} else {
		valueStr = fmt.Sprintf("$%.0fK", notional/1_000)
	}

	msg := Message{
		Topic: "ALL_WALLS",
		Title: "💎 Diamond Wall",
		Body:  fmt.Sprintf("%s %s wall at %s", valueStr, order.Symbol, order.AnchorPrice.String()),
		Data: map[string]string{
			"symbol":   order.Symbol,
			"side":     string(order.Side),
			"price":    order.AnchorPrice.String(),
			"notional": fmt.Sprintf("%.0f", notional),
		},
	}
	select {
	case s.queue <- msg:
	default:
		log.Println("⚠️  push queue full, dropping diamond admission alert")
	}
}
