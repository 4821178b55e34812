package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"printline/internal/config"
	"printline/internal/domain"
	"printline/internal/engine"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// webhookDispatcher tails the event log and POSTs matching events to each
// configured hook. Cursors are per hook: a slow endpoint never holds back
// the others, and delivery within one hook stays ordered.
type webhookDispatcher struct {
	engine   engine.Engine
	shop     string
	webhooks []config.Webhook
	client   *http.Client
	logger   zerolog.Logger
	mu       sync.Mutex
	cursors  map[int]int64
}

// StartWebhookDispatcher begins background delivery of audit events to the
// webhooks configured for the shop. No-op when none are configured.
func StartWebhookDispatcher(e engine.Engine, logger zerolog.Logger) {
	if e.Config == nil || len(e.Config.Webhooks) == 0 {
		return
	}
	shopID := e.Config.Shop.ID
	if strings.TrimSpace(shopID) == "" {
		return
	}
	d := &webhookDispatcher{
		engine:   e,
		shop:     shopID,
		webhooks: e.Config.Webhooks,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		logger:   logger,
		cursors:  make(map[int]int64),
	}
	go d.run()
}

func (d *webhookDispatcher) run() {
	ticker := time.NewTicker(defaultWebhookInterval)
	defer ticker.Stop()
	for {
		d.dispatchAll()
		<-ticker.C
	}
}

func (d *webhookDispatcher) dispatchAll() {
	for i, hook := range d.webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		d.dispatchWebhook(i, hook)
	}
}

func (d *webhookDispatcher) dispatchWebhook(idx int, hook config.Webhook) {
	ctx := context.Background()
	cursor := d.cursorFor(idx)
	events, err := d.engine.Repo.EventsAfter(ctx, defaultWebhookBatch, cursor, d.shop)
	if err != nil {
		d.logger.Error().Err(err).Msg("webhook: fetch events failed")
		return
	}
	filter := newEventFilter(hook.Events)
	for _, evt := range events {
		if !filter.match(evt.Type) {
			d.setCursor(idx, evt.ID)
			continue
		}
		if err := d.postEvent(ctx, hook, evt); err != nil {
			d.logger.Warn().Err(err).Str("url", hook.URL).Int64("event_id", evt.ID).
				Msg("webhook: delivery failed; will retry")
			return
		}
		d.setCursor(idx, evt.ID)
	}
}

// cursorFor initializes a hook's cursor to the current log head so freshly
// configured hooks only receive events from now on.
func (d *webhookDispatcher) cursorFor(idx int) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur
	}
	cur, err := d.engine.Repo.LatestEventID(context.Background(), d.shop)
	if err != nil {
		d.logger.Error().Err(err).Msg("webhook: init cursor failed")
		cur = 0
	}
	d.cursors[idx] = cur
	return cur
}

func (d *webhookDispatcher) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

type webhookEvent struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	ShopID     string          `json:"shop_id"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
}

func (d *webhookDispatcher) postEvent(ctx context.Context, hook config.Webhook, evt domain.Event) error {
	payload := json.RawMessage([]byte("{}"))
	if evt.Payload != "" && json.Valid([]byte(evt.Payload)) {
		payload = json.RawMessage([]byte(evt.Payload))
	}
	body := webhookEvent{
		ID:         evt.ID,
		Type:       evt.Type,
		ShopID:     evt.ShopID,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		TS:         evt.TS,
		Payload:    payload,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Printline-Event", evt.Type)
	req.Header.Set("X-Printline-Delivery", fmt.Sprintf("%d", evt.ID))
	req.Header.Set("X-Printline-Shop", d.shop)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Printline-Secret", hook.Secret)
	}
	res, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	if len(events) == 0 {
		return eventFilter{all: true}
	}
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		key := strings.TrimSpace(evt)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
