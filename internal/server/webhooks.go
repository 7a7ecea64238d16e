package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"eventline/internal/config"
	"eventline/internal/domain"
	"eventline/internal/logging"
	"eventline/internal/repo"
)

const (
	defaultWebhookSchedule = "@every 5s"
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// WebhookDispatcher forwards new activity rows to configured URLs. Each hook
// keeps its own cursor, starting at the newest row when the dispatcher starts.
type WebhookDispatcher struct {
	repo    repo.Repo
	hooks   []config.Webhook
	client  *http.Client
	log     logging.Logger
	cron    *cron.Cron
	mu      sync.Mutex
	cursors map[int]int64
}

func NewWebhookDispatcher(r repo.Repo, hooks []config.Webhook, log logging.Logger) *WebhookDispatcher {
	if log == nil {
		log = logging.Nop()
	}
	return &WebhookDispatcher{
		repo:    r,
		hooks:   hooks,
		client:  &http.Client{Timeout: defaultWebhookTimeout},
		log:     log,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		cursors: make(map[int]int64),
	}
}

// Start schedules every hook with a URL. It fails on a bad cron spec.
func (d *WebhookDispatcher) Start(ctx context.Context) error {
	for i, hook := range d.hooks {
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		spec := hook.Schedule
		if spec == "" {
			spec = defaultWebhookSchedule
		}
		idx := i
		if _, err := d.cron.AddFunc(spec, func() { d.dispatch(ctx, idx) }); err != nil {
			return fmt.Errorf("webhook %s: schedule %q: %w", hook.URL, spec, err)
		}
	}
	d.cron.Start()
	return nil
}

// Stop halts scheduling and returns a context done when running jobs finish.
func (d *WebhookDispatcher) Stop() context.Context {
	return d.cron.Stop()
}

func (d *WebhookDispatcher) dispatch(ctx context.Context, idx int) {
	hook := d.hooks[idx]
	cursor, err := d.cursorFor(ctx, idx, hook)
	if err != nil {
		d.log.Warn(ctx, "webhook cursor init failed", "url", hook.URL, "err", err)
		return
	}
	rows, err := d.repo.ActivityAfter(ctx, defaultWebhookBatch, cursor, hook.EventID)
	if err != nil {
		d.log.Warn(ctx, "webhook fetch failed", "url", hook.URL, "err", err)
		return
	}
	for _, row := range rows {
		if err := d.post(ctx, hook, row); err != nil {
			// Retry from this row on the next tick.
			d.log.Warn(ctx, "webhook delivery failed", "url", hook.URL, "activity", row.ID, "err", err)
			return
		}
		d.setCursor(idx, row.ID)
	}
}

func (d *WebhookDispatcher) cursorFor(ctx context.Context, idx int, hook config.Webhook) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur, nil
	}
	cur, err := d.repo.LatestActivityID(ctx, hook.EventID)
	if err != nil {
		return 0, err
	}
	d.cursors[idx] = cur
	return cur, nil
}

func (d *WebhookDispatcher) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

type webhookDelivery struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	EventID    string          `json:"event_id,omitempty"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
}

func (d *WebhookDispatcher) post(ctx context.Context, hook config.Webhook, row domain.Activity) error {
	payload := json.RawMessage("{}")
	if json.Valid([]byte(row.Payload)) {
		payload = json.RawMessage(row.Payload)
	}
	data, err := json.Marshal(webhookDelivery{
		ID:         row.ID,
		Type:       row.Type,
		EventID:    row.EventID,
		EntityKind: row.EntityKind,
		EntityID:   row.EntityID,
		ActorID:    row.ActorID,
		TS:         row.TS,
		Payload:    payload,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Eventline-Type", row.Type)
	req.Header.Set("X-Eventline-Delivery", fmt.Sprintf("%d", row.ID))
	if hook.Secret != "" {
		req.Header.Set("X-Eventline-Signature", "sha256="+Sign(hook.Secret, data))
	}
	res, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret, as sent in
// X-Eventline-Signature.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
