package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Telegram posts messages through the bot sendMessage API.
type Telegram struct {
	Token  string
	ChatID string
	Client *http.Client
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, message string) error {
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.Token)
	form := url.Values{"chat_id": {t.ChatID}, "text": {message}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return doJSON(httpClient(t.Client), req)
}

// WeCom posts to an enterprise WeChat group robot webhook.
type WeCom struct {
	WebhookURL string
	Client     *http.Client
}

func (w *WeCom) Name() string { return "wecom" }

func (w *WeCom) Send(ctx context.Context, message string) error {
	body := map[string]any{
		"msgtype": "text",
		"text":    map[string]string{"content": message},
	}
	return postJSON(ctx, httpClient(w.Client), w.WebhookURL, body)
}

// PushPlus posts to the pushplus.plus token API.
type PushPlus struct {
	Token  string
	Client *http.Client
}

func (p *PushPlus) Name() string { return "pushplus" }

func (p *PushPlus) Send(ctx context.Context, message string) error {
	body := map[string]string{
		"token":   p.Token,
		"title":   "hostbeat",
		"content": message,
	}
	return postJSON(ctx, httpClient(p.Client), "https://www.pushplus.plus/send", body)
}

func httpClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return http.DefaultClient
}

func postJSON(ctx context.Context, client *http.Client, endpoint string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return doJSON(client, req)
}

func doJSON(client *http.Client, req *http.Request) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: unexpected status %d", req.URL.Host, resp.StatusCode)
	}
	return nil
}
