// Package slack posts run summaries to a Slack channel.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ai-things/clipcast/internal/utils"
)

const defaultAPIBase = "https://slack.com/api"

// PostMessage calls chat.postMessage and returns the message ts. A non-empty
// threadTS posts as a reply.
func PostMessage(ctx context.Context, client *http.Client, apiBase, botToken, channel, text, threadTS string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	if strings.TrimSpace(botToken) == "" {
		return "", errors.New("bot token missing")
	}
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("channel missing")
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("text missing")
	}

	payload := map[string]any{
		"channel": channel,
		"text":    text,
	}
	if threadTS != "" {
		payload["thread_ts"] = threadTS
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(apiBase, "/")+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+botToken)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("slack chat.postMessage status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var decoded struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
		TS    string `json:"ts"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("slack chat.postMessage decode: %w", err)
	}
	if !decoded.OK {
		if decoded.Error == "" {
			decoded.Error = "chat.postMessage failed"
		}
		return "", errors.New(decoded.Error)
	}
	return decoded.TS, nil
}

// Notifier posts to one channel with a bot token.
type Notifier struct {
	BotToken string
	Channel  string
	APIBase  string
	Client   *http.Client
}

// NewNotifier returns nil when token or channel is unset.
func NewNotifier(botToken, channel string) *Notifier {
	if strings.TrimSpace(botToken) == "" || strings.TrimSpace(channel) == "" {
		return nil
	}
	return &Notifier{
		BotToken: botToken,
		Channel:  channel,
		Client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (n *Notifier) Notify(ctx context.Context, text string) error {
	ts, err := PostMessage(ctx, n.Client, n.APIBase, n.BotToken, n.Channel, text, "")
	if err != nil {
		return err
	}
	utils.Debug("slack notified", "channel", n.Channel, "ts", ts)
	return nil
}
