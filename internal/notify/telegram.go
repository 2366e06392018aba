package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"bilancio/internal/log"
)

const defaultTelegramURL = "https://api.telegram.org"

// ErrRejected is returned when Telegram refuses a message. Retrying the same
// request cannot succeed.
var ErrRejected = errors.New("telegram rejected the message")

type TelegramOptions struct {
	Token   string
	ChatID  string
	BaseURL string

	HTTPClient   *http.Client
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// TelegramNotifier posts reminders through the Bot API sendMessage method.
type TelegramNotifier struct {
	endpoint string
	chatID   string
	client   *retryablehttp.Client
	logger   *log.Logger
}

func NewTelegramNotifier(opts TelegramOptions, logger *log.Logger) (*TelegramNotifier, error) {
	if strings.TrimSpace(opts.Token) == "" || strings.TrimSpace(opts.ChatID) == "" {
		return nil, errors.New("telegram needs a bot token and a chat id")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultTelegramURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.WithComponent(log.ComponentNotify)

	client := retryablehttp.NewClient()
	client.HTTPClient = opts.HTTPClient
	client.Logger = logger
	if opts.RetryMax > 0 {
		client.RetryMax = opts.RetryMax
	}
	if opts.RetryWaitMin > 0 {
		client.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		client.RetryWaitMax = opts.RetryWaitMax
	}

	return &TelegramNotifier{
		endpoint: strings.TrimRight(opts.BaseURL, "/") + "/bot" + opts.Token + "/sendMessage",
		chatID:   opts.ChatID,
		client:   client,
		logger:   logger,
	}, nil
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (n *TelegramNotifier) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: n.chatID, Text: text, DisableWebPagePreview: true})
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		// The URL carries the token; keep it out of the error.
		return errors.New("telegram request failed: " + redact(err.Error(), n.endpoint))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}
	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return errors.Wrapf(err, "failed to parse response (status %d)", resp.StatusCode)
	}
	if !out.OK {
		return errors.Wrapf(ErrRejected, "status %d: %s", resp.StatusCode, out.Description)
	}

	n.logger.InfoContext(ctx, "Reminder sent to Telegram", log.FieldOperation, log.OpNotify)
	return nil
}

func redact(s, endpoint string) string {
	return strings.ReplaceAll(s, endpoint, "<telegram sendMessage>")
}
