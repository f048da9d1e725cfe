package ical

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"deadline-desk/backend/config"
	pkgerrors "deadline-desk/backend/pkg/errors"
)

// Fetcher 通过 HTTP 拉取远程日历源
// webcal:// 按 https:// 拉取；响应体超过 maxSize 视为失败
type Fetcher struct {
	client  *http.Client
	maxSize int64
	logger  *zap.Logger
}

// NewFetcher 创建日历源拉取器
func NewFetcher(cfg *config.ICalConfig, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		client:  &http.Client{Timeout: cfg.FetchTimeout},
		maxSize: cfg.MaxSizeBytes,
		logger:  logger,
	}
}

// Fetch 拉取日历源原文，所有失败均为 Fetch 类错误
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	url = normalizeURL(url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", pkgerrors.Fetch("fetch feed", err)
	}
	req.Header.Set("Accept", "text/calendar, text/plain;q=0.9, */*;q=0.5")
	req.Header.Set("User-Agent", "deadline-desk/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", pkgerrors.Fetch("fetch feed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", pkgerrors.Fetch("fetch feed", fmt.Errorf("日历源返回状态码 %d", resp.StatusCode))
	}

	var body io.Reader = resp.Body
	if f.maxSize > 0 {
		body = io.LimitReader(resp.Body, f.maxSize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", pkgerrors.Fetch("read feed", err)
	}
	if f.maxSize > 0 && int64(len(data)) > f.maxSize {
		return "", pkgerrors.Fetch("read feed", fmt.Errorf("日历源超过 %d 字节", f.maxSize))
	}

	f.logger.Debug("日历源已拉取", zap.Int("bytes", len(data)))
	return string(data), nil
}

func normalizeURL(url string) string {
	url = strings.TrimSpace(url)
	if len(url) >= len("webcal://") && strings.EqualFold(url[:len("webcal://")], "webcal://") {
		return "https://" + url[len("webcal://"):]
	}
	return url
}
