package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// MailClient 邮件投递接口（OTP 验证码出站投递）
type MailClient interface {
	SendOtpEmail(ctx context.Context, to, code, purpose string) error
}

// MailRelayRequest 邮件中继 API 请求
type MailRelayRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// MailRelayResponse 邮件中继 API 响应
type MailRelayResponse struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
}

// RelayMailClient 邮件中继 HTTP 客户端
// 投递是 login step 1 的必经副作用：投递失败必须使整个 step 1 失败，不允许静默降级
type RelayMailClient struct {
	httpClient *resty.Client
	from       string
	logger     *zap.Logger
}

// NewRelayMailClient 创建邮件中继客户端
func NewRelayMailClient(baseURL, apiKey, from string, logger *zap.Logger) *RelayMailClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if apiKey != "" {
		client.SetHeader("Authorization", "Bearer "+apiKey)
	}

	return &RelayMailClient{
		httpClient: client,
		from:       from,
		logger:     logger,
	}
}

var _ MailClient = (*RelayMailClient)(nil)

// SendOtpEmail 投递 OTP 验证码邮件
func (c *RelayMailClient) SendOtpEmail(ctx context.Context, to, code, purpose string) error {
	request := MailRelayRequest{
		From:    c.from,
		To:      to,
		Subject: fmt.Sprintf("%s OTP Code", purpose),
		Text:    fmt.Sprintf("Your %s OTP code is: %s. It will expire in 5 minutes.", purpose, code),
	}

	var response MailRelayResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		Post("/api/v1/messages")

	if err != nil {
		c.logger.Error("Mail relay call failed",
			zap.Error(err),
			zap.String("purpose", purpose),
		)
		return fmt.Errorf("failed to call mail relay: %w", err)
	}

	if resp.IsError() || response.Status != 0 {
		c.logger.Error("Mail relay returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.Int("status", response.Status),
			zap.String("msg", response.Msg),
		)
		return fmt.Errorf("mail relay error: %s (status: %d)", response.Msg, response.Status)
	}

	return nil
}
