package utils

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig는 재시도 설정
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig는 기본 재시도 설정
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:  3,
	InitialDelay: 1 * time.Second,
	MaxDelay:     30 * time.Second,
	Multiplier:   2.0,
}

// RetryWithBackoff는 지수 백오프를 사용해 작업을 재시도합니다. 서비스 기동
// 시점의 데이터베이스 연결처럼 일시적으로 실패할 수 있는 작업에 사용합니다
func RetryWithBackoff(ctx context.Context, config RetryConfig, operation func() error) error {
	delay := config.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		lastErr = operation()
		if lastErr == nil {
			return nil
		}

		if attempt == config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay = time.Duration(float64(delay) * config.Multiplier)
			if delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}
	}

	return fmt.Errorf("최대 재시도 횟수 초과 (%d회): %w", config.MaxAttempts, lastErr)
}
