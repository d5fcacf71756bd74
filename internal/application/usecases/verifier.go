package usecases

import (
	"fmt"
	"time"

	"context"

	"github.com/sirupsen/logrus"

	"github.com/ihuguet/nmstate/internal/domain/entities"
	"github.com/ihuguet/nmstate/internal/domain/errors"
	"github.com/ihuguet/nmstate/internal/domain/interfaces"
	"github.com/ihuguet/nmstate/internal/infrastructure/metrics"
)

const (
	// DefaultVerifyInterval은 검증 폴링 간격 기본값입니다
	DefaultVerifyInterval = 500 * time.Millisecond

	// DefaultVerifyTimeout은 검증 타임아웃 기본값입니다
	DefaultVerifyTimeout = 5 * time.Second
)

// Verifier는 적용 후 관측 상태가 원하는 상태와 일치하는지 확인합니다.
// DHCP 임대나 본드/브리지 포트 집결처럼 비동기로 완료되는 변경이 있으므로
// 타임아웃까지 반복 조회합니다. 폴링은 스케줄러에 양보하는 바운디드 대기이며
// busy-spin이 아닙니다
type Verifier struct {
	backend  interfaces.NetworkBackend
	clock    interfaces.Clock
	interval time.Duration
	logger   *logrus.Logger
}

// NewVerifier는 새로운 Verifier를 생성합니다. interval이 0 이하이면 기본값을
// 사용합니다
func NewVerifier(backend interfaces.NetworkBackend, clock interfaces.Clock, interval time.Duration, logger *logrus.Logger) *Verifier {
	if interval <= 0 {
		interval = DefaultVerifyInterval
	}
	return &Verifier{
		backend:  backend,
		clock:    clock,
		interval: interval,
		logger:   logger,
	}
}

// Verify는 타임아웃 내에 첫 완전 일치가 관측되면 성공합니다. 타임아웃이
// 지나면 마지막으로 관측된 불일치를 담은 MismatchError를 반환합니다
func (v *Verifier) Verify(ctx context.Context, desired *entities.NetworkState, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultVerifyTimeout
	}
	deadline := v.clock.Now().Add(timeout)
	started := v.clock.Now()

	var last []entities.Mismatch
	attempts := 0
	for {
		current, err := v.backend.ReadState(ctx)
		if err != nil {
			return err
		}
		attempts++

		last = entities.Match(desired, current)
		if len(last) == 0 {
			metrics.RecordVerification("match", v.clock.Now().Sub(started).Seconds())
			v.logger.WithField("attempts", attempts).Debug("상태 수렴 확인")
			return nil
		}

		if !v.clock.Now().Before(deadline) {
			break
		}

		timer := time.NewTimer(v.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.NewTimeoutError("검증 대기 중 취소됨: " + ctx.Err().Error())
		case <-timer.C:
		}
	}

	metrics.RecordVerification("mismatch", v.clock.Now().Sub(started).Seconds())
	v.logger.WithFields(logrus.Fields{
		"attempts":   attempts,
		"mismatches": len(last),
	}).Warn("타임아웃까지 상태가 수렴하지 않음")

	return errors.NewMismatchError(
		fmt.Sprintf("%v 내에 관측 상태가 원하는 상태와 일치하지 않음", timeout),
		fmt.Errorf("%s", entities.FormatMismatches(last)),
	)
}
