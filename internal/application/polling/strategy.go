package polling

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ihuguet/nmstate/internal/infrastructure/metrics"
)

// Outcome은 한 번의 조정 주기의 결과 요약입니다
type Outcome struct {
	// HasWork는 이번 주기에 처리한 상태 문서가 있었는지를 나타냅니다
	HasWork bool
	// Err은 주기 전체를 실패시킨 에러입니다 (저장소 접근 불가 등)
	Err error
}

// Strategy는 폴링 전략 인터페이스입니다
type Strategy interface {
	// NextInterval은 다음 폴링까지의 대기 시간을 반환합니다
	NextInterval(outcome Outcome) time.Duration
	// Reset은 폴링 전략을 초기 상태로 리셋합니다
	Reset()
}

// ExponentialBackoffStrategy는 주기 실패 시 지수적으로 간격을 늘리는 폴링
// 전략입니다. 데이터베이스 장애 중에 중앙 저장소를 두드리는 빈도를
// 줄입니다
type ExponentialBackoffStrategy struct {
	baseInterval   time.Duration
	maxInterval    time.Duration
	multiplier     float64
	currentBackoff int
	logger         *logrus.Logger
}

// NewExponentialBackoffStrategy는 새로운 지수 백오프 전략을 생성합니다
func NewExponentialBackoffStrategy(
	baseInterval time.Duration,
	maxInterval time.Duration,
	multiplier float64,
	logger *logrus.Logger,
) *ExponentialBackoffStrategy {
	if multiplier <= 1 {
		multiplier = 2.0
	}

	return &ExponentialBackoffStrategy{
		baseInterval: baseInterval,
		maxInterval:  maxInterval,
		multiplier:   multiplier,
		logger:       logger,
	}
}

// NextInterval은 다음 폴링까지의 대기 시간을 계산합니다
func (s *ExponentialBackoffStrategy) NextInterval(outcome Outcome) time.Duration {
	if outcome.Err == nil {
		if s.currentBackoff > 0 {
			s.logger.Debug("주기 성공, 백오프 리셋")
			s.currentBackoff = 0
			metrics.SetBackoffLevel(0)
		}
		return s.baseInterval
	}

	s.currentBackoff++
	metrics.SetBackoffLevel(float64(s.currentBackoff))

	backoff := float64(s.baseInterval) * math.Pow(s.multiplier, float64(s.currentBackoff-1))
	nextInterval := time.Duration(backoff)
	if nextInterval > s.maxInterval {
		nextInterval = s.maxInterval
	}

	s.logger.WithFields(logrus.Fields{
		"backoff_count": s.currentBackoff,
		"next_interval": nextInterval,
		"max_interval":  s.maxInterval,
	}).Debug("지수 백오프 계산")

	return nextInterval
}

// Reset은 백오프 카운터를 리셋합니다
func (s *ExponentialBackoffStrategy) Reset() {
	s.currentBackoff = 0
	metrics.SetBackoffLevel(0)
}

// AdaptiveStrategy는 처리할 문서의 유무에 따라 폴링 간격을 조정하는
// 전략입니다. 문서가 연이어 도착하면 빠르게, 오래 한가하면 idle 간격으로
// 수렴합니다
type AdaptiveStrategy struct {
	minInterval      time.Duration
	maxInterval      time.Duration
	idleInterval     time.Duration
	workStreak       int
	idleStreak       int
	thresholdForSlow int
	thresholdForFast int
	currentInterval  time.Duration
	logger           *logrus.Logger
}

// NewAdaptiveStrategy는 새로운 적응형 폴링 전략을 생성합니다
func NewAdaptiveStrategy(
	minInterval time.Duration,
	maxInterval time.Duration,
	idleInterval time.Duration,
	logger *logrus.Logger,
) *AdaptiveStrategy {
	return &AdaptiveStrategy{
		minInterval:      minInterval,
		maxInterval:      maxInterval,
		idleInterval:     idleInterval,
		thresholdForSlow: 5,
		thresholdForFast: 2,
		currentInterval:  minInterval,
		logger:           logger,
	}
}

// NextInterval은 작업량에 따라 다음 폴링 간격을 결정합니다
func (s *AdaptiveStrategy) NextInterval(outcome Outcome) time.Duration {
	if outcome.HasWork {
		s.workStreak++
		s.idleStreak = 0

		if s.workStreak >= s.thresholdForFast {
			s.currentInterval = s.minInterval
			s.logger.WithField("interval", s.currentInterval).Debug("작업 감지, 폴링 가속")
		}
		return s.currentInterval
	}

	s.idleStreak++
	s.workStreak = 0

	if s.idleStreak >= s.thresholdForSlow {
		if s.currentInterval < s.maxInterval {
			s.currentInterval = time.Duration(float64(s.currentInterval) * 1.5)
			if s.currentInterval > s.maxInterval {
				s.currentInterval = s.maxInterval
			}
		}

		if s.idleStreak >= s.thresholdForSlow*3 {
			s.currentInterval = s.idleInterval
		}

		s.logger.WithFields(logrus.Fields{
			"interval":    s.currentInterval,
			"idle_streak": s.idleStreak,
		}).Debug("작업 없음, 폴링 감속")
	}

	return s.currentInterval
}

// Reset은 전략을 초기 상태로 리셋합니다
func (s *AdaptiveStrategy) Reset() {
	s.workStreak = 0
	s.idleStreak = 0
	s.currentInterval = s.minInterval
}

// Controller는 전략이 정하는 간격으로 조정 주기를 반복 실행합니다
type Controller struct {
	strategy Strategy
	logger   *logrus.Logger
}

// NewController는 새로운 폴링 컨트롤러를 생성합니다
func NewController(strategy Strategy, logger *logrus.Logger) *Controller {
	return &Controller{
		strategy: strategy,
		logger:   logger,
	}
}

// Run은 컨텍스트가 취소될 때까지 주기를 반복합니다. 첫 주기는 대기 없이
// 즉시 실행됩니다
func (c *Controller) Run(ctx context.Context, cycle func(context.Context) Outcome) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.C:
			outcome := cycle(ctx)
			if outcome.Err != nil {
				c.logger.WithError(outcome.Err).Error("조정 주기 실패")
			}
			timer.Reset(c.strategy.NextInterval(outcome))
		}
	}
}
