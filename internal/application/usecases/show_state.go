package usecases

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ihuguet/nmstate/internal/domain/entities"
	"github.com/ihuguet/nmstate/internal/domain/interfaces"
)

// ShowStateUseCase는 백엔드의 현재 상태를 보고용으로 조회합니다
type ShowStateUseCase struct {
	backend interfaces.NetworkBackend
	ignore  *IgnoreFilter
	logger  *logrus.Logger
}

// NewShowStateUseCase는 새로운 ShowStateUseCase를 생성합니다
func NewShowStateUseCase(backend interfaces.NetworkBackend, ignore *IgnoreFilter, logger *logrus.Logger) *ShowStateUseCase {
	return &ShowStateUseCase{
		backend: backend,
		ignore:  ignore,
		logger:  logger,
	}
}

// Execute는 무시 목록을 적용하고 결정적 순서로 정렬된 현재 상태를 반환합니다
func (uc *ShowStateUseCase) Execute(ctx context.Context) (*entities.NetworkState, error) {
	state, err := uc.backend.ReadState(ctx)
	if err != nil {
		return nil, err
	}
	uc.ignore.FilterState(state)
	state.SortForOutput()

	uc.logger.WithField("interfaces", len(state.Interfaces)).Debug("현재 상태 조회 완료")
	return state, nil
}
