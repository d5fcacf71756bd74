package usecases

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ihuguet/nmstate/internal/domain/entities"
	"github.com/ihuguet/nmstate/internal/domain/errors"
	"github.com/ihuguet/nmstate/internal/domain/interfaces"
	"github.com/ihuguet/nmstate/internal/domain/services"
	"github.com/ihuguet/nmstate/internal/infrastructure/metrics"
)

// RollbackManager는 검증 실패 시 적용 전 스냅샷을 복원합니다.
// 롤백은 동일한 적용/검증 파이프라인을 통해 한 번만 시도되며 재귀하지
// 않습니다. 롤백 자체가 수렴하지 못하면 RollbackFailed로 종결되고 운영자의
// 개입이 필요합니다
type RollbackManager struct {
	backend  interfaces.NetworkBackend
	differ   *services.Differ
	applier  *Applier
	verifier *Verifier
	ignore   *IgnoreFilter
	logger   *logrus.Logger
}

// NewRollbackManager는 새로운 RollbackManager를 생성합니다
func NewRollbackManager(
	backend interfaces.NetworkBackend,
	differ *services.Differ,
	applier *Applier,
	verifier *Verifier,
	ignore *IgnoreFilter,
	logger *logrus.Logger,
) *RollbackManager {
	return &RollbackManager{
		backend:  backend,
		differ:   differ,
		applier:  applier,
		verifier: verifier,
		ignore:   ignore,
		logger:   logger,
	}
}

// Rollback은 스냅샷을 완전한 원하는 상태로 취급하여 복원합니다. 실패한
// 적용이 만든 새 엔터티(스냅샷에 없는 인터페이스/라우트/규칙)는 제거
// 지시로 보강되어 함께 되돌려집니다
func (m *RollbackManager) Rollback(ctx context.Context, snapshot *entities.NetworkState, timeout time.Duration) error {
	m.logger.Warn("적용 전 스냅샷으로 롤백 시작")

	current, err := m.backend.ReadState(ctx)
	if err != nil {
		metrics.RecordRollback("failed")
		return errors.NewRollbackFailedError("롤백 중 현재 상태 조회 실패", err)
	}
	m.ignore.FilterState(current)

	desired := m.exhaustiveDesired(snapshot, current)

	cs := m.differ.Diff(current, desired)
	if !cs.IsEmpty() {
		if err := m.applier.Apply(ctx, cs); err != nil {
			metrics.RecordRollback("failed")
			return errors.NewRollbackFailedError("스냅샷 재적용 실패", err)
		}
	}

	if err := m.verifier.Verify(ctx, desired, timeout); err != nil {
		metrics.RecordRollback("failed")
		return errors.NewRollbackFailedError("롤백 후에도 상태가 수렴하지 않음", err)
	}

	metrics.RecordRollback("success")
	m.logger.Info("롤백 완료")
	return nil
}

// exhaustiveDesired는 스냅샷을 배타적 상태로 확장합니다: 현재 존재하지만
// 스냅샷에 없는 엔터티에 대한 제거 지시를 추가합니다
func (m *RollbackManager) exhaustiveDesired(snapshot, current *entities.NetworkState) *entities.NetworkState {
	desired := snapshot.Clone()

	for i := range current.Interfaces {
		name := current.Interfaces[i].Name
		if !desired.HasInterface(name) {
			desired.Interfaces = append(desired.Interfaces, entities.Interface{
				Name:  name,
				State: entities.InterfaceStateAbsent,
			})
		}
	}

	snapRoutes := make(map[string]bool)
	for _, r := range desired.RouteConfig() {
		snapRoutes[r.Key()] = true
	}
	for _, r := range current.RouteConfig() {
		if snapRoutes[r.Key()] {
			continue
		}
		// 삭제 대상 인터페이스의 라우트는 링크와 함께 사라집니다
		if dep := desired.Interface(r.NextHopInterface); dep != nil && dep.IsAbsent() {
			continue
		}
		absent := r
		absent.State = entities.RouteStateAbsent
		if desired.Routes == nil {
			desired.Routes = &entities.Routes{}
		}
		desired.Routes.Config = append(desired.Routes.Config, absent)
	}

	snapRules := make(map[string]bool)
	for _, r := range desired.RuleConfig() {
		snapRules[r.Key()] = true
	}
	for _, r := range current.RuleConfig() {
		if snapRules[r.Key()] {
			continue
		}
		absent := r
		absent.State = entities.RouteStateAbsent
		if desired.RouteRules == nil {
			desired.RouteRules = &entities.RouteRules{}
		}
		desired.RouteRules.Config = append(desired.RouteRules.Config, absent)
	}

	return desired
}
