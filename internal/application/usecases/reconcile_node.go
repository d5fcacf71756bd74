package usecases

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ihuguet/nmstate/internal/domain/entities"
	"github.com/ihuguet/nmstate/internal/domain/interfaces"
	"github.com/ihuguet/nmstate/internal/infrastructure/metrics"
)

// ReconcileResult는 한 번의 조정 주기의 처리 결과입니다
type ReconcileResult struct {
	// Processed는 이번 주기에 처리한 상태 문서의 수입니다
	Processed int

	// Applied는 성공적으로 적용된 문서의 수입니다
	Applied int

	// Failed는 적용에 실패한 문서의 수입니다
	Failed int
}

// HasWork는 이번 주기에 처리할 문서가 있었는지를 나타냅니다
func (r *ReconcileResult) HasWork() bool {
	return r.Processed > 0
}

// ReconcileNodeUseCase는 중앙 저장소에서 이 노드의 원하는 상태 문서를 가져와
// 순서대로 적용하고 결과를 보고하는 서비스 모드의 핵심 유스케이스입니다
type ReconcileNodeUseCase struct {
	repository interfaces.DesiredStateRepository
	applyState *ApplyStateUseCase
	nodeName   string
	logger     *logrus.Logger
}

// NewReconcileNodeUseCase는 새로운 ReconcileNodeUseCase를 생성합니다
func NewReconcileNodeUseCase(
	repository interfaces.DesiredStateRepository,
	applyState *ApplyStateUseCase,
	nodeName string,
	logger *logrus.Logger,
) *ReconcileNodeUseCase {
	return &ReconcileNodeUseCase{
		repository: repository,
		applyState: applyState,
		nodeName:   nodeName,
		logger:     logger,
	}
}

// Execute는 한 번의 조정 주기를 수행합니다. 문서 단위 실패는 상태 보고 후
// 다음 문서로 진행하며, 저장소 접근 실패만 주기 전체의 에러가 됩니다
func (uc *ReconcileNodeUseCase) Execute(ctx context.Context) (*ReconcileResult, error) {
	records, err := uc.repository.GetPendingStates(ctx, uc.nodeName)
	if err != nil {
		metrics.RecordError("repository")
		return nil, err
	}

	result := &ReconcileResult{}
	for _, record := range records {
		result.Processed++

		if err := uc.reconcileRecord(ctx, record); err != nil {
			result.Failed++
			uc.logger.WithError(err).WithFields(logrus.Fields{
				"state_id": record.ID,
				"node":     record.NodeName,
			}).Error("상태 문서 적용 실패")
			continue
		}
		result.Applied++
	}

	metrics.RecordReconcileCycle(result.Applied, result.Failed)
	if result.HasWork() {
		uc.logger.WithFields(logrus.Fields{
			"processed": result.Processed,
			"applied":   result.Applied,
			"failed":    result.Failed,
		}).Info("조정 주기 완료")
	}
	return result, nil
}

func (uc *ReconcileNodeUseCase) reconcileRecord(ctx context.Context, record entities.DesiredStateRecord) error {
	desired, err := record.ParseDocument()
	if err != nil {
		uc.reportStatus(ctx, record.ID, entities.DesiredStateFailed, err.Error())
		return err
	}

	if _, err := uc.applyState.Execute(ctx, desired, DefaultApplyOptions()); err != nil {
		uc.reportStatus(ctx, record.ID, entities.DesiredStateFailed, err.Error())
		return err
	}

	uc.reportStatus(ctx, record.ID, entities.DesiredStateApplied, "")
	return nil
}

// reportStatus는 처리 결과를 저장소에 기록합니다. 보고 실패는 적용 결과를
// 바꾸지 않으므로 로그만 남깁니다
func (uc *ReconcileNodeUseCase) reportStatus(ctx context.Context, id int, status entities.DesiredStateStatus, message string) {
	if err := uc.repository.UpdateStateStatus(ctx, id, status, message); err != nil {
		uc.logger.WithError(err).WithField("state_id", id).Warn("상태 보고 실패")
	}
}
