package usecases

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ihuguet/nmstate/internal/domain/entities"
	"github.com/ihuguet/nmstate/internal/domain/errors"
	"github.com/ihuguet/nmstate/internal/domain/interfaces"
	"github.com/ihuguet/nmstate/internal/domain/services"
	"github.com/ihuguet/nmstate/internal/infrastructure/metrics"
)

// DefaultCheckpointTimeout은 commit 없이 적용된 변경의 보관 기한 기본값입니다
const DefaultCheckpointTimeout = 60 * time.Second

// ApplyOptions는 적용 주기의 동작 옵션입니다
type ApplyOptions struct {
	// VerifyChange가 false면 검증과 롤백을 건너뜁니다. 성능을 위해, 또는
	// 현재 백엔드로 검증할 수 없는 상태를 위해 호출자가 명시적으로 안전
	// 장치를 끄는 것입니다
	VerifyChange bool

	// Commit이 false면 변경이 체크포인트로 남아 이후 commit 또는 rollback을
	// 기다립니다
	Commit bool

	// RollbackTimeout은 검증 폴링의 상한입니다. 0이면 기본값을 사용합니다
	RollbackTimeout time.Duration

	// CheckpointTimeout은 commit 대기 체크포인트의 보관 기한입니다.
	// 0이면 기본값을 사용합니다
	CheckpointTimeout time.Duration
}

// DefaultApplyOptions는 안전 장치가 모두 켜진 기본 옵션을 반환합니다
func DefaultApplyOptions() ApplyOptions {
	return ApplyOptions{
		VerifyChange:      true,
		Commit:            true,
		RollbackTimeout:   DefaultVerifyTimeout,
		CheckpointTimeout: DefaultCheckpointTimeout,
	}
}

// ApplyResult는 적용 주기의 최종 결과입니다
type ApplyResult struct {
	// Applied는 백엔드에 변경이 커밋되었는지를 나타냅니다
	Applied bool

	// NoChanges는 변경 집합이 비어 있었음을 나타냅니다
	NoChanges bool

	// ChangeCount는 적용된 변경 지시의 수입니다
	ChangeCount int

	// RolledBack은 실패 후 스냅샷 복원이 수행되었음을 나타냅니다
	RolledBack bool

	// CheckpointID는 commit=false로 적용된 경우의 체크포인트 식별자입니다
	CheckpointID string

	Duration time.Duration
}

// ApplyStateUseCase는 한 번의 적용 주기(diff → apply → verify → rollback)를
// 오케스트레이션하는 세션 객체입니다. 백엔드가 변경하는 커널 상태는 동시
// 변경에 안전하지 않으므로, 같은 네임스페이스를 향한 적용 요청은 이 객체의
// 뮤텍스 뒤에서 직렬화됩니다
type ApplyStateUseCase struct {
	mu sync.Mutex

	backend     interfaces.NetworkBackend
	normalizer  *entities.Normalizer
	differ      *services.Differ
	applier     *Applier
	verifier    *Verifier
	rollbackMgr *RollbackManager
	checkpoints interfaces.CheckpointStore
	ignore      *IgnoreFilter
	clock       interfaces.Clock
	logger      *logrus.Logger
}

// NewApplyStateUseCase는 새로운 ApplyStateUseCase를 생성합니다
func NewApplyStateUseCase(
	backend interfaces.NetworkBackend,
	normalizer *entities.Normalizer,
	differ *services.Differ,
	applier *Applier,
	verifier *Verifier,
	rollbackMgr *RollbackManager,
	checkpoints interfaces.CheckpointStore,
	ignore *IgnoreFilter,
	clock interfaces.Clock,
	logger *logrus.Logger,
) *ApplyStateUseCase {
	return &ApplyStateUseCase{
		backend:     backend,
		normalizer:  normalizer,
		differ:      differ,
		applier:     applier,
		verifier:    verifier,
		rollbackMgr: rollbackMgr,
		checkpoints: checkpoints,
		ignore:      ignore,
		clock:       clock,
		logger:      logger,
	}
}

// Execute는 부분 원하는 상태를 받아 하나의 적용 주기를 끝까지 수행합니다.
// 롤백이 수행된 경우에는 원인이 된 에러와 함께 RolledBack이 표시된 결과를
// 반환합니다
func (uc *ApplyStateUseCase) Execute(ctx context.Context, desired *entities.NetworkState, opts ApplyOptions) (*ApplyResult, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	started := uc.clock.Now()
	result := &ApplyResult{}

	if opts.RollbackTimeout <= 0 {
		opts.RollbackTimeout = DefaultVerifyTimeout
	}
	if opts.CheckpointTimeout <= 0 {
		opts.CheckpointTimeout = DefaultCheckpointTimeout
	}

	if err := uc.settlePendingCheckpoint(ctx, opts); err != nil {
		return nil, err
	}

	if desired == nil {
		return nil, errors.NewValidationError("원하는 상태가 비어 있음", nil)
	}
	if err := uc.ignore.CheckDesired(desired); err != nil {
		metrics.RecordError("validation")
		return nil, err
	}

	current, err := uc.backend.ReadState(ctx)
	if err != nil {
		metrics.RecordApply("failed", uc.clock.Now().Sub(started).Seconds())
		return nil, err
	}
	uc.ignore.FilterState(current)

	normalized, err := uc.normalizer.Normalize(desired, current)
	if err != nil {
		metrics.RecordError("validation")
		return nil, err
	}

	changeset := uc.differ.Diff(current, normalized)
	if changeset.IsEmpty() {
		uc.logger.Info("변경 사항 없음")
		result.NoChanges = true
		result.Duration = uc.clock.Now().Sub(started)
		metrics.RecordApply("no_changes", result.Duration.Seconds())
		return result, nil
	}
	result.ChangeCount = changeset.OperationCount()

	// 스냅샷 캡처는 모든 적용 쓰기보다 먼저 일어나야 합니다
	snapshot := current.Clone()

	uc.logger.WithField("operations", result.ChangeCount).Info("변경 집합 적용 시작")

	if applyErr := uc.applier.Apply(ctx, changeset); applyErr != nil {
		return uc.handleFailure(ctx, result, snapshot, opts, started, applyErr)
	}

	if opts.VerifyChange {
		if verifyErr := uc.verifier.Verify(ctx, normalized, opts.RollbackTimeout); verifyErr != nil {
			return uc.handleFailure(ctx, result, snapshot, opts, started, verifyErr)
		}
	}

	result.Applied = true

	if !opts.Commit {
		checkpoint := &interfaces.Checkpoint{
			ID:        fmt.Sprintf("nmstate-%d", uc.clock.Now().UnixNano()),
			CreatedAt: uc.clock.Now(),
			Deadline:  uc.clock.Now().Add(opts.CheckpointTimeout),
			Snapshot:  snapshot,
		}
		if err := uc.checkpoints.Save(ctx, checkpoint); err != nil {
			return nil, errors.NewSystemError("체크포인트 저장 실패", err)
		}
		result.CheckpointID = checkpoint.ID
		uc.logger.WithFields(logrus.Fields{
			"checkpoint": checkpoint.ID,
			"deadline":   checkpoint.Deadline,
		}).Info("commit 대기 체크포인트 저장")
	}

	result.Duration = uc.clock.Now().Sub(started)
	metrics.RecordApply("success", result.Duration.Seconds())
	uc.logger.WithField("duration", result.Duration).Info("적용 완료")
	return result, nil
}

// handleFailure는 적용 또는 검증 실패를 처리합니다. 안전 장치가 켜져 있으면
// 스냅샷으로 롤백하고, 꺼져 있으면 부분 상태를 그대로 둔 채 에러를
// 표면화합니다
func (uc *ApplyStateUseCase) handleFailure(
	ctx context.Context,
	result *ApplyResult,
	snapshot *entities.NetworkState,
	opts ApplyOptions,
	started time.Time,
	cause error,
) (*ApplyResult, error) {
	result.Duration = uc.clock.Now().Sub(started)
	metrics.RecordApply("failed", result.Duration.Seconds())

	if !opts.VerifyChange {
		uc.logger.WithError(cause).Error("적용 실패, 검증 비활성화로 부분 상태 유지")
		return result, cause
	}

	if rbErr := uc.rollbackMgr.Rollback(ctx, snapshot, opts.RollbackTimeout); rbErr != nil {
		// 치명적: 롤백이 수렴하지 않았으므로 수동 개입이 필요합니다
		uc.logger.WithError(rbErr).Error("롤백 실패")
		return result, rbErr
	}

	result.RolledBack = true
	return result, cause
}

// settlePendingCheckpoint는 보류 체크포인트를 정리합니다. 기한이 지난
// 체크포인트는 롤백되고, 아직 유효한 체크포인트가 있으면 새 적용을
// 거부합니다
func (uc *ApplyStateUseCase) settlePendingCheckpoint(ctx context.Context, opts ApplyOptions) error {
	pending, err := uc.checkpoints.Pending(ctx)
	if err != nil {
		return errors.NewSystemError("체크포인트 조회 실패", err)
	}
	if pending == nil {
		return nil
	}

	if !pending.Expired(uc.clock.Now()) {
		return errors.NewConflictError(
			fmt.Sprintf("commit 대기 중인 체크포인트가 있음: %s (기한 %s)",
				pending.ID, pending.Deadline.Format(time.RFC3339)))
	}

	uc.logger.WithField("checkpoint", pending.ID).
		Warn("기한이 지난 체크포인트를 롤백 후 진행")
	if err := uc.rollbackMgr.Rollback(ctx, pending.Snapshot, opts.RollbackTimeout); err != nil {
		return err
	}
	if err := uc.checkpoints.Delete(ctx, pending.ID); err != nil {
		return errors.NewSystemError("체크포인트 삭제 실패", err)
	}
	return nil
}
