package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ihuguet/nmstate/internal/domain/errors"
	"github.com/ihuguet/nmstate/internal/domain/interfaces"
)

// CommitCheckpointUseCase는 commit 대기 체크포인트를 확정합니다
type CommitCheckpointUseCase struct {
	checkpoints interfaces.CheckpointStore
	clock       interfaces.Clock
	logger      *logrus.Logger
}

// NewCommitCheckpointUseCase는 새로운 CommitCheckpointUseCase를 생성합니다
func NewCommitCheckpointUseCase(checkpoints interfaces.CheckpointStore, clock interfaces.Clock, logger *logrus.Logger) *CommitCheckpointUseCase {
	return &CommitCheckpointUseCase{
		checkpoints: checkpoints,
		clock:       clock,
		logger:      logger,
	}
}

// Execute는 체크포인트를 커밋합니다. id가 비어 있으면 보류 중인 체크포인트를
// 대상으로 합니다. 기한이 지난 체크포인트는 커밋할 수 없습니다. 다음 적용
// 주기가 롤백으로 정리합니다
func (uc *CommitCheckpointUseCase) Execute(ctx context.Context, id string) error {
	checkpoint, err := uc.resolve(ctx, id)
	if err != nil {
		return err
	}

	if checkpoint.Expired(uc.clock.Now()) {
		return errors.NewConflictError(
			fmt.Sprintf("체크포인트 기한 만료: %s (기한 %s)",
				checkpoint.ID, checkpoint.Deadline.Format(time.RFC3339)))
	}

	if err := uc.checkpoints.Delete(ctx, checkpoint.ID); err != nil {
		return errors.NewSystemError("체크포인트 삭제 실패", err)
	}
	uc.logger.WithField("checkpoint", checkpoint.ID).Info("체크포인트 커밋 완료")
	return nil
}

func (uc *CommitCheckpointUseCase) resolve(ctx context.Context, id string) (*interfaces.Checkpoint, error) {
	if id == "" {
		pending, err := uc.checkpoints.Pending(ctx)
		if err != nil {
			return nil, errors.NewSystemError("체크포인트 조회 실패", err)
		}
		if pending == nil {
			return nil, errors.NewNotFoundError("보류 중인 체크포인트가 없음")
		}
		return pending, nil
	}

	checkpoint, err := uc.checkpoints.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return checkpoint, nil
}

// RollbackCheckpointUseCase는 체크포인트의 스냅샷으로 복원합니다
type RollbackCheckpointUseCase struct {
	checkpoints interfaces.CheckpointStore
	rollbackMgr *RollbackManager
	logger      *logrus.Logger
}

// NewRollbackCheckpointUseCase는 새로운 RollbackCheckpointUseCase를 생성합니다
func NewRollbackCheckpointUseCase(checkpoints interfaces.CheckpointStore, rollbackMgr *RollbackManager, logger *logrus.Logger) *RollbackCheckpointUseCase {
	return &RollbackCheckpointUseCase{
		checkpoints: checkpoints,
		rollbackMgr: rollbackMgr,
		logger:      logger,
	}
}

// Execute는 체크포인트 스냅샷으로 롤백합니다. id가 비어 있으면 보류 중인
// 체크포인트를 대상으로 합니다. 기한 만료 여부와 관계없이 명시적 롤백은
// 허용됩니다
func (uc *RollbackCheckpointUseCase) Execute(ctx context.Context, id string, timeout time.Duration) error {
	var checkpoint *interfaces.Checkpoint
	var err error

	if id == "" {
		checkpoint, err = uc.checkpoints.Pending(ctx)
		if err != nil {
			return errors.NewSystemError("체크포인트 조회 실패", err)
		}
		if checkpoint == nil {
			return errors.NewNotFoundError("보류 중인 체크포인트가 없음")
		}
	} else {
		checkpoint, err = uc.checkpoints.Load(ctx, id)
		if err != nil {
			return err
		}
	}

	uc.logger.WithField("checkpoint", checkpoint.ID).Info("체크포인트 롤백 시작")
	if err := uc.rollbackMgr.Rollback(ctx, checkpoint.Snapshot, timeout); err != nil {
		return err
	}
	if err := uc.checkpoints.Delete(ctx, checkpoint.ID); err != nil {
		return errors.NewSystemError("체크포인트 삭제 실패", err)
	}
	uc.logger.WithField("checkpoint", checkpoint.ID).Info("체크포인트 롤백 완료")
	return nil
}
