package interfaces

import (
	"context"
	"time"

	"github.com/ihuguet/nmstate/internal/domain/entities"
)

// Checkpoint는 적용 직전에 캡처한 전체 현재 상태의 불변 스냅샷입니다.
// 하나의 적용 주기가 끝날 때까지(성공 또는 롤백) 롤백 관리자가 소유하며,
// commit 없이 적용된 경우에는 Deadline까지 저장소에 보관됩니다
type Checkpoint struct {
	ID        string                 `yaml:"id" json:"id"`
	CreatedAt time.Time              `yaml:"created-at" json:"created-at"`
	Deadline  time.Time              `yaml:"deadline" json:"deadline"`
	Snapshot  *entities.NetworkState `yaml:"snapshot" json:"snapshot"`
}

// Expired는 체크포인트 보관 기한이 지났는지 확인합니다
func (c *Checkpoint) Expired(now time.Time) bool {
	return now.After(c.Deadline)
}

// CheckpointStore는 commit 대기 중인 체크포인트의 저장소 인터페이스입니다.
// 한 번에 하나의 보류 체크포인트만 존재합니다
type CheckpointStore interface {
	// Save는 체크포인트를 저장합니다
	Save(ctx context.Context, checkpoint *Checkpoint) error

	// Load는 ID로 체크포인트를 조회합니다. 없으면 NotFound 에러입니다
	Load(ctx context.Context, id string) (*Checkpoint, error)

	// Pending은 보류 중인 체크포인트를 반환합니다. 없으면 (nil, nil)입니다
	Pending(ctx context.Context) (*Checkpoint, error)

	// Delete는 체크포인트를 제거합니다
	Delete(ctx context.Context, id string) error
}

// DesiredStateRepository는 서비스 모드가 소비하는 노드별 원하는 상태 문서의
// 중앙 저장소 인터페이스입니다
type DesiredStateRepository interface {
	// GetPendingStates는 특정 노드의 적용 대기 중인 상태 문서들을 조회합니다
	GetPendingStates(ctx context.Context, nodeName string) ([]entities.DesiredStateRecord, error)

	// UpdateStateStatus는 상태 문서의 처리 결과를 기록합니다
	UpdateStateStatus(ctx context.Context, id int, status entities.DesiredStateStatus, message string) error
}
