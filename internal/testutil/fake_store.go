package testutil

import (
	"context"
	"sync"

	"github.com/ihuguet/nmstate/internal/domain/errors"
	"github.com/ihuguet/nmstate/internal/domain/interfaces"
)

// MemoryCheckpointStore는 테스트용 인메모리 CheckpointStore입니다
type MemoryCheckpointStore struct {
	mu          sync.Mutex
	checkpoints map[string]*interfaces.Checkpoint

	// SaveErr와 PendingErr는 주입할 실패입니다
	SaveErr    error
	PendingErr error
}

// NewMemoryCheckpointStore는 비어 있는 저장소를 생성합니다
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{checkpoints: make(map[string]*interfaces.Checkpoint)}
}

// Save는 체크포인트를 저장합니다
func (s *MemoryCheckpointStore) Save(ctx context.Context, checkpoint *interfaces.Checkpoint) error {
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[checkpoint.ID] = checkpoint
	return nil
}

// Load는 ID로 체크포인트를 조회합니다
func (s *MemoryCheckpointStore) Load(ctx context.Context, id string) (*interfaces.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	checkpoint, ok := s.checkpoints[id]
	if !ok {
		return nil, errors.NewNotFoundError("체크포인트를 찾을 수 없음: " + id)
	}
	return checkpoint, nil
}

// Pending은 가장 최근에 생성된 체크포인트를 반환합니다
func (s *MemoryCheckpointStore) Pending(ctx context.Context) (*interfaces.Checkpoint, error) {
	if s.PendingErr != nil {
		return nil, s.PendingErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var newest *interfaces.Checkpoint
	for _, checkpoint := range s.checkpoints {
		if newest == nil || checkpoint.CreatedAt.After(newest.CreatedAt) {
			newest = checkpoint
		}
	}
	return newest, nil
}

// Delete는 체크포인트를 제거합니다. 없어도 성공입니다
func (s *MemoryCheckpointStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, id)
	return nil
}

// Count는 저장된 체크포인트 수를 반환합니다
func (s *MemoryCheckpointStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.checkpoints)
}
