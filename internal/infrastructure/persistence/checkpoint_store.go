package persistence

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ihuguet/nmstate/internal/domain/constants"
	"github.com/ihuguet/nmstate/internal/domain/errors"
	"github.com/ihuguet/nmstate/internal/domain/interfaces"
)

// FileCheckpointStore는 체크포인트를 YAML 파일로 보관하는 CheckpointStore
// 구현체입니다. 프로세스가 재시작되어도 commit 대기 체크포인트가 유지되어야
// 하므로 메모리가 아닌 파일에 저장합니다
type FileCheckpointStore struct {
	dir        string
	fileSystem interfaces.FileSystem
	logger     *logrus.Logger
}

// NewFileCheckpointStore는 새로운 FileCheckpointStore를 생성합니다.
// dir이 비어 있으면 기본 경로를 사용합니다
func NewFileCheckpointStore(dir string, fileSystem interfaces.FileSystem, logger *logrus.Logger) interfaces.CheckpointStore {
	if dir == "" {
		dir = constants.DefaultCheckpointDir
	}
	return &FileCheckpointStore{
		dir:        dir,
		fileSystem: fileSystem,
		logger:     logger,
	}
}

// Save는 체크포인트를 저장합니다
func (s *FileCheckpointStore) Save(ctx context.Context, checkpoint *interfaces.Checkpoint) error {
	data, err := yaml.Marshal(checkpoint)
	if err != nil {
		return errors.NewSystemError("체크포인트 직렬화 실패", err)
	}

	path := s.path(checkpoint.ID)
	if err := s.fileSystem.WriteFile(path, data, 0600); err != nil {
		return errors.NewSystemError(
			fmt.Sprintf("체크포인트 쓰기 실패: %s", path), err)
	}

	s.logger.WithField("checkpoint", checkpoint.ID).Debug("체크포인트 저장")
	return nil
}

// Load는 ID로 체크포인트를 조회합니다
func (s *FileCheckpointStore) Load(ctx context.Context, id string) (*interfaces.Checkpoint, error) {
	path := s.path(id)
	if !s.fileSystem.Exists(path) {
		return nil, errors.NewNotFoundError(fmt.Sprintf("체크포인트를 찾을 수 없음: %s", id))
	}

	data, err := s.fileSystem.ReadFile(path)
	if err != nil {
		return nil, errors.NewSystemError(
			fmt.Sprintf("체크포인트 읽기 실패: %s", path), err)
	}

	var checkpoint interfaces.Checkpoint
	if err := yaml.Unmarshal(data, &checkpoint); err != nil {
		return nil, errors.NewSystemError(
			fmt.Sprintf("체크포인트 역직렬화 실패: %s", path), err)
	}
	return &checkpoint, nil
}

// Pending은 보류 중인 체크포인트를 반환합니다. 여러 개가 남아 있으면 가장
// 최근 것을 보류 중으로 취급합니다
func (s *FileCheckpointStore) Pending(ctx context.Context) (*interfaces.Checkpoint, error) {
	if !s.fileSystem.Exists(s.dir) {
		return nil, nil
	}

	files, err := s.fileSystem.ListFiles(s.dir)
	if err != nil {
		return nil, errors.NewSystemError("체크포인트 디렉토리 조회 실패", err)
	}

	var newest *interfaces.Checkpoint
	for _, file := range files {
		if !strings.HasSuffix(file, ".yaml") {
			continue
		}
		id := strings.TrimSuffix(file, ".yaml")
		checkpoint, err := s.Load(ctx, id)
		if err != nil {
			s.logger.WithError(err).WithField("file", file).Warn("체크포인트 파일 손상, 건너뜀")
			continue
		}
		if newest == nil || checkpoint.CreatedAt.After(newest.CreatedAt) {
			newest = checkpoint
		}
	}
	return newest, nil
}

// Delete는 체크포인트를 제거합니다
func (s *FileCheckpointStore) Delete(ctx context.Context, id string) error {
	path := s.path(id)
	if !s.fileSystem.Exists(path) {
		return nil
	}
	if err := s.fileSystem.Remove(path); err != nil {
		return errors.NewSystemError(
			fmt.Sprintf("체크포인트 삭제 실패: %s", path), err)
	}
	s.logger.WithField("checkpoint", id).Debug("체크포인트 삭제")
	return nil
}

func (s *FileCheckpointStore) path(id string) string {
	return filepath.Join(s.dir, id+".yaml")
}
