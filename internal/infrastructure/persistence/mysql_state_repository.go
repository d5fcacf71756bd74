package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/ihuguet/nmstate/internal/domain/entities"
	"github.com/ihuguet/nmstate/internal/domain/errors"
	"github.com/ihuguet/nmstate/internal/domain/interfaces"
	"github.com/ihuguet/nmstate/internal/infrastructure/metrics"
)

// MySQLStateRepository는 MySQL 기반의 DesiredStateRepository 구현체입니다.
// node_network_state 테이블에서 노드별 원하는 상태 문서를 읽어 옵니다
type MySQLStateRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

// NewMySQLStateRepository는 새로운 MySQLStateRepository를 생성합니다
func NewMySQLStateRepository(db *sql.DB, logger *logrus.Logger) interfaces.DesiredStateRepository {
	return &MySQLStateRepository{
		db:     db,
		logger: logger,
	}
}

// GetPendingStates는 특정 노드의 적용 대기 중인 상태 문서들을 갱신 시각
// 순으로 조회합니다
func (r *MySQLStateRepository) GetPendingStates(ctx context.Context, nodeName string) ([]entities.DesiredStateRecord, error) {
	query := `
		SELECT id, node_name, state_document, status, updated_at
		FROM node_network_state
		WHERE status = 'pending'
		AND node_name = ?
		AND deleted_at IS NULL
		ORDER BY updated_at ASC
		LIMIT 10
	`

	started := time.Now()
	rows, err := r.db.QueryContext(ctx, query, nodeName)
	metrics.RecordDBQuery("get_pending", time.Since(started).Seconds())
	if err != nil {
		return nil, errors.NewSystemError("데이터베이스 조회 실패", err)
	}
	defer rows.Close()

	var records []entities.DesiredStateRecord

	for rows.Next() {
		var record entities.DesiredStateRecord
		var status string
		var updatedAt sql.NullTime

		err := rows.Scan(
			&record.ID,
			&record.NodeName,
			&record.Document,
			&status,
			&updatedAt,
		)
		if err != nil {
			r.logger.WithError(err).Error("행 스캔 실패")
			continue
		}

		record.Status = entities.DesiredStateStatus(status)
		if updatedAt.Valid {
			record.UpdatedAt = updatedAt.Time
		}
		records = append(records, record)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.NewSystemError("결과 처리 중 오류", err)
	}

	return records, nil
}

// UpdateStateStatus는 상태 문서의 처리 결과와 에러 메시지를 기록합니다
func (r *MySQLStateRepository) UpdateStateStatus(ctx context.Context, id int, status entities.DesiredStateStatus, message string) error {
	query := `
		UPDATE node_network_state
		SET status = ?, error_message = ?, applied_at = NOW()
		WHERE id = ?
	`

	started := time.Now()
	result, err := r.db.ExecContext(ctx, query, string(status), message, id)
	metrics.RecordDBQuery("update_status", time.Since(started).Seconds())
	if err != nil {
		return errors.NewSystemError("상태 업데이트 실패", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewSystemError("영향받은 행 확인 실패", err)
	}

	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("상태 문서를 찾을 수 없음: ID=%d", id))
	}

	r.logger.WithFields(logrus.Fields{
		"state_id": id,
		"status":   status,
	}).Info("상태 문서 결과 기록 완료")

	return nil
}
