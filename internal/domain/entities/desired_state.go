package entities

import "time"

// DesiredStateStatus는 중앙 저장소에 기록된 원하는 상태 문서의 처리 상태입니다
type DesiredStateStatus string

const (
	DesiredStatePending DesiredStateStatus = "pending"
	DesiredStateApplied DesiredStateStatus = "applied"
	DesiredStateFailed  DesiredStateStatus = "failed"
)

// DesiredStateRecord는 서비스 모드에서 노드별로 적용할 원하는 상태 문서
// 하나를 나타냅니다. Document는 YAML 직렬화된 NetworkState입니다
type DesiredStateRecord struct {
	ID        int
	NodeName  string
	Document  []byte
	Status    DesiredStateStatus
	UpdatedAt time.Time
}

// ParseDocument는 레코드의 문서를 NetworkState로 역직렬화합니다
func (r *DesiredStateRecord) ParseDocument() (*NetworkState, error) {
	return ParseNetworkState(r.Document)
}
