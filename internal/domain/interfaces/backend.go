package interfaces

import (
	"context"

	"github.com/ihuguet/nmstate/internal/domain/entities"
)

// NetworkBackend는 OS 네트워크 스택을 실제로 프로그래밍하는 능력 인터페이스
// 입니다. 엔진 코어는 이 좁은 동사 집합만 사용하므로 가짜 백엔드로 완전히
// 단위 테스트할 수 있습니다.
//
// 개별 호출은 엔진 관점에서 원자적으로 취급되며, 진행 중인 호출의 취소는
// 지원하지 않습니다
type NetworkBackend interface {
	// ReadState는 현재 네트워크 상태의 스냅샷을 반환합니다. 부수 효과가
	// 없습니다
	ReadState(ctx context.Context) (*entities.NetworkState, error)

	// CreateInterface는 새 인터페이스를 생성하고 링크 속성을 프로그래밍합니다
	CreateInterface(ctx context.Context, iface entities.Interface) error

	// ModifyInterface는 존재하는 인터페이스의 링크 속성을 변경합니다
	ModifyInterface(ctx context.Context, iface entities.Interface) error

	// DeleteInterface는 인터페이스를 삭제합니다. 이미 없으면 성공으로
	// 취급합니다
	DeleteInterface(ctx context.Context, name string) error

	// SetAddresses는 인터페이스의 IP 주소 집합을 원하는 설정과 일치시킵니다.
	// nil 섹션은 해당 패밀리를 건드리지 않습니다
	SetAddresses(ctx context.Context, name string, ipv4, ipv6 *entities.IPConfig) error

	// AddRoute는 라우트를 추가합니다
	AddRoute(ctx context.Context, route entities.Route) error

	// DeleteRoute는 매칭 키(destination, next-hop-interface, table)와 일치하는
	// 라우트들을 제거합니다
	DeleteRoute(ctx context.Context, route entities.Route) error

	// AddRouteRule은 정책 라우팅 규칙을 추가합니다
	AddRouteRule(ctx context.Context, rule entities.RouteRule) error

	// DeleteRouteRule은 일치하는 정책 라우팅 규칙들을 제거합니다
	DeleteRouteRule(ctx context.Context, rule entities.RouteRule) error

	// SetDNS는 DNS 리졸버 설정을 교체합니다. 빈 목록은 전체 제거입니다
	SetDNS(ctx context.Context, config entities.DNSConfig) error
}
