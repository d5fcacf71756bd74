package entities

import (
	"fmt"
	"strings"
)

// 라우팅 테이블 기본값 (main 테이블)
const DefaultRouteTable = 254

// RouteState는 라우트/규칙 항목의 상태입니다. 비어 있으면 존재 지시,
// "absent"면 삭제 지시입니다
type RouteState string

const RouteStateAbsent RouteState = "absent"

// Route는 라우트 하나의 선언적 설정입니다
type Route struct {
	State            RouteState `yaml:"state,omitempty" json:"state,omitempty" validate:"omitempty,oneof=absent"`
	Destination      string     `yaml:"destination,omitempty" json:"destination,omitempty"`
	NextHopAddress   string     `yaml:"next-hop-address,omitempty" json:"next-hop-address,omitempty"`
	NextHopInterface string     `yaml:"next-hop-interface,omitempty" json:"next-hop-interface,omitempty" validate:"required"`
	Metric           *int       `yaml:"metric,omitempty" json:"metric,omitempty"`
	TableID          *int       `yaml:"table-id,omitempty" json:"table-id,omitempty"`
}

// IsAbsent는 라우트가 삭제 지시인지 확인합니다
func (r Route) IsAbsent() bool {
	return r.State == RouteStateAbsent
}

// EffectiveTable은 테이블 ID를 반환합니다. 지정이 없으면 main 테이블입니다
func (r Route) EffectiveTable() int {
	if r.TableID != nil {
		return *r.TableID
	}
	return DefaultRouteTable
}

// MatchKey는 삭제 지시 매칭에 쓰이는 키입니다:
// destination + next-hop-interface + table
func (r Route) MatchKey() string {
	return fmt.Sprintf("%s|%s|%d", r.Destination, r.NextHopInterface, r.EffectiveTable())
}

// Key는 라우트의 완전한 동일성 키입니다:
// destination + next-hop-interface + table + next-hop-address
func (r Route) Key() string {
	return fmt.Sprintf("%s|%s", r.MatchKey(), r.NextHopAddress)
}

// String은 로그용 문자열 표현을 반환합니다
func (r Route) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s dev %s", r.Destination, r.NextHopInterface)
	if r.NextHopAddress != "" {
		fmt.Fprintf(&b, " via %s", r.NextHopAddress)
	}
	fmt.Fprintf(&b, " table %d", r.EffectiveTable())
	if r.Metric != nil {
		fmt.Fprintf(&b, " metric %d", *r.Metric)
	}
	if r.IsAbsent() {
		b.WriteString(" (absent)")
	}
	return b.String()
}

// RouteRule은 정책 라우팅 규칙 하나의 선언적 설정입니다
type RouteRule struct {
	State      RouteState `yaml:"state,omitempty" json:"state,omitempty" validate:"omitempty,oneof=absent"`
	Priority   *int       `yaml:"priority,omitempty" json:"priority,omitempty"`
	IPFrom     string     `yaml:"ip-from,omitempty" json:"ip-from,omitempty"`
	IPTo       string     `yaml:"ip-to,omitempty" json:"ip-to,omitempty"`
	RouteTable *int       `yaml:"route-table,omitempty" json:"route-table,omitempty"`
}

// IsAbsent는 규칙이 삭제 지시인지 확인합니다
func (r RouteRule) IsAbsent() bool {
	return r.State == RouteStateAbsent
}

// EffectiveTable은 대상 테이블 ID를 반환합니다
func (r RouteRule) EffectiveTable() int {
	if r.RouteTable != nil {
		return *r.RouteTable
	}
	return DefaultRouteTable
}

// EffectivePriority는 우선순위를 반환합니다. 미지정이면 -1입니다
func (r RouteRule) EffectivePriority() int {
	if r.Priority != nil {
		return *r.Priority
	}
	return -1
}

// Key는 규칙의 동일성 키입니다: priority + match 필드 + table
func (r RouteRule) Key() string {
	return fmt.Sprintf("%d|%s|%s|%d", r.EffectivePriority(), r.IPFrom, r.IPTo, r.EffectiveTable())
}

// String은 로그용 문자열 표현을 반환합니다
func (r RouteRule) String() string {
	from := r.IPFrom
	if from == "" {
		from = "all"
	}
	to := r.IPTo
	if to == "" {
		to = "all"
	}
	s := fmt.Sprintf("rule %d: from %s to %s -> table %d", r.EffectivePriority(), from, to, r.EffectiveTable())
	if r.IsAbsent() {
		s += " (absent)"
	}
	return s
}
