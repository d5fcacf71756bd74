package services

import (
	"github.com/sirupsen/logrus"

	"github.com/ihuguet/nmstate/internal/domain/entities"
)

// ChangeSet은 현재 상태를 원하는 상태로 옮기기 위한 최소 변경 지시 집합입니다
type ChangeSet struct {
	InterfacesToAdd    []entities.Interface
	InterfacesToModify []entities.Interface
	InterfacesToDelete []entities.Interface

	RoutesToAdd    []entities.Route
	RoutesToDelete []entities.Route

	RulesToAdd    []entities.RouteRule
	RulesToDelete []entities.RouteRule

	// DNS는 nil이면 변경 없음, 아니면 교체할 전체 설정입니다
	DNS *entities.DNSConfig
}

// IsEmpty는 변경 지시가 하나도 없는지 확인합니다
func (cs *ChangeSet) IsEmpty() bool {
	return cs.OperationCount() == 0
}

// OperationCount는 변경 지시의 총 개수를 반환합니다
func (cs *ChangeSet) OperationCount() int {
	count := len(cs.InterfacesToAdd) + len(cs.InterfacesToModify) + len(cs.InterfacesToDelete) +
		len(cs.RoutesToAdd) + len(cs.RoutesToDelete) +
		len(cs.RulesToAdd) + len(cs.RulesToDelete)
	if cs.DNS != nil {
		count++
	}
	return count
}

// Differ는 두 불변 상태 스냅샷으로부터 변경 집합을 계산합니다.
// Diff는 순수 함수이며 입력을 변경하지 않습니다
type Differ struct {
	logger *logrus.Logger
}

// NewDiffer는 새로운 Differ를 생성합니다
func NewDiffer(logger *logrus.Logger) *Differ {
	return &Differ{logger: logger}
}

// Diff는 current에서 desired(정규화 완료)로 수렴하기 위한 변경 집합을
// 계산합니다
func (d *Differ) Diff(current, desired *entities.NetworkState) *ChangeSet {
	cs := &ChangeSet{}

	// 타입 변경으로 재생성되는 인터페이스: 소유 라우트도 다시 추가해야 합니다
	recreated := make(map[string]bool)
	deleted := make(map[string]bool)

	d.diffInterfaces(current, desired, cs, recreated, deleted)
	d.diffRoutes(current, desired, cs, recreated, deleted)
	d.diffRules(current, desired, cs)
	d.diffDNS(current, desired, cs)

	if !cs.IsEmpty() {
		d.logger.WithFields(logrus.Fields{
			"iface_add":    len(cs.InterfacesToAdd),
			"iface_modify": len(cs.InterfacesToModify),
			"iface_delete": len(cs.InterfacesToDelete),
			"route_add":    len(cs.RoutesToAdd),
			"route_delete": len(cs.RoutesToDelete),
			"rule_add":     len(cs.RulesToAdd),
			"rule_delete":  len(cs.RulesToDelete),
			"dns_change":   cs.DNS != nil,
		}).Debug("변경 집합 계산 완료")
	}

	return cs
}

func (d *Differ) diffInterfaces(current, desired *entities.NetworkState, cs *ChangeSet, recreated, deleted map[string]bool) {
	for i := range desired.Interfaces {
		want := desired.Interfaces[i]
		got := current.Interface(want.Name)

		if want.IsAbsent() {
			if got != nil {
				cs.InterfacesToDelete = append(cs.InterfacesToDelete, *got)
				deleted[want.Name] = true
			}
			continue
		}

		if got == nil {
			cs.InterfacesToAdd = append(cs.InterfacesToAdd, want)
			continue
		}

		// 타입 변경은 제자리 수정이 불가능하므로 삭제 후 재생성합니다
		if want.Type != "" && want.Type != entities.InterfaceTypeUnknown &&
			got.Type != entities.InterfaceTypeUnknown && want.Type != got.Type {
			cs.InterfacesToDelete = append(cs.InterfacesToDelete, *got)
			cs.InterfacesToAdd = append(cs.InterfacesToAdd, want)
			recreated[want.Name] = true
			continue
		}

		if interfaceNeedsUpdate(want, current) {
			cs.InterfacesToModify = append(cs.InterfacesToModify, want)
		}
	}
}

// interfaceNeedsUpdate는 원하는 인터페이스에 명시된 필드 중 현재 상태와
// 다른 것이 있는지 확인합니다
func interfaceNeedsUpdate(want entities.Interface, current *entities.NetworkState) bool {
	probe := &entities.NetworkState{Interfaces: []entities.Interface{want}}
	return len(entities.Match(probe, current)) > 0
}

func (d *Differ) diffRoutes(current, desired *entities.NetworkState, cs *ChangeSet, recreated, deleted map[string]bool) {
	currentRoutes := current.RouteConfig()

	for _, want := range desired.RouteConfig() {
		if want.IsAbsent() {
			// 삭제 지시: destination+next-hop-interface+table로 매칭합니다.
			// 링크 삭제에 휩쓸리는 라우트는 별도 지시가 필요 없습니다
			if deleted[want.NextHopInterface] {
				continue
			}
			for _, got := range currentRoutes {
				if got.MatchKey() == want.MatchKey() {
					cs.RoutesToDelete = append(cs.RoutesToDelete, got)
				}
			}
			continue
		}

		// 재생성되는 링크의 라우트는 링크와 함께 사라지므로 다시 추가합니다
		if recreated[want.NextHopInterface] {
			cs.RoutesToAdd = append(cs.RoutesToAdd, want)
			continue
		}

		if routeSatisfied(want, currentRoutes) {
			continue
		}
		// 동일 매칭 키의 기존 라우트가 속성만 다르면 교체합니다
		for _, got := range currentRoutes {
			if got.MatchKey() == want.MatchKey() {
				cs.RoutesToDelete = append(cs.RoutesToDelete, got)
			}
		}
		cs.RoutesToAdd = append(cs.RoutesToAdd, want)
	}

	// 삭제되는 인터페이스가 소유한 라우트는 인터페이스 삭제가 대신하므로
	// 여기서 지시를 만들지 않습니다
}

func routeSatisfied(want entities.Route, got []entities.Route) bool {
	for _, g := range got {
		if g.MatchKey() != want.MatchKey() {
			continue
		}
		if want.NextHopAddress != "" && want.NextHopAddress != g.NextHopAddress {
			continue
		}
		if want.Metric != nil && (g.Metric == nil || *want.Metric != *g.Metric) {
			continue
		}
		return true
	}
	return false
}

func (d *Differ) diffRules(current, desired *entities.NetworkState, cs *ChangeSet) {
	currentRules := current.RuleConfig()

	for _, want := range desired.RuleConfig() {
		if want.IsAbsent() {
			for _, got := range currentRules {
				if ruleMatches(want, got) {
					cs.RulesToDelete = append(cs.RulesToDelete, got)
				}
			}
			continue
		}

		found := false
		for _, got := range currentRules {
			if ruleMatches(want, got) {
				found = true
				break
			}
		}
		if !found {
			cs.RulesToAdd = append(cs.RulesToAdd, want)
		}
	}
}

// ruleMatches는 규칙을 매칭 키(priority, match 필드, table)로 비교합니다.
// priority 미지정 지시는 모든 우선순위와 매칭됩니다
func ruleMatches(want, got entities.RouteRule) bool {
	if want.Priority != nil && want.EffectivePriority() != got.EffectivePriority() {
		return false
	}
	return want.IPFrom == got.IPFrom &&
		want.IPTo == got.IPTo &&
		want.EffectiveTable() == got.EffectiveTable()
}

func (d *Differ) diffDNS(current, desired *entities.NetworkState, cs *ChangeSet) {
	if desired.DNSResolver == nil || desired.DNSResolver.Config == nil {
		return
	}
	want := desired.DNSResolver.Config

	// 삼중 상태 병합: 언급하지 않은 필드는 현재 값을 유지합니다
	effectiveServers := current.DNSServers()
	if want.Server != nil {
		effectiveServers = *want.Server
	}
	effectiveSearch := current.DNSSearch()
	if want.Search != nil {
		effectiveSearch = *want.Search
	}

	if equalStringSlices(effectiveServers, current.DNSServers()) &&
		equalStringSlices(effectiveSearch, current.DNSSearch()) {
		return
	}

	servers := append([]string(nil), effectiveServers...)
	search := append([]string(nil), effectiveSearch...)
	cs.DNS = &entities.DNSConfig{Server: &servers, Search: &search}
}

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
