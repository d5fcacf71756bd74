package usecases

import (
	"fmt"
	"strings"

	"github.com/ihuguet/nmstate/internal/domain/entities"
	"github.com/ihuguet/nmstate/internal/domain/errors"
)

// IgnoreFilter는 이름 부분 문자열로 관리 대상에서 제외할 인터페이스를
// 결정합니다. 제외된 인터페이스는 show 결과와 apply 범위 모두에서 빠지므로
// 공유 호스트에서 관리/비관리 인터페이스를 분리할 수 있습니다
type IgnoreFilter struct {
	substrings []string
}

// NewIgnoreFilter는 새로운 IgnoreFilter를 생성합니다. 빈 항목은 무시됩니다
func NewIgnoreFilter(substrings []string) *IgnoreFilter {
	cleaned := make([]string, 0, len(substrings))
	for _, s := range substrings {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return &IgnoreFilter{substrings: cleaned}
}

// IsIgnored는 인터페이스 이름이 제외 대상인지 확인합니다
func (f *IgnoreFilter) IsIgnored(name string) bool {
	for _, s := range f.substrings {
		if strings.Contains(name, s) {
			return true
		}
	}
	return false
}

// FilterState는 제외 대상 인터페이스와 그에 속한 라우트를 상태에서
// 제거합니다. 입력을 직접 수정합니다
func (f *IgnoreFilter) FilterState(state *entities.NetworkState) {
	if len(f.substrings) == 0 || state == nil {
		return
	}

	kept := state.Interfaces[:0]
	for _, iface := range state.Interfaces {
		if !f.IsIgnored(iface.Name) {
			kept = append(kept, iface)
		}
	}
	state.Interfaces = kept

	if state.Routes != nil {
		keptRoutes := state.Routes.Config[:0]
		for _, route := range state.Routes.Config {
			if !f.IsIgnored(route.NextHopInterface) {
				keptRoutes = append(keptRoutes, route)
			}
		}
		state.Routes.Config = keptRoutes
	}
}

// CheckDesired는 원하는 상태가 제외 대상 인터페이스를 언급하지 않는지
// 검증합니다
func (f *IgnoreFilter) CheckDesired(desired *entities.NetworkState) error {
	for i := range desired.Interfaces {
		if f.IsIgnored(desired.Interfaces[i].Name) {
			return errors.NewValidationError(
				fmt.Sprintf("인터페이스 %s는 제외 목록에 의해 관리 대상이 아님", desired.Interfaces[i].Name), nil)
		}
	}
	for _, route := range desired.RouteConfig() {
		if f.IsIgnored(route.NextHopInterface) {
			return errors.NewValidationError(
				fmt.Sprintf("라우트 %s가 제외 목록의 인터페이스를 참조함", route.String()), nil)
		}
	}
	return nil
}
