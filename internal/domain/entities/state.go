package entities

import (
	"bytes"
	"sort"

	"gopkg.in/yaml.v3"
)

// NetworkState는 전체 또는 부분 네트워크 설정의 최상위 집합체입니다.
// 직렬화 키(interfaces, routes, route-rules, dns-resolver)는 외부 계약이므로
// 변경해서는 안 됩니다.
//
// 모든 선택적 필드는 삼중 상태를 가집니다:
//   - 키 없음(nil 포인터): 호출자가 언급하지 않음 → 현재 값 유지
//   - 명시적 값: 호출자가 해당 값을 원함
//   - 명시적 빈 값(비어 있는 컬렉션을 가리키는 non-nil 포인터): 제거 지시
type NetworkState struct {
	Interfaces  []Interface  `yaml:"interfaces,omitempty" json:"interfaces,omitempty"`
	Routes      *Routes      `yaml:"routes,omitempty" json:"routes,omitempty"`
	RouteRules  *RouteRules  `yaml:"route-rules,omitempty" json:"route-rules,omitempty"`
	DNSResolver *DNSResolver `yaml:"dns-resolver,omitempty" json:"dns-resolver,omitempty"`
}

// Routes는 라우트 설정 섹션입니다
type Routes struct {
	Config []Route `yaml:"config,omitempty" json:"config,omitempty"`
}

// RouteRules는 라우트 규칙 설정 섹션입니다
type RouteRules struct {
	Config []RouteRule `yaml:"config,omitempty" json:"config,omitempty"`
}

// DNSResolver는 DNS 설정 섹션입니다
type DNSResolver struct {
	Config *DNSConfig `yaml:"config,omitempty" json:"config,omitempty"`
}

// DNSConfig는 DNS 서버와 검색 도메인 목록입니다.
// nil 포인터는 "언급 없음", 비어 있는 목록을 가리키는 포인터는 "모두 제거"를
// 의미합니다. 서버 목록의 순서는 의미가 있습니다
type DNSConfig struct {
	Server *[]string `yaml:"server,omitempty" json:"server,omitempty"`
	Search *[]string `yaml:"search,omitempty" json:"search,omitempty"`
}

// ParseNetworkState는 YAML 문서를 NetworkState로 역직렬화합니다.
// 알 수 없는 키는 계약 위반이므로 거부합니다
func ParseNetworkState(data []byte) (*NetworkState, error) {
	var state NetworkState
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&state); err != nil {
		return nil, err
	}
	return &state, nil
}

// ToYAML은 NetworkState를 YAML 문서로 직렬화합니다
func (s *NetworkState) ToYAML() ([]byte, error) {
	return yaml.Marshal(s)
}

// Clone은 상태의 깊은 복사본을 반환합니다. 스냅샷과 diff 입력의 불변성을
// 보장하기 위해 사용합니다
func (s *NetworkState) Clone() *NetworkState {
	if s == nil {
		return nil
	}
	// 이 타입들의 마샬링은 실패할 수 없습니다
	data, _ := yaml.Marshal(s)
	var c NetworkState
	_ = yaml.Unmarshal(data, &c)
	return &c
}

// Interface는 이름으로 인터페이스를 찾아 반환합니다. 없으면 nil입니다
func (s *NetworkState) Interface(name string) *Interface {
	for i := range s.Interfaces {
		if s.Interfaces[i].Name == name {
			return &s.Interfaces[i]
		}
	}
	return nil
}

// HasInterface는 해당 이름의 인터페이스가 존재하는지 확인합니다
func (s *NetworkState) HasInterface(name string) bool {
	return s.Interface(name) != nil
}

// RouteConfig는 라우트 설정 목록을 반환합니다. 섹션이 없으면 빈 목록입니다
func (s *NetworkState) RouteConfig() []Route {
	if s.Routes == nil {
		return nil
	}
	return s.Routes.Config
}

// RuleConfig는 라우트 규칙 설정 목록을 반환합니다
func (s *NetworkState) RuleConfig() []RouteRule {
	if s.RouteRules == nil {
		return nil
	}
	return s.RouteRules.Config
}

// DNSServers는 현재 DNS 서버 목록을 반환합니다. 섹션이 없으면 nil입니다
func (s *NetworkState) DNSServers() []string {
	if s.DNSResolver == nil || s.DNSResolver.Config == nil || s.DNSResolver.Config.Server == nil {
		return nil
	}
	return *s.DNSResolver.Config.Server
}

// DNSSearch는 현재 DNS 검색 도메인 목록을 반환합니다
func (s *NetworkState) DNSSearch() []string {
	if s.DNSResolver == nil || s.DNSResolver.Config == nil || s.DNSResolver.Config.Search == nil {
		return nil
	}
	return *s.DNSResolver.Config.Search
}

// SortForOutput은 show 출력의 안정성을 위해 인터페이스를 이름순으로 정렬합니다
func (s *NetworkState) SortForOutput() {
	sort.SliceStable(s.Interfaces, func(i, j int) bool {
		return s.Interfaces[i].Name < s.Interfaces[j].Name
	})
}
