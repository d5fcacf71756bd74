package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int          { return &v }
func strPtr(v string) *string    { return &v }
func boolPtr(v bool) *bool       { return &v }
func addrsPtr(a ...Address) *[]Address {
	return &a
}

func TestMatchInterface(t *testing.T) {
	t.Run("명시된 필드가 모두 일치하면 불일치가 없다", func(t *testing.T) {
		desired := &NetworkState{Interfaces: []Interface{{
			Name:  "eth0",
			State: InterfaceStateUp,
			MTU:   intPtr(1500),
		}}}
		current := &NetworkState{Interfaces: []Interface{{
			Name:       "eth0",
			Type:       InterfaceTypeEthernet,
			State:      InterfaceStateUp,
			MTU:        intPtr(1500),
			MACAddress: strPtr("52:54:00:11:22:33"),
		}}}

		assert.Empty(t, Match(desired, current))
	})

	t.Run("언급하지 않은 필드는 비교하지 않는다", func(t *testing.T) {
		desired := &NetworkState{Interfaces: []Interface{{Name: "eth0", State: InterfaceStateUp}}}
		current := &NetworkState{Interfaces: []Interface{{
			Name:  "eth0",
			Type:  InterfaceTypeEthernet,
			State: InterfaceStateUp,
			MTU:   intPtr(9000),
			IPv4:  &IPConfig{Enabled: boolPtr(true), Address: addrsPtr(Address{IP: "192.0.2.10", PrefixLength: 24})},
		}}}

		assert.Empty(t, Match(desired, current))
	})

	t.Run("MAC 주소는 대소문자를 무시한다", func(t *testing.T) {
		desired := &NetworkState{Interfaces: []Interface{{
			Name:       "eth0",
			MACAddress: strPtr("52:54:00:AA:BB:CC"),
		}}}
		current := &NetworkState{Interfaces: []Interface{{
			Name:       "eth0",
			MACAddress: strPtr("52:54:00:aa:bb:cc"),
		}}}

		assert.Empty(t, Match(desired, current))
	})

	t.Run("없는 인터페이스는 불일치다", func(t *testing.T) {
		desired := &NetworkState{Interfaces: []Interface{{Name: "br0", State: InterfaceStateUp}}}
		current := &NetworkState{}

		mismatches := Match(desired, current)
		require.Len(t, mismatches, 1)
		assert.Equal(t, "interfaces.br0", mismatches[0].Path)
	})

	t.Run("absent 지시는 인터페이스가 사라져야 일치한다", func(t *testing.T) {
		desired := &NetworkState{Interfaces: []Interface{{Name: "br0", State: InterfaceStateAbsent}}}

		present := &NetworkState{Interfaces: []Interface{{Name: "br0", State: InterfaceStateUp}}}
		assert.NotEmpty(t, Match(desired, present))

		gone := &NetworkState{}
		assert.Empty(t, Match(desired, gone))
	})

	t.Run("MTU 불일치를 보고한다", func(t *testing.T) {
		desired := &NetworkState{Interfaces: []Interface{{Name: "eth0", MTU: intPtr(9000)}}}
		current := &NetworkState{Interfaces: []Interface{{Name: "eth0", MTU: intPtr(1500)}}}

		mismatches := Match(desired, current)
		require.Len(t, mismatches, 1)
		assert.Equal(t, "interfaces.eth0.mtu", mismatches[0].Path)
		assert.Equal(t, "9000", mismatches[0].Desired)
		assert.Equal(t, "1500", mismatches[0].Current)
	})

	t.Run("본드 포트는 집합으로 비교한다", func(t *testing.T) {
		desired := &NetworkState{Interfaces: []Interface{{
			Name: "bond0",
			Bond: &BondConfig{Ports: []string{"eth0", "eth1"}},
		}}}
		current := &NetworkState{Interfaces: []Interface{{
			Name: "bond0",
			Type: InterfaceTypeBond,
			Bond: &BondConfig{Mode: "active-backup", Ports: []string{"eth1", "eth0"}},
		}}}

		assert.Empty(t, Match(desired, current))
	})
}

func TestMatchIPConfig(t *testing.T) {
	t.Run("주소 집합은 순서와 무관하다", func(t *testing.T) {
		desired := &NetworkState{Interfaces: []Interface{{
			Name: "eth0",
			IPv4: &IPConfig{Address: addrsPtr(
				Address{IP: "192.0.2.10", PrefixLength: 24},
				Address{IP: "192.0.2.11", PrefixLength: 24},
			)},
		}}}
		current := &NetworkState{Interfaces: []Interface{{
			Name: "eth0",
			IPv4: &IPConfig{Enabled: boolPtr(true), Address: addrsPtr(
				Address{IP: "192.0.2.11", PrefixLength: 24},
				Address{IP: "192.0.2.10", PrefixLength: 24},
			)},
		}}}

		assert.Empty(t, Match(desired, current))
	})

	t.Run("비활성화 지시는 활성 상태와 불일치한다", func(t *testing.T) {
		desired := &NetworkState{Interfaces: []Interface{{
			Name: "eth0",
			IPv6: &IPConfig{Enabled: boolPtr(false)},
		}}}
		current := &NetworkState{Interfaces: []Interface{{
			Name: "eth0",
			IPv6: &IPConfig{Enabled: boolPtr(true)},
		}}}

		mismatches := Match(desired, current)
		require.Len(t, mismatches, 1)
		assert.Equal(t, "interfaces.eth0.ipv6.enabled", mismatches[0].Path)
	})

	t.Run("백엔드가 보고하지 않는 DHCP는 건너뛴다", func(t *testing.T) {
		desired := &NetworkState{Interfaces: []Interface{{
			Name: "eth0",
			IPv4: &IPConfig{DHCP: boolPtr(true)},
		}}}
		current := &NetworkState{Interfaces: []Interface{{Name: "eth0"}}}

		assert.Empty(t, Match(desired, current))
	})
}

func TestMatchRoutes(t *testing.T) {
	current := &NetworkState{
		Interfaces: []Interface{{Name: "eth0"}},
		Routes: &Routes{Config: []Route{
			{Destination: "0.0.0.0/0", NextHopInterface: "eth0", NextHopAddress: "192.0.2.1", Metric: intPtr(100)},
		}},
	}

	t.Run("metric은 명시된 경우에만 비교한다", func(t *testing.T) {
		desired := &NetworkState{Routes: &Routes{Config: []Route{
			{Destination: "0.0.0.0/0", NextHopInterface: "eth0", NextHopAddress: "192.0.2.1"},
		}}}
		assert.Empty(t, Match(desired, current))

		strict := &NetworkState{Routes: &Routes{Config: []Route{
			{Destination: "0.0.0.0/0", NextHopInterface: "eth0", Metric: intPtr(200)},
		}}}
		assert.NotEmpty(t, Match(strict, current))
	})

	t.Run("absent 라우트 지시는 매칭 키가 남아 있으면 불일치다", func(t *testing.T) {
		desired := &NetworkState{Routes: &Routes{Config: []Route{
			{State: RouteStateAbsent, Destination: "0.0.0.0/0", NextHopInterface: "eth0"},
		}}}

		mismatches := Match(desired, current)
		require.Len(t, mismatches, 1)
		assert.Equal(t, "absent", mismatches[0].Desired)
	})
}

func TestMatchRules(t *testing.T) {
	current := &NetworkState{RouteRules: &RouteRules{Config: []RouteRule{
		{Priority: intPtr(500), IPFrom: "10.0.0.0/8", RouteTable: intPtr(100)},
	}}}

	t.Run("priority 미지정 지시는 모든 우선순위와 매칭된다", func(t *testing.T) {
		desired := &NetworkState{RouteRules: &RouteRules{Config: []RouteRule{
			{IPFrom: "10.0.0.0/8", RouteTable: intPtr(100)},
		}}}
		assert.Empty(t, Match(desired, current))
	})

	t.Run("없는 규칙은 불일치다", func(t *testing.T) {
		desired := &NetworkState{RouteRules: &RouteRules{Config: []RouteRule{
			{IPFrom: "172.16.0.0/12", RouteTable: intPtr(100)},
		}}}
		assert.NotEmpty(t, Match(desired, current))
	})
}

func TestMatchDNS(t *testing.T) {
	t.Run("DNS 서버 목록은 순서까지 비교한다", func(t *testing.T) {
		servers := []string{"8.8.8.8", "1.1.1.1"}
		reversed := []string{"1.1.1.1", "8.8.8.8"}
		desired := &NetworkState{DNSResolver: &DNSResolver{Config: &DNSConfig{Server: &servers}}}
		current := &NetworkState{DNSResolver: &DNSResolver{Config: &DNSConfig{Server: &reversed}}}

		mismatches := Match(desired, current)
		require.Len(t, mismatches, 1)
		assert.Equal(t, "dns-resolver.config.server", mismatches[0].Path)
	})

	t.Run("빈 목록 지시는 설정이 모두 제거되어야 일치한다", func(t *testing.T) {
		empty := []string{}
		desired := &NetworkState{DNSResolver: &DNSResolver{Config: &DNSConfig{Server: &empty}}}

		cleared := &NetworkState{}
		assert.Empty(t, Match(desired, cleared))

		remaining := []string{"8.8.8.8"}
		populated := &NetworkState{DNSResolver: &DNSResolver{Config: &DNSConfig{Server: &remaining}}}
		assert.NotEmpty(t, Match(desired, populated))
	})
}
