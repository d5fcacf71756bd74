package services

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihuguet/nmstate/internal/domain/entities"
)

func newTestDiffer() *Differ {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewDiffer(logger)
}

func intPtr(v int) *int { return &v }

func TestDiffInterfaces(t *testing.T) {
	differ := newTestDiffer()

	t.Run("없는 인터페이스는 추가 대상이다", func(t *testing.T) {
		desired := &entities.NetworkState{Interfaces: []entities.Interface{
			{Name: "dummy0", Type: entities.InterfaceTypeDummy, State: entities.InterfaceStateUp},
		}}

		cs := differ.Diff(&entities.NetworkState{}, desired)
		require.Len(t, cs.InterfacesToAdd, 1)
		assert.Equal(t, "dummy0", cs.InterfacesToAdd[0].Name)
		assert.Empty(t, cs.InterfacesToModify)
	})

	t.Run("absent 지시는 삭제 대상이 된다", func(t *testing.T) {
		desired := &entities.NetworkState{Interfaces: []entities.Interface{
			{Name: "br0", State: entities.InterfaceStateAbsent},
		}}
		current := &entities.NetworkState{Interfaces: []entities.Interface{
			{Name: "br0", Type: entities.InterfaceTypeBridge, State: entities.InterfaceStateUp},
		}}

		cs := differ.Diff(current, desired)
		require.Len(t, cs.InterfacesToDelete, 1)
		assert.Equal(t, "br0", cs.InterfacesToDelete[0].Name)
	})

	t.Run("이미 없는 인터페이스의 absent 지시는 무시한다", func(t *testing.T) {
		desired := &entities.NetworkState{Interfaces: []entities.Interface{
			{Name: "br0", State: entities.InterfaceStateAbsent},
		}}

		cs := differ.Diff(&entities.NetworkState{}, desired)
		assert.True(t, cs.IsEmpty())
	})

	t.Run("이미 일치하는 인터페이스는 변경 대상이 아니다", func(t *testing.T) {
		desired := &entities.NetworkState{Interfaces: []entities.Interface{
			{Name: "eth0", Type: entities.InterfaceTypeEthernet, State: entities.InterfaceStateUp, MTU: intPtr(1500)},
		}}
		current := &entities.NetworkState{Interfaces: []entities.Interface{
			{Name: "eth0", Type: entities.InterfaceTypeEthernet, State: entities.InterfaceStateUp, MTU: intPtr(1500)},
		}}

		cs := differ.Diff(current, desired)
		assert.True(t, cs.IsEmpty())
	})

	t.Run("속성이 다르면 수정 대상이다", func(t *testing.T) {
		desired := &entities.NetworkState{Interfaces: []entities.Interface{
			{Name: "eth0", Type: entities.InterfaceTypeEthernet, MTU: intPtr(9000)},
		}}
		current := &entities.NetworkState{Interfaces: []entities.Interface{
			{Name: "eth0", Type: entities.InterfaceTypeEthernet, MTU: intPtr(1500)},
		}}

		cs := differ.Diff(current, desired)
		require.Len(t, cs.InterfacesToModify, 1)
		assert.Equal(t, "eth0", cs.InterfacesToModify[0].Name)
	})

	t.Run("타입 변경은 삭제 후 재생성한다", func(t *testing.T) {
		desired := &entities.NetworkState{Interfaces: []entities.Interface{
			{Name: "net0", Type: entities.InterfaceTypeBridge, State: entities.InterfaceStateUp},
		}}
		current := &entities.NetworkState{Interfaces: []entities.Interface{
			{Name: "net0", Type: entities.InterfaceTypeDummy, State: entities.InterfaceStateUp},
		}}

		cs := differ.Diff(current, desired)
		require.Len(t, cs.InterfacesToDelete, 1)
		require.Len(t, cs.InterfacesToAdd, 1)
		assert.Equal(t, entities.InterfaceTypeBridge, cs.InterfacesToAdd[0].Type)
	})
}

func TestDiffRoutes(t *testing.T) {
	differ := newTestDiffer()

	currentWithRoute := func() *entities.NetworkState {
		return &entities.NetworkState{
			Interfaces: []entities.Interface{
				{Name: "eth0", Type: entities.InterfaceTypeEthernet, State: entities.InterfaceStateUp},
			},
			Routes: &entities.Routes{Config: []entities.Route{
				{Destination: "0.0.0.0/0", NextHopInterface: "eth0", NextHopAddress: "192.0.2.1"},
			}},
		}
	}

	t.Run("이미 존재하는 라우트는 변경 대상이 아니다", func(t *testing.T) {
		desired := &entities.NetworkState{Routes: &entities.Routes{Config: []entities.Route{
			{Destination: "0.0.0.0/0", NextHopInterface: "eth0", NextHopAddress: "192.0.2.1"},
		}}}

		cs := differ.Diff(currentWithRoute(), desired)
		assert.True(t, cs.IsEmpty())
	})

	t.Run("같은 매칭 키의 속성 변경은 교체가 된다", func(t *testing.T) {
		desired := &entities.NetworkState{Routes: &entities.Routes{Config: []entities.Route{
			{Destination: "0.0.0.0/0", NextHopInterface: "eth0", NextHopAddress: "192.0.2.254"},
		}}}

		cs := differ.Diff(currentWithRoute(), desired)
		require.Len(t, cs.RoutesToDelete, 1)
		require.Len(t, cs.RoutesToAdd, 1)
		assert.Equal(t, "192.0.2.1", cs.RoutesToDelete[0].NextHopAddress)
		assert.Equal(t, "192.0.2.254", cs.RoutesToAdd[0].NextHopAddress)
	})

	t.Run("absent 라우트 지시는 매칭되는 라우트를 삭제한다", func(t *testing.T) {
		desired := &entities.NetworkState{Routes: &entities.Routes{Config: []entities.Route{
			{State: entities.RouteStateAbsent, Destination: "0.0.0.0/0", NextHopInterface: "eth0"},
		}}}

		cs := differ.Diff(currentWithRoute(), desired)
		require.Len(t, cs.RoutesToDelete, 1)
		assert.Empty(t, cs.RoutesToAdd)
	})

	t.Run("삭제되는 인터페이스의 absent 라우트 지시는 생략한다", func(t *testing.T) {
		desired := &entities.NetworkState{
			Interfaces: []entities.Interface{{Name: "eth0", State: entities.InterfaceStateAbsent}},
			Routes: &entities.Routes{Config: []entities.Route{
				{State: entities.RouteStateAbsent, Destination: "0.0.0.0/0", NextHopInterface: "eth0"},
			}},
		}

		cs := differ.Diff(currentWithRoute(), desired)
		require.Len(t, cs.InterfacesToDelete, 1)
		assert.Empty(t, cs.RoutesToDelete)
	})

	t.Run("재생성되는 인터페이스의 라우트는 다시 추가한다", func(t *testing.T) {
		desired := &entities.NetworkState{
			Interfaces: []entities.Interface{
				{Name: "eth0", Type: entities.InterfaceTypeDummy, State: entities.InterfaceStateUp},
			},
			Routes: &entities.Routes{Config: []entities.Route{
				{Destination: "0.0.0.0/0", NextHopInterface: "eth0", NextHopAddress: "192.0.2.1"},
			}},
		}

		cs := differ.Diff(currentWithRoute(), desired)
		require.Len(t, cs.RoutesToAdd, 1)
		assert.Equal(t, "0.0.0.0/0", cs.RoutesToAdd[0].Destination)
	})

	t.Run("다른 테이블의 라우트는 별개로 취급한다", func(t *testing.T) {
		desired := &entities.NetworkState{Routes: &entities.Routes{Config: []entities.Route{
			{Destination: "0.0.0.0/0", NextHopInterface: "eth0", NextHopAddress: "192.0.2.1", TableID: intPtr(100)},
		}}}

		cs := differ.Diff(currentWithRoute(), desired)
		require.Len(t, cs.RoutesToAdd, 1)
		assert.Empty(t, cs.RoutesToDelete)
	})
}

func TestDiffRules(t *testing.T) {
	differ := newTestDiffer()

	current := &entities.NetworkState{RouteRules: &entities.RouteRules{Config: []entities.RouteRule{
		{Priority: intPtr(500), IPFrom: "10.0.0.0/8", RouteTable: intPtr(100)},
	}}}

	t.Run("없는 규칙은 추가 대상이다", func(t *testing.T) {
		desired := &entities.NetworkState{RouteRules: &entities.RouteRules{Config: []entities.RouteRule{
			{Priority: intPtr(600), IPFrom: "172.16.0.0/12", RouteTable: intPtr(200)},
		}}}

		cs := differ.Diff(current, desired)
		require.Len(t, cs.RulesToAdd, 1)
	})

	t.Run("priority 미지정 absent 지시는 모든 우선순위와 매칭된다", func(t *testing.T) {
		desired := &entities.NetworkState{RouteRules: &entities.RouteRules{Config: []entities.RouteRule{
			{State: entities.RouteStateAbsent, IPFrom: "10.0.0.0/8", RouteTable: intPtr(100)},
		}}}

		cs := differ.Diff(current, desired)
		require.Len(t, cs.RulesToDelete, 1)
		assert.Equal(t, 500, cs.RulesToDelete[0].EffectivePriority())
	})

	t.Run("이미 존재하는 규칙은 변경 대상이 아니다", func(t *testing.T) {
		desired := &entities.NetworkState{RouteRules: &entities.RouteRules{Config: []entities.RouteRule{
			{Priority: intPtr(500), IPFrom: "10.0.0.0/8", RouteTable: intPtr(100)},
		}}}

		cs := differ.Diff(current, desired)
		assert.True(t, cs.IsEmpty())
	})
}

func TestDiffDNS(t *testing.T) {
	differ := newTestDiffer()

	currentDNS := func() *entities.NetworkState {
		servers := []string{"8.8.8.8"}
		search := []string{"example.com"}
		return &entities.NetworkState{DNSResolver: &entities.DNSResolver{
			Config: &entities.DNSConfig{Server: &servers, Search: &search},
		}}
	}

	t.Run("언급하지 않은 필드는 현재 값을 유지한다", func(t *testing.T) {
		servers := []string{"1.1.1.1"}
		desired := &entities.NetworkState{DNSResolver: &entities.DNSResolver{
			Config: &entities.DNSConfig{Server: &servers},
		}}

		cs := differ.Diff(currentDNS(), desired)
		require.NotNil(t, cs.DNS)
		assert.Equal(t, []string{"1.1.1.1"}, *cs.DNS.Server)
		assert.Equal(t, []string{"example.com"}, *cs.DNS.Search)
	})

	t.Run("빈 목록 지시는 전체 제거가 된다", func(t *testing.T) {
		empty := []string{}
		desired := &entities.NetworkState{DNSResolver: &entities.DNSResolver{
			Config: &entities.DNSConfig{Server: &empty, Search: &empty},
		}}

		cs := differ.Diff(currentDNS(), desired)
		require.NotNil(t, cs.DNS)
		assert.Empty(t, *cs.DNS.Server)
		assert.Empty(t, *cs.DNS.Search)
	})

	t.Run("동일한 설정은 변경 대상이 아니다", func(t *testing.T) {
		servers := []string{"8.8.8.8"}
		desired := &entities.NetworkState{DNSResolver: &entities.DNSResolver{
			Config: &entities.DNSConfig{Server: &servers},
		}}

		cs := differ.Diff(currentDNS(), desired)
		assert.Nil(t, cs.DNS)
		assert.True(t, cs.IsEmpty())
	})

	t.Run("DNS 변경은 작업 개수에 1로 집계된다", func(t *testing.T) {
		servers := []string{"9.9.9.9"}
		desired := &entities.NetworkState{DNSResolver: &entities.DNSResolver{
			Config: &entities.DNSConfig{Server: &servers},
		}}

		cs := differ.Diff(currentDNS(), desired)
		assert.Equal(t, 1, cs.OperationCount())
	})
}
