package usecases

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihuguet/nmstate/internal/domain/entities"
	domainerrors "github.com/ihuguet/nmstate/internal/domain/errors"
	"github.com/ihuguet/nmstate/internal/domain/services"
	"github.com/ihuguet/nmstate/internal/testutil"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func strPtr(v string) *string { return &v }
func intPtr(v int) *int       { return &v }

func indexOf(items []string, want string) int {
	for i, item := range items {
		if item == want {
			return i
		}
	}
	return -1
}

func TestApplierOrdering(t *testing.T) {
	t.Run("부모를 자식보다 먼저 생성한다", func(t *testing.T) {
		backend := testutil.NewFakeBackend(nil)
		applier := NewApplier(backend, testLogger())

		cs := &services.ChangeSet{InterfacesToAdd: []entities.Interface{
			{Name: "vlan100", Type: entities.InterfaceTypeVLAN, State: entities.InterfaceStateUp,
				VLAN: &entities.VLANConfig{BaseIface: "bond0", ID: 100}},
			{Name: "bond0", Type: entities.InterfaceTypeBond, State: entities.InterfaceStateUp,
				Bond: &entities.BondConfig{Mode: "active-backup"}},
		}}

		require.NoError(t, applier.Apply(context.Background(), cs))

		creates := backend.OpsOfType("create-interface")
		require.Len(t, creates, 2)
		assert.Less(t, indexOf(creates, "bond0"), indexOf(creates, "vlan100"))
	})

	t.Run("재생성 대상은 생성 전에 먼저 삭제한다", func(t *testing.T) {
		backend := testutil.NewFakeBackend(&entities.NetworkState{Interfaces: []entities.Interface{
			{Name: "net0", Type: entities.InterfaceTypeDummy, State: entities.InterfaceStateUp},
		}})
		applier := NewApplier(backend, testLogger())

		cs := &services.ChangeSet{
			InterfacesToDelete: []entities.Interface{
				{Name: "net0", Type: entities.InterfaceTypeDummy},
			},
			InterfacesToAdd: []entities.Interface{
				{Name: "net0", Type: entities.InterfaceTypeBridge, State: entities.InterfaceStateUp,
					Bridge: &entities.BridgeConfig{}},
			},
		}

		require.NoError(t, applier.Apply(context.Background(), cs))
		require.Len(t, backend.Ops, 2)
		assert.Equal(t, "delete-interface:net0", backend.Ops[0])
		assert.Equal(t, "create-interface:net0", backend.Ops[1])
		assert.Equal(t, entities.InterfaceTypeBridge, backend.State.Interface("net0").Type)
	})

	t.Run("삭제는 자식을 부모보다 먼저 한다", func(t *testing.T) {
		backend := testutil.NewFakeBackend(&entities.NetworkState{Interfaces: []entities.Interface{
			{Name: "bond0", Type: entities.InterfaceTypeBond, State: entities.InterfaceStateUp,
				Bond: &entities.BondConfig{Mode: "active-backup"}},
			{Name: "vlan100", Type: entities.InterfaceTypeVLAN, State: entities.InterfaceStateUp,
				VLAN: &entities.VLANConfig{BaseIface: "bond0", ID: 100}},
		}})
		applier := NewApplier(backend, testLogger())

		cs := &services.ChangeSet{InterfacesToDelete: []entities.Interface{
			{Name: "bond0", Type: entities.InterfaceTypeBond},
			{Name: "vlan100", Type: entities.InterfaceTypeVLAN,
				VLAN: &entities.VLANConfig{BaseIface: "bond0", ID: 100}},
		}}

		require.NoError(t, applier.Apply(context.Background(), cs))

		deletes := backend.OpsOfType("delete-interface")
		require.Len(t, deletes, 2)
		assert.Less(t, indexOf(deletes, "vlan100"), indexOf(deletes, "bond0"))
	})

	t.Run("주소 설정은 링크 생성 이후에 온다", func(t *testing.T) {
		backend := testutil.NewFakeBackend(nil)
		applier := NewApplier(backend, testLogger())

		enabled := true
		addrs := []entities.Address{{IP: "192.0.2.10", PrefixLength: 24}}
		cs := &services.ChangeSet{InterfacesToAdd: []entities.Interface{{
			Name: "dummy0", Type: entities.InterfaceTypeDummy, State: entities.InterfaceStateUp,
			IPv4: &entities.IPConfig{Enabled: &enabled, Address: &addrs},
		}}}

		require.NoError(t, applier.Apply(context.Background(), cs))
		require.Len(t, backend.Ops, 2)
		assert.Equal(t, "create-interface:dummy0", backend.Ops[0])
		assert.Equal(t, "set-addresses:dummy0", backend.Ops[1])
	})

	t.Run("라우트 삭제가 추가보다 먼저 온다", func(t *testing.T) {
		backend := testutil.NewFakeBackend(&entities.NetworkState{
			Interfaces: []entities.Interface{
				{Name: "eth0", Type: entities.InterfaceTypeEthernet, State: entities.InterfaceStateUp},
			},
			Routes: &entities.Routes{Config: []entities.Route{
				{Destination: "0.0.0.0/0", NextHopInterface: "eth0", NextHopAddress: "192.0.2.1"},
			}},
		})
		applier := NewApplier(backend, testLogger())

		cs := &services.ChangeSet{
			RoutesToDelete: []entities.Route{
				{Destination: "0.0.0.0/0", NextHopInterface: "eth0", NextHopAddress: "192.0.2.1"},
			},
			RoutesToAdd: []entities.Route{
				{Destination: "0.0.0.0/0", NextHopInterface: "eth0", NextHopAddress: "192.0.2.254"},
			},
		}

		require.NoError(t, applier.Apply(context.Background(), cs))
		require.Len(t, backend.Ops, 2)
		assert.Contains(t, backend.Ops[0], "delete-route")
		assert.Contains(t, backend.Ops[1], "add-route")

		routes := backend.State.RouteConfig()
		require.Len(t, routes, 1)
		assert.Equal(t, "192.0.2.254", routes[0].NextHopAddress)
	})
}

func TestApplierFailures(t *testing.T) {
	t.Run("의존성 순환은 백엔드 호출 전에 실패한다", func(t *testing.T) {
		backend := testutil.NewFakeBackend(nil)
		applier := NewApplier(backend, testLogger())

		cs := &services.ChangeSet{InterfacesToAdd: []entities.Interface{
			{Name: "a0", Type: entities.InterfaceTypeDummy, Controller: strPtr("b0")},
			{Name: "b0", Type: entities.InterfaceTypeDummy, Controller: strPtr("a0")},
		}}

		err := applier.Apply(context.Background(), cs)
		require.Error(t, err)
		assert.True(t, domainerrors.IsDependencyCycleError(err))
		assert.Empty(t, backend.Ops)
	})

	t.Run("백엔드 실패는 즉시 중단하고 타입 에러로 감싼다", func(t *testing.T) {
		backend := testutil.NewFakeBackend(nil)
		backend.FailOn["create-interface:dummy1"] = assert.AnError
		applier := NewApplier(backend, testLogger())

		cs := &services.ChangeSet{InterfacesToAdd: []entities.Interface{
			{Name: "dummy0", Type: entities.InterfaceTypeDummy, State: entities.InterfaceStateUp},
			{Name: "dummy1", Type: entities.InterfaceTypeDummy, State: entities.InterfaceStateUp},
			{Name: "dummy2", Type: entities.InterfaceTypeDummy, State: entities.InterfaceStateUp},
		}}

		err := applier.Apply(context.Background(), cs)
		require.Error(t, err)
		assert.True(t, domainerrors.IsBackendError(err))

		// dummy2에는 도달하지 않아야 합니다
		creates := backend.OpsOfType("create-interface")
		assert.Equal(t, []string{"dummy0", "dummy1"}, creates)
	})

	t.Run("DNS 교체를 마지막 설정 단계로 수행한다", func(t *testing.T) {
		backend := testutil.NewFakeBackend(&entities.NetworkState{Interfaces: []entities.Interface{
			{Name: "eth0", Type: entities.InterfaceTypeEthernet, State: entities.InterfaceStateUp},
		}})
		applier := NewApplier(backend, testLogger())

		servers := []string{"8.8.8.8"}
		search := []string{}
		cs := &services.ChangeSet{
			RoutesToAdd: []entities.Route{
				{Destination: "10.0.0.0/8", NextHopInterface: "eth0"},
			},
			DNS: &entities.DNSConfig{Server: &servers, Search: &search},
		}

		require.NoError(t, applier.Apply(context.Background(), cs))
		require.Len(t, backend.Ops, 2)
		assert.Contains(t, backend.Ops[1], "set-dns")
		assert.Equal(t, []string{"8.8.8.8"}, backend.State.DNSServers())
	})
}
