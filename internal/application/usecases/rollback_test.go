package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihuguet/nmstate/internal/domain/entities"
	domainerrors "github.com/ihuguet/nmstate/internal/domain/errors"
	"github.com/ihuguet/nmstate/internal/domain/services"
	"github.com/ihuguet/nmstate/internal/infrastructure/adapters"
	"github.com/ihuguet/nmstate/internal/testutil"
)

func newTestRollbackManager(backend *testutil.FakeBackend, ignore *IgnoreFilter) *RollbackManager {
	logger := testLogger()
	differ := services.NewDiffer(logger)
	applier := NewApplier(backend, logger)
	verifier := NewVerifier(backend, adapters.NewRealClock(), time.Millisecond, logger)
	return NewRollbackManager(backend, differ, applier, verifier, ignore, logger)
}

func TestRollback(t *testing.T) {
	snapshot := &entities.NetworkState{
		Interfaces: []entities.Interface{
			{Name: "eth0", Type: entities.InterfaceTypeEthernet, State: entities.InterfaceStateUp, MTU: intPtr(1500)},
		},
		Routes: &entities.Routes{Config: []entities.Route{
			{Destination: "0.0.0.0/0", NextHopInterface: "eth0", NextHopAddress: "192.0.2.1"},
		}},
	}

	t.Run("실패한 적용이 만든 엔터티를 제거한다", func(t *testing.T) {
		// 적용 도중 dummy0과 추가 라우트가 생긴 채 실패한 상황
		backend := testutil.NewFakeBackend(&entities.NetworkState{
			Interfaces: []entities.Interface{
				{Name: "eth0", Type: entities.InterfaceTypeEthernet, State: entities.InterfaceStateUp, MTU: intPtr(1500)},
				{Name: "dummy0", Type: entities.InterfaceTypeDummy, State: entities.InterfaceStateUp},
			},
			Routes: &entities.Routes{Config: []entities.Route{
				{Destination: "0.0.0.0/0", NextHopInterface: "eth0", NextHopAddress: "192.0.2.1"},
				{Destination: "10.0.0.0/8", NextHopInterface: "eth0"},
			}},
		})
		mgr := newTestRollbackManager(backend, NewIgnoreFilter(nil))

		require.NoError(t, mgr.Rollback(context.Background(), snapshot, time.Second))

		assert.False(t, backend.State.HasInterface("dummy0"))
		routes := backend.State.RouteConfig()
		require.Len(t, routes, 1)
		assert.Equal(t, "0.0.0.0/0", routes[0].Destination)
	})

	t.Run("변경된 속성을 스냅샷 값으로 복원한다", func(t *testing.T) {
		backend := testutil.NewFakeBackend(&entities.NetworkState{
			Interfaces: []entities.Interface{
				{Name: "eth0", Type: entities.InterfaceTypeEthernet, State: entities.InterfaceStateUp, MTU: intPtr(9000)},
			},
			Routes: &entities.Routes{Config: []entities.Route{
				{Destination: "0.0.0.0/0", NextHopInterface: "eth0", NextHopAddress: "192.0.2.1"},
			}},
		})
		mgr := newTestRollbackManager(backend, NewIgnoreFilter(nil))

		require.NoError(t, mgr.Rollback(context.Background(), snapshot, time.Second))
		assert.Equal(t, 1500, *backend.State.Interface("eth0").MTU)
	})

	t.Run("이미 일치하면 백엔드 쓰기가 없다", func(t *testing.T) {
		backend := testutil.NewFakeBackend(snapshot)
		mgr := newTestRollbackManager(backend, NewIgnoreFilter(nil))

		require.NoError(t, mgr.Rollback(context.Background(), snapshot, time.Second))
		// 조회만 있고 변경 작업은 없어야 합니다
		assert.Empty(t, backend.Ops)
	})

	t.Run("복원 실패는 RollbackFailed로 종결된다", func(t *testing.T) {
		backend := testutil.NewFakeBackend(&entities.NetworkState{Interfaces: []entities.Interface{
			{Name: "eth0", Type: entities.InterfaceTypeEthernet, State: entities.InterfaceStateUp, MTU: intPtr(9000)},
			{Name: "dummy0", Type: entities.InterfaceTypeDummy, State: entities.InterfaceStateUp},
		}})
		backend.FailOn["delete-interface:dummy0"] = assert.AnError
		mgr := newTestRollbackManager(backend, NewIgnoreFilter(nil))

		err := mgr.Rollback(context.Background(), &entities.NetworkState{
			Interfaces: []entities.Interface{
				{Name: "eth0", Type: entities.InterfaceTypeEthernet, State: entities.InterfaceStateUp, MTU: intPtr(9000)},
			},
		}, time.Second)

		require.Error(t, err)
		assert.True(t, domainerrors.IsRollbackFailedError(err))
	})

	t.Run("제외 대상 인터페이스는 롤백 범위에 들어가지 않는다", func(t *testing.T) {
		backend := testutil.NewFakeBackend(&entities.NetworkState{Interfaces: []entities.Interface{
			{Name: "eth0", Type: entities.InterfaceTypeEthernet, State: entities.InterfaceStateUp, MTU: intPtr(1500)},
			{Name: "docker0", Type: entities.InterfaceTypeBridge, State: entities.InterfaceStateUp},
		}})
		mgr := newTestRollbackManager(backend, NewIgnoreFilter([]string{"docker"}))

		require.NoError(t, mgr.Rollback(context.Background(), &entities.NetworkState{
			Interfaces: []entities.Interface{
				{Name: "eth0", Type: entities.InterfaceTypeEthernet, State: entities.InterfaceStateUp, MTU: intPtr(1500)},
			},
		}, time.Second))

		assert.True(t, backend.State.HasInterface("docker0"))
	})
}
