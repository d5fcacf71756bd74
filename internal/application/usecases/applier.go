package usecases

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ihuguet/nmstate/internal/domain/entities"
	"github.com/ihuguet/nmstate/internal/domain/errors"
	"github.com/ihuguet/nmstate/internal/domain/interfaces"
	"github.com/ihuguet/nmstate/internal/domain/services"
	"github.com/ihuguet/nmstate/internal/infrastructure/metrics"
)

// Applier는 변경 집합을 의존성 순서에 따라 백엔드에 커밋합니다.
//
// 적용 순서: (1) 재생성 대상 링크 삭제, (2) 의존성 순서에 따른 링크
// 생성/수정(부모 먼저), (3) IP 주소, (4) 라우트 삭제/추가, (5) 규칙
// 삭제/추가, (6) DNS, (7) 남은 링크 삭제(자식 먼저).
//
// 개별 실패는 기록 후 즉시 중단하며 재시도하지 않습니다. 재시도 정책은
// 전체 적용/검증/롤백 주기를 반복하는 호출자의 몫입니다
type Applier struct {
	backend interfaces.NetworkBackend
	logger  *logrus.Logger
}

// NewApplier는 새로운 Applier를 생성합니다
func NewApplier(backend interfaces.NetworkBackend, logger *logrus.Logger) *Applier {
	return &Applier{backend: backend, logger: logger}
}

// Apply는 변경 집합을 적용합니다. 의존성 순환은 첫 백엔드 호출 전에
// DependencyCycleError로 실패합니다
func (a *Applier) Apply(ctx context.Context, cs *services.ChangeSet) error {
	plan, err := a.planOrder(cs)
	if err != nil {
		return err
	}

	adds := make(map[string]entities.Interface, len(cs.InterfacesToAdd))
	for _, iface := range cs.InterfacesToAdd {
		adds[iface.Name] = iface
	}
	mods := make(map[string]entities.Interface, len(cs.InterfacesToModify))
	for _, iface := range cs.InterfacesToModify {
		mods[iface.Name] = iface
	}

	// 1. 타입 변경으로 재생성되는 링크는 생성 전에 먼저 제거합니다
	for _, name := range plan.recreations {
		if err := a.deleteInterface(ctx, name); err != nil {
			return err
		}
	}

	// 2. 링크 생성/수정 (부모 먼저)
	for _, name := range plan.createOrder {
		if iface, ok := adds[name]; ok {
			a.logger.WithFields(logrus.Fields{"interface": name, "type": iface.Type}).
				Info("인터페이스 생성")
			if err := a.backend.CreateInterface(ctx, iface); err != nil {
				return a.recordFailure("create-interface", name, err)
			}
			metrics.RecordChangeOperation("create-interface")
			continue
		}
		if iface, ok := mods[name]; ok {
			a.logger.WithField("interface", name).Info("인터페이스 수정")
			if err := a.backend.ModifyInterface(ctx, iface); err != nil {
				return a.recordFailure("modify-interface", name, err)
			}
			metrics.RecordChangeOperation("modify-interface")
		}
	}

	// 3. IP 주소
	for _, name := range plan.createOrder {
		iface, ok := adds[name]
		if !ok {
			iface, ok = mods[name]
		}
		if !ok || !iface.HasIPConfig() {
			continue
		}
		if err := a.backend.SetAddresses(ctx, name, iface.IPv4, iface.IPv6); err != nil {
			return a.recordFailure("set-addresses", name, err)
		}
		metrics.RecordChangeOperation("set-addresses")
	}

	// 4. 라우트
	for _, route := range cs.RoutesToDelete {
		a.logger.WithField("route", route.String()).Info("라우트 제거")
		if err := a.backend.DeleteRoute(ctx, route); err != nil {
			return a.recordFailure("delete-route", route.String(), err)
		}
		metrics.RecordChangeOperation("delete-route")
	}
	for _, route := range cs.RoutesToAdd {
		a.logger.WithField("route", route.String()).Info("라우트 추가")
		if err := a.backend.AddRoute(ctx, route); err != nil {
			return a.recordFailure("add-route", route.String(), err)
		}
		metrics.RecordChangeOperation("add-route")
	}

	// 5. 규칙
	for _, rule := range cs.RulesToDelete {
		if err := a.backend.DeleteRouteRule(ctx, rule); err != nil {
			return a.recordFailure("delete-rule", rule.String(), err)
		}
		metrics.RecordChangeOperation("delete-rule")
	}
	for _, rule := range cs.RulesToAdd {
		if err := a.backend.AddRouteRule(ctx, rule); err != nil {
			return a.recordFailure("add-rule", rule.String(), err)
		}
		metrics.RecordChangeOperation("add-rule")
	}

	// 6. DNS
	if cs.DNS != nil {
		a.logger.Info("DNS 리졸버 설정 교체")
		if err := a.backend.SetDNS(ctx, *cs.DNS); err != nil {
			return a.recordFailure("set-dns", "dns-resolver", err)
		}
		metrics.RecordChangeOperation("set-dns")
	}

	// 7. 남은 링크 삭제 (자식 먼저)
	for _, name := range plan.deleteOrder {
		if err := a.deleteInterface(ctx, name); err != nil {
			return err
		}
	}

	return nil
}

// applyPlan은 백엔드 호출 전에 확정되는 실행 순서입니다
type applyPlan struct {
	recreations []string
	createOrder []string
	// deleteOrder는 자식이 부모보다 먼저 오도록 이미 뒤집혀 있습니다
	deleteOrder []string
}

func (a *Applier) planOrder(cs *services.ChangeSet) (*applyPlan, error) {
	combined := make([]entities.Interface, 0, len(cs.InterfacesToAdd)+len(cs.InterfacesToModify))
	combined = append(combined, cs.InterfacesToAdd...)
	combined = append(combined, cs.InterfacesToModify...)

	createOrder, err := services.BuildDependencyGraph(combined).TopologicalOrder()
	if err != nil {
		return nil, err
	}

	addNames := make(map[string]bool, len(cs.InterfacesToAdd))
	for _, iface := range cs.InterfacesToAdd {
		addNames[iface.Name] = true
	}

	var recreations []string
	var pureDeletes []entities.Interface
	for _, iface := range cs.InterfacesToDelete {
		if addNames[iface.Name] {
			recreations = append(recreations, iface.Name)
		} else {
			pureDeletes = append(pureDeletes, iface)
		}
	}

	deleteOrder, err := services.BuildDependencyGraph(pureDeletes).TopologicalOrder()
	if err != nil {
		return nil, err
	}
	reverse(deleteOrder)

	return &applyPlan{
		recreations: recreations,
		createOrder: createOrder,
		deleteOrder: deleteOrder,
	}, nil
}

func (a *Applier) deleteInterface(ctx context.Context, name string) error {
	a.logger.WithField("interface", name).Info("인터페이스 삭제")
	if err := a.backend.DeleteInterface(ctx, name); err != nil {
		return a.recordFailure("delete-interface", name, err)
	}
	metrics.RecordChangeOperation("delete-interface")
	return nil
}

// recordFailure는 개별 백엔드 호출 실패를 기록하고 타입 에러로 감쌉니다
func (a *Applier) recordFailure(operation, target string, err error) error {
	a.logger.WithError(err).WithFields(logrus.Fields{
		"operation": operation,
		"target":    target,
	}).Error("백엔드 작업 실패")
	metrics.RecordError("backend")

	if errors.IsBackendError(err) {
		return err
	}
	return errors.NewBackendError(operation+" 실패: "+target, err)
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
