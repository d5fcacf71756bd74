package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ihuguet/nmstate/internal/domain/entities"
	"github.com/ihuguet/nmstate/internal/domain/errors"
)

// FakeBackend는 커널 대신 메모리 상태를 변경하는 NetworkBackend 구현체입니다.
// 호출 순서를 기록하고, 작업별 실패를 주입할 수 있으며, 비동기 수렴을
// 흉내내기 위해 읽기 지연을 지원합니다
type FakeBackend struct {
	mu sync.Mutex

	// State는 백엔드가 보고하는 현재 상태입니다
	State *entities.NetworkState

	// Ops는 "operation:target" 형식으로 기록된 호출 이력입니다
	Ops []string

	// FailOn은 주입할 실패입니다. 키는 "operation:target" 또는 "operation"
	// 입니다
	FailOn map[string]error

	// StaleReads가 양수이면 그만큼의 ReadState 호출이 staleState를 반환합니다.
	// 변경이 즉시 관측되지 않는 백엔드를 흉내냅니다
	StaleReads int
	staleState *entities.NetworkState

	// ReadCount는 ReadState 호출 횟수입니다
	ReadCount int
}

// NewFakeBackend는 주어진 초기 상태의 FakeBackend를 생성합니다
func NewFakeBackend(initial *entities.NetworkState) *FakeBackend {
	if initial == nil {
		initial = &entities.NetworkState{}
	}
	return &FakeBackend{
		State:  initial.Clone(),
		FailOn: make(map[string]error),
	}
}

// MakeStale은 현재 상태를 관측 지연 스냅샷으로 고정합니다. 이후 reads번의
// ReadState가 이 스냅샷을 반환합니다
func (f *FakeBackend) MakeStale(reads int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staleState = f.State.Clone()
	f.StaleReads = reads
}

func (f *FakeBackend) record(op, target string) error {
	f.Ops = append(f.Ops, op+":"+target)
	if err, ok := f.FailOn[op+":"+target]; ok {
		return err
	}
	if err, ok := f.FailOn[op]; ok {
		return err
	}
	return nil
}

// OpsOfType은 특정 작업의 대상들을 호출 순서대로 반환합니다
func (f *FakeBackend) OpsOfType(op string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var targets []string
	prefix := op + ":"
	for _, entry := range f.Ops {
		if len(entry) > len(prefix) && entry[:len(prefix)] == prefix {
			targets = append(targets, entry[len(prefix):])
		}
	}
	return targets
}

// ReadState는 현재 상태의 복사본을 반환합니다
func (f *FakeBackend) ReadState(ctx context.Context) (*entities.NetworkState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ReadCount++
	if err, ok := f.FailOn["read-state"]; ok {
		return nil, err
	}

	if f.StaleReads > 0 && f.staleState != nil {
		f.StaleReads--
		return f.staleState.Clone(), nil
	}
	return f.State.Clone(), nil
}

// CreateInterface는 인터페이스를 메모리 상태에 추가합니다
func (f *FakeBackend) CreateInterface(ctx context.Context, iface entities.Interface) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("create-interface", iface.Name); err != nil {
		return err
	}
	if f.State.HasInterface(iface.Name) {
		return errors.NewBackendError(fmt.Sprintf("인터페이스가 이미 존재함: %s", iface.Name), nil)
	}
	if iface.VLAN != nil && !f.State.HasInterface(iface.VLAN.BaseIface) {
		return errors.NewBackendError(
			fmt.Sprintf("VLAN 기반 인터페이스를 찾을 수 없음: %s", iface.VLAN.BaseIface), nil)
	}
	if iface.Controller != nil && *iface.Controller != "" && !f.State.HasInterface(*iface.Controller) {
		return errors.NewBackendError(
			fmt.Sprintf("컨트롤러를 찾을 수 없음: %s", *iface.Controller), nil)
	}

	stored := iface
	if stored.State == "" {
		stored.State = entities.InterfaceStateUp
	}
	f.State.Interfaces = append(f.State.Interfaces, stored)

	if iface.Veth != nil && !f.State.HasInterface(iface.Veth.Peer) {
		f.State.Interfaces = append(f.State.Interfaces, entities.Interface{
			Name:  iface.Veth.Peer,
			Type:  entities.InterfaceTypeVeth,
			State: entities.InterfaceStateDown,
			Veth:  &entities.VethConfig{Peer: iface.Name},
		})
	}

	f.refreshPorts()
	return nil
}

// ModifyInterface는 명시된 필드만 기존 인터페이스에 병합합니다
func (f *FakeBackend) ModifyInterface(ctx context.Context, iface entities.Interface) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("modify-interface", iface.Name); err != nil {
		return err
	}
	existing := f.State.Interface(iface.Name)
	if existing == nil {
		return errors.NewBackendError(fmt.Sprintf("인터페이스를 찾을 수 없음: %s", iface.Name), nil)
	}

	if iface.State != "" {
		existing.State = iface.State
	}
	if iface.MTU != nil {
		existing.MTU = iface.MTU
	}
	if iface.MACAddress != nil {
		existing.MACAddress = iface.MACAddress
	}
	if iface.Controller != nil {
		if *iface.Controller == "" {
			existing.Controller = nil
		} else {
			if !f.State.HasInterface(*iface.Controller) {
				return errors.NewBackendError(
					fmt.Sprintf("컨트롤러를 찾을 수 없음: %s", *iface.Controller), nil)
			}
			existing.Controller = iface.Controller
		}
	}
	if iface.Bond != nil && existing.Bond != nil && iface.Bond.Mode != "" {
		existing.Bond.Mode = iface.Bond.Mode
	}

	f.refreshPorts()
	return nil
}

// DeleteInterface는 인터페이스와 그에 속한 라우트를 제거합니다.
// 이미 없으면 성공입니다
func (f *FakeBackend) DeleteInterface(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("delete-interface", name); err != nil {
		return err
	}

	kept := f.State.Interfaces[:0]
	for _, iface := range f.State.Interfaces {
		if iface.Name != name {
			kept = append(kept, iface)
		}
	}
	f.State.Interfaces = kept

	if f.State.Routes != nil {
		keptRoutes := f.State.Routes.Config[:0]
		for _, route := range f.State.Routes.Config {
			if route.NextHopInterface != name {
				keptRoutes = append(keptRoutes, route)
			}
		}
		f.State.Routes.Config = keptRoutes
	}

	f.refreshPorts()
	return nil
}

// SetAddresses는 인터페이스의 IP 설정을 교체합니다
func (f *FakeBackend) SetAddresses(ctx context.Context, name string, ipv4, ipv6 *entities.IPConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("set-addresses", name); err != nil {
		return err
	}
	existing := f.State.Interface(name)
	if existing == nil {
		return errors.NewBackendError(fmt.Sprintf("인터페이스를 찾을 수 없음: %s", name), nil)
	}

	if ipv4 != nil {
		existing.IPv4 = applyIPConfig(existing.IPv4, ipv4)
	}
	if ipv6 != nil {
		existing.IPv6 = applyIPConfig(existing.IPv6, ipv6)
	}
	return nil
}

func applyIPConfig(current, want *entities.IPConfig) *entities.IPConfig {
	result := &entities.IPConfig{}
	if current != nil {
		*result = *current
	}
	if want.Enabled != nil {
		result.Enabled = want.Enabled
		if !*want.Enabled {
			empty := []entities.Address{}
			result.Address = &empty
			return result
		}
	}
	if want.Address != nil {
		addrs := append([]entities.Address(nil), (*want.Address)...)
		result.Address = &addrs
		enabled := true
		result.Enabled = &enabled
	}
	if want.DHCP != nil {
		result.DHCP = want.DHCP
	}
	if want.Autoconf != nil {
		result.Autoconf = want.Autoconf
	}
	return result
}

// AddRoute는 라우트를 상태에 추가합니다
func (f *FakeBackend) AddRoute(ctx context.Context, route entities.Route) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("add-route", route.MatchKey()); err != nil {
		return err
	}
	if !f.State.HasInterface(route.NextHopInterface) {
		return errors.NewBackendError(
			fmt.Sprintf("라우트 대상 인터페이스를 찾을 수 없음: %s", route.NextHopInterface), nil)
	}

	if f.State.Routes == nil {
		f.State.Routes = &entities.Routes{}
	}
	stored := route
	stored.State = ""
	f.State.Routes.Config = append(f.State.Routes.Config, stored)
	return nil
}

// DeleteRoute는 매칭 키가 일치하는 라우트들을 제거합니다
func (f *FakeBackend) DeleteRoute(ctx context.Context, route entities.Route) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("delete-route", route.MatchKey()); err != nil {
		return err
	}
	if f.State.Routes == nil {
		return nil
	}

	kept := f.State.Routes.Config[:0]
	for _, got := range f.State.Routes.Config {
		if got.MatchKey() != route.MatchKey() {
			kept = append(kept, got)
		}
	}
	f.State.Routes.Config = kept
	return nil
}

// AddRouteRule은 규칙을 상태에 추가합니다
func (f *FakeBackend) AddRouteRule(ctx context.Context, rule entities.RouteRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("add-rule", rule.Key()); err != nil {
		return err
	}
	if f.State.RouteRules == nil {
		f.State.RouteRules = &entities.RouteRules{}
	}
	stored := rule
	stored.State = ""
	f.State.RouteRules.Config = append(f.State.RouteRules.Config, stored)
	return nil
}

// DeleteRouteRule은 명시된 필드가 일치하는 규칙들을 제거합니다
func (f *FakeBackend) DeleteRouteRule(ctx context.Context, rule entities.RouteRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("delete-rule", rule.Key()); err != nil {
		return err
	}
	if f.State.RouteRules == nil {
		return nil
	}

	kept := f.State.RouteRules.Config[:0]
	for _, got := range f.State.RouteRules.Config {
		match := true
		if rule.Priority != nil && got.EffectivePriority() != rule.EffectivePriority() {
			match = false
		}
		if got.IPFrom != rule.IPFrom || got.IPTo != rule.IPTo {
			match = false
		}
		if got.EffectiveTable() != rule.EffectiveTable() {
			match = false
		}
		if !match {
			kept = append(kept, got)
		}
	}
	f.State.RouteRules.Config = kept
	return nil
}

// SetDNS는 DNS 설정을 교체합니다
func (f *FakeBackend) SetDNS(ctx context.Context, config entities.DNSConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("set-dns", "dns-resolver"); err != nil {
		return err
	}
	f.State.DNSResolver = &entities.DNSResolver{Config: &entities.DNSConfig{
		Server: config.Server,
		Search: config.Search,
	}}
	return nil
}

// refreshPorts는 포트의 Controller 필드로부터 본드/브리지 포트 목록을
// 재계산합니다
func (f *FakeBackend) refreshPorts() {
	for i := range f.State.Interfaces {
		iface := &f.State.Interfaces[i]
		if iface.Bond != nil {
			iface.Bond.Ports = nil
		}
		if iface.Bridge != nil {
			iface.Bridge.Ports = nil
		}
	}
	for i := range f.State.Interfaces {
		port := &f.State.Interfaces[i]
		if port.Controller == nil {
			continue
		}
		controller := f.State.Interface(*port.Controller)
		if controller == nil {
			continue
		}
		switch {
		case controller.Bond != nil:
			controller.Bond.Ports = append(controller.Bond.Ports, port.Name)
		case controller.Bridge != nil:
			controller.Bridge.Ports = append(controller.Bridge.Ports, entities.BridgePort{Name: port.Name})
		}
	}
}

// FakeClock은 수동으로 진행시키는 Clock 구현체입니다
type FakeClock struct {
	mu  sync.Mutex
	now time.Time

	// AutoAdvance가 양수이면 Now 호출마다 그만큼 시각이 진행됩니다.
	// 시계 기반 데드라인 루프가 테스트에서 종료되도록 합니다
	AutoAdvance time.Duration
}

// NewFakeClock은 주어진 시각에서 시작하는 FakeClock을 생성합니다
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now는 현재 가짜 시각을 반환합니다
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.AutoAdvance)
	return c.now
}

// Advance는 가짜 시각을 d만큼 진행시킵니다
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
