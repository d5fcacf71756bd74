package entities

import (
	"fmt"
	"net"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/ihuguet/nmstate/internal/domain/errors"
)

// Normalizer는 호출자가 제공한 부분 상태를 검증하고 diff/적용 파이프라인이
// 소비할 수 있는 형태로 정규화합니다
type Normalizer struct {
	validate *validator.Validate
	logger   *logrus.Logger
}

// NewNormalizer는 새로운 Normalizer를 생성합니다
func NewNormalizer(logger *logrus.Logger) *Normalizer {
	return &Normalizer{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Normalize는 원하는 상태를 검증하고 정규화한 복사본을 반환합니다.
// 입력은 변경하지 않습니다.
//
//   - 중복 인터페이스 이름 거부
//   - 구조적 필드 검증 (validator 태그 + IP/CIDR 파싱)
//   - 미지정 state/type 기본값 채움 (type은 현재 상태에서 상속)
//   - 본드/브리지 포트 목록을 포트 측 Controller 필드로 전개
//   - 게이트웨이 필드를 기본 라우트 지시로 변환
//   - 참조 무결성: 라우트의 next-hop-interface, VLAN의 base-iface, 포트는
//     같은 적용 주기에서 생성되거나 현재 상태에 존재해야 합니다
func (n *Normalizer) Normalize(desired, current *NetworkState) (*NetworkState, error) {
	if desired == nil {
		return nil, errors.NewValidationError("원하는 상태가 비어 있음", nil)
	}

	state := desired.Clone()

	if err := n.checkDuplicateNames(state); err != nil {
		return nil, err
	}
	if err := n.normalizeInterfaces(state, current); err != nil {
		return nil, err
	}
	if err := n.expandPorts(state, current); err != nil {
		return nil, err
	}
	n.convertGateways(state)
	if err := n.normalizeRoutes(state, current); err != nil {
		return nil, err
	}
	if err := n.normalizeRules(state); err != nil {
		return nil, err
	}
	if err := n.normalizeDNS(state); err != nil {
		return nil, err
	}

	return state, nil
}

func (n *Normalizer) checkDuplicateNames(state *NetworkState) error {
	seen := make(map[string]bool, len(state.Interfaces))
	for i := range state.Interfaces {
		name := state.Interfaces[i].Name
		if seen[name] {
			return errors.NewValidationError(
				fmt.Sprintf("중복된 인터페이스 이름: %s", name), nil)
		}
		seen[name] = true
	}
	return nil
}

func (n *Normalizer) normalizeInterfaces(state, current *NetworkState) error {
	for i := range state.Interfaces {
		iface := &state.Interfaces[i]

		if err := n.validate.Struct(iface); err != nil {
			return errors.NewValidationError(
				fmt.Sprintf("인터페이스 %s 필드 검증 실패", iface.Name), err)
		}

		// state 미지정은 up을 의미합니다
		if iface.State == "" {
			iface.State = InterfaceStateUp
		}
		if iface.IsAbsent() {
			continue
		}

		// type 미지정: 현재 상태에서 상속, 신규 인터페이스는 type 필수
		if iface.Type == "" {
			cur := currentInterface(current, iface.Name)
			if cur == nil {
				return errors.NewValidationError(
					fmt.Sprintf("신규 인터페이스 %s에 type이 지정되지 않음", iface.Name), nil)
			}
			iface.Type = cur.Type
		}

		if iface.Type == InterfaceTypeVLAN {
			if iface.VLAN == nil {
				return errors.NewValidationError(
					fmt.Sprintf("VLAN 인터페이스 %s에 vlan 섹션이 없음", iface.Name), nil)
			}
			if err := checkReference(state, current, iface.VLAN.BaseIface); err != nil {
				return errors.NewValidationError(
					fmt.Sprintf("VLAN %s의 base-iface %s", iface.Name, iface.VLAN.BaseIface), err)
			}
		}
		if iface.Type == InterfaceTypeVeth {
			cur := currentInterface(current, iface.Name)
			if cur == nil && iface.Veth == nil {
				return errors.NewValidationError(
					fmt.Sprintf("신규 veth 인터페이스 %s에 peer가 지정되지 않음", iface.Name), nil)
			}
		}

		if err := n.validateIPConfig(iface.Name, "ipv4", iface.IPv4, net.IPv4len*8); err != nil {
			return err
		}
		if err := n.validateIPConfig(iface.Name, "ipv6", iface.IPv6, net.IPv6len*8); err != nil {
			return err
		}
	}
	return nil
}

func (n *Normalizer) validateIPConfig(ifaceName, family string, cfg *IPConfig, maxPrefix int) error {
	if cfg == nil || cfg.Address == nil {
		return nil
	}
	for _, addr := range *cfg.Address {
		if net.ParseIP(addr.IP) == nil {
			return errors.NewValidationError(
				fmt.Sprintf("인터페이스 %s의 %s 주소 %q가 유효하지 않음", ifaceName, family, addr.IP), nil)
		}
		if addr.PrefixLength < 0 || addr.PrefixLength > maxPrefix {
			return errors.NewValidationError(
				fmt.Sprintf("인터페이스 %s의 %s prefix-length %d가 범위를 벗어남", ifaceName, family, addr.PrefixLength), nil)
		}
	}
	return nil
}

// expandPorts는 본드/브리지의 포트 목록을 포트 인터페이스의 Controller
// 필드로 전개합니다. 원하는 상태에 없는 포트는 스텁 항목으로 합성되어 적용
// 순서에 포함됩니다
func (n *Normalizer) expandPorts(state, current *NetworkState) error {
	for i := range state.Interfaces {
		controller := &state.Interfaces[i]
		if controller.IsAbsent() {
			continue
		}
		for _, portName := range controller.PortNames() {
			if p := state.Interface(portName); p != nil && p.IsAbsent() {
				return errors.NewValidationError(
					fmt.Sprintf("%s의 포트 %s가 같은 적용 주기에서 삭제됨", controller.Name, portName), nil)
			}
			if err := checkReference(state, current, portName); err != nil {
				return errors.NewValidationError(
					fmt.Sprintf("%s의 포트 %s", controller.Name, portName), err)
			}

			port := state.Interface(portName)
			if port == nil {
				// 현재 상태에만 존재하는 포트: 연결 지시만 담은 스텁 합성
				cur := currentInterface(current, portName)
				stub := Interface{Name: portName, Type: cur.Type, State: InterfaceStateUp}
				state.Interfaces = append(state.Interfaces, stub)
				port = &state.Interfaces[len(state.Interfaces)-1]
			}
			name := controller.Name
			port.Controller = &name
		}
	}
	return nil
}

// convertGateways는 게이트웨이 필드를 기본 라우트 지시로 변환합니다.
// 이후 단계는 게이트웨이를 라우트로만 취급합니다
func (n *Normalizer) convertGateways(state *NetworkState) {
	for i := range state.Interfaces {
		iface := &state.Interfaces[i]
		if iface.IPv4 != nil && iface.IPv4.Gateway != nil {
			appendGatewayRoute(state, iface.Name, *iface.IPv4.Gateway, "0.0.0.0/0")
			iface.IPv4.Gateway = nil
		}
		if iface.IPv6 != nil && iface.IPv6.Gateway != nil {
			appendGatewayRoute(state, iface.Name, *iface.IPv6.Gateway, "::/0")
			iface.IPv6.Gateway = nil
		}
	}
}

func appendGatewayRoute(state *NetworkState, ifaceName, gateway, destination string) {
	route := Route{
		Destination:      destination,
		NextHopInterface: ifaceName,
	}
	if gateway == "" {
		// 빈 게이트웨이는 기본 라우트 제거 지시입니다
		route.State = RouteStateAbsent
	} else {
		route.NextHopAddress = gateway
	}
	if state.Routes == nil {
		state.Routes = &Routes{}
	}
	state.Routes.Config = append(state.Routes.Config, route)
}

func (n *Normalizer) normalizeRoutes(state, current *NetworkState) error {
	if state.Routes == nil {
		return nil
	}
	for i := range state.Routes.Config {
		route := &state.Routes.Config[i]

		if err := n.validate.Struct(route); err != nil {
			return errors.NewValidationError(fmt.Sprintf("라우트 %s 필드 검증 실패", route.String()), err)
		}
		if route.Destination == "" {
			return errors.NewValidationError(
				fmt.Sprintf("라우트에 destination이 없음 (dev %s)", route.NextHopInterface), nil)
		}
		if _, _, err := net.ParseCIDR(route.Destination); err != nil {
			return errors.NewValidationError(
				fmt.Sprintf("라우트 destination %q가 유효한 CIDR이 아님", route.Destination), err)
		}
		if route.NextHopAddress != "" && net.ParseIP(route.NextHopAddress) == nil {
			return errors.NewValidationError(
				fmt.Sprintf("라우트 next-hop-address %q가 유효하지 않음", route.NextHopAddress), nil)
		}

		if route.IsAbsent() {
			continue
		}

		// next-hop-interface는 같은 주기에서 생성되거나 이미 존재해야 하며,
		// 같은 주기에서 삭제되는 인터페이스를 참조할 수 없습니다
		dep := state.Interface(route.NextHopInterface)
		if dep != nil && dep.IsAbsent() {
			return errors.NewValidationError(
				fmt.Sprintf("라우트 %s가 삭제 예정 인터페이스 %s를 참조함", route.String(), route.NextHopInterface), nil)
		}
		if err := checkReference(state, current, route.NextHopInterface); err != nil {
			return errors.NewValidationError(
				fmt.Sprintf("라우트 %s의 next-hop-interface", route.String()), err)
		}
	}
	return nil
}

func (n *Normalizer) normalizeRules(state *NetworkState) error {
	if state.RouteRules == nil {
		return nil
	}
	for i := range state.RouteRules.Config {
		rule := &state.RouteRules.Config[i]

		if rule.IPFrom == "" && rule.IPTo == "" && rule.Priority == nil {
			return errors.NewValidationError("라우트 규칙에 매칭 조건이 없음", nil)
		}
		for _, cidr := range []string{rule.IPFrom, rule.IPTo} {
			if cidr == "" {
				continue
			}
			if _, _, err := net.ParseCIDR(cidr); err != nil {
				return errors.NewValidationError(
					fmt.Sprintf("라우트 규칙의 매칭 CIDR %q가 유효하지 않음", cidr), err)
			}
		}
	}
	return nil
}

func (n *Normalizer) normalizeDNS(state *NetworkState) error {
	if state.DNSResolver == nil || state.DNSResolver.Config == nil || state.DNSResolver.Config.Server == nil {
		return nil
	}
	for _, server := range *state.DNSResolver.Config.Server {
		if net.ParseIP(server) == nil {
			return errors.NewValidationError(
				fmt.Sprintf("DNS 서버 주소 %q가 유효하지 않음", server), nil)
		}
	}
	return nil
}

// checkReference는 참조 대상이 원하는 상태(삭제 지시 제외) 또는 현재 상태에
// 존재하는지 확인합니다
func checkReference(state, current *NetworkState, name string) error {
	if dep := state.Interface(name); dep != nil && !dep.IsAbsent() {
		return nil
	}
	if currentInterface(current, name) != nil {
		return nil
	}
	return errors.NewNotFoundError(
		fmt.Sprintf("인터페이스 %s가 현재 상태에 없고 생성 대상도 아님", name))
}

func currentInterface(current *NetworkState, name string) *Interface {
	if current == nil {
		return nil
	}
	return current.Interface(name)
}
