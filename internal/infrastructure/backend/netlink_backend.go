package backend

import (
	"context"
	"fmt"
	"net"

	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
	"golang.org/x/sys/unix"

	"github.com/ihuguet/nmstate/internal/domain/entities"
	"github.com/ihuguet/nmstate/internal/domain/errors"
)

// NetlinkBackend는 rtnetlink로 커널 네트워크 스택을 직접 프로그래밍하는
// NetworkBackend 구현체입니다. 모든 링크/주소/라우트/규칙 작업은 하나의
// netlink 핸들을 통과하므로 네임스페이스 지정이 일관되게 적용됩니다
type NetlinkBackend struct {
	handle *netlink.Handle
	dns    *DNSConfigurer
	logger *logrus.Logger
}

// NewNetlinkBackend는 새로운 NetlinkBackend를 생성합니다. netnsName이 비어
// 있지 않으면 해당 네임드 네트워크 네임스페이스를 대상으로 합니다
func NewNetlinkBackend(netnsName string, dns *DNSConfigurer, logger *logrus.Logger) (*NetlinkBackend, error) {
	var handle *netlink.Handle
	var err error

	if netnsName != "" {
		var nsHandle netns.NsHandle
		nsHandle, err = netns.GetFromName(netnsName)
		if err != nil {
			return nil, errors.NewSystemError(
				fmt.Sprintf("네트워크 네임스페이스를 열 수 없음: %s", netnsName), err)
		}
		handle, err = netlink.NewHandleAt(nsHandle)
	} else {
		handle, err = netlink.NewHandle()
	}
	if err != nil {
		return nil, errors.NewSystemError("netlink 핸들 생성 실패", err)
	}

	return &NetlinkBackend{
		handle: handle,
		dns:    dns,
		logger: logger,
	}, nil
}

// Close는 netlink 핸들을 해제합니다
func (b *NetlinkBackend) Close() {
	b.handle.Close()
}

// ReadState는 링크, 주소, 라우트, 규칙, DNS 설정을 질의하여 현재 상태의
// 스냅샷을 조립합니다
func (b *NetlinkBackend) ReadState(ctx context.Context) (*entities.NetworkState, error) {
	links, err := b.handle.LinkList()
	if err != nil {
		return nil, errors.NewBackendError("링크 목록 조회 실패", err)
	}

	nameByIndex := make(map[int]string, len(links))
	for _, link := range links {
		nameByIndex[link.Attrs().Index] = link.Attrs().Name
	}

	state := &entities.NetworkState{}
	for _, link := range links {
		iface, err := b.readInterface(link, nameByIndex)
		if err != nil {
			return nil, err
		}
		state.Interfaces = append(state.Interfaces, iface)
	}

	b.attachControllerPorts(state)

	routes, err := b.readRoutes(nameByIndex)
	if err != nil {
		return nil, err
	}
	if len(routes) > 0 {
		state.Routes = &entities.Routes{Config: routes}
	}

	rules, err := b.readRules()
	if err != nil {
		return nil, err
	}
	if len(rules) > 0 {
		state.RouteRules = &entities.RouteRules{Config: rules}
	}

	dns, err := b.dns.Read()
	if err != nil {
		return nil, err
	}
	if dns != nil {
		state.DNSResolver = &entities.DNSResolver{Config: dns}
	}

	return state, nil
}

func (b *NetlinkBackend) readInterface(link netlink.Link, nameByIndex map[int]string) (entities.Interface, error) {
	attrs := link.Attrs()

	iface := entities.Interface{
		Name:  attrs.Name,
		State: entities.InterfaceStateDown,
	}
	if attrs.Flags&net.FlagUp != 0 {
		iface.State = entities.InterfaceStateUp
	}

	mtu := attrs.MTU
	iface.MTU = &mtu
	if len(attrs.HardwareAddr) > 0 {
		mac := attrs.HardwareAddr.String()
		iface.MACAddress = &mac
	}
	if attrs.MasterIndex != 0 {
		if master, ok := nameByIndex[attrs.MasterIndex]; ok {
			iface.Controller = &master
		}
	}

	switch l := link.(type) {
	case *netlink.Vlan:
		iface.Type = entities.InterfaceTypeVLAN
		iface.VLAN = &entities.VLANConfig{
			BaseIface: nameByIndex[l.ParentIndex],
			ID:        l.VlanId,
		}
	case *netlink.Bond:
		iface.Type = entities.InterfaceTypeBond
		iface.Bond = &entities.BondConfig{Mode: l.Mode.String()}
	case *netlink.Bridge:
		iface.Type = entities.InterfaceTypeBridge
		iface.Bridge = &entities.BridgeConfig{}
	case *netlink.Veth:
		iface.Type = entities.InterfaceTypeVeth
		if peerIndex, err := netlink.VethPeerIndex(l); err == nil {
			if peer, ok := nameByIndex[peerIndex]; ok {
				iface.Veth = &entities.VethConfig{Peer: peer}
			}
		}
	case *netlink.Dummy:
		iface.Type = entities.InterfaceTypeDummy
	default:
		if attrs.Flags&net.FlagLoopback != 0 {
			iface.Type = entities.InterfaceTypeLoopback
		} else if link.Type() == "device" {
			iface.Type = entities.InterfaceTypeEthernet
		} else {
			iface.Type = entities.InterfaceTypeUnknown
		}
	}

	ipv4, err := b.readAddresses(link, netlink.FAMILY_V4)
	if err != nil {
		return iface, err
	}
	iface.IPv4 = ipv4

	ipv6, err := b.readAddresses(link, netlink.FAMILY_V6)
	if err != nil {
		return iface, err
	}
	iface.IPv6 = ipv6

	return iface, nil
}

func (b *NetlinkBackend) readAddresses(link netlink.Link, family int) (*entities.IPConfig, error) {
	addrs, err := b.handle.AddrList(link, family)
	if err != nil {
		return nil, errors.NewBackendError(
			fmt.Sprintf("주소 목록 조회 실패: %s", link.Attrs().Name), err)
	}

	list := make([]entities.Address, 0, len(addrs))
	for _, addr := range addrs {
		if family == netlink.FAMILY_V6 && addr.IP.IsLinkLocalUnicast() {
			continue
		}
		prefix, _ := addr.Mask.Size()
		list = append(list, entities.Address{IP: addr.IP.String(), PrefixLength: prefix})
	}

	enabled := len(list) > 0
	return &entities.IPConfig{Enabled: &enabled, Address: &list}, nil
}

// attachControllerPorts는 포트의 Controller 필드를 역으로 집계하여 본드와
// 브리지의 포트 목록을 채웁니다
func (b *NetlinkBackend) attachControllerPorts(state *entities.NetworkState) {
	for i := range state.Interfaces {
		port := &state.Interfaces[i]
		if port.Controller == nil {
			continue
		}
		controller := state.Interface(*port.Controller)
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

func (b *NetlinkBackend) readRoutes(nameByIndex map[int]string) ([]entities.Route, error) {
	filter := &netlink.Route{Table: unix.RT_TABLE_UNSPEC}
	raw, err := b.handle.RouteListFiltered(netlink.FAMILY_ALL, filter, netlink.RT_FILTER_TABLE)
	if err != nil {
		return nil, errors.NewBackendError("라우트 목록 조회 실패", err)
	}

	var routes []entities.Route
	for _, r := range raw {
		// local 테이블과 커널 자동 생성 라우트는 관리 대상이 아닙니다
		if r.Table == unix.RT_TABLE_LOCAL || r.Protocol == unix.RTPROT_KERNEL {
			continue
		}
		name, ok := nameByIndex[r.LinkIndex]
		if !ok {
			continue
		}

		route := entities.Route{
			Destination:      destinationString(r),
			NextHopInterface: name,
		}
		if r.Gw != nil {
			route.NextHopAddress = r.Gw.String()
		}
		if r.Priority != 0 {
			metric := r.Priority
			route.Metric = &metric
		}
		table := r.Table
		route.TableID = &table
		routes = append(routes, route)
	}
	return routes, nil
}

func destinationString(r netlink.Route) string {
	if r.Dst != nil {
		return r.Dst.String()
	}
	if r.Family == netlink.FAMILY_V6 {
		return "::/0"
	}
	return "0.0.0.0/0"
}

func (b *NetlinkBackend) readRules() ([]entities.RouteRule, error) {
	raw, err := b.handle.RuleList(netlink.FAMILY_ALL)
	if err != nil {
		return nil, errors.NewBackendError("라우팅 규칙 목록 조회 실패", err)
	}

	var rules []entities.RouteRule
	for _, r := range raw {
		// 커널 기본 규칙 (local/main/default)
		if r.Priority == 0 || r.Priority == 32766 || r.Priority == 32767 {
			continue
		}

		priority := r.Priority
		table := r.Table
		rule := entities.RouteRule{
			Priority:   &priority,
			RouteTable: &table,
		}
		if r.Src != nil {
			rule.IPFrom = r.Src.String()
		}
		if r.Dst != nil {
			rule.IPTo = r.Dst.String()
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// CreateInterface는 새 가상 인터페이스를 생성하고 링크 속성을 프로그래밍합니다.
// 물리 인터페이스(ethernet, loopback)는 생성할 수 없습니다
func (b *NetlinkBackend) CreateInterface(ctx context.Context, iface entities.Interface) error {
	link, err := b.buildLink(iface)
	if err != nil {
		return err
	}

	if err := b.handle.LinkAdd(link); err != nil {
		return errors.NewBackendError(
			fmt.Sprintf("인터페이스 생성 실패: %s", iface.Name), err)
	}

	b.logger.WithFields(logrus.Fields{
		"interface": iface.Name,
		"type":      iface.Type,
	}).Info("인터페이스 생성")

	return b.configureLink(iface)
}

func (b *NetlinkBackend) buildLink(iface entities.Interface) (netlink.Link, error) {
	attrs := netlink.NewLinkAttrs()
	attrs.Name = iface.Name
	if iface.MTU != nil {
		attrs.MTU = *iface.MTU
	}

	switch iface.Type {
	case entities.InterfaceTypeDummy:
		return &netlink.Dummy{LinkAttrs: attrs}, nil

	case entities.InterfaceTypeBridge:
		return &netlink.Bridge{LinkAttrs: attrs}, nil

	case entities.InterfaceTypeBond:
		bond := netlink.NewLinkBond(attrs)
		if iface.Bond != nil && iface.Bond.Mode != "" {
			bond.Mode = netlink.StringToBondMode(iface.Bond.Mode)
		}
		return bond, nil

	case entities.InterfaceTypeVLAN:
		base, err := b.handle.LinkByName(iface.VLAN.BaseIface)
		if err != nil {
			return nil, errors.NewBackendError(
				fmt.Sprintf("VLAN 기반 인터페이스를 찾을 수 없음: %s", iface.VLAN.BaseIface), err)
		}
		attrs.ParentIndex = base.Attrs().Index
		return &netlink.Vlan{
			LinkAttrs:    attrs,
			VlanId:       iface.VLAN.ID,
			VlanProtocol: netlink.VLAN_PROTOCOL_8021Q,
		}, nil

	case entities.InterfaceTypeVeth:
		return &netlink.Veth{LinkAttrs: attrs, PeerName: iface.Veth.Peer}, nil

	default:
		return nil, errors.NewBackendError(
			fmt.Sprintf("생성할 수 없는 인터페이스 타입: %s (%s)", iface.Type, iface.Name), nil)
	}
}

// ModifyInterface는 존재하는 인터페이스의 링크 속성을 변경합니다
func (b *NetlinkBackend) ModifyInterface(ctx context.Context, iface entities.Interface) error {
	return b.configureLink(iface)
}

// configureLink는 MTU, MAC, 컨트롤러 소속, 관리 상태를 원하는 설정에
// 맞춥니다. 링크를 내리는 작업은 소속 변경보다 먼저, 올리는 작업은 마지막에
// 수행합니다
func (b *NetlinkBackend) configureLink(iface entities.Interface) error {
	link, err := b.handle.LinkByName(iface.Name)
	if err != nil {
		return errors.NewBackendError(
			fmt.Sprintf("인터페이스를 찾을 수 없음: %s", iface.Name), err)
	}

	if iface.State == entities.InterfaceStateDown {
		if err := b.handle.LinkSetDown(link); err != nil {
			return errors.NewBackendError(
				fmt.Sprintf("링크 비활성화 실패: %s", iface.Name), err)
		}
	}

	if iface.MTU != nil && link.Attrs().MTU != *iface.MTU {
		if err := b.handle.LinkSetMTU(link, *iface.MTU); err != nil {
			return errors.NewBackendError(
				fmt.Sprintf("MTU 설정 실패: %s", iface.Name), err)
		}
	}

	if iface.MACAddress != nil {
		hwAddr, err := net.ParseMAC(*iface.MACAddress)
		if err != nil {
			return errors.NewValidationError(
				fmt.Sprintf("잘못된 MAC 주소: %s", *iface.MACAddress), err)
		}
		if err := b.handle.LinkSetHardwareAddr(link, hwAddr); err != nil {
			return errors.NewBackendError(
				fmt.Sprintf("MAC 주소 설정 실패: %s", iface.Name), err)
		}
	}

	if iface.Controller != nil {
		if err := b.setController(link, *iface.Controller); err != nil {
			return err
		}
	}

	if iface.State == entities.InterfaceStateUp {
		if err := b.handle.LinkSetUp(link); err != nil {
			return errors.NewBackendError(
				fmt.Sprintf("링크 활성화 실패: %s", iface.Name), err)
		}
	}

	return nil
}

func (b *NetlinkBackend) setController(link netlink.Link, controller string) error {
	name := link.Attrs().Name

	if controller == "" {
		if err := b.handle.LinkSetNoMaster(link); err != nil {
			return errors.NewBackendError(
				fmt.Sprintf("컨트롤러 분리 실패: %s", name), err)
		}
		return nil
	}

	master, err := b.handle.LinkByName(controller)
	if err != nil {
		return errors.NewBackendError(
			fmt.Sprintf("컨트롤러를 찾을 수 없음: %s", controller), err)
	}
	if err := b.handle.LinkSetMaster(link, master); err != nil {
		return errors.NewBackendError(
			fmt.Sprintf("컨트롤러 연결 실패: %s -> %s", name, controller), err)
	}
	return nil
}

// DeleteInterface는 인터페이스를 삭제합니다. 이미 없으면 성공으로 취급합니다
func (b *NetlinkBackend) DeleteInterface(ctx context.Context, name string) error {
	link, err := b.handle.LinkByName(name)
	if err != nil {
		if _, notFound := err.(netlink.LinkNotFoundError); notFound {
			return nil
		}
		return errors.NewBackendError(
			fmt.Sprintf("인터페이스 조회 실패: %s", name), err)
	}

	if err := b.handle.LinkDel(link); err != nil {
		return errors.NewBackendError(
			fmt.Sprintf("인터페이스 삭제 실패: %s", name), err)
	}

	b.logger.WithField("interface", name).Info("인터페이스 삭제")
	return nil
}

// SetAddresses는 인터페이스의 주소 집합을 원하는 설정과 일치시킵니다
func (b *NetlinkBackend) SetAddresses(ctx context.Context, name string, ipv4, ipv6 *entities.IPConfig) error {
	link, err := b.handle.LinkByName(name)
	if err != nil {
		return errors.NewBackendError(
			fmt.Sprintf("인터페이스를 찾을 수 없음: %s", name), err)
	}

	if err := b.syncFamily(link, netlink.FAMILY_V4, ipv4); err != nil {
		return err
	}
	return b.syncFamily(link, netlink.FAMILY_V6, ipv6)
}

// syncFamily는 한 주소 패밀리를 동기화합니다. Enabled=false는 전체 제거,
// Address 목록이 있으면 목록과 정확히 일치시킵니다. 나머지 경우 현재 주소를
// 건드리지 않습니다
func (b *NetlinkBackend) syncFamily(link netlink.Link, family int, cfg *entities.IPConfig) error {
	if cfg == nil {
		return nil
	}

	disabled := cfg.Enabled != nil && !*cfg.Enabled
	if !disabled && cfg.Address == nil {
		return nil
	}

	current, err := b.handle.AddrList(link, family)
	if err != nil {
		return errors.NewBackendError(
			fmt.Sprintf("주소 목록 조회 실패: %s", link.Attrs().Name), err)
	}

	var desired []entities.Address
	if !disabled && cfg.Address != nil {
		desired = *cfg.Address
	}

	wanted := make(map[string]entities.Address, len(desired))
	for _, addr := range desired {
		wanted[addr.String()] = addr
	}

	for _, addr := range current {
		if family == netlink.FAMILY_V6 && addr.IP.IsLinkLocalUnicast() {
			continue
		}
		prefix, _ := addr.Mask.Size()
		key := fmt.Sprintf("%s/%d", addr.IP.String(), prefix)
		if _, keep := wanted[key]; keep {
			delete(wanted, key)
			continue
		}
		if err := b.handle.AddrDel(link, &addr); err != nil {
			return errors.NewBackendError(
				fmt.Sprintf("주소 제거 실패: %s %s", link.Attrs().Name, key), err)
		}
	}

	for key, addr := range wanted {
		nlAddr, err := netlink.ParseAddr(addr.String())
		if err != nil {
			return errors.NewValidationError(
				fmt.Sprintf("잘못된 주소: %s", key), err)
		}
		if err := b.handle.AddrAdd(link, nlAddr); err != nil {
			return errors.NewBackendError(
				fmt.Sprintf("주소 추가 실패: %s %s", link.Attrs().Name, key), err)
		}
	}

	return nil
}

// AddRoute는 라우트를 추가합니다. 같은 키의 기존 커널 라우트는 교체됩니다
func (b *NetlinkBackend) AddRoute(ctx context.Context, route entities.Route) error {
	nlRoute, err := b.buildRoute(route)
	if err != nil {
		return err
	}

	if err := b.handle.RouteReplace(nlRoute); err != nil {
		return errors.NewBackendError(
			fmt.Sprintf("라우트 추가 실패: %s", route.String()), err)
	}
	return nil
}

func (b *NetlinkBackend) buildRoute(route entities.Route) (*netlink.Route, error) {
	link, err := b.handle.LinkByName(route.NextHopInterface)
	if err != nil {
		return nil, errors.NewBackendError(
			fmt.Sprintf("라우트 대상 인터페이스를 찾을 수 없음: %s", route.NextHopInterface), err)
	}

	_, dst, err := net.ParseCIDR(route.Destination)
	if err != nil {
		return nil, errors.NewValidationError(
			fmt.Sprintf("잘못된 라우트 목적지: %s", route.Destination), err)
	}

	nlRoute := &netlink.Route{
		Dst:       dst,
		LinkIndex: link.Attrs().Index,
		Table:     route.EffectiveTable(),
	}
	if route.NextHopAddress != "" {
		gw := net.ParseIP(route.NextHopAddress)
		if gw == nil {
			return nil, errors.NewValidationError(
				fmt.Sprintf("잘못된 게이트웨이 주소: %s", route.NextHopAddress), nil)
		}
		nlRoute.Gw = gw
	}
	if route.Metric != nil {
		nlRoute.Priority = *route.Metric
	}
	return nlRoute, nil
}

// DeleteRoute는 매칭 키와 일치하는 커널 라우트들을 제거합니다
func (b *NetlinkBackend) DeleteRoute(ctx context.Context, route entities.Route) error {
	link, err := b.handle.LinkByName(route.NextHopInterface)
	if err != nil {
		if _, notFound := err.(netlink.LinkNotFoundError); notFound {
			// 인터페이스가 이미 사라졌으면 라우트도 함께 사라졌습니다
			return nil
		}
		return errors.NewBackendError(
			fmt.Sprintf("라우트 대상 인터페이스 조회 실패: %s", route.NextHopInterface), err)
	}

	filter := &netlink.Route{
		LinkIndex: link.Attrs().Index,
		Table:     route.EffectiveTable(),
	}
	existing, err := b.handle.RouteListFiltered(netlink.FAMILY_ALL, filter,
		netlink.RT_FILTER_OIF|netlink.RT_FILTER_TABLE)
	if err != nil {
		return errors.NewBackendError("라우트 목록 조회 실패", err)
	}

	for i := range existing {
		r := existing[i]
		if destinationString(r) != route.Destination {
			continue
		}
		if err := b.handle.RouteDel(&r); err != nil {
			return errors.NewBackendError(
				fmt.Sprintf("라우트 삭제 실패: %s", route.String()), err)
		}
	}
	return nil
}

// AddRouteRule은 정책 라우팅 규칙을 추가합니다
func (b *NetlinkBackend) AddRouteRule(ctx context.Context, rule entities.RouteRule) error {
	nlRule, err := buildRule(rule)
	if err != nil {
		return err
	}

	if err := b.handle.RuleAdd(nlRule); err != nil {
		return errors.NewBackendError(
			fmt.Sprintf("라우팅 규칙 추가 실패: %s", rule.String()), err)
	}
	return nil
}

func buildRule(rule entities.RouteRule) (*netlink.Rule, error) {
	nlRule := netlink.NewRule()
	nlRule.Table = rule.EffectiveTable()
	if rule.Priority != nil {
		nlRule.Priority = *rule.Priority
	}

	if rule.IPFrom != "" {
		_, src, err := net.ParseCIDR(rule.IPFrom)
		if err != nil {
			return nil, errors.NewValidationError(
				fmt.Sprintf("잘못된 ip-from: %s", rule.IPFrom), err)
		}
		nlRule.Src = src
	}
	if rule.IPTo != "" {
		_, dst, err := net.ParseCIDR(rule.IPTo)
		if err != nil {
			return nil, errors.NewValidationError(
				fmt.Sprintf("잘못된 ip-to: %s", rule.IPTo), err)
		}
		nlRule.Dst = dst
	}
	return nlRule, nil
}

// DeleteRouteRule은 명시된 필드와 일치하는 커널 규칙들을 제거합니다
func (b *NetlinkBackend) DeleteRouteRule(ctx context.Context, rule entities.RouteRule) error {
	existing, err := b.handle.RuleList(netlink.FAMILY_ALL)
	if err != nil {
		return errors.NewBackendError("라우팅 규칙 목록 조회 실패", err)
	}

	for i := range existing {
		r := existing[i]
		if rule.Priority != nil && r.Priority != *rule.Priority {
			continue
		}
		if rule.IPFrom != "" && (r.Src == nil || r.Src.String() != rule.IPFrom) {
			continue
		}
		if rule.IPTo != "" && (r.Dst == nil || r.Dst.String() != rule.IPTo) {
			continue
		}
		if r.Table != rule.EffectiveTable() {
			continue
		}
		if err := b.handle.RuleDel(&r); err != nil {
			return errors.NewBackendError(
				fmt.Sprintf("라우팅 규칙 삭제 실패: %s", rule.String()), err)
		}
	}
	return nil
}

// SetDNS는 DNS 리졸버 설정을 교체합니다
func (b *NetlinkBackend) SetDNS(ctx context.Context, config entities.DNSConfig) error {
	return b.dns.Set(ctx, config)
}
