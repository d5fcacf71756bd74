package entities

import (
	"fmt"
	"strings"
)

// Mismatch는 원하는 상태와 관측된 상태 사이의 개별 불일치입니다
type Mismatch struct {
	Path    string
	Desired string
	Current string
}

// String은 불일치의 사람이 읽을 수 있는 표현을 반환합니다
func (m Mismatch) String() string {
	return fmt.Sprintf("%s: desired %q, current %q", m.Path, m.Desired, m.Current)
}

// FormatMismatches는 불일치 목록을 한 줄로 합칩니다
func FormatMismatches(mismatches []Mismatch) string {
	parts := make([]string, 0, len(mismatches))
	for _, m := range mismatches {
		parts = append(parts, m.String())
	}
	return strings.Join(parts, "; ")
}

// Match는 원하는 상태를 관측된 현재 상태와 의미론적으로 비교합니다.
// 원하는 상태에 명시된 필드만 비교하며, 호출자가 언급하지 않은 필드는 현재
// 값과 무관하게 무시합니다. 백엔드가 보고하지 못하는 필드(예: 커널 질의로는
// 알 수 없는 DHCP 여부)는 건너뜁니다.
//
// DNS 서버 목록의 순서는 계약의 일부이므로 순서까지 비교하고, 라우트/규칙/
// 주소 집합은 순서와 무관하게 비교합니다
func Match(desired, current *NetworkState) []Mismatch {
	var mismatches []Mismatch

	for i := range desired.Interfaces {
		mismatches = append(mismatches, matchInterface(&desired.Interfaces[i], current)...)
	}
	mismatches = append(mismatches, matchRoutes(desired.RouteConfig(), current.RouteConfig())...)
	mismatches = append(mismatches, matchRules(desired.RuleConfig(), current.RuleConfig())...)
	mismatches = append(mismatches, matchDNS(desired, current)...)

	return mismatches
}

func matchInterface(want *Interface, current *NetworkState) []Mismatch {
	var mismatches []Mismatch
	path := "interfaces." + want.Name

	got := current.Interface(want.Name)

	if want.IsAbsent() {
		if got != nil {
			mismatches = append(mismatches, Mismatch{path + ".state", "absent", string(got.State)})
		}
		return mismatches
	}

	if got == nil {
		mismatches = append(mismatches, Mismatch{path, string(want.State), "absent"})
		return mismatches
	}

	if want.Type != "" && want.Type != InterfaceTypeUnknown && got.Type != InterfaceTypeUnknown && want.Type != got.Type {
		mismatches = append(mismatches, Mismatch{path + ".type", string(want.Type), string(got.Type)})
	}
	if want.State != "" && want.State != got.State {
		mismatches = append(mismatches, Mismatch{path + ".state", string(want.State), string(got.State)})
	}
	if want.MTU != nil && got.MTU != nil && *want.MTU != *got.MTU {
		mismatches = append(mismatches, Mismatch{path + ".mtu", fmt.Sprint(*want.MTU), fmt.Sprint(*got.MTU)})
	}
	if want.MACAddress != nil && got.MACAddress != nil &&
		!strings.EqualFold(*want.MACAddress, *got.MACAddress) {
		mismatches = append(mismatches, Mismatch{path + ".mac-address", *want.MACAddress, *got.MACAddress})
	}
	if want.Controller != nil {
		gotController := ""
		if got.Controller != nil {
			gotController = *got.Controller
		}
		if *want.Controller != gotController {
			mismatches = append(mismatches, Mismatch{path + ".controller", *want.Controller, gotController})
		}
	}

	mismatches = append(mismatches, matchIPConfig(path+".ipv4", want.IPv4, got.IPv4)...)
	mismatches = append(mismatches, matchIPConfig(path+".ipv6", want.IPv6, got.IPv6)...)

	if want.VLAN != nil {
		if got.VLAN == nil {
			mismatches = append(mismatches, Mismatch{path + ".vlan", fmt.Sprintf("%s.%d", want.VLAN.BaseIface, want.VLAN.ID), "none"})
		} else if want.VLAN.BaseIface != got.VLAN.BaseIface || want.VLAN.ID != got.VLAN.ID {
			mismatches = append(mismatches, Mismatch{
				path + ".vlan",
				fmt.Sprintf("%s.%d", want.VLAN.BaseIface, want.VLAN.ID),
				fmt.Sprintf("%s.%d", got.VLAN.BaseIface, got.VLAN.ID),
			})
		}
	}
	if want.Bond != nil {
		gotMode := ""
		var gotPorts []string
		if got.Bond != nil {
			gotMode = got.Bond.Mode
			gotPorts = got.Bond.Ports
		}
		if want.Bond.Mode != "" && want.Bond.Mode != gotMode {
			mismatches = append(mismatches, Mismatch{path + ".bond.mode", want.Bond.Mode, gotMode})
		}
		if want.Bond.Ports != nil && !equalStringSets(want.Bond.Ports, gotPorts) {
			mismatches = append(mismatches, Mismatch{path + ".bond.port", strings.Join(want.Bond.Ports, ","), strings.Join(gotPorts, ",")})
		}
	}
	if want.Bridge != nil && want.Bridge.Ports != nil {
		wantPorts := want.PortNames()
		var gotPorts []string
		if got.Bridge != nil {
			gotPorts = got.PortNames()
		}
		if !equalStringSets(wantPorts, gotPorts) {
			mismatches = append(mismatches, Mismatch{path + ".bridge.port", strings.Join(wantPorts, ","), strings.Join(gotPorts, ",")})
		}
	}
	if want.Veth != nil && got.Veth != nil && want.Veth.Peer != got.Veth.Peer {
		mismatches = append(mismatches, Mismatch{path + ".veth.peer", want.Veth.Peer, got.Veth.Peer})
	}

	return mismatches
}

func matchIPConfig(path string, want, got *IPConfig) []Mismatch {
	if want == nil {
		return nil
	}
	if got == nil {
		got = &IPConfig{}
	}

	var mismatches []Mismatch

	if want.Enabled != nil {
		gotEnabled := got.Enabled != nil && *got.Enabled
		if *want.Enabled != gotEnabled {
			mismatches = append(mismatches, Mismatch{path + ".enabled", fmt.Sprint(*want.Enabled), fmt.Sprint(gotEnabled)})
		}
	}
	// DHCP/autoconf는 백엔드가 보고할 때만 비교 가능합니다
	if want.DHCP != nil && got.DHCP != nil && *want.DHCP != *got.DHCP {
		mismatches = append(mismatches, Mismatch{path + ".dhcp", fmt.Sprint(*want.DHCP), fmt.Sprint(*got.DHCP)})
	}
	if want.Autoconf != nil && got.Autoconf != nil && *want.Autoconf != *got.Autoconf {
		mismatches = append(mismatches, Mismatch{path + ".autoconf", fmt.Sprint(*want.Autoconf), fmt.Sprint(*got.Autoconf)})
	}
	if want.Address != nil {
		var gotAddrs []Address
		if got.Address != nil {
			gotAddrs = *got.Address
		}
		if !equalAddressSets(*want.Address, gotAddrs) {
			mismatches = append(mismatches, Mismatch{path + ".address", formatAddresses(*want.Address), formatAddresses(gotAddrs)})
		}
	}
	if want.Gateway != nil && got.Gateway != nil && *want.Gateway != *got.Gateway {
		mismatches = append(mismatches, Mismatch{path + ".gateway", *want.Gateway, *got.Gateway})
	}

	return mismatches
}

func matchRoutes(want, got []Route) []Mismatch {
	var mismatches []Mismatch

	for _, w := range want {
		if w.IsAbsent() {
			for _, g := range got {
				if g.MatchKey() == w.MatchKey() {
					mismatches = append(mismatches, Mismatch{"routes." + w.MatchKey(), "absent", g.String()})
					break
				}
			}
			continue
		}

		if !routePresent(w, got) {
			mismatches = append(mismatches, Mismatch{"routes." + w.MatchKey(), w.String(), "absent"})
		}
	}

	return mismatches
}

// routePresent는 원하는 라우트와 일치하는 관측 라우트가 있는지 확인합니다.
// metric과 next-hop-address는 명시된 경우에만 비교합니다
func routePresent(w Route, got []Route) bool {
	for _, g := range got {
		if g.MatchKey() != w.MatchKey() {
			continue
		}
		if w.NextHopAddress != "" && w.NextHopAddress != g.NextHopAddress {
			continue
		}
		if w.Metric != nil && (g.Metric == nil || *w.Metric != *g.Metric) {
			continue
		}
		return true
	}
	return false
}

func matchRules(want, got []RouteRule) []Mismatch {
	var mismatches []Mismatch

	for _, w := range want {
		found := false
		for _, g := range got {
			if rulesEquivalent(w, g) {
				found = true
				break
			}
		}
		if w.IsAbsent() && found {
			mismatches = append(mismatches, Mismatch{"route-rules." + w.Key(), "absent", "present"})
		}
		if !w.IsAbsent() && !found {
			mismatches = append(mismatches, Mismatch{"route-rules." + w.Key(), w.String(), "absent"})
		}
	}

	return mismatches
}

// rulesEquivalent는 규칙을 명시된 필드 기준으로 비교합니다
func rulesEquivalent(w, g RouteRule) bool {
	if w.Priority != nil && w.EffectivePriority() != g.EffectivePriority() {
		return false
	}
	if w.IPFrom != g.IPFrom || w.IPTo != g.IPTo {
		return false
	}
	return w.EffectiveTable() == g.EffectiveTable()
}

func matchDNS(desired, current *NetworkState) []Mismatch {
	if desired.DNSResolver == nil || desired.DNSResolver.Config == nil {
		return nil
	}

	var mismatches []Mismatch
	want := desired.DNSResolver.Config

	if want.Server != nil && !equalStringLists(*want.Server, current.DNSServers()) {
		mismatches = append(mismatches, Mismatch{
			"dns-resolver.config.server",
			strings.Join(*want.Server, ","),
			strings.Join(current.DNSServers(), ","),
		})
	}
	if want.Search != nil && !equalStringLists(*want.Search, current.DNSSearch()) {
		mismatches = append(mismatches, Mismatch{
			"dns-resolver.config.search",
			strings.Join(*want.Search, ","),
			strings.Join(current.DNSSearch(), ","),
		})
	}

	return mismatches
}

func equalStringLists(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalStringSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]int, len(a))
	for _, s := range a {
		set[s]++
	}
	for _, s := range b {
		set[s]--
		if set[s] < 0 {
			return false
		}
	}
	return true
}

func equalAddressSets(a, b []Address) bool {
	as := make([]string, 0, len(a))
	for _, addr := range a {
		as = append(as, addr.String())
	}
	bs := make([]string, 0, len(b))
	for _, addr := range b {
		bs = append(bs, addr.String())
	}
	return equalStringSets(as, bs)
}

func formatAddresses(addrs []Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ",")
}
