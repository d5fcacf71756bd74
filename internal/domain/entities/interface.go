package entities

import "fmt"

// InterfaceType은 인터페이스의 종류를 나타냅니다. 열거 문자열은 외부 계약의
// 일부입니다
type InterfaceType string

const (
	InterfaceTypeEthernet InterfaceType = "ethernet"
	InterfaceTypeDummy    InterfaceType = "dummy"
	InterfaceTypeLoopback InterfaceType = "loopback"
	InterfaceTypeVLAN     InterfaceType = "vlan"
	InterfaceTypeBond     InterfaceType = "bond"
	InterfaceTypeBridge   InterfaceType = "bridge"
	InterfaceTypeVeth     InterfaceType = "veth"
	InterfaceTypeUnknown  InterfaceType = "unknown"
)

// InterfaceState는 인터페이스의 관리 상태를 나타냅니다.
// "absent"는 질의 가능한 상태가 아니라 삭제 지시입니다
type InterfaceState string

const (
	InterfaceStateUp     InterfaceState = "up"
	InterfaceStateDown   InterfaceState = "down"
	InterfaceStateAbsent InterfaceState = "absent"
)

// Interface는 단일 네트워크 인터페이스의 선언적 설정입니다.
// Name이 기본 키입니다
type Interface struct {
	Name       string         `yaml:"name" json:"name" validate:"required,max=15"`
	Type       InterfaceType  `yaml:"type,omitempty" json:"type,omitempty" validate:"omitempty,oneof=ethernet dummy loopback vlan bond bridge veth unknown"`
	State      InterfaceState `yaml:"state,omitempty" json:"state,omitempty" validate:"omitempty,oneof=up down absent"`
	MTU        *int           `yaml:"mtu,omitempty" json:"mtu,omitempty"`
	MACAddress *string        `yaml:"mac-address,omitempty" json:"mac-address,omitempty" validate:"omitempty,mac"`

	// Controller는 이 인터페이스를 포트로 소유하는 본드/브리지의 이름입니다.
	// 빈 문자열을 가리키는 포인터는 분리 지시입니다
	Controller *string `yaml:"controller,omitempty" json:"controller,omitempty"`

	IPv4 *IPConfig `yaml:"ipv4,omitempty" json:"ipv4,omitempty"`
	IPv6 *IPConfig `yaml:"ipv6,omitempty" json:"ipv6,omitempty"`

	VLAN   *VLANConfig   `yaml:"vlan,omitempty" json:"vlan,omitempty"`
	Bond   *BondConfig   `yaml:"bond,omitempty" json:"bond,omitempty"`
	Bridge *BridgeConfig `yaml:"bridge,omitempty" json:"bridge,omitempty"`
	Veth   *VethConfig   `yaml:"veth,omitempty" json:"veth,omitempty"`
}

// IPConfig는 단일 주소 패밀리의 IP 설정입니다. 모든 필드가 삼중 상태입니다
type IPConfig struct {
	Enabled  *bool      `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	DHCP     *bool      `yaml:"dhcp,omitempty" json:"dhcp,omitempty"`
	Autoconf *bool      `yaml:"autoconf,omitempty" json:"autoconf,omitempty"`
	Address  *[]Address `yaml:"address,omitempty" json:"address,omitempty"`

	// Gateway는 정규화 과정에서 기본 라우트 지시로 변환됩니다.
	// 빈 문자열을 가리키는 포인터는 기본 라우트 제거 지시입니다
	Gateway *string `yaml:"gateway,omitempty" json:"gateway,omitempty"`
}

// Address는 정적 IP 주소 하나를 나타냅니다
type Address struct {
	IP           string `yaml:"ip" json:"ip"`
	PrefixLength int    `yaml:"prefix-length" json:"prefix-length"`
}

// String은 CIDR 표기의 문자열 표현을 반환합니다
func (a Address) String() string {
	return fmt.Sprintf("%s/%d", a.IP, a.PrefixLength)
}

// VLANConfig는 VLAN 타입 전용 설정입니다
type VLANConfig struct {
	BaseIface string `yaml:"base-iface" json:"base-iface" validate:"required"`
	ID        int    `yaml:"id" json:"id" validate:"min=0,max=4094"`
}

// BondConfig는 본드 타입 전용 설정입니다
type BondConfig struct {
	Mode  string   `yaml:"mode,omitempty" json:"mode,omitempty"`
	Ports []string `yaml:"port,omitempty" json:"port,omitempty"`
}

// BridgeConfig는 브리지 타입 전용 설정입니다
type BridgeConfig struct {
	Ports []BridgePort `yaml:"port,omitempty" json:"port,omitempty"`
}

// BridgePort는 브리지의 포트 하나를 나타냅니다
type BridgePort struct {
	Name string `yaml:"name" json:"name"`
}

// VethConfig는 veth 타입 전용 설정입니다
type VethConfig struct {
	Peer string `yaml:"peer" json:"peer" validate:"required"`
}

// IsAbsent는 인터페이스가 삭제 지시인지 확인합니다
func (i *Interface) IsAbsent() bool {
	return i.State == InterfaceStateAbsent
}

// ParentName은 이 인터페이스가 존재하기 위해 먼저 존재해야 하는 인터페이스의
// 이름을 반환합니다. 의존성이 없으면 빈 문자열입니다
func (i *Interface) ParentName() string {
	if i.VLAN != nil {
		return i.VLAN.BaseIface
	}
	if i.Controller != nil {
		return *i.Controller
	}
	return ""
}

// PortNames는 이 인터페이스가 컨트롤러로서 소유하는 포트 이름들을 반환합니다
func (i *Interface) PortNames() []string {
	if i.Bond != nil {
		return i.Bond.Ports
	}
	if i.Bridge != nil {
		names := make([]string, 0, len(i.Bridge.Ports))
		for _, p := range i.Bridge.Ports {
			names = append(names, p.Name)
		}
		return names
	}
	return nil
}

// HasIPConfig는 주소 설정 단계가 필요한지 확인합니다
func (i *Interface) HasIPConfig() bool {
	return i.IPv4 != nil || i.IPv6 != nil
}
