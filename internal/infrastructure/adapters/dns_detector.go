package adapters

import (
	"github.com/ihuguet/nmstate/internal/domain/constants"
	"github.com/ihuguet/nmstate/internal/domain/interfaces"
)

// FileDNSDetector는 파일 시스템 흔적으로 호스트의 DNS 관리 방식을 감지하는
// DNSManagerDetector 구현체입니다
type FileDNSDetector struct {
	fileSystem interfaces.FileSystem
}

// NewFileDNSDetector는 새로운 FileDNSDetector를 생성합니다
func NewFileDNSDetector(fileSystem interfaces.FileSystem) interfaces.DNSManagerDetector {
	return &FileDNSDetector{fileSystem: fileSystem}
}

// DetectDNSManager는 현재 호스트의 DNS 관리 방식을 반환합니다.
// systemd-resolved의 런타임 디렉토리가 있으면 resolved가 resolv.conf를
// 소유하고 있다고 판단합니다
func (d *FileDNSDetector) DetectDNSManager() (interfaces.DNSManagerType, error) {
	if d.fileSystem.Exists(constants.SystemdResolvedConf) {
		return interfaces.DNSManagerSystemdResolved, nil
	}
	return interfaces.DNSManagerResolvConf, nil
}
