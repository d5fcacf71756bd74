package backend

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ihuguet/nmstate/internal/domain/constants"
	"github.com/ihuguet/nmstate/internal/domain/entities"
	"github.com/ihuguet/nmstate/internal/domain/errors"
	"github.com/ihuguet/nmstate/internal/domain/interfaces"
)

// DNSConfigurer는 호스트의 DNS 리졸버 설정을 읽고 씁니다. systemd-resolved가
// resolv.conf를 소유한 호스트에서는 드롭인 파일을 쓰고 resolved를 재시작하며,
// 그 외에는 /etc/resolv.conf를 직접 관리합니다
type DNSConfigurer struct {
	manager    interfaces.DNSManagerType
	fileSystem interfaces.FileSystem
	executor   interfaces.CommandExecutor
	logger     *logrus.Logger
}

// NewDNSConfigurer는 호스트의 DNS 관리 방식을 감지하여 DNSConfigurer를
// 생성합니다
func NewDNSConfigurer(
	detector interfaces.DNSManagerDetector,
	fileSystem interfaces.FileSystem,
	executor interfaces.CommandExecutor,
	logger *logrus.Logger,
) (*DNSConfigurer, error) {
	manager, err := detector.DetectDNSManager()
	if err != nil {
		return nil, err
	}

	logger.WithField("dns_manager", manager).Debug("DNS 관리 방식 감지")
	return &DNSConfigurer{
		manager:    manager,
		fileSystem: fileSystem,
		executor:   executor,
		logger:     logger,
	}, nil
}

// Read는 현재 유효한 DNS 설정을 반환합니다. 설정 파일이 없으면 (nil, nil)
// 입니다
func (d *DNSConfigurer) Read() (*entities.DNSConfig, error) {
	path := constants.ResolvConfPath
	if d.manager == interfaces.DNSManagerSystemdResolved {
		path = constants.SystemdResolvedConf
	}

	if !d.fileSystem.Exists(path) {
		return nil, nil
	}
	data, err := d.fileSystem.ReadFile(path)
	if err != nil {
		return nil, errors.NewSystemError(
			fmt.Sprintf("리졸버 설정 읽기 실패: %s", path), err)
	}

	return parseResolvConf(data), nil
}

func parseResolvConf(data []byte) *entities.DNSConfig {
	servers := []string{}
	search := []string{}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "nameserver":
			servers = append(servers, fields[1])
		case "search":
			search = append(search, fields[1:]...)
		}
	}

	return &entities.DNSConfig{Server: &servers, Search: &search}
}

// Set은 DNS 설정을 교체합니다. nil 목록은 빈 목록으로 취급합니다
func (d *DNSConfigurer) Set(ctx context.Context, config entities.DNSConfig) error {
	var servers, search []string
	if config.Server != nil {
		servers = *config.Server
	}
	if config.Search != nil {
		search = *config.Search
	}

	if d.manager == interfaces.DNSManagerSystemdResolved {
		return d.setResolved(ctx, servers, search)
	}
	return d.setResolvConf(servers, search)
}

func (d *DNSConfigurer) setResolvConf(servers, search []string) error {
	var b strings.Builder
	b.WriteString("# Generated by nmstate\n")
	for _, s := range servers {
		fmt.Fprintf(&b, "nameserver %s\n", s)
	}
	if len(search) > 0 {
		fmt.Fprintf(&b, "search %s\n", strings.Join(search, " "))
	}

	if err := d.fileSystem.WriteFile(constants.ResolvConfPath, []byte(b.String()),
		os.FileMode(constants.ConfigFilePermission)); err != nil {
		return errors.NewSystemError("resolv.conf 쓰기 실패", err)
	}

	d.logger.WithField("servers", servers).Info("resolv.conf 갱신")
	return nil
}

func (d *DNSConfigurer) setResolved(ctx context.Context, servers, search []string) error {
	var b strings.Builder
	b.WriteString("# Generated by nmstate\n[Resolve]\n")
	fmt.Fprintf(&b, "DNS=%s\n", strings.Join(servers, " "))
	fmt.Fprintf(&b, "Domains=%s\n", strings.Join(search, " "))

	if err := d.fileSystem.WriteFile(constants.SystemdResolvedDropIn, []byte(b.String()),
		os.FileMode(constants.ConfigFilePermission)); err != nil {
		return errors.NewSystemError("resolved 드롭인 쓰기 실패", err)
	}

	if _, err := d.executor.Execute(ctx, "systemctl", "try-restart", "systemd-resolved"); err != nil {
		return errors.NewSystemError("systemd-resolved 재시작 실패", err)
	}

	d.logger.WithField("servers", servers).Info("systemd-resolved 설정 갱신")
	return nil
}
