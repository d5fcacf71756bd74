package constants

// 시스템 경로 상수들
const (
	// DNS 리졸버 관련 경로
	ResolvConfPath          = "/etc/resolv.conf"
	SystemdResolvedRunDir   = "/run/systemd/resolve"
	SystemdResolvedConf     = "/run/systemd/resolve/resolv.conf"
	SystemdResolvedDropIn   = "/etc/systemd/resolved.conf.d/90-nmstate.conf"
	SystemdResolvedDropDir  = "/etc/systemd/resolved.conf.d"

	// 체크포인트 저장 디렉토리
	DefaultCheckpointDir = "/var/lib/nmstate/checkpoints"

	// 시스템 네트워크 경로
	SysClassNet = "/sys/class/net"
)

// 설정 파일 관련 상수들
const (
	ConfigFilePermission = 0644

	DefaultCommandTimeout = 30 // seconds
)

// 기본값 상수들
const (
	// 데이터베이스 기본값
	DefaultDBHost = "localhost"
	DefaultDBPort = "3306"
	DefaultDBName = "nmstate"

	// 서비스 모드 기본값
	DefaultPollInterval = "30s"
	DefaultLogLevel     = "info"
	DefaultHealthPort   = "8080"
)
