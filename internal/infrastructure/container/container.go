package container

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/ihuguet/nmstate/internal/application/usecases"
	"github.com/ihuguet/nmstate/internal/domain/entities"
	"github.com/ihuguet/nmstate/internal/domain/interfaces"
	"github.com/ihuguet/nmstate/internal/domain/services"
	"github.com/ihuguet/nmstate/internal/infrastructure/adapters"
	"github.com/ihuguet/nmstate/internal/infrastructure/backend"
	"github.com/ihuguet/nmstate/internal/infrastructure/config"
	"github.com/ihuguet/nmstate/internal/infrastructure/health"
	"github.com/ihuguet/nmstate/internal/infrastructure/persistence"
	"github.com/ihuguet/nmstate/pkg/utils"
)

// Container는 의존성 주입을 관리하는 컨테이너입니다
type Container struct {
	config *config.Config
	logger *logrus.Logger

	// 인프라스트럭처 어댑터들
	fileSystem      interfaces.FileSystem
	commandExecutor interfaces.CommandExecutor
	clock           interfaces.Clock
	dnsDetector     interfaces.DNSManagerDetector
	networkBackend  *backend.NetlinkBackend

	// 엔진 구성 요소들
	normalizer  *entities.Normalizer
	differ      *services.Differ
	applier     *usecases.Applier
	verifier    *usecases.Verifier
	rollbackMgr *usecases.RollbackManager
	ignore      *usecases.IgnoreFilter
	checkpoints interfaces.CheckpointStore

	// 유스케이스
	applyStateUseCase    *usecases.ApplyStateUseCase
	showStateUseCase     *usecases.ShowStateUseCase
	commitUseCase        *usecases.CommitCheckpointUseCase
	rollbackUseCase      *usecases.RollbackCheckpointUseCase
	reconcileNodeUseCase *usecases.ReconcileNodeUseCase

	// 서비스 모드 전용
	healthService *health.HealthService
	repository    interfaces.DesiredStateRepository
	db            *sql.DB
}

// NewContainer는 엔진 코어까지 초기화된 Container를 생성합니다. 서비스 모드가
// 필요하면 이후 InitServiceMode를 호출합니다
func NewContainer(cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	container := &Container{
		config: cfg,
		logger: logger,
	}

	if err := container.initializeInfrastructure(); err != nil {
		return nil, err
	}
	container.initializeEngine()
	container.initializeUseCases()

	return container, nil
}

// initializeInfrastructure는 인프라스트럭처 컴포넌트들을 초기화합니다
func (c *Container) initializeInfrastructure() error {
	c.fileSystem = adapters.NewRealFileSystem()
	c.commandExecutor = adapters.NewRealCommandExecutor()
	c.clock = adapters.NewRealClock()
	c.dnsDetector = adapters.NewFileDNSDetector(c.fileSystem)

	dns, err := backend.NewDNSConfigurer(c.dnsDetector, c.fileSystem, c.commandExecutor, c.logger)
	if err != nil {
		return err
	}

	c.networkBackend, err = backend.NewNetlinkBackend(c.config.Engine.NetworkNamespace, dns, c.logger)
	if err != nil {
		return err
	}

	c.checkpoints = persistence.NewFileCheckpointStore(c.config.Engine.CheckpointDir, c.fileSystem, c.logger)
	return nil
}

// initializeEngine은 엔진 구성 요소들을 초기화합니다
func (c *Container) initializeEngine() {
	c.normalizer = entities.NewNormalizer(c.logger)
	c.differ = services.NewDiffer(c.logger)
	c.ignore = usecases.NewIgnoreFilter(c.config.Engine.IgnoredInterfaces)
	c.applier = usecases.NewApplier(c.networkBackend, c.logger)
	c.verifier = usecases.NewVerifier(c.networkBackend, c.clock, c.config.Engine.VerifyInterval, c.logger)
	c.rollbackMgr = usecases.NewRollbackManager(
		c.networkBackend,
		c.differ,
		c.applier,
		c.verifier,
		c.ignore,
		c.logger,
	)
}

// initializeUseCases는 유스케이스들을 초기화합니다
func (c *Container) initializeUseCases() {
	c.applyStateUseCase = usecases.NewApplyStateUseCase(
		c.networkBackend,
		c.normalizer,
		c.differ,
		c.applier,
		c.verifier,
		c.rollbackMgr,
		c.checkpoints,
		c.ignore,
		c.clock,
		c.logger,
	)
	c.showStateUseCase = usecases.NewShowStateUseCase(c.networkBackend, c.ignore, c.logger)
	c.commitUseCase = usecases.NewCommitCheckpointUseCase(c.checkpoints, c.clock, c.logger)
	c.rollbackUseCase = usecases.NewRollbackCheckpointUseCase(c.checkpoints, c.rollbackMgr, c.logger)
}

// InitServiceMode는 서비스 모드에 필요한 데이터베이스 연결과 조정 유스케이스를
// 초기화합니다
func (c *Container) InitServiceMode() error {
	db, err := sql.Open("mysql", c.buildDSN())
	if err != nil {
		return err
	}

	db.SetMaxOpenConns(c.config.Database.MaxOpenConns)
	db.SetMaxIdleConns(c.config.Database.MaxIdleConns)
	db.SetConnMaxLifetime(c.config.Database.MaxLifetime)

	// 서비스 기동 시 데이터베이스가 아직 준비되지 않았을 수 있습니다
	err = utils.RetryWithBackoff(context.Background(), utils.DefaultRetryConfig, func() error {
		return db.Ping()
	})
	if err != nil {
		return err
	}
	c.db = db

	c.repository = persistence.NewMySQLStateRepository(c.db, c.logger)
	c.reconcileNodeUseCase = usecases.NewReconcileNodeUseCase(
		c.repository,
		c.applyStateUseCase,
		c.config.Service.NodeName,
		c.logger,
	)

	c.healthService = health.NewHealthService(c.clock, c.logger)
	c.healthService.UpdateDBHealth(true, nil)

	manager, err := c.dnsDetector.DetectDNSManager()
	if err == nil {
		c.healthService.SetDNSManager(string(manager))
	}

	return nil
}

// buildDSN은 데이터베이스 연결 문자열을 생성합니다
func (c *Container) buildDSN() string {
	cfg := c.config.Database
	return cfg.User + ":" + cfg.Password + "@tcp(" + cfg.Host + ":" + cfg.Port + ")/" + cfg.Database + "?parseTime=true"
}

// GetConfig는 설정을 반환합니다
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetApplyStateUseCase는 상태 적용 유스케이스를 반환합니다
func (c *Container) GetApplyStateUseCase() *usecases.ApplyStateUseCase {
	return c.applyStateUseCase
}

// GetShowStateUseCase는 상태 조회 유스케이스를 반환합니다
func (c *Container) GetShowStateUseCase() *usecases.ShowStateUseCase {
	return c.showStateUseCase
}

// GetCommitCheckpointUseCase는 체크포인트 커밋 유스케이스를 반환합니다
func (c *Container) GetCommitCheckpointUseCase() *usecases.CommitCheckpointUseCase {
	return c.commitUseCase
}

// GetRollbackCheckpointUseCase는 체크포인트 롤백 유스케이스를 반환합니다
func (c *Container) GetRollbackCheckpointUseCase() *usecases.RollbackCheckpointUseCase {
	return c.rollbackUseCase
}

// GetReconcileNodeUseCase는 조정 유스케이스를 반환합니다.
// InitServiceMode 이전에는 nil입니다
func (c *Container) GetReconcileNodeUseCase() *usecases.ReconcileNodeUseCase {
	return c.reconcileNodeUseCase
}

// GetHealthService는 헬스 서비스를 반환합니다. InitServiceMode 이전에는
// nil입니다
func (c *Container) GetHealthService() *health.HealthService {
	return c.healthService
}

// GetDB는 데이터베이스 핸들을 반환합니다. InitServiceMode 이전에는 nil입니다
func (c *Container) GetDB() *sql.DB {
	return c.db
}

// Close는 컨테이너가 소유한 자원을 정리합니다
func (c *Container) Close() error {
	if c.networkBackend != nil {
		c.networkBackend.Close()
	}
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
