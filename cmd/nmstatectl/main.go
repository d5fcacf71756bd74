package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ihuguet/nmstate/internal/application/usecases"
	"github.com/ihuguet/nmstate/internal/domain/entities"
	"github.com/ihuguet/nmstate/internal/infrastructure/config"
	"github.com/ihuguet/nmstate/internal/infrastructure/container"
)

const usageText = `Usage: nmstatectl <command> [options]

Commands:
  show                  print the current network state as YAML
  apply [file]          apply a desired state document (default: stdin)
  commit [id]           commit a pending checkpoint
  rollback [id]         roll back to a checkpoint snapshot
  service               run as a reconcile daemon

Options follow each command; see 'nmstatectl <command> -h'.
`

func main() {
	logger := newLogger()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	configLoader := config.NewEnvironmentConfigLoader()
	cfg, err := configLoader.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	appContainer, err := container.NewContainer(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create dependency injection container")
	}
	defer func() {
		if err := appContainer.Close(); err != nil {
			logger.WithError(err).Error("Failed to cleanup container")
		}
	}()

	ctx := context.Background()

	switch os.Args[1] {
	case "show":
		err = runShow(ctx, appContainer, os.Args[2:])
	case "apply":
		err = runApply(ctx, appContainer, os.Args[2:])
	case "commit":
		err = runCommit(ctx, appContainer, os.Args[2:])
	case "rollback":
		err = runRollback(ctx, appContainer, os.Args[2:])
	case "service":
		app := NewApplication(appContainer, logger)
		err = app.Run()
	case "-h", "--help", "help":
		fmt.Print(usageText)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n%s", os.Args[1], usageText)
		os.Exit(2)
	}

	if err != nil {
		logger.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

// newLogger는 JSON 포맷 로거를 LOG_LEVEL 환경 변수에 맞게 구성합니다
func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)

	logger.SetLevel(logrus.InfoLevel)
	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		level, err := logrus.ParseLevel(levelStr)
		if err != nil {
			logger.WithError(err).Warnf("Unknown LOG_LEVEL value: %s. Using default Info level.", levelStr)
		} else {
			logger.SetLevel(level)
		}
	}
	return logger
}

func runShow(ctx context.Context, c *container.Container, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "print state as JSON instead of YAML")
	if err := fs.Parse(args); err != nil {
		return err
	}

	state, err := c.GetShowStateUseCase().Execute(ctx)
	if err != nil {
		return err
	}

	if *asJSON {
		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	data, err := state.ToYAML()
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

func runApply(ctx context.Context, c *container.Container, args []string) error {
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	noVerify := fs.Bool("no-verify", false, "skip post-apply verification and rollback")
	noCommit := fs.Bool("no-commit", false, "keep the change as a pending checkpoint")
	timeout := fs.Duration("timeout", 0, "verification timeout (default from NMSTATE_VERIFY_TIMEOUT)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	document, err := readDocument(fs.Arg(0))
	if err != nil {
		return err
	}
	desired, err := entities.ParseNetworkState(document)
	if err != nil {
		return err
	}

	cfg := c.GetConfig()
	opts := usecases.ApplyOptions{
		VerifyChange:      !*noVerify,
		Commit:            !*noCommit,
		RollbackTimeout:   cfg.Engine.VerifyTimeout,
		CheckpointTimeout: cfg.Engine.CheckpointTimeout,
	}
	if *timeout > 0 {
		opts.RollbackTimeout = *timeout
	}

	result, err := c.GetApplyStateUseCase().Execute(ctx, desired, opts)
	if err != nil {
		if result != nil && result.RolledBack {
			return fmt.Errorf("state rolled back: %w", err)
		}
		return err
	}

	switch {
	case result.NoChanges:
		fmt.Println("No changes to apply.")
	case result.CheckpointID != "":
		fmt.Printf("Applied %d changes. Checkpoint %s pending commit.\n", result.ChangeCount, result.CheckpointID)
	default:
		fmt.Printf("Applied %d changes in %s.\n", result.ChangeCount, result.Duration.Round(time.Millisecond))
	}
	return nil
}

func runCommit(ctx context.Context, c *container.Container, args []string) error {
	fs := flag.NewFlagSet("commit", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := c.GetCommitCheckpointUseCase().Execute(ctx, fs.Arg(0)); err != nil {
		return err
	}
	fmt.Println("Checkpoint committed.")
	return nil
}

func runRollback(ctx context.Context, c *container.Container, args []string) error {
	fs := flag.NewFlagSet("rollback", flag.ExitOnError)
	timeout := fs.Duration("timeout", 0, "verification timeout for the restored state")
	if err := fs.Parse(args); err != nil {
		return err
	}

	effective := c.GetConfig().Engine.VerifyTimeout
	if *timeout > 0 {
		effective = *timeout
	}

	if err := c.GetRollbackCheckpointUseCase().Execute(ctx, fs.Arg(0), effective); err != nil {
		return err
	}
	fmt.Println("Rolled back to checkpoint.")
	return nil
}

// readDocument는 파일 또는 표준 입력에서 원하는 상태 문서를 읽습니다
func readDocument(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
