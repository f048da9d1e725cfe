package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("DESK_AUTH_JWT_SECRET", "test-secret-key-for-unit-testing")
	t.Setenv("DESK_SCHEDULER_REMINDER_SPEC", "@every 1m")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("期望 port=9090，实际=%d", cfg.Server.Port)
	}
	if cfg.Scheduler.ReminderSpec != "@every 1m" {
		t.Errorf("期望环境变量覆盖 reminder_spec，实际=%s", cfg.Scheduler.ReminderSpec)
	}
	if cfg.App.Timezone != "Europe/Moscow" {
		t.Errorf("期望默认时区 Europe/Moscow，实际=%s", cfg.App.Timezone)
	}
	if cfg.Scheduler.GeneratingTimeout != 30*time.Minute {
		t.Errorf("期望 generating_timeout=30m，实际=%s", cfg.Scheduler.GeneratingTimeout)
	}
	if cfg.Scheduler.DispatchBatchSize != 200 {
		t.Errorf("期望 dispatch_batch_size=200，实际=%d", cfg.Scheduler.DispatchBatchSize)
	}
	if cfg.Telegram.DryRun {
		t.Error("telegram.dry_run 默认应关闭")
	}
	if cfg.Storage.TemplatesDir != "./templates" {
		t.Errorf("期望 templates_dir=./templates，实际=%s", cfg.Storage.TemplatesDir)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		Server:    ServerConfig{Port: 8080},
		Auth:      AuthConfig{JWTSecret: "0123456789abcdef"},
		App:       AppConfig{Timezone: "Europe/Moscow"},
		Scheduler: SchedulerConfig{GeneratingTimeout: time.Minute},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("期望校验通过: %v", err)
	}

	short := base
	short.Auth.JWTSecret = "short"
	if err := short.Validate(); err == nil {
		t.Error("短密钥应校验失败")
	}

	badTZ := base
	badTZ.App.Timezone = "Mars/Olympus"
	if err := badTZ.Validate(); err == nil {
		t.Error("无效时区应校验失败")
	}

	negBatch := base
	negBatch.Scheduler.DispatchBatchSize = -1
	if err := negBatch.Validate(); err == nil {
		t.Error("负的派发上限应校验失败")
	}
}
