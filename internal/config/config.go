package config

import (
	"log"

	"triconnect/pkg/config"
)

type Config struct {
	DB       config.DBConfig       `yaml:"db"`
	MQ       config.MQConfig       `yaml:"mq"`
	Redis    config.RedisConfig    `yaml:"redis"`
	JWT      config.JWTConfig      `yaml:"jwt"`
	Server   config.ServerConfig   `yaml:"server"`
	SMTP     config.SMTPConfig     `yaml:"smtp"`
	SMS      config.SMSConfig      `yaml:"sms"`
	Calendar config.CalendarConfig `yaml:"calendar"`
	Reminder config.ReminderConfig `yaml:"reminder"`
	Fanout   config.FanoutConfig   `yaml:"fanout"`
}

func Load() *Config {
	// 使用统一配置中心
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var cfg Config
	if err := config.Decode(cfgMap, &cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}

	// 环境变量覆盖（优先级最高）
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideSMTPFromEnv(&cfg.SMTP)
	config.OverrideSMSFromEnv(&cfg.SMS)
	config.OverrideCalendarFromEnv(&cfg.Calendar)

	// 缺省值
	if cfg.Reminder.WindowHours <= 0 {
		cfg.Reminder.WindowHours = 24
	}
	if cfg.Reminder.DedupTTLHours <= 0 {
		cfg.Reminder.DedupTTLHours = 26
	}
	if cfg.Fanout.MaxConcurrency <= 0 {
		cfg.Fanout.MaxConcurrency = 8
	}

	return &cfg
}
