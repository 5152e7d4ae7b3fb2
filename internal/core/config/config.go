package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}

type AdminHTTP struct {
	Host string
	Port int
}

type App struct {
	Name  string
	Env   string
	HTTP  HTTP
	Admin AdminHTTP
}

type Log struct {
	Level string
	JSON  bool
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DB struct {
	Driver             string
	DSN                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

// Lending 借阅业务参数；零值时取默认（14 天借期 / 3 天临期 / 低于 2 本算低库存）
type Lending struct {
	LoanDays      int
	DueSoonDays   int
	LowStockBelow int
	TrendMonths   int
	ActivityDays  int
	TopBooks      int
	CacheTTLSec   int
}

type Config struct {
	App     App
	Log     Log
	JWT     JWT
	DB      DB
	Redis   Redis `mapstructure:"redis"`
	Lending Lending
}

func Load(path string) *Config {
	v := viper.New()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("read config: %v", err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		log.Fatalf("unmarshal config: %v", err)
	}
	c.Lending.applyDefaults()
	return &c
}

func (l *Lending) applyDefaults() {
	if l.LoanDays <= 0 {
		l.LoanDays = 14
	}
	if l.DueSoonDays <= 0 {
		l.DueSoonDays = 3
	}
	if l.LowStockBelow <= 0 {
		l.LowStockBelow = 2
	}
	if l.TrendMonths <= 0 {
		l.TrendMonths = 6
	}
	if l.ActivityDays <= 0 {
		l.ActivityDays = 30
	}
	if l.TopBooks <= 0 {
		l.TopBooks = 10
	}
	if l.CacheTTLSec <= 0 {
		l.CacheTTLSec = 30
	}
}
