package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Serial   SerialConfig   `mapstructure:"serial"`
	AFT      AFTConfig      `mapstructure:"aft"`
	Machine  MachineConfig  `mapstructure:"machine"`
	Log      LogConfig      `mapstructure:"log"`
	Security SecurityConfig `mapstructure:"security"`
	System   SystemConfig   `mapstructure:"system"`
}

// ServerConfig 维护接口服务配置
type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// SerialConfig 主机通讯串口配置
type SerialConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Port          string        `mapstructure:"port"`
	BaudRate      int           `mapstructure:"baud_rate"`
	Address       byte          `mapstructure:"address"` // 机台在主机链路上的地址
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	RetryTimes    int           `mapstructure:"retry_times"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	LogFrames     bool          `mapstructure:"log_frames"`
}

// AFTConfig AFT功能配置（支持热更新）
type AFTConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	AssetNumber        uint32 `mapstructure:"asset_number"`
	TransferIn         bool   `mapstructure:"transfer_in"`
	TransferOut        bool   `mapstructure:"transfer_out"`
	TicketTransfers    bool   `mapstructure:"ticket_transfers"`
	BonusTransfers     bool   `mapstructure:"bonus_transfers"`
	DebitTransfers     bool   `mapstructure:"debit_transfers"`
	WinToHost          bool   `mapstructure:"win_to_host"`
	PartialTransfers   bool   `mapstructure:"partial_transfers"`
	Receipts           bool   `mapstructure:"receipts"`
	CustomTicketData   bool   `mapstructure:"custom_ticket_data"`
	TransferLimit      uint64 `mapstructure:"transfer_limit"` // 单位：分
	CreditLimit        uint64 `mapstructure:"credit_limit"`   // 单位：分
	HostCashOutEnabled bool   `mapstructure:"host_cashout_enabled"`
}

// MachineConfig 机台模拟状态配置
type MachineConfig struct {
	PrinterAvailable bool          `mapstructure:"printer_available"`
	BonusAllowed     bool          `mapstructure:"bonus_allowed"`
	CashOutTimeout   time.Duration `mapstructure:"cashout_timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"`
	Output  string            `mapstructure:"output"`
	File    LogFileConfig     `mapstructure:"file"`
	Modules map[string]string `mapstructure:"modules"`
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	JWT      JWTConfig      `mapstructure:"jwt"`
	Operator OperatorConfig `mapstructure:"operator"`
}

// JWTConfig JWT配置，Secret 为空时维护接口不鉴权
type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// OperatorConfig 维护人员账号（密码为argon2id哈希）
type OperatorConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

// SystemConfig 系统配置
type SystemConfig struct {
	Timezone string `mapstructure:"timezone"`
	MaxProcs int    `mapstructure:"max_procs"`
}

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
	v    *viper.Viper
)

// Init 初始化配置
func Init(configPath string) error {
	var err error
	once.Do(func() {
		v = newViper(configPath)

		// 读取配置文件
		if err = v.ReadInConfig(); err != nil {
			// 如果配置文件不存在，使用默认配置
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return
			}
			err = nil
		}

		loaded := &Config{}
		if err = v.Unmarshal(loaded); err != nil {
			return
		}
		if err = loaded.Validate(); err != nil {
			return
		}

		mu.Lock()
		cfg = loaded
		mu.Unlock()
	})

	return err
}

// Load 从指定文件加载一份独立的配置（不影响全局配置）
func Load(configPath string) (*Config, error) {
	lv := newViper(configPath)
	if err := lv.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	loaded := &Config{}
	if err := lv.Unmarshal(loaded); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := loaded.Validate(); err != nil {
		return nil, err
	}
	return loaded, nil
}

func newViper(configPath string) *viper.Viper {
	nv := viper.New()

	// 设置配置文件路径
	if configPath != "" {
		nv.SetConfigFile(configPath)
	} else {
		nv.SetConfigName("config")
		nv.SetConfigType("yaml")
		nv.AddConfigPath("./config")
		nv.AddConfigPath(".")
	}

	// 设置环境变量前缀
	nv.SetEnvPrefix("EGM_AFT")
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	nv.AutomaticEnv()

	setDefaults(nv)
	return nv
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 维护接口默认配置
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// 数据库默认配置
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/egm-aft.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)

	// 主机串口默认配置
	v.SetDefault("serial.enabled", false)
	v.SetDefault("serial.port", "/dev/ttyS0")
	v.SetDefault("serial.baud_rate", 19200)
	v.SetDefault("serial.address", 1)
	v.SetDefault("serial.read_timeout", "100ms")
	v.SetDefault("serial.retry_times", 3)
	v.SetDefault("serial.retry_interval", "2s")
	v.SetDefault("serial.log_frames", false)

	// AFT默认配置
	v.SetDefault("aft.enabled", true)
	v.SetDefault("aft.asset_number", 1)
	v.SetDefault("aft.transfer_in", true)
	v.SetDefault("aft.transfer_out", true)
	v.SetDefault("aft.ticket_transfers", false)
	v.SetDefault("aft.bonus_transfers", true)
	v.SetDefault("aft.debit_transfers", false)
	v.SetDefault("aft.win_to_host", false)
	v.SetDefault("aft.partial_transfers", true)
	v.SetDefault("aft.receipts", false)
	v.SetDefault("aft.custom_ticket_data", false)
	v.SetDefault("aft.transfer_limit", 1000000)
	v.SetDefault("aft.credit_limit", 10000000)
	v.SetDefault("aft.host_cashout_enabled", false)

	// 机台默认配置
	v.SetDefault("machine.printer_available", true)
	v.SetDefault("machine.bonus_allowed", true)
	v.SetDefault("machine.cashout_timeout", "30s")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "both")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "egm-aft.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)

	// 安全默认配置
	v.SetDefault("security.jwt.expire_hours", 8)

	v.SetDefault("system.timezone", "Local")
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.AFT.Enabled && c.AFT.AssetNumber == 0 {
		return fmt.Errorf("aft.asset_number 不能为0")
	}
	if c.AFT.TransferLimit > c.AFT.CreditLimit {
		return fmt.Errorf("aft.transfer_limit(%d) 不能大于 aft.credit_limit(%d)", c.AFT.TransferLimit, c.AFT.CreditLimit)
	}
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", c.Database.Driver)
	}
	if c.Serial.Enabled && (c.Serial.Address == 0 || c.Serial.Address > 127) {
		return fmt.Errorf("serial.address 必须在1到127之间")
	}
	return nil
}

// Get 获取配置实例
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch 监听配置文件变化
func Watch(callback func(*Config)) {
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()

		newCfg := &Config{}
		if err := v.Unmarshal(newCfg); err != nil {
			fmt.Printf("配置重载失败: %v\n", err)
			return
		}
		if err := newCfg.Validate(); err != nil {
			fmt.Printf("配置重载失败: %v\n", err)
			return
		}

		cfg = newCfg

		if callback != nil {
			callback(cfg)
		}

		fmt.Println("配置已重新加载")
	})
}
