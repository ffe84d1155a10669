package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string   `env:"PORT" envDefault:"3000"`
		ReadTimeout     int      `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int      `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int      `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int      `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
		AllowedOrigins  []string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:5173"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN,required"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"336"` // 14 天，单位为小时
		Secret     string `env:"SECRET,required"`
	} `envPrefix:"JWT_"`
	Seed struct {
		Employee struct {
			Password string `env:"PASSWORD" envDefault:"123456"`
		} `envPrefix:"EMPLOYEE_"`
	} `envPrefix:"SEED_"`
	Email struct {
		UserDomain    string `env:"USER_DOMAIN" envDefault:"allinone.com.sg"`
		SentClaimTTL  int    `env:"SENT_CLAIM_TTL" envDefault:"600"`     // 发送中标记的过期时间，单位为秒
		SentRetention int    `env:"SENT_RETENTION" envDefault:"604800"` // 已发送记录的保留时间，单位为秒
		SMTP          struct {
			Username    string `env:"USERNAME"`
			Password    string `env:"PASSWORD"`
			Host        string `env:"HOST"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN            string `env:"DSN,required"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
		Prefetch       int    `env:"PREFETCH" envDefault:"1"`
		RetryDelay     int    `env:"RETRY_DELAY" envDefault:"5"` // 消息处理失败后重新入队前的等待时间，单位为秒
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host                string `env:"HOST" envDefault:"localhost"`
		Port                int    `env:"PORT" envDefault:"6379"`
		Password            string `env:"PASSWORD"`
		ConnectTimeout      int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationExpiration int    `env:"OPERATION_EXPIRATION" envDefault:"10"`
	} `envPrefix:"REDIS_"`
	OTP struct {
		Expiration int `env:"EXPIRATION" envDefault:"900"` // 15 分钟
	} `envPrefix:"OTP_"`
	WFH struct {
		CapacityThreshold       decimal.Decimal `env:"CAPACITY_THRESHOLD" envDefault:"0.5"`
		UnconstrainedDepartment string          `env:"UNCONSTRAINED_DEPARTMENT" envDefault:"CEO"`
		SubmissionMonthsBack    int             `env:"SUBMISSION_MONTHS_BACK" envDefault:"2"`
		SubmissionMonthsForward int             `env:"SUBMISSION_MONTHS_FORWARD" envDefault:"3"`
		PendingExpiryMonths     int             `env:"PENDING_EXPIRY_MONTHS" envDefault:"2"`
		RevocationWindowMonths  int             `env:"REVOCATION_WINDOW_MONTHS" envDefault:"3"`
		SweepInterval           int             `env:"SWEEP_INTERVAL" envDefault:"86400"` // 单位为秒
		SerializeApprovals      bool            `env:"SERIALIZE_APPROVALS" envDefault:"true"`
		ApprovalLockTTL         int             `env:"APPROVAL_LOCK_TTL" envDefault:"30"` // 单位为秒
	} `envPrefix:"WFH_"`
}

func LoadConfig() (*Config, error) {
	// 开发环境下允许通过 .env 文件提供环境变量，文件不存在时忽略
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	return cfg, nil
}
