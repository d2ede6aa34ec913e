package config

// Environment Variable Keys
const (
	// EnvAppEnv selects the runtime environment (local, dev, prod)
	EnvAppEnv = "APP_ENV"

	EnvHTTPPort = "HTTP_PORT"
	EnvGRPCPort = "GRPC_PORT"

	// EnvPaymentMode selects the payment handler (cash, card)
	EnvPaymentMode = "PAYMENT_MODE"

	// EnvCardAccount is the wallet account charged in card mode
	EnvCardAccount = "CARD_ACCOUNT"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"

	EnvMySQLDSN = "MYSQL_DSN"

	// EnvKafkaBrokers is a comma separated broker list
	EnvKafkaBrokers = "KAFKA_BROKERS"
	EnvKafkaTopic   = "KAFKA_TOPIC"
)
