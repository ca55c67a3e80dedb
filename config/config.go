package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory    = "memory"
	StoreRedis     = "redis"
	StorePostgres  = "postgres"
	StoreMongo     = "mongo"
	StoreDynamo    = "dynamodb"
	StoreFirestore = "firestore"

	EventsNone  = "none"
	EventsKafka = "kafka"
	EventsSNS   = "sns"
)

// DBCredentialsSecret is the Secrets Manager entry holding Postgres credentials.
const DBCredentialsSecret = "cart/DB_CREDENTIALS"

type Config struct {
	Port   string
	AppEnv string

	CartStore    string
	CartNotifier string
	CartTTL      time.Duration

	RedisURL string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	MongoURL    string
	MongoDBName string

	DynamoTable       string
	DynamoCreateTable bool

	FirestoreProjectID string
	GoogleCredentials  string

	EventsBackend      string
	KafkaBrokers       []string
	KafkaTopic         string
	KafkaUpdatesTopic  string
	CartSNSTopicARN    string
	OrderEventsQueue   string
	IdempotencyEnabled bool

	AuthMode          string
	JWTSecret         string
	FirebaseProjectID string

	AllowedOrigins   []string
	RateLimitRPS     float64
	RateLimitBurst   int
	CloudWatchEnable bool
	CloudWatchGroup  string
	MetricsNamespace string
}

// Load reads the environment, loading a .env file first when present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:   getEnv("PORT", "8086"),
		AppEnv: getEnv("APP_ENV", "development"),

		CartStore:    strings.ToLower(getEnv("CART_STORE", StoreRedis)),
		CartNotifier: strings.ToLower(getEnv("CART_NOTIFIER", "")),
		CartTTL:      getDuration("CART_TTL", 7*24*time.Hour),

		RedisURL: getEnv("REDIS_URL", "redis://redis:6379"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),

		MongoURL:    os.Getenv("MONGO_DB_URL"),
		MongoDBName: getEnv("MONGO_DB_NAME", "ecommerce"),

		DynamoTable:       getEnv("DDB_TABLE_CARTS", "Carts"),
		DynamoCreateTable: getBool("DDB_CREATE_TABLE", false),

		FirestoreProjectID: os.Getenv("FIRESTORE_PROJECT_ID"),
		GoogleCredentials:  os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),

		EventsBackend:      strings.ToLower(getEnv("EVENTS_BACKEND", EventsKafka)),
		KafkaBrokers:       splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "checkout.requested"),
		KafkaUpdatesTopic:  getEnv("KAFKA_UPDATES_TOPIC", "cart.updated"),
		CartSNSTopicARN:    os.Getenv("CART_SNS_TOPIC_ARN"),
		OrderEventsQueue:   os.Getenv("ORDER_EVENTS_QUEUE_URL"),
		IdempotencyEnabled: getBool("CHECKOUT_IDEMPOTENCY", true),

		AuthMode:          strings.ToLower(getEnv("AUTH_MODE", "gateway")),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		FirebaseProjectID: os.Getenv("FIREBASE_PROJECT_ID"),

		AllowedOrigins:   splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		RateLimitRPS:     getFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:   getInt("RATE_LIMIT_BURST", 40),
		CloudWatchEnable: getBool("CLOUDWATCH_ENABLED", false),
		CloudWatchGroup:  getEnv("CLOUDWATCH_LOG_GROUP", "/ecommerce/cart-service"),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "ECommerce"),
	}
}

// Notifier returns the change notifier backend, defaulting to the one that
// matches the store.
func (c Config) Notifier() string {
	if c.CartNotifier != "" {
		return c.CartNotifier
	}
	switch c.CartStore {
	case StoreRedis, StorePostgres, StoreFirestore:
		return c.CartStore
	}
	return StoreMemory
}

// Validate rejects unknown backends and settings missing for the selected ones.
func (c Config) Validate() error {
	switch c.CartStore {
	case StoreMemory, StoreRedis, StoreMongo, StoreDynamo:
	case StorePostgres:
		if c.PostgresUser == "" || c.PostgresPassword == "" || c.PostgresDB == "" {
			return fmt.Errorf("database config incomplete: POSTGRES_USER, POSTGRES_PASSWORD and POSTGRES_DB are required")
		}
	case StoreFirestore:
		if c.FirestoreProjectID == "" {
			return fmt.Errorf("FIRESTORE_PROJECT_ID is required for CART_STORE=firestore")
		}
	default:
		return fmt.Errorf("unknown CART_STORE %q", c.CartStore)
	}
	if c.CartStore == StoreMongo && c.MongoURL == "" {
		return fmt.Errorf("MONGO_DB_URL is required for CART_STORE=mongo")
	}

	switch n := c.Notifier(); n {
	case StoreMemory:
	case StoreRedis, StorePostgres, StoreFirestore:
		// cross-process feeds read carts from the same backend they watch
		if n != c.CartStore && n != StoreRedis {
			return fmt.Errorf("CART_NOTIFIER=%s requires CART_STORE=%s", n, n)
		}
	default:
		return fmt.Errorf("unknown CART_NOTIFIER %q", n)
	}

	switch c.EventsBackend {
	case EventsNone:
	case EventsKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required for EVENTS_BACKEND=kafka")
		}
	case EventsSNS:
		if c.CartSNSTopicARN == "" {
			return fmt.Errorf("CART_SNS_TOPIC_ARN is required for EVENTS_BACKEND=sns")
		}
	default:
		return fmt.Errorf("unknown EVENTS_BACKEND %q", c.EventsBackend)
	}

	switch c.AuthMode {
	case "gateway":
	case "jwt":
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required for AUTH_MODE=jwt")
		}
	case "firebase":
		if c.FirebaseProjectID == "" && c.FirestoreProjectID == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required for AUTH_MODE=firebase")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}

	if c.CartTTL < 0 {
		return fmt.Errorf("CART_TTL must not be negative")
	}
	return nil
}

// PostgresDSN builds the gorm/pgx connection string.
func (c Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB,
		c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone,
	)
}

// SecretSource is satisfied by pkg/aws.SecretsClient.
type SecretSource interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

// ApplySecrets overrides the Postgres credentials with the values stored in
// DBCredentialsSecret. Missing keys keep their environment value.
func (c *Config) ApplySecrets(ctx context.Context, sm SecretSource) error {
	m, err := sm.GetSecretMap(ctx, DBCredentialsSecret)
	if err != nil {
		return fmt.Errorf("read %s: %w", DBCredentialsSecret, err)
	}
	for key, dst := range map[string]*string{
		"POSTGRES_USER":     &c.PostgresUser,
		"POSTGRES_PASSWORD": &c.PostgresPassword,
		"POSTGRES_DB":       &c.PostgresDB,
		"POSTGRES_HOST":     &c.PostgresHost,
		"POSTGRES_PORT":     &c.PostgresPort,
	} {
		if v, ok := m[key]; ok && v != "" {
			*dst = v
		}
	}
	return nil
}

// UseSecrets reports whether AWS_USE_SECRETS=true.
func UseSecrets() bool {
	return os.Getenv("AWS_USE_SECRETS") == "true"
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultVal
}

func getFloat(key string, defaultVal float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
