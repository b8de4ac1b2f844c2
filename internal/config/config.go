package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/wifiobd/shopbot/internal/models"
)

type Config struct {
	BOT_TOKEN string
	ADMIN_IDS []int64

	DB_HOST     string
	DB_PORT     string
	DB_USER     string
	DB_PASSWORD string
	DB_NAME     string

	OPENCART_DB_HOST     string
	OPENCART_DB_PORT     string
	OPENCART_DB_USER     string
	OPENCART_DB_PASSWORD string
	OPENCART_DB_NAME     string

	OPENCART_API_URL   string
	OPENCART_API_TOKEN string
	OPENCART_URL       string

	REDIS_ADDR     string
	REDIS_PASSWORD string
	REDIS_DB       int

	YOOKASSA_SHOP_ID    string
	YOOKASSA_SECRET_KEY string

	KAFKA_ADDRESS string

	ES_URL      string
	ES_USER     string
	ES_PASSWORD string

	JWT_SECRET          string
	ADMIN_PASSWORD_HASH string
	ADMIN_HTTP_ADDR     string

	CART_EXPIRE_DAYS    int
	SESSION_TTL_MINUTES int
	LOG_LEVEL           string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		BOT_TOKEN:            os.Getenv("BOT_TOKEN"),
		ADMIN_IDS:            parseIDs(os.Getenv("ADMIN_IDS")),
		DB_HOST:              os.Getenv("DB_HOST"),
		DB_PORT:              getEnv("DB_PORT", "5432"),
		DB_USER:              os.Getenv("DB_USER"),
		DB_PASSWORD:          os.Getenv("DB_PASSWORD"),
		DB_NAME:              os.Getenv("DB_NAME"),
		OPENCART_DB_HOST:     os.Getenv("OPENCART_DB_HOST"),
		OPENCART_DB_PORT:     getEnv("OPENCART_DB_PORT", "3306"),
		OPENCART_DB_USER:     os.Getenv("OPENCART_DB_USER"),
		OPENCART_DB_PASSWORD: os.Getenv("OPENCART_DB_PASSWORD"),
		OPENCART_DB_NAME:     getEnv("OPENCART_DB_NAME", "opencart"),
		OPENCART_API_URL:     os.Getenv("OPENCART_API_URL"),
		OPENCART_API_TOKEN:   os.Getenv("OPENCART_API_TOKEN"),
		OPENCART_URL:         os.Getenv("OPENCART_URL"),
		REDIS_ADDR:           getEnv("REDIS_ADDR", "localhost:6379"),
		REDIS_PASSWORD:       os.Getenv("REDIS_PASSWORD"),
		REDIS_DB:             parseInt(os.Getenv("REDIS_DB"), 0),
		YOOKASSA_SHOP_ID:     os.Getenv("YOOKASSA_SHOP_ID"),
		YOOKASSA_SECRET_KEY:  os.Getenv("YOOKASSA_SECRET_KEY"),
		KAFKA_ADDRESS:        os.Getenv("KAFKA_ADDRESS"),
		ES_URL:               os.Getenv("ES_URL"),
		ES_USER:              os.Getenv("ES_USER"),
		ES_PASSWORD:          os.Getenv("ES_PASSWORD"),
		JWT_SECRET:           os.Getenv("JWT_SECRET"),
		ADMIN_PASSWORD_HASH:  os.Getenv("ADMIN_PASSWORD_HASH"),
		ADMIN_HTTP_ADDR:      getEnv("ADMIN_HTTP_ADDR", ":8080"),
		CART_EXPIRE_DAYS:     parseInt(os.Getenv("CART_EXPIRE_DAYS"), 7),
		SESSION_TTL_MINUTES:  parseInt(os.Getenv("SESSION_TTL_MINUTES"), 30),
		LOG_LEVEL:            getEnv("LOG_LEVEL", "info"),
	}

	if config.BOT_TOKEN == "" {
		return nil, fmt.Errorf("BOT_TOKEN не задан")
	}

	return config, nil
}

// InitDB открывает собственную БД бота (PostgreSQL) и накатывает миграции.
func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DB_USER, cfg.DB_PASSWORD, cfg.DB_HOST, cfg.DB_PORT, cfg.DB_NAME,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к БД: %w", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Order{}, &models.SupportTicket{}); err != nil {
		return nil, fmt.Errorf("не удалось выполнить миграцию: %w", err)
	}
	return db, nil
}

// InitOpenCartDB открывает витринную БД OpenCart (MySQL).
// Миграции не выполняются: схема принадлежит магазину, мы только читаем.
func InitOpenCartDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True",
		cfg.OPENCART_DB_USER, cfg.OPENCART_DB_PASSWORD,
		cfg.OPENCART_DB_HOST, cfg.OPENCART_DB_PORT, cfg.OPENCART_DB_NAME,
	)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к БД OpenCart: %w", err)
	}
	return db, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func parseIDs(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
