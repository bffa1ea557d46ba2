package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                    string
	FirebaseCredentialsPath string
	PostgresConnStr         string
	MongoURI                string
	MetricsPort             string
	AllowedEmails           string
	EmailDomain             string
	AppBaseURL              string
}

// Load reads the configuration from the environment, after loading a .env
// file when one is present. It is the only place the process reads env vars
// besides JWT_SECRET.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}

	return &Config{
		Port:                    getEnv("PORT", "8080"),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", "./firebase_credentials.json"),
		PostgresConnStr:         getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:                getEnv("MONGO_URI", ""),
		MetricsPort:             getEnv("METRICS_PORT", "9090"),
		AllowedEmails:           getEnv("ALLOWED_EMAILS", ""),
		EmailDomain:             getEnv("EMAIL_DOMAIN", ""),
		AppBaseURL:              getEnv("APP_BASE_URL", "http://localhost:3000"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
