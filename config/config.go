package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"postgres"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"paper_triplets"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// BioC-Export der NCBI BioNLP-API
	BioCBaseURL  string        `envconfig:"BIOC_BASE_URL" default:"https://www.ncbi.nlm.nih.gov/research/bionlp/RESTful/pmcoa.cgi"`
	BioCEncoding string        `envconfig:"BIOC_ENCODING" default:"unicode"`
	BioCCacheTTL time.Duration `envconfig:"BIOC_CACHE_TTL" default:"1h"`
	FetchDelay   time.Duration `envconfig:"FETCH_DELAY" default:"1s"`
	FetchTimeout time.Duration `envconfig:"FETCH_TIMEOUT" default:"60s"`

	// Tabelle mit Publikationslinks (URL oder lokaler Pfad)
	PublicationsCSV  string `envconfig:"PUBLICATIONS_CSV" default:"https://raw.githubusercontent.com/jgalazka/SB_publications/main/SB_publication_PMC.csv"`
	PublicationsLink string `envconfig:"PUBLICATIONS_LINK_COLUMN" default:"Link"`
	ResolvePMIDs     bool   `envconfig:"RESOLVE_PMIDS" default:"false"`
	IDConvURL        string `envconfig:"IDCONV_URL" default:"https://www.ncbi.nlm.nih.gov/pmc/utils/idconv/v1.0/"`

	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 3 * * 0"`
	CronEnabled  bool   `envconfig:"CRON_ENABLED" default:"false"`

	S3Key    string `envconfig:"S3_KEY"`
	S3Secret string `envconfig:"S3_SECRET"`
	S3URL    string `envconfig:"S3_URL"`
	S3Region string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Bucket string `envconfig:"S3_BUCKET"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// S3Enabled meldet, ob ein Export-Bucket konfiguriert ist.
func (c *Config) S3Enabled() bool {
	return c.S3URL != "" && c.S3Bucket != "" && c.S3Key != ""
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
