package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	OMS      OMSConfig      `yaml:"oms"`
	Carrier  CarrierConfig  `yaml:"carrier"`
	LabelBox LabelBoxConfig `yaml:"labelbox"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                    string `yaml:"host"`
	Port                    int    `yaml:"port"`
	LabelRequestedTopicName string `yaml:"label_requested_topic_name"`
	LabelOutcomeTopicName   string `yaml:"label_outcome_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// OMSConfig describes the order-management API. Credentials may be left empty
// in the file and supplied through the ClientId / ClientSecret / ApiKey env vars.
type OMSConfig struct {
	AuthURL        string `yaml:"auth_url"`
	APIURL         string `yaml:"api_url"`
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type CarrierConfig struct {
	Name           string `yaml:"name"`
	BaseURL        string `yaml:"base_url"`
	Mode           string `yaml:"mode"`          // "gls" | "fake"
	ConfigSource   string `yaml:"config_source"` // "registry" | "inline" | "store"
	TimeoutSeconds int    `yaml:"timeout_seconds"`

	RateLimitPerMinute      int `yaml:"rate_limit_per_minute"`
	BreakerFailureThreshold int `yaml:"breaker_failure_threshold"`
	BreakerOpenSeconds      int `yaml:"breaker_open_seconds"`

	InlineSetup InlineSetupConfig `yaml:"inline_setup"`
}

type InlineSetupConfig struct {
	UserName   string `yaml:"user_name"`
	Password   string `yaml:"password"`
	CustomerID string `yaml:"customer_id"`
	ContactID  string `yaml:"contact_id"`
}

type LabelBoxConfig struct {
	WorkerHTTPAddr     string `yaml:"worker_http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`
	DedupTTLSeconds    int    `yaml:"dedup_ttl_seconds"`

	// DefaultSender is used as the alternative shipper for shipments without a seller.
	// When absent the OMS context of the triggering event is fetched instead.
	DefaultSender *PartyConfig `yaml:"default_sender"`
}

type PartyConfig struct {
	Addressee           string `yaml:"addressee"`
	StreetNameAndNumber string `yaml:"street_name_and_number"`
	PostalCode          string `yaml:"postal_code"`
	CityTownOrVillage   string `yaml:"city_town_or_village"`
	CountryCode         string `yaml:"country_code"`

	ContactName  string `yaml:"contact_name"`
	ContactEmail string `yaml:"contact_email"`
	ContactPhone string `yaml:"contact_phone"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	config.OMS.applyEnv()

	return &config, nil
}

func (c *OMSConfig) applyEnv() {
	if v := os.Getenv("ClientId"); v != "" {
		c.ClientID = v
	}
	if v := os.Getenv("ClientSecret"); v != "" {
		c.ClientSecret = v
	}
	if v := os.Getenv("ApiKey"); v != "" {
		c.APIKey = v
	}
}
