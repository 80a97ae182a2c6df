package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/murichu/go-auth-service/internal/flagx"
	"github.com/murichu/go-auth-service/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "15m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its fields are copied into the
// runtime Config struct which uses time.Duration.
type JsonConfig struct {
	Env                          string         `json:"env"`
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	SessionTokenValidityDuration timex.Duration `json:"session_token_validity_duration"`
	OTPValidityDuration          timex.Duration `json:"otp_validity_duration"`
	OTPResendCooldown            timex.Duration `json:"otp_resend_cooldown"`
	SMTPHost                     string         `json:"smtp_host"`
	SMTPPort                     int            `json:"smtp_port"`
	SMTPUsername                 string         `json:"smtp_username"`
	SMTPPassword                 string         `json:"smtp_password"`
	EmailFrom                    string         `json:"email_from"`
	FrontendOrigin               string         `json:"frontend_origin"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flags; when
// neither is set, no JSON file is loaded. If the file cannot be read or
// contains invalid JSON, the function panics: a present-but-broken config
// file is a deployment error worth failing fast on.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	if c.Env != "" {
		config.Env = c.Env
	}
	if c.EndpointAddrHTTP != "" {
		config.EndpointAddrHTTP = c.EndpointAddrHTTP
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.SessionTokenValidityDuration.Duration != 0 {
		config.SessionTokenValidityDuration = time.Duration(c.SessionTokenValidityDuration.Duration)
	}
	if c.OTPValidityDuration.Duration != 0 {
		config.OTPValidityDuration = time.Duration(c.OTPValidityDuration.Duration)
	}
	if c.OTPResendCooldown.Duration != 0 {
		config.OTPResendCooldown = time.Duration(c.OTPResendCooldown.Duration)
	}
	if c.SMTPHost != "" {
		config.SMTPHost = c.SMTPHost
	}
	if c.SMTPPort != 0 {
		config.SMTPPort = c.SMTPPort
	}
	if c.SMTPUsername != "" {
		config.SMTPUsername = c.SMTPUsername
	}
	if c.SMTPPassword != "" {
		config.SMTPPassword = c.SMTPPassword
	}
	if c.EmailFrom != "" {
		config.EmailFrom = c.EmailFrom
	}
	if c.FrontendOrigin != "" {
		config.FrontendOrigin = c.FrontendOrigin
	}
}
