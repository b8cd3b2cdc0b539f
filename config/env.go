package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// envBindings maps config keys to the environment variables read for them,
// in lookup order.
var envBindings = map[string][]string{
	"api_url":              {"api_url", "API_URL"},
	"oidc_resource":        {"oidc_resource", "OIDC_RESOURCE"},
	"oidc_secret":          {"oidc_secret", "OIDC_SECRET"},
	"oidc_auth_server_url": {"oidc_auth_server_url", "OIDC_AUTH_SERVER_URL"},
	"username":             {"username"},
	"password":             {"password"},
	"port":                 {"PORT"},
}

// LoadEnv fills the environment-sourced fields from the process environment.
//
// If envFile is not empty it is read as a dotenv file first; variables set in
// the process environment take precedence over the file. PORT, when set,
// overrides the tuning file's port.
func (c *Config) LoadEnv(envFile string) error {
	v := viper.New()
	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read env file: %w", err)
		}
	}

	c.APIURL = v.GetString("api_url")
	c.OIDC = OIDC{
		ClientID:     v.GetString("oidc_resource"),
		ClientSecret: v.GetString("oidc_secret"),
		TokenURL:     v.GetString("oidc_auth_server_url"),
		Username:     v.GetString("username"),
		Password:     v.GetString("password"),
	}

	if v.IsSet("port") {
		port := v.GetInt("port")
		if port == 0 {
			return fmt.Errorf("PORT must be a number, got %q", v.GetString("port"))
		}
		c.Port = port
	}
	return nil
}
