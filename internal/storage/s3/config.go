package s3

import "fmt"

type Config struct {
	Endpoint        string `mapstructure:"Endpoint"`
	Region          string `mapstructure:"Region"`
	Bucket          string `mapstructure:"Bucket"`
	AccessKeyID     string `mapstructure:"AccessKeyID"`
	SecretAccessKey string `mapstructure:"SecretAccessKey"`
	// PublicHost is prepended to object keys to build client-facing URLs.
	// When empty, URLs point at the endpoint using path-style addressing.
	PublicHost string `mapstructure:"PublicHost"`
	PathStyle  bool   `mapstructure:"PathStyle"`
}

func (c *Config) Validate() error {
	if c.AccessKeyID == "" {
		return fmt.Errorf("AccessKeyID is required")
	}
	if c.SecretAccessKey == "" {
		return fmt.Errorf("SecretAccessKey is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("Bucket is required")
	}
	if c.Endpoint == "" {
		return fmt.Errorf("Endpoint is required")
	}
	return nil
}
