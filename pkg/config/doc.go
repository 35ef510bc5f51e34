// Package config loads application configuration from environment variables.
//
// It wraps github.com/joho/godotenv for .env files and
// github.com/caarlos0/env/v11 for struct-tag parsing. There is no process
// cache: each Load parses again and the caller owns the result, so
// configuration flows through constructors rather than package globals.
//
//	type Config struct {
//	    TrialDays int           `env:"BILLING_TRIAL_DAYS" envDefault:"7"`
//	    Timeout   time.Duration `env:"BILLING_PROVIDER_TIMEOUT" envDefault:"5s"`
//	}
//
//	if err := config.LoadEnv(); err != nil { // ./.env, optional
//	    return err
//	}
//	cfg, err := config.Parse[Config]()
//
// LoadFrom parses an explicit map instead of the process environment, which
// keeps tests parallel-safe.
//
// Errors can be matched with errors.Is: ErrParsingConfig, ErrLoadingEnvFile
// and ErrNilPointer.
package config
