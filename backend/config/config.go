package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/backupcodes"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/password"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/totp"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/pquerna/otp"
	"gopkg.in/yaml.v3"
)

// confusable characters are never allowed in a backup code alphabet.
const confusable = "0O1IL"

type Config struct {
	Listen       string            `yaml:"listen" toml:"listen"`
	DatabasePath string            `yaml:"database_path" toml:"database_path"`
	Password     PasswordConfig    `yaml:"password" toml:"password"`
	TOTP         TOTPConfig        `yaml:"totp" toml:"totp"`
	BackupCodes  BackupCodesConfig `yaml:"backup_codes" toml:"backup_codes"`
	Token        TokenConfig       `yaml:"token" toml:"token"`
	Logs         LogsConfig        `yaml:"logs" toml:"logs"`
	TLS          TLSConfig         `yaml:"tls" toml:"tls"`
}

type TLSConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Cert    string `yaml:"cert" toml:"cert"`
	Key     string `yaml:"key" toml:"key"`
}

type PasswordConfig struct {
	Algorithm  string                `yaml:"algorithm" toml:"algorithm"` // bcrypt or argon2id
	BcryptCost int                   `yaml:"bcrypt_cost" toml:"bcrypt_cost"`
	Argon2     password.Argon2Params `yaml:"argon2" toml:"argon2"`
}

type TOTPConfig struct {
	Issuer    string `yaml:"issuer" toml:"issuer"` // label shown in authenticator apps
	Period    uint   `yaml:"period" toml:"period"`
	Skew      uint   `yaml:"skew" toml:"skew"`
	Digits    int    `yaml:"digits" toml:"digits"`
	Algorithm string `yaml:"algorithm" toml:"algorithm"`
}

type BackupCodesConfig struct {
	Count    int    `yaml:"count" toml:"count"`
	Length   int    `yaml:"length" toml:"length"`
	Alphabet string `yaml:"alphabet" toml:"alphabet"`
}

type TokenConfig struct {
	Secret string        `yaml:"secret" toml:"secret"`
	TTL    time.Duration `yaml:"ttl" toml:"ttl"`
}

type LogsConfig struct {
	Level     string        `yaml:"level" toml:"level"`
	Retention time.Duration `yaml:"retention" toml:"retention"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:       ":8080",
		DatabasePath: "usuarios.db",
		Password: PasswordConfig{
			Algorithm: password.AlgorithmBcrypt,
		},
		TOTP: TOTPConfig{
			Issuer:    "SD-2025-Senhas",
			Period:    30,
			Skew:      1,
			Digits:    6,
			Algorithm: "SHA1",
		},
		BackupCodes: BackupCodesConfig{
			Count:    backupcodes.DefaultCount,
			Length:   backupcodes.DefaultLength,
			Alphabet: backupcodes.DefaultAlphabet,
		},
		Token: TokenConfig{
			TTL: 10 * time.Minute,
		},
		Logs: LogsConfig{
			Level:     "info",
			Retention: 48 * time.Hour,
		},
	}
}

// Load builds the configuration from defaults, a .env file in the working
// directory, the file at path (YAML, or TOML for a .toml extension) and
// finally environment variables. Missing files are skipped.
func Load(path string) (Config, error) {
	c := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return c, fmt.Errorf("load .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return c, fmt.Errorf("read config: %w", err)
		default:
			if err := decode(path, data, &c); err != nil {
				return c, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&c); err != nil {
		return c, err
	}
	return c, c.Validate()
}

func decode(path string, data []byte, c *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return toml.Unmarshal(data, c)
	}
	return yaml.Unmarshal(data, c)
}

// Environment overrides
func applyEnv(c *Config) error {
	str := map[string]*string{
		"LISTEN":               &c.Listen,
		"DATABASE_PATH":        &c.DatabasePath,
		"PASSWORD_ALGORITHM":   &c.Password.Algorithm,
		"TOTP_ISSUER":          &c.TOTP.Issuer,
		"TOTP_ALGORITHM":       &c.TOTP.Algorithm,
		"BACKUP_CODE_ALPHABET": &c.BackupCodes.Alphabet,
		"TOKEN_SECRET":         &c.Token.Secret,
		"LOG_LEVEL":            &c.Logs.Level,
		"TLS_CERT":             &c.TLS.Cert,
		"TLS_KEY":              &c.TLS.Key,
	}
	for name, dst := range str {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"BCRYPT_COST":        &c.Password.BcryptCost,
		"TOTP_DIGITS":        &c.TOTP.Digits,
		"BACKUP_CODE_COUNT":  &c.BackupCodes.Count,
		"BACKUP_CODE_LENGTH": &c.BackupCodes.Length,
	}
	for name, dst := range ints {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = n
		}
	}

	uints := map[string]*uint{
		"TOTP_PERIOD": &c.TOTP.Period,
		"TOTP_SKEW":   &c.TOTP.Skew,
	}
	for name, dst := range uints {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = uint(n)
		}
	}

	durations := map[string]*time.Duration{
		"TOKEN_TTL":     &c.Token.TTL,
		"LOG_RETENTION": &c.Logs.Retention,
	}
	for name, dst := range durations {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = d
		}
	}

	if v := os.Getenv("TLS_ENABLED"); v == "true" {
		c.TLS.Enabled = true
	}
	return nil
}

// Validate rejects settings the engine cannot work with.
func (c Config) Validate() error {
	switch strings.ToLower(c.Password.Algorithm) {
	case password.AlgorithmBcrypt, password.AlgorithmArgon2id:
	default:
		return fmt.Errorf("password.algorithm: unknown algorithm %q", c.Password.Algorithm)
	}
	if c.TOTP.Period == 0 {
		return errors.New("totp.period must be positive")
	}
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return fmt.Errorf("totp.digits must be 6 or 8, got %d", c.TOTP.Digits)
	}
	switch strings.ToUpper(c.TOTP.Algorithm) {
	case "SHA1", "SHA256", "SHA512":
	default:
		return fmt.Errorf("totp.algorithm: unknown algorithm %q", c.TOTP.Algorithm)
	}
	if c.BackupCodes.Count < 1 {
		return errors.New("backup_codes.count must be at least 1")
	}
	if c.BackupCodes.Length < 4 {
		return errors.New("backup_codes.length must be at least 4")
	}
	if err := validateAlphabet(c.BackupCodes.Alphabet); err != nil {
		return err
	}
	if !backupcodes.Fits(c.BackupCodes.Alphabet, c.BackupCodes.Length, c.BackupCodes.Count) {
		return fmt.Errorf("backup_codes: %d distinct codes of length %d do not fit the alphabet",
			c.BackupCodes.Count, c.BackupCodes.Length)
	}
	if c.Token.Secret != "" && len(c.Token.Secret) < 32 {
		return errors.New("token.secret must be at least 32 bytes")
	}
	if c.TLS.Enabled && (c.TLS.Cert == "" || c.TLS.Key == "") {
		return errors.New("tls.cert and tls.key are required when tls is enabled")
	}
	return nil
}

func validateAlphabet(a string) error {
	seen := make(map[rune]bool)
	for _, r := range a {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return fmt.Errorf("backup_codes.alphabet must be printable ASCII, found %q", r)
		}
		if strings.ContainsRune(confusable, r) {
			return fmt.Errorf("backup_codes.alphabet must not contain %q", r)
		}
		if unicode.IsLower(r) {
			return fmt.Errorf("backup_codes.alphabet must be upper case, found %q", r)
		}
		seen[r] = true
	}
	if len(seen) < 2 {
		return errors.New("backup_codes.alphabet needs at least two distinct characters")
	}
	return nil
}

// Hasher returns the password hashing settings.
func (c Config) Hasher() password.Config {
	return password.Config{
		Algorithm:  strings.ToLower(c.Password.Algorithm),
		BcryptCost: c.Password.BcryptCost,
		Argon2:     c.Password.Argon2,
	}
}

// TOTPOptions returns the one-time code settings.
func (c Config) TOTPOptions() totp.Options {
	opts := totp.DefaultOptions
	opts.Period = c.TOTP.Period
	opts.Skew = c.TOTP.Skew
	opts.Digits = otp.Digits(c.TOTP.Digits)
	switch strings.ToUpper(c.TOTP.Algorithm) {
	case "SHA256":
		opts.Algorithm = otp.AlgorithmSHA256
	case "SHA512":
		opts.Algorithm = otp.AlgorithmSHA512
	default:
		opts.Algorithm = otp.AlgorithmSHA1
	}
	return opts
}

// BackupCodeOptions returns the backup code generator settings.
func (c Config) BackupCodeOptions() backupcodes.Options {
	return backupcodes.Options{
		Length:   c.BackupCodes.Length,
		Alphabet: c.BackupCodes.Alphabet,
	}
}
