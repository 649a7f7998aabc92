package notify

// Sender kinds selectable in configuration.
const (
	SenderSMTP = "smtp"
	SenderLog  = "log"
)

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	User string `mapstructure:"user"`
	Pass string `mapstructure:"pass"`
	// TLS is one of "mandatory", "opportunistic" or "none".
	TLS string `mapstructure:"tls"`
}

// Config controls email notifications.
type Config struct {
	Enabled bool       `mapstructure:"enabled"`
	From    string     `mapstructure:"from"`
	Admin   string     `mapstructure:"admin"`
	Sender  string     `mapstructure:"sender"`
	SMTP    SMTPConfig `mapstructure:"smtp"`
}

// DefaultConfig returns email settings matching a local development setup.
func DefaultConfig() Config {
	return Config{
		Enabled: false,
		From:    "notifications@example.com",
		Admin:   "admin@example.com",
		Sender:  SenderLog,
		SMTP: SMTPConfig{
			Host: "smtp.example.com",
			Port: 587,
			User: "notifications@example.com",
			TLS:  "opportunistic",
		},
	}
}
