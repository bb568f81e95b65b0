package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Accounts AccountsConfig `mapstructure:"accounts"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Portal   PortalConfig   `mapstructure:"portal"`
	Extract  ExtractConfig  `mapstructure:"extract"`
	OAuth    OAuthConfig    `mapstructure:"oauth"`
	Uploader UploaderConfig `mapstructure:"uploader"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Callback CallbackConfig `mapstructure:"callback"`
	Output   OutputConfig   `mapstructure:"output"`
	Log      LogConfig      `mapstructure:"log"`
}

type AccountsConfig struct {
	EnvVar string `mapstructure:"envVar"`
	// TOTPSecrets maps account identifiers to shared secrets. An account
	// with a secret gets its verification-code prompt answered; without
	// one the prompt aborts that account.
	TOTPSecrets map[string]string `mapstructure:"totpSecrets"`
}

type BrowserConfig struct {
	// ExecPaths is tried in order; the first existing binary wins. Empty
	// list lets chromedp auto-detect.
	ExecPaths    []string      `mapstructure:"execPaths"`
	Headless     bool          `mapstructure:"headless"`
	UserAgent    string        `mapstructure:"userAgent"`
	WindowWidth  int           `mapstructure:"windowWidth"`
	WindowHeight int           `mapstructure:"windowHeight"`
	WaitTimeout  time.Duration `mapstructure:"waitTimeout"`
	MaxSessions  int           `mapstructure:"maxSessions"`
}

// PortalConfig holds login-flow URLs, selector candidate lists, and pacing.
// Selectors are ordered fallback lists: the remote UI drifts independently
// of this code, so they live in configuration rather than inline.
type PortalConfig struct {
	LoginURL          string        `mapstructure:"loginUrl"`
	PostLoginURLHints []string      `mapstructure:"postLoginUrlHints"`
	Selectors         Selectors     `mapstructure:"selectors"`
	SettleMin         time.Duration `mapstructure:"settleMin"`
	SettleMax         time.Duration `mapstructure:"settleMax"`
	KMSIWait          time.Duration `mapstructure:"kmsiWait"`
	AccountDelayMin   time.Duration `mapstructure:"accountDelayMin"`
	AccountDelayMax   time.Duration `mapstructure:"accountDelayMax"`
}

type Selectors struct {
	Email          []string `mapstructure:"email"`
	Next           []string `mapstructure:"next"`
	Password       []string `mapstructure:"password"`
	SignIn         []string `mapstructure:"signIn"`
	KMSINo         []string `mapstructure:"kmsiNo"`
	Consent        []string `mapstructure:"consent"`
	ChallengeInput []string `mapstructure:"challengeInput"`
	ChallengeTexts []string `mapstructure:"challengeTexts"`
	TOTPInput      []string `mapstructure:"totpInput"`
	TOTPSubmit     []string `mapstructure:"totpSubmit"`
}

type ExtractConfig struct {
	SubscriptionsURL string        `mapstructure:"subscriptionsUrl"`
	Container        string        `mapstructure:"container"`
	Target           string        `mapstructure:"target"`
	LoadTimeout      time.Duration `mapstructure:"loadTimeout"`
	Rows             []string      `mapstructure:"rows"`
	Titles           []string      `mapstructure:"titles"`
	ExpiryMarkers    []string      `mapstructure:"expiryMarkers"`
	ExpiryFields     []string      `mapstructure:"expiryFields"`
	StripPrefixes    []string      `mapstructure:"stripPrefixes"`
}

type OAuthConfig struct {
	AuthorizeURL   string        `mapstructure:"authorizeUrl"`
	RedirectPrefix string        `mapstructure:"redirectPrefix"`
	ConsentWait    time.Duration `mapstructure:"consentWait"`
	RedirectWait   time.Duration `mapstructure:"redirectWait"`
	PollInterval   time.Duration `mapstructure:"pollInterval"`
}

type UploaderConfig struct {
	Bin        string        `mapstructure:"bin"`
	ConfigFile string        `mapstructure:"configFile"`
	Remote     string        `mapstructure:"remote"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type NotifyConfig struct {
	WebhookURL string        `mapstructure:"webhookUrl"`
	Title      string        `mapstructure:"title"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type CallbackConfig struct {
	Listen string `mapstructure:"listen"` // empty disables the listener
	Path   string `mapstructure:"path"`
}

type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("accounts.envVar", "MS_E5_ACCOUNTS")

	v.SetDefault("browser.execPaths", []string{
		"/usr/bin/google-chrome",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/opt/google/chrome/google-chrome",
	})
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.userAgent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/100.0.4896.127 Safari/537.36")
	v.SetDefault("browser.windowWidth", 1920)
	v.SetDefault("browser.windowHeight", 1080)
	v.SetDefault("browser.waitTimeout", "45s")
	v.SetDefault("browser.maxSessions", 1) // accounts are processed strictly one at a time

	v.SetDefault("portal.loginUrl", "https://admin.microsoft.com/")
	v.SetDefault("portal.postLoginUrlHints", []string{"admin.microsoft.com", "portal.office.com", "m365.cloud.microsoft"})
	v.SetDefault("portal.selectors.email", []string{"#i0116", "input[type='email']", "input[name='loginfmt']"})
	v.SetDefault("portal.selectors.next", []string{"#idSIButton9", "input[type='submit']"})
	v.SetDefault("portal.selectors.password", []string{"#i0118", "input[type='password']", "input[name='passwd']"})
	v.SetDefault("portal.selectors.signIn", []string{"#idSIButton9", "input[type='submit']"})
	v.SetDefault("portal.selectors.kmsiNo", []string{"#idBtn_Back", "input[value='No']"})
	v.SetDefault("portal.selectors.consent", []string{"#idBtn_Accept", "input[value='Accept']"})
	v.SetDefault("portal.selectors.challengeInput", []string{
		"input[name='otc']", "input[autocomplete='one-time-code']", "#idTxtBx_SAOTCC_OTC",
	})
	v.SetDefault("portal.selectors.challengeTexts", []string{
		"enter code", "verify your identity", "approve sign in request", "enter the code", "additional security verification",
	})
	v.SetDefault("portal.selectors.totpInput", []string{"#idTxtBx_SAOTCC_OTC", "input[name='otc']"})
	v.SetDefault("portal.selectors.totpSubmit", []string{"#idSubmit_SAOTCC_Continue", "input[type='submit']"})
	v.SetDefault("portal.settleMin", "3s")
	v.SetDefault("portal.settleMax", "5s")
	v.SetDefault("portal.kmsiWait", "15s")
	v.SetDefault("portal.accountDelayMin", "8s")
	v.SetDefault("portal.accountDelayMax", "15s")

	v.SetDefault("extract.subscriptionsUrl", "https://admin.microsoft.com/#/subscriptions")
	v.SetDefault("extract.container", "main")
	v.SetDefault("extract.target", "Microsoft 365 E5")
	v.SetDefault("extract.loadTimeout", "45s")
	v.SetDefault("extract.rows", []string{"ms-List-cell", "ms-DetailsRow", "card"})
	v.SetDefault("extract.titles", []string{"product-title", "ms-Link", "h3"})
	v.SetDefault("extract.expiryMarkers", []string{"Expires", "到期"})
	v.SetDefault("extract.expiryFields", []string{"expiration-date", "date-field"})
	v.SetDefault("extract.stripPrefixes", []string{"Expires on", "Expires", "到期日期：", "到期："})

	v.SetDefault("oauth.authorizeUrl", "https://login.microsoftonline.com/common/oauth2/v2.0/authorize?client_id=78d4dc35-7e46-42c6-9023-2d39314433a5&response_type=code&redirect_uri=http://localhost/onedrive-login&response_mode=query&scope=offline_access%20User.Read%20Files.ReadWrite.All")
	v.SetDefault("oauth.redirectPrefix", "http://localhost/onedrive-login")
	v.SetDefault("oauth.consentWait", "10s")
	v.SetDefault("oauth.redirectWait", "45s")
	v.SetDefault("oauth.pollInterval", "500ms")

	v.SetDefault("uploader.bin", "rclone")
	v.SetDefault("uploader.configFile", "")
	v.SetDefault("uploader.remote", "")
	v.SetDefault("uploader.timeout", "2m")

	v.SetDefault("notify.webhookUrl", "")
	v.SetDefault("notify.title", "Microsoft E5 login check report")
	v.SetDefault("notify.timeout", "10s")

	v.SetDefault("callback.listen", "") // e.g. ":80" to catch the localhost redirect
	v.SetDefault("callback.path", "/onedrive-login")

	v.SetDefault("output.dir", ".")

	v.SetDefault("log.level", "info")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.portalwatch")
		v.AddConfigPath("/etc/portalwatch")
	}

	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("PORTALWATCH")

	err := v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	err = v.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
