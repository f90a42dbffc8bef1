package cookies

type Config struct {
	// BannerSelectors are CSS selectors of known consent-management
	// platforms. Any match in the rendered document counts as a banner.
	BannerSelectors []string `mapstructure:"banner_selectors"`
}

func DefaultConfig() Config {
	return Config{
		BannerSelectors: []string{
			"#onetrust-banner-sdk",
			"#onetrust-consent-sdk",
			"#CybotCookiebotDialog",
			"#usercentrics-root",
			"#didomi-host",
			".qc-cmp2-container",
			"#truste-consent-track",
			".osano-cm-window",
			".cc-window",
			"#cookie-banner",
			".cookie-banner",
			"#cookie-consent",
			".cookie-consent",
			"[data-cookie-banner]",
		},
	}
}
