package affiliate

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/oshikatsu-collection/oshidata/internal/config"
	"github.com/oshikatsu-collection/oshidata/internal/model"
)

const (
	ProviderValueCommerce = "valuecommerce"
	ProviderLinkSwitch    = "linkswitch"
	ProviderDirect        = "direct"

	valueCommerceReferral = "https://ck.jp.ap.valuecommerce.com/servlet/referral"
)

// /tokyo/A1303/A130301/13000001/ (restaurant root, sub pages allowed after it)
var reTabelogPath = regexp.MustCompile(`^/([a-z]+)/(A\d{4})/(A\d{6})/(\d{8})(?:/|$)`)

// IsTabelogURL reports whether u points at a tabelog restaurant page.
func IsTabelogURL(u string) bool {
	_, err := NormalizeTabelogURL(u)
	return err == nil
}

// NormalizeTabelogURL returns the canonical restaurant root URL:
// https://tabelog.com/<pref>/<area>/<sub>/<id>/ without query or fragment.
func NormalizeTabelogURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty tabelog url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse tabelog url: %w", err)
	}
	host := strings.ToLower(u.Hostname())
	if host != "tabelog.com" && !strings.HasSuffix(host, ".tabelog.com") {
		return "", fmt.Errorf("not a tabelog host: %s", host)
	}
	// s.tabelog.com (mobile) and en/cn/kr language paths map onto the same page
	path := u.Path
	for _, lang := range []string{"/en", "/cn", "/tw", "/kr"} {
		if strings.HasPrefix(path, lang+"/") {
			path = strings.TrimPrefix(path, lang)
			break
		}
	}
	m := reTabelogPath.FindStringSubmatch(path)
	if m == nil {
		return "", fmt.Errorf("not a tabelog restaurant path: %s", u.Path)
	}
	return fmt.Sprintf("https://tabelog.com/%s/%s/%s/%s/", m[1], m[2], m[3], m[4]), nil
}

// Builder turns tabelog URLs into affiliate records.
type Builder struct {
	SID        string // ValueCommerce site id
	PID        string // ValueCommerce program id
	LinkSwitch bool
	Now        func() time.Time
}

func NewBuilder(cfg config.AffiliateConfig) Builder {
	return Builder{
		SID:        cfg.ValueCommerceSID,
		PID:        cfg.ValueCommercePID,
		LinkSwitch: cfg.LinkSwitch,
	}
}

// Build normalises rawURL and wraps it for the configured affiliate network.
func (b Builder) Build(rawURL string) (*model.TabelogAffiliate, error) {
	original, err := NormalizeTabelogURL(rawURL)
	if err != nil {
		return nil, err
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}

	aff := &model.TabelogAffiliate{
		URL:               original,
		OriginalURL:       original,
		Provider:          ProviderDirect,
		LinkSwitchEnabled: b.LinkSwitch,
		UpdatedAt:         now().UTC().Format(time.RFC3339),
	}
	switch {
	case b.SID != "" && b.PID != "":
		q := url.Values{}
		q.Set("sid", b.SID)
		q.Set("pid", b.PID)
		q.Set("vc_url", original)
		aff.URL = valueCommerceReferral + "?" + q.Encode()
		aff.Provider = ProviderValueCommerce
	case b.LinkSwitch:
		// LinkSwitch rewrites plain links client side
		aff.Provider = ProviderLinkSwitch
	}
	return aff, nil
}

// HasActiveTabelog reports whether loc carries a usable tabelog affiliate link.
func HasActiveTabelog(loc model.Location) bool {
	return loc.AffiliateInfo.Tabelog != nil && loc.AffiliateInfo.Tabelog.URL != ""
}
