package risk

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/publicsuffix"
)

// Risk level thresholds. A score above SuspiciousThreshold rejects creation.
const (
	SuspiciousThreshold = 70
	mediumThreshold     = 40
	maxScore            = 100
)

var ipv4Prefix = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`)

// Features holds the lexical/structural signals extracted from a URL.
type Features struct {
	URLLength          int  `json:"url_length"`
	NumDots            int  `json:"num_dots"`
	NumHyphens         int  `json:"num_hyphens"`
	NumUnderscores     int  `json:"num_underscores"`
	NumSlashes         int  `json:"num_slashes"`
	NumDigits          int  `json:"num_digits"`
	NumParams          int  `json:"num_params"`
	HasIP              bool `json:"has_ip"`
	HasAtSymbol        bool `json:"has_at_symbol"`
	HasDoubleSlash     bool `json:"has_double_slash"`
	SubdomainCount     int  `json:"subdomain_count"`
	SuspiciousKeywords int  `json:"suspicious_keywords"`
	IsHTTPS            bool `json:"is_https"`
	DomainLength       int  `json:"domain_length"`
}

// Result is the outcome of scoring a single URL.
type Result struct {
	RiskScore    int      `json:"risk_score"`
	RiskLevel    string   `json:"risk_level"`
	IsSuspicious bool     `json:"is_suspicious"`
	Reasons      []string `json:"reasons"`
	Features     Features `json:"features"`
}

// Scorer computes heuristic phishing risk scores from URL strings.
// Scoring is a pure function of the input, safe for concurrent use.
type Scorer struct {
	suspiciousKeywords []string
	trustedDomains     map[string]struct{}
}

// NewScorer returns a scorer with the built-in keyword and trust lists.
func NewScorer() *Scorer {
	keywords := []string{
		"login", "verify", "account", "update", "secure", "banking",
		"paypal", "amazon", "ebay", "signin", "suspended", "locked",
	}
	trusted := []string{
		"google.com", "youtube.com", "facebook.com", "twitter.com",
		"instagram.com", "linkedin.com", "github.com", "stackoverflow.com",
	}

	trustedSet := make(map[string]struct{}, len(trusted))
	for _, d := range trusted {
		trustedSet[d] = struct{}{}
	}
	return &Scorer{
		suspiciousKeywords: keywords,
		trustedDomains:     trustedSet,
	}
}

// ExtractFeatures decomposes a raw URL into its scoring signals.
func (s *Scorer) ExtractFeatures(rawURL string) Features {
	u, err := url.Parse(rawURL)
	if err != nil {
		u = &url.URL{}
	}

	parts := splitDomain(u.Hostname())
	lower := strings.ToLower(rawURL)

	numParams := 0
	if u.RawQuery != "" {
		numParams = len(strings.Split(u.RawQuery, "&"))
	}

	keywordHits := 0
	for _, kw := range s.suspiciousKeywords {
		if strings.Contains(lower, kw) {
			keywordHits++
		}
	}

	return Features{
		URLLength:          len(rawURL),
		NumDots:            strings.Count(rawURL, "."),
		NumHyphens:         strings.Count(rawURL, "-"),
		NumUnderscores:     strings.Count(rawURL, "_"),
		NumSlashes:         strings.Count(rawURL, "/"),
		NumDigits:          countDigits(rawURL),
		NumParams:          numParams,
		HasIP:              ipv4Prefix.MatchString(u.Host),
		HasAtSymbol:        strings.Contains(rawURL, "@"),
		HasDoubleSlash:     strings.Contains(u.Path, "//"),
		SubdomainCount:     labelCount(parts.subdomain),
		SuspiciousKeywords: keywordHits,
		IsHTTPS:            u.Scheme == "https",
		DomainLength:       len(parts.domain),
	}
}

// Score evaluates the weighted rule set over the extracted features.
// A registrable domain on the trust list subtracts 50 from the accumulated
// score and replaces the reasons with a single trust marker.
func (s *Scorer) Score(rawURL string) Result {
	features := s.ExtractFeatures(rawURL)

	u, err := url.Parse(rawURL)
	if err != nil {
		u = &url.URL{}
	}
	parts := splitDomain(u.Hostname())

	score := 0
	reasons := []string{}

	if features.URLLength > 75 {
		score += 20
		reasons = append(reasons, "Unusually long URL")
	}
	if features.HasIP {
		score += 30
		reasons = append(reasons, "Uses IP address instead of domain")
	}
	if features.NumDots > 5 {
		score += 15
		reasons = append(reasons, "Excessive subdomains")
	}
	if features.HasAtSymbol {
		score += 25
		reasons = append(reasons, "Contains @ symbol (possible obfuscation)")
	}
	if features.SuspiciousKeywords > 2 {
		score += 20
		reasons = append(reasons, "Multiple suspicious keywords detected")
	}
	if !features.IsHTTPS {
		score += 10
		reasons = append(reasons, "Not using HTTPS")
	}
	if features.NumHyphens > 3 {
		score += 15
		reasons = append(reasons, "Excessive hyphens in URL")
	}
	if features.HasDoubleSlash {
		score += 20
		reasons = append(reasons, "Contains double slashes in path")
	}

	if parts.registrable != "" {
		if _, ok := s.trustedDomains[parts.registrable]; ok {
			score -= 50
			if score < 0 {
				score = 0
			}
			reasons = []string{"Verified trusted domain"}
		}
	}

	level := "low"
	if score > SuspiciousThreshold {
		level = "high"
	} else if score > mediumThreshold {
		level = "medium"
	}

	clamped := score
	if clamped > maxScore {
		clamped = maxScore
	}

	return Result{
		RiskScore:    clamped,
		RiskLevel:    level,
		IsSuspicious: score > SuspiciousThreshold,
		Reasons:      reasons,
		Features:     features,
	}
}

// domainParts is the registrable-domain decomposition of a hostname.
type domainParts struct {
	subdomain   string
	domain      string // registrable label without the public suffix
	registrable string // domain + "." + public suffix
}

func splitDomain(host string) domainParts {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return domainParts{}
	}

	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// Single-label hosts and bare suffixes have no registrable domain.
		return domainParts{domain: host}
	}

	suffix, _ := publicsuffix.PublicSuffix(host)
	parts := domainParts{
		domain:      strings.TrimSuffix(etld1, "."+suffix),
		registrable: etld1,
	}
	if host != etld1 {
		parts.subdomain = strings.TrimSuffix(host, "."+etld1)
	}
	return parts
}

func labelCount(s string) int {
	if s == "" {
		return 0
	}
	return len(strings.Split(s, "."))
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
