// Package validate turns raw caller input into a ValidatedRequest before any
// network call is made.
package validate

import (
	"encoding/json"
	"errors"
	"net/url"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/brainreset/internal/apperr"
)

// Day count bounds and the default applied when the caller omits it.
const (
	MinDays     = 1
	MaxDays     = 30
	DefaultDays = 7
)

// Buckets are the periods the reflection prompt is written for.
var Buckets = []int{7, 14, 30}

var tokenRe = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

// RawRequest is the inbound body of POST /api/brain-reset.
type RawRequest struct {
	ServerURL  string `json:"serverUrl"`
	CraftToken string `json:"craftToken"`
	Days       *int   `json:"days,omitempty"`
}

// UnmarshalJSON decodes the body leniently for days: a value that is not a
// whole JSON number (a string, a fraction, a bool, null) counts as absent and
// later takes DefaultDays. Whole numbers outside the range are kept so the
// validator can reject them.
func (r *RawRequest) UnmarshalJSON(data []byte) error {
	type plain RawRequest
	var body struct {
		plain
		Days json.RawMessage `json:"days,omitempty"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	*r = RawRequest(body.plain)
	r.Days = nil

	var days int
	if len(body.Days) > 0 && json.Unmarshal(body.Days, &days) == nil && string(body.Days) != "null" {
		r.Days = &days
	}
	return nil
}

// ValidatedRequest is the normalised input of one brain reset run.
type ValidatedRequest struct {
	ServerURL   string
	APIBase     string
	AccessToken string
	Days        int
}

// Validator checks raw input against the structural rules for the
// configured Craft domain.
type Validator struct {
	domain string
}

// New returns a Validator accepting links on domain or any of its
// subdomains.
func New(domain string) *Validator {
	return &Validator{domain: strings.ToLower(strings.TrimPrefix(domain, "."))}
}

// Request validates raw. Failures are apperr.KindValidation.
func (v *Validator) Request(raw RawRequest) (ValidatedRequest, error) {
	raw.ServerURL = strings.TrimSpace(raw.ServerURL)

	err := validation.ValidateStruct(&raw,
		validation.Field(&raw.ServerURL,
			validation.Required.Error("Craft server link is required"),
			validation.By(v.serverURL),
		),
		validation.Field(&raw.CraftToken,
			validation.Required.Error("Craft API token is required"),
			validation.Length(10, 1000).Error("must be between 10 and 1000 characters"),
			validation.Match(tokenRe).Error("may only contain letters, digits, underscores, hyphens and dots"),
		),
		validation.Field(&raw.Days, validation.By(dayCount)),
	)
	if err != nil {
		return ValidatedRequest{}, apperr.New(apperr.KindValidation, "validate", err)
	}

	days := DefaultDays
	if raw.Days != nil {
		days = *raw.Days
	}
	return ValidatedRequest{
		ServerURL:   raw.ServerURL,
		APIBase:     APIBase(raw.ServerURL),
		AccessToken: raw.CraftToken,
		Days:        days,
	}, nil
}

func (v *Validator) serverURL(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil {
		return errors.New("must be a valid URL")
	}
	if u.Scheme != "https" {
		return errors.New("must use https")
	}
	host := strings.ToLower(u.Hostname())
	if host != v.domain && !strings.HasSuffix(host, "."+v.domain) {
		return errors.New("must be a Craft link on " + v.domain)
	}
	return nil
}

func dayCount(value any) error {
	p, _ := value.(*int)
	if p == nil {
		return nil
	}
	if *p < MinDays || *p > MaxDays {
		return errors.New("must be between 1 and 30")
	}
	return nil
}

// SnapDays maps a validated day count onto the largest bucket not above
// it. Counts below the smallest bucket get the default.
func SnapDays(days int) int {
	snapped := DefaultDays
	for _, b := range Buckets {
		if b <= days {
			snapped = b
		}
	}
	return snapped
}

// APIBase normalises a Craft Connect link to its /api/v1 base.
func APIBase(serverURL string) string {
	base := strings.TrimRight(strings.TrimSpace(serverURL), "/")
	switch {
	case strings.HasSuffix(base, "/api/v1"):
		return base
	case strings.HasSuffix(base, "/api"):
		return base + "/v1"
	default:
		return base + "/api/v1"
	}
}
