package browser

import (
	"encoding/json"
	"fmt"

	"github.com/couchcryptid/radar-rain-alert/internal/domain"
)

// Map clock selectors on the radar page.
const (
	hourSelector   = "div.panel.time.clock nav.clock-live div.hour div.text"
	minuteSelector = "div.panel.time.clock nav.clock-live div.minute div.text"
	markerSelector = "div.panel.time.clock nav.clock-live div.text.am-pm"
	nextSelector   = "div.panel.time.clock nav.clock-live div.minute button.up[aria-label='下一个时间']"
)

// Button states reported by buttonStateScript.
const (
	buttonMissing  = "missing"
	buttonDisabled = "disabled"
	buttonReady    = "ready"
)

// clockText is the raw text of the clock widgets; nil means not found.
type clockText struct {
	Hour   *string `json:"hour"`
	Minute *string `json:"minute"`
	Marker *string `json:"marker"`
}

// parse converts the widget text to a time of day. ok is false when the
// hour or minute widget is missing or does not hold a valid value.
func (c clockText) parse() (t domain.TimeOfDay, ok bool, err error) {
	if c.Hour == nil || c.Minute == nil {
		return domain.TimeOfDay{}, false, nil
	}
	marker := ""
	if c.Marker != nil {
		marker = *c.Marker
	}
	t, err = domain.ParseDisplayedTime(*c.Hour, *c.Minute, marker)
	if err != nil {
		return domain.TimeOfDay{}, false, err
	}
	return t, true, nil
}

var (
	clockScript = fmt.Sprintf(`(() => {
  const text = (sel) => { const el = document.querySelector(sel); return el ? el.textContent : null; };
  return { hour: text(%s), minute: text(%s), marker: text(%s) };
})()`, jsString(hourSelector), jsString(minuteSelector), jsString(markerSelector))

	buttonStateScript = fmt.Sprintf(`(() => {
  const btn = document.querySelector(%s);
  if (!btn) return %s;
  if (btn.disabled || btn.hasAttribute("disabled")) return %s;
  return %s;
})()`, jsString(nextSelector), jsString(buttonMissing), jsString(buttonDisabled), jsString(buttonReady))
)

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
