package views

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/a-h/templ"
)

func thumbURL(id string) templ.SafeURL {
	return templ.SafeURL("/games/" + url.PathEscape(id) + "/thumb")
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func changeText(pct float64) string {
	return fmt.Sprintf("%+.1f%%", pct)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
