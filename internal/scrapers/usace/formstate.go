package usace

import (
	"fmt"
	"regexp"
	"usace-scraper/lib/htmlutil"

	"golang.org/x/net/html"
)

const (
	FIELD_VIEWSTATE          = "__VIEWSTATE"
	FIELD_VIEWSTATEGENERATOR = "__VIEWSTATEGENERATOR"
	FIELD_EVENTVALIDATION    = "__EVENTVALIDATION"
	FIELD_LASTFOCUS          = "__LASTFOCUS"
	FIELD_EVENTTARGET        = "__EVENTTARGET"
	FIELD_EVENTARGUMENT      = "__EVENTARGUMENT"
)

// FormFields are the hidden WebForms fields that have to be posted back.
type FormFields map[string]string

// StateToken is the primary hidden state token, a response without it is unusable.
func (f FormFields) StateToken() string {
	return f[FIELD_VIEWSTATE]
}

// the fields carried from one response to the next request
var stateFieldNames = []string{
	FIELD_VIEWSTATE,
	FIELD_VIEWSTATEGENERATOR,
	FIELD_EVENTVALIDATION,
	FIELD_LASTFOCUS,
}

// fieldPatterns returns the alternate attribute orders a hidden field may be
// rendered with, earlier patterns win.
func fieldPatterns(name string) []*regexp.Regexp {
	quoted := regexp.QuoteMeta(name)
	return []*regexp.Regexp{
		regexp.MustCompile(fmt.Sprintf(`(?i)<input[^>]*\bname=["']%s["'][^>]*\bvalue=["']([^"']*)["']`, quoted)),
		regexp.MustCompile(fmt.Sprintf(`(?i)<input[^>]*\bvalue=["']([^"']*)["'][^>]*\bname=["']%s["']`, quoted)),
		regexp.MustCompile(fmt.Sprintf(`(?i)<input[^>]*\bid=["']%s["'][^>]*\bvalue=["']([^"']*)["']`, quoted)),
	}
}

var stateFieldPatterns = func() map[string][]*regexp.Regexp {
	out := map[string][]*regexp.Regexp{}
	for _, name := range stateFieldNames {
		out[name] = fieldPatterns(name)
	}
	return out
}()

// ExtractFields pulls the hidden WebForms state fields out of a page. Missing
// fields are simply absent from the result.
func ExtractFields(page string) FormFields {
	fields := FormFields{}
	for _, name := range stateFieldNames {
		for _, pattern := range stateFieldPatterns[name] {
			groups := pattern.FindStringSubmatch(page)
			if len(groups) < 2 {
				continue
			}
			fields[name] = html.UnescapeString(groups[1])
			break
		}
	}
	return fields
}

type Option struct {
	Value    string
	Label    string
	Selected bool
}

var optionRegex = regexp.MustCompile(`(?is)<option([^>]*)>(.*?)</option>`)
var valueAttrRegex = regexp.MustCompile(`(?i)\bvalue=["']([^"']*)["']`)
var selectedAttrRegex = regexp.MustCompile(`(?i)\bselected\b`)

func selectBlockRegex(name string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(name)
	return regexp.MustCompile(fmt.Sprintf(
		`(?is)<select[^>]*\b(?:name|id)=["']%s["'][^>]*>(.*?)</select>`,
		quoted,
	))
}

// ExtractOptions lists the options of the named <select>, only that block is
// searched. Options with an empty value or the placeholder value are skipped.
func ExtractOptions(page, selectName, placeholder string) []Option {
	block := selectBlockRegex(selectName).FindStringSubmatch(page)
	if len(block) < 2 {
		return nil
	}

	var options []Option
	for _, match := range optionRegex.FindAllStringSubmatch(block[1], -1) {
		attrs := match[1]
		value := ""
		if groups := valueAttrRegex.FindStringSubmatch(attrs); len(groups) >= 2 {
			value = html.UnescapeString(groups[1])
		}
		if value == "" || (placeholder != "" && value == placeholder) {
			continue
		}
		options = append(options, Option{
			Value:    value,
			Label:    htmlutil.StripTags(match[2]),
			Selected: selectedAttrRegex.MatchString(attrs),
		})
	}
	return options
}
