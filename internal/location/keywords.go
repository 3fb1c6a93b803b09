package location

import (
	"context"
	"strings"

	"github.com/nhle/taskradar/internal/model"
)

// titleKeywords maps words found in a task title to a search keyword.
// Checked in order; the first match wins.
var titleKeywords = []struct {
	words   []string
	keyword string
}{
	{[]string{"prescription", "pharmacy", "medicine", "pills"}, "pharmacy"},
	{[]string{"milk", "eggs", "bread", "grocer", "vegetables"}, "grocery store"},
	{[]string{"parcel", "package", "stamps", "mail a"}, "post office"},
	{[]string{"cash", "deposit", "atm"}, "bank"},
	{[]string{"screws", "paint", "hardware"}, "hardware store"},
	{[]string{"coffee"}, "cafe"},
	{[]string{"gas", "fuel"}, "gas station"},
}

// categoryKeywords is the fallback when no title word matches.
var categoryKeywords = map[model.Category]string{
	model.CategoryShopping: "store",
	model.CategoryHealth:   "pharmacy",
	model.CategoryFinance:  "bank",
}

// KeywordGenerator proposes search keywords from a fixed table. It is used
// when no decision model is configured.
type KeywordGenerator struct{}

// ProposeSearch returns a keyword for the task or "" if nothing fits.
func (KeywordGenerator) ProposeSearch(_ context.Context, task model.Task) (string, error) {
	title := strings.ToLower(task.Title + " " + task.Description)
	for _, entry := range titleKeywords {
		for _, w := range entry.words {
			if strings.Contains(title, w) {
				return entry.keyword, nil
			}
		}
	}
	return categoryKeywords[task.Category], nil
}
