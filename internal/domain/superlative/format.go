package superlative

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatValue форматирует значение метрики для показа: разделители тысяч,
// время игры - в часах с одним знаком после запятой.
func (m MetricSpec) FormatValue(v int64) string {
	if m.Kind == MetricPlaytime {
		return printer.Sprintf("%.1f h", float64(v)/60)
	}
	return printer.Sprintf("%d", v)
}
